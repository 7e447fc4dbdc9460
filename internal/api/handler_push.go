package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/zeebo/xxh3"

	"github.com/web3cache/web3cache/internal/ingest"
)

// HandlePushTransactions ingests one producer batch.
//
// Response contract: 200 with an empty body on success, including the case
// where every block was suppressed or already stored (producers retry
// batches freely and must not treat a replay as an error). A failed insert
// returns 400 with a message envelope; store read failures return 500 with
// an empty body.
func HandlePushTransactions(svc *ingest.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			WriteMessage(w, http.StatusBadRequest, "unreadable body")
			return
		}

		var payload ingest.PushPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			WriteMessage(w, http.StatusBadRequest, "invalid payload")
			return
		}
		if payload.ContractID == "" {
			WriteMessage(w, http.StatusBadRequest, "missing contract_id")
			return
		}

		log.Printf("[api] receiving transactions from %s (%d blocks, payload %016x)",
			payload.ContractID, len(payload.Data), xxh3.Hash(body))

		if err := svc.ProcessPush(&payload); err != nil {
			if errors.Is(err, ingest.ErrInsert) {
				log.Printf("[api] push from %s: %v", payload.ContractID, err)
				WriteMessage(w, http.StatusBadRequest, "error inserting")
				return
			}
			log.Printf("[api] push from %s: %v", payload.ContractID, err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}
