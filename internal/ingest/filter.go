// Package ingest implements the intake path: the fingerprint filter that
// deduplicates pushed block ranges per contract, the materializer that fans
// accepted blocks out into per-subscription work items, and the HTTP handler
// tying them to the store.
package ingest

import (
	"encoding/json"
	"log"

	"github.com/web3cache/web3cache/internal/model"
)

// PushPayload is the body of POST /push-transactions.
type PushPayload struct {
	ContractID string             `json:"contract_id"`
	ResetNonce int64              `json:"reset_nonce"`
	Data       []TransactionBlock `json:"data"`
}

// TransactionBlock is one pushed block of raw transactions for one event.
type TransactionBlock struct {
	BlockNumber  int64             `json:"block_number"`
	EventName    string            `json:"event_name"`
	Transactions []json.RawMessage `json:"transactions"`
}

// FilterBlocks applies the monotone acceptance rule to a push payload against
// the persisted water-mark (nil when the contract has never pushed).
//
// When the persisted reset_nonce matches the payload's, the working map is
// seeded from the stored marks; otherwise it starts empty, discarding all
// prior state (the producer reset its cursor). A block is accepted iff its
// block_number exceeds the working mark for its event (absent compares as
// -1), and accepting it advances the mark. Blocks are evaluated in payload
// order, so a payload may legally carry several ascending blocks of one
// event.
//
// The returned water-mark is the full working map and replaces the stored
// document wholesale.
func FilterBlocks(payload *PushPayload, wm *model.EventWaterMark) ([]TransactionBlock, model.EventWaterMark) {
	working := make(map[string]int64)
	if wm != nil && wm.ResetNonce == payload.ResetNonce {
		for event, block := range wm.Marks {
			working[event] = block
		}
	}

	var accepted []TransactionBlock
	for _, block := range payload.Data {
		previous, ok := working[block.EventName]
		if !ok {
			previous = -1
		}
		if block.BlockNumber > previous {
			accepted = append(accepted, block)
			working[block.EventName] = block.BlockNumber
		} else {
			log.Printf("[ingest] ignoring transactions on event %s, block_number %d <= %d",
				block.EventName, block.BlockNumber, previous)
		}
	}

	return accepted, model.EventWaterMark{
		ContractID: payload.ContractID,
		ResetNonce: payload.ResetNonce,
		Marks:      working,
	}
}
