package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/web3cache/web3cache/internal/model"
	"github.com/web3cache/web3cache/internal/replay"
)

// SubscriptionFinder is the store dependency of the replay handler.
type SubscriptionFinder interface {
	FindSubscription(subID string) (*model.Subscription, error)
}

// ReplayRequest is the body of the replay action.
type ReplayRequest struct {
	BlockNumber int64 `json:"block_number"`
}

// SubscriptionView is a subscription as echoed back to its owner. The API
// key never leaves the store through this endpoint; the caller proved they
// hold it already.
type SubscriptionView struct {
	SubID       string   `json:"sub_id"`
	ContractID  string   `json:"contract_id"`
	URL         string   `json:"url"`
	Topics      []string `json:"topics"`
	IsActive    bool     `json:"is_active"`
	CreatedAtMs int64    `json:"created_at"`
	UpdatedAtMs int64    `json:"updated_at"`
}

// HandleReplaySubscription re-enqueues historical events for one
// subscription from a given block number. Authentication is by ownership:
// the x-webhook-api-key header must match the subscription's key, and a
// mismatch is indistinguishable from a missing subscription.
func HandleReplaySubscription(subs SubscriptionFinder, svc *replay.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("x-webhook-api-key")
		if apiKey == "" {
			WriteMessage(w, http.StatusBadRequest, "missing x-webhook-api-key")
			return
		}

		subID := r.PathValue("id")

		var req ReplayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteMessage(w, http.StatusBadRequest, "invalid payload")
			return
		}

		sub, err := subs.FindSubscription(subID)
		if err != nil {
			log.Printf("[api] replay lookup for %s: %v", subID, err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if sub == nil || sub.APIKey != apiKey {
			WriteMessage(w, http.StatusNotFound, "Subscription not found")
			return
		}

		if err := svc.Replay(sub, req.BlockNumber); err != nil {
			log.Printf("[api] replay for %s: %v", subID, err)
			WriteMessage(w, http.StatusBadRequest, "Internal error, we were not able to restart the blocknumber")
			return
		}

		WriteJSON(w, http.StatusOK, SubscriptionView{
			SubID:       sub.SubID,
			ContractID:  sub.ContractID,
			URL:         sub.URL,
			Topics:      sub.Topics,
			IsActive:    sub.IsActive,
			CreatedAtMs: sub.CreatedAtMs,
			UpdatedAtMs: sub.UpdatedAtMs,
		})
	}
}
