package ingest

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/web3cache/web3cache/internal/model"
)

// BuildWorkItems expands accepted blocks into one work item per
// (block, subscription) pair and flattens the raw transactions for the
// realtime sideband. Emission is block-major then subscription-minor; the
// order is irrelevant for correctness (the unique index rejects duplicates
// and the dispatcher sorts by block number at send time).
//
// Every item starts with locked_until = now so it is immediately eligible
// for dispatch.
func BuildWorkItems(
	contractID string,
	accepted []TransactionBlock,
	subs []model.Subscription,
	nowMs int64,
) ([]model.WorkItem, []json.RawMessage) {
	var items []model.WorkItem
	var sideband []json.RawMessage

	for _, block := range accepted {
		for _, sub := range subs {
			items = append(items, model.WorkItem{
				ID:            uuid.NewString(),
				SubID:         sub.SubID,
				ContractID:    contractID,
				EventName:     block.EventName,
				BlockNumber:   block.BlockNumber,
				Transactions:  block.Transactions,
				LockedUntilMs: nowMs,
				CreatedAtMs:   nowMs,
			})
		}
		sideband = append(sideband, block.Transactions...)
	}

	return items, sideband
}
