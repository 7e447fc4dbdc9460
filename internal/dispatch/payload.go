package dispatch

import (
	"encoding/json"

	"github.com/web3cache/web3cache/internal/model"
)

// PayloadEntry is one block of transactions inside a webhook body.
type PayloadEntry struct {
	Transactions []json.RawMessage `json:"transactions"`
	BlockNumber  int64             `json:"block_number"`
	EventName    string            `json:"event_name"`
}

// WebhookBody is the JSON document posted to a subscriber.
type WebhookBody struct {
	Metadata     WebhookMetadata `json:"metadata"`
	PayloadCount int             `json:"payload_count"`
	Payload      []PayloadEntry  `json:"payload"`
}

// WebhookMetadata identifies the contract the payload belongs to.
type WebhookMetadata struct {
	ContractID string `json:"contract_id"`
}

// buildPayloadEntry converts one work item into a webhook payload entry.
// Each transaction is re-emitted without its storage "_id" field. The
// block_number and event_name come from the first transaction when it
// carries them, falling back to the work item's own columns; producers
// embed both fields in every transaction, but replayed history may not.
func buildPayloadEntry(item *model.WorkItem) PayloadEntry {
	entry := PayloadEntry{
		Transactions: make([]json.RawMessage, 0, len(item.Transactions)),
		BlockNumber:  item.BlockNumber,
		EventName:    item.EventName,
	}

	for i, raw := range item.Transactions {
		var doc map[string]json.RawMessage
		if err := json.Unmarshal(raw, &doc); err != nil {
			// not an object; pass through untouched
			entry.Transactions = append(entry.Transactions, raw)
			continue
		}
		if i == 0 {
			if v, ok := doc["block_number"]; ok {
				var n int64
				if json.Unmarshal(v, &n) == nil {
					entry.BlockNumber = n
				}
			}
			if v, ok := doc["event_name"]; ok {
				var s string
				if json.Unmarshal(v, &s) == nil {
					entry.EventName = s
				}
			}
		}
		if _, ok := doc["_id"]; ok {
			delete(doc, "_id")
			cleaned, err := json.Marshal(doc)
			if err == nil {
				entry.Transactions = append(entry.Transactions, cleaned)
				continue
			}
		}
		entry.Transactions = append(entry.Transactions, raw)
	}
	return entry
}
