package dispatch

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/web3cache/web3cache/internal/model"
)

func TestBuildPayloadEntry_StripsStorageID(t *testing.T) {
	item := &model.WorkItem{
		SubID:       "sub-1",
		EventName:   "Transfer",
		BlockNumber: 100,
		Transactions: []json.RawMessage{
			json.RawMessage(`{"_id":"abc","hash":"0x1","block_number":100,"event_name":"Transfer"}`),
			json.RawMessage(`{"_id":"def","hash":"0x2"}`),
		},
	}

	entry := buildPayloadEntry(item)
	if len(entry.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(entry.Transactions))
	}
	for _, raw := range entry.Transactions {
		if strings.Contains(string(raw), `"_id"`) {
			t.Fatalf("expected _id stripped, got %s", raw)
		}
	}
	if entry.BlockNumber != 100 || entry.EventName != "Transfer" {
		t.Fatalf("unexpected entry identity: %+v", entry)
	}
}

func TestBuildPayloadEntry_IdentityFromFirstTransaction(t *testing.T) {
	// The first transaction's embedded fields win over the item columns.
	item := &model.WorkItem{
		EventName:   "Transfer",
		BlockNumber: 100,
		Transactions: []json.RawMessage{
			json.RawMessage(`{"block_number":200,"event_name":"Approval"}`),
		},
	}

	entry := buildPayloadEntry(item)
	if entry.BlockNumber != 200 || entry.EventName != "Approval" {
		t.Fatalf("expected identity from transaction, got %+v", entry)
	}
}

func TestBuildPayloadEntry_FallsBackToItemColumns(t *testing.T) {
	item := &model.WorkItem{
		EventName:   "Transfer",
		BlockNumber: 100,
		Transactions: []json.RawMessage{
			json.RawMessage(`{"hash":"0x1"}`), // no embedded identity
			json.RawMessage(`"opaque"`),       // not even an object
		},
	}

	entry := buildPayloadEntry(item)
	if entry.BlockNumber != 100 || entry.EventName != "Transfer" {
		t.Fatalf("expected fallback to item columns, got %+v", entry)
	}
	if string(entry.Transactions[1]) != `"opaque"` {
		t.Fatalf("expected non-object transaction passed through, got %s", entry.Transactions[1])
	}
}
