package replay

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/web3cache/web3cache/internal/model"
)

func rawTx(block int64, event, hash string) json.RawMessage {
	b, _ := json.Marshal(map[string]any{
		"block_number": block,
		"event_name":   event,
		"hash":         hash,
	})
	return b
}

func testSub() *model.Subscription {
	return &model.Subscription{
		SubID:      "sub-1",
		APIKey:     "key",
		ContractID: "contract-1",
	}
}

func TestGroupHistory_GroupsConsecutiveRuns(t *testing.T) {
	transactions := []json.RawMessage{
		rawTx(100, "Transfer", "0x1"),
		rawTx(100, "Transfer", "0x2"),
		rawTx(100, "Approval", "0x3"), // same block, new event
		rawTx(101, "Approval", "0x4"),
		rawTx(100, "Transfer", "0x5"), // revisits an earlier pair, still a new run
	}

	items, err := GroupHistory(testSub(), transactions, time.Now().UnixMilli())
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 4 {
		t.Fatalf("expected 4 runs, got %d", len(items))
	}

	type run struct {
		block int64
		event string
		count int
	}
	want := []run{
		{100, "Transfer", 2},
		{100, "Approval", 1},
		{101, "Approval", 1},
		{100, "Transfer", 1},
	}
	for i, w := range want {
		item := items[i]
		if item.BlockNumber != w.block || item.EventName != w.event || len(item.Transactions) != w.count {
			t.Fatalf("run %d: expected %+v, got block=%d event=%s count=%d",
				i, w, item.BlockNumber, item.EventName, len(item.Transactions))
		}
		if item.SubID != "sub-1" || item.ContractID != "contract-1" {
			t.Fatalf("run %d: wrong addressing: %+v", i, item)
		}
	}
}

func TestGroupHistory_Empty(t *testing.T) {
	items, err := GroupHistory(testSub(), nil, time.Now().UnixMilli())
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no items, got %d", len(items))
	}
}

type captureStore struct {
	items []model.WorkItem
}

func (c *captureStore) InsertWorkItems(items []model.WorkItem) (int, int, error) {
	c.items = append(c.items, items...)
	return len(items), 0, nil
}

func TestService_Replay_FetchesAndEnqueues(t *testing.T) {
	var gotHeaders http.Header
	readSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transactions_history" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		gotHeaders = r.Header.Clone()
		history := []json.RawMessage{
			rawTx(100, "Transfer", "0x1"),
			rawTx(101, "Transfer", "0x2"),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(history)
	}))
	defer readSrv.Close()

	cs := &captureStore{}
	svc := NewService(cs, NewReadClient(readSrv.URL, "read-key", 2*time.Second))

	if err := svc.Replay(testSub(), 100); err != nil {
		t.Fatal(err)
	}

	if gotHeaders.Get("x-read-api-key") != "read-key" {
		t.Fatalf("expected read api key header, got %q", gotHeaders.Get("x-read-api-key"))
	}
	if gotHeaders.Get("block_number") != "100" {
		t.Fatalf("expected block_number header 100, got %q", gotHeaders.Get("block_number"))
	}
	if gotHeaders.Get("contract_id") != "contract-1" {
		t.Fatalf("expected contract_id header, got %q", gotHeaders.Get("contract_id"))
	}

	if len(cs.items) != 2 {
		t.Fatalf("expected 2 work items enqueued, got %d", len(cs.items))
	}
}

func TestService_Replay_ReadServiceError(t *testing.T) {
	readSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer readSrv.Close()

	cs := &captureStore{}
	svc := NewService(cs, NewReadClient(readSrv.URL, "read-key", 2*time.Second))

	if err := svc.Replay(testSub(), 100); err == nil {
		t.Fatal("expected error for failing read service")
	}
	if len(cs.items) != 0 {
		t.Fatal("expected nothing enqueued on read failure")
	}
}

func TestService_Replay_Unconfigured(t *testing.T) {
	svc := NewService(&captureStore{}, nil)
	if err := svc.Replay(testSub(), 100); err == nil {
		t.Fatal("expected error when no read service is configured")
	}
}
