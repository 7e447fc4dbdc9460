package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/web3cache/web3cache/internal/ingest"
	"github.com/web3cache/web3cache/internal/replay"
	"github.com/web3cache/web3cache/internal/store"
)

func newReplayAPI(t *testing.T, readHandler http.HandlerFunc) (*httptest.Server, *store.Store) {
	t.Helper()
	st, err := store.Open(t.TempDir() + "/web3cache.db")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	readSrv := httptest.NewServer(readHandler)
	t.Cleanup(readSrv.Close)

	ingestSvc := ingest.NewService(st, ingest.NewSubscriptionCache(st, 0), nil, nil)
	replaySvc := replay.NewService(st, replay.NewReadClient(readSrv.URL, "read-key", 2*time.Second))
	srv := NewServer("127.0.0.1", 0, 1<<20, ingestSvc, st, replaySvc, nil)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, st
}

func historyHandler(t *testing.T) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		history := []map[string]any{
			{"block_number": 100, "event_name": "Transfer", "hash": "0x1"},
			{"block_number": 100, "event_name": "Transfer", "hash": "0x2"},
			{"block_number": 101, "event_name": "Transfer", "hash": "0x3"},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(history)
	}
}

func replayRequest(t *testing.T, ts *httptest.Server, subID, apiKey string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost,
		ts.URL+"/api/v1/subscriptions/"+subID+"/actions/replay",
		bytes.NewReader([]byte(`{"block_number":100}`)))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("x-webhook-api-key", apiKey)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestHandleReplaySubscription_EnqueuesHistory(t *testing.T) {
	ts, st := newReplayAPI(t, historyHandler(t))
	seedSubscription(t, st, "sub-1", "contract-1")

	resp := replayRequest(t, ts, "sub-1", "key-sub-1")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var view SubscriptionView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatal(err)
	}
	if view.SubID != "sub-1" || view.ContractID != "contract-1" {
		t.Fatalf("unexpected echo: %+v", view)
	}

	// Two runs: block 100 (2 txs) and block 101 (1 tx).
	n, err := st.CountWorkItems()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 work items, got %d", n)
	}

	// Replaying again is a no-op thanks to duplicate suppression.
	resp = replayRequest(t, ts, "sub-1", "key-sub-1")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on repeat replay, got %d", resp.StatusCode)
	}
	n, _ = st.CountWorkItems()
	if n != 2 {
		t.Fatalf("expected duplicates skipped on repeat replay, got %d items", n)
	}
}

func TestHandleReplaySubscription_MissingAPIKey(t *testing.T) {
	ts, st := newReplayAPI(t, historyHandler(t))
	seedSubscription(t, st, "sub-1", "contract-1")

	resp := replayRequest(t, ts, "sub-1", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestHandleReplaySubscription_WrongKeyReadsAsNotFound(t *testing.T) {
	ts, st := newReplayAPI(t, historyHandler(t))
	seedSubscription(t, st, "sub-1", "contract-1")

	resp := replayRequest(t, ts, "sub-1", "someone-elses-key")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	resp = replayRequest(t, ts, "no-such-sub", "key-sub-1")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for missing subscription, got %d", resp.StatusCode)
	}
}

func TestHandleReplaySubscription_ReadServiceFailure(t *testing.T) {
	ts, st := newReplayAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	seedSubscription(t, st, "sub-1", "contract-1")

	resp := replayRequest(t, ts, "sub-1", "key-sub-1")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
