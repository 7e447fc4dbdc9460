package ingest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRealtimeNotifier_PostsTransactions(t *testing.T) {
	received := make(chan []json.RawMessage, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/notify-transactions" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body struct {
			Transactions []json.RawMessage `json:"transactions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		received <- body.Transactions
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewRealtimeNotifier(srv.URL)
	n.Notify([]json.RawMessage{json.RawMessage(`{"hash":"0x1"}`)})

	select {
	case txs := <-received:
		if len(txs) != 1 {
			t.Fatalf("expected 1 transaction, got %d", len(txs))
		}
	default:
		t.Fatal("expected notification to arrive")
	}
}

func TestRealtimeNotifier_SkipsEmptyBatch(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	n := NewRealtimeNotifier(srv.URL)
	n.Notify(nil)

	if called {
		t.Fatal("expected no request for an empty batch")
	}
}
