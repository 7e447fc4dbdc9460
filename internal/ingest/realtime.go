package ingest

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"

	"github.com/web3cache/web3cache/internal/netutil"
)

// RealtimeNotifier posts accepted raw transactions to the realtime service.
// Delivery is best-effort and independent of the work-item pipeline:
// failures are logged, never surfaced, and nothing is retried.
type RealtimeNotifier struct {
	baseURL string
	client  *http.Client
}

// NewRealtimeNotifier creates a notifier for the given base URL. The client
// carries no timeout; the notification goroutine is fire-and-forget.
func NewRealtimeNotifier(baseURL string) *RealtimeNotifier {
	return &RealtimeNotifier{
		baseURL: baseURL,
		client:  netutil.NewOutboundClient(0),
	}
}

// Notify posts {"transactions": [...]} to /notify-transactions.
// Intended to run in its own goroutine.
func (n *RealtimeNotifier) Notify(transactions []json.RawMessage) {
	if len(transactions) == 0 {
		return
	}

	body, err := json.Marshal(map[string]any{"transactions": transactions})
	if err != nil {
		log.Printf("[ingest] realtime notify: marshal: %v", err)
		return
	}

	resp, err := n.client.Post(n.baseURL+"/notify-transactions", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("[ingest] realtime notify failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("[ingest] realtime notify: unexpected status %d", resp.StatusCode)
	}
}
