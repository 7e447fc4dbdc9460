// Package replay re-enqueues historical events for a subscription. The
// transaction history lives in the read service; replay fetches it from a
// given block number onward, regroups it into per-block work items, and
// inserts them for normal dispatch.
package replay

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/web3cache/web3cache/internal/model"
	"github.com/web3cache/web3cache/internal/netutil"
)

// ReadClient fetches transaction history from the read service.
type ReadClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewReadClient creates a client for the read service at baseURL.
func NewReadClient(baseURL, apiKey string, timeout time.Duration) *ReadClient {
	return &ReadClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  netutil.NewOutboundClient(timeout),
	}
}

// TransactionsHistory returns all historical transactions for a contract
// from blockNumber onward, in the read service's order. The read service
// addresses the query through headers, not the URL.
func (c *ReadClient) TransactionsHistory(contractID string, blockNumber int64) ([]json.RawMessage, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/transactions_history", nil)
	if err != nil {
		return nil, fmt.Errorf("build history request: %w", err)
	}
	req.Header.Set("x-read-api-key", c.apiKey)
	req.Header.Set("block_number", strconv.FormatInt(blockNumber, 10))
	req.Header.Set("contract_id", contractID)
	req.Header.Set("User-Agent", netutil.DefaultUserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch history for %s: %w", contractID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch history for %s: status %d", contractID, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read history response: %w", err)
	}

	var transactions []json.RawMessage
	if err := json.Unmarshal(body, &transactions); err != nil {
		return nil, fmt.Errorf("decode history response: %w", err)
	}
	return transactions, nil
}

// GroupHistory splits an ordered transaction list into work items, one per
// maximal run of consecutive transactions sharing (event_name, block_number).
// The read service returns history sorted, so runs correspond to the blocks
// the events were originally pushed in. Order is preserved.
func GroupHistory(sub *model.Subscription, transactions []json.RawMessage, nowMs int64) ([]model.WorkItem, error) {
	var items []model.WorkItem
	var run []json.RawMessage
	var runBlock int64
	var runEvent string

	flush := func() {
		if len(run) == 0 {
			return
		}
		items = append(items, model.WorkItem{
			ID:            uuid.NewString(),
			SubID:         sub.SubID,
			ContractID:    sub.ContractID,
			EventName:     runEvent,
			BlockNumber:   runBlock,
			Transactions:  run,
			LockedUntilMs: nowMs,
			CreatedAtMs:   nowMs,
		})
		run = nil
	}

	for i, raw := range transactions {
		var tx struct {
			BlockNumber int64  `json:"block_number"`
			EventName   string `json:"event_name"`
		}
		if err := json.Unmarshal(raw, &tx); err != nil {
			return nil, fmt.Errorf("decode history transaction %d: %w", i, err)
		}
		if len(run) > 0 && (tx.BlockNumber != runBlock || tx.EventName != runEvent) {
			flush()
		}
		if len(run) == 0 {
			runBlock = tx.BlockNumber
			runEvent = tx.EventName
		}
		run = append(run, raw)
	}
	flush()
	return items, nil
}

// Store is the persistence dependency of the replay service.
type Store interface {
	InsertWorkItems(items []model.WorkItem) (inserted, duplicates int, err error)
}

// Service wires the read client to the work-item store.
type Service struct {
	store  Store
	client *ReadClient
}

// NewService creates a replay service. A nil client disables replay
// (the read service is optional); Replay then fails cleanly.
func NewService(store Store, client *ReadClient) *Service {
	return &Service{store: store, client: client}
}

// Replay fetches history for the subscription's contract from blockNumber
// onward and enqueues it for dispatch. Items already in the backlog are
// skipped via the insert duplicate handling, so replaying an interval that
// overlaps live ingestion never double-delivers.
func (s *Service) Replay(sub *model.Subscription, blockNumber int64) error {
	if s.client == nil {
		return fmt.Errorf("replay unavailable: no read service configured")
	}

	transactions, err := s.client.TransactionsHistory(sub.ContractID, blockNumber)
	if err != nil {
		return err
	}

	items, err := GroupHistory(sub, transactions, time.Now().UnixMilli())
	if err != nil {
		return err
	}
	if len(items) == 0 {
		log.Printf("[replay] sub %s: no history from block %d", sub.SubID, blockNumber)
		return nil
	}

	inserted, duplicates, err := s.store.InsertWorkItems(items)
	if err != nil {
		return fmt.Errorf("enqueue replayed items for %s: %w", sub.SubID, err)
	}
	log.Printf("[replay] sub %s: enqueued %d work items from block %d (%d duplicates skipped)",
		sub.SubID, inserted, blockNumber, duplicates)
	return nil
}
