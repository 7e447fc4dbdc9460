package dispatch

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/web3cache/web3cache/internal/model"
	"github.com/web3cache/web3cache/internal/netutil"
)

// Store is the persistence dependency of the dispatcher.
type Store interface {
	PendingSubIDs() ([]string, error)
	AnyWorkPending(subID string) (bool, error)
	FetchWorkBatch(subID string, limit int) ([]model.WorkItem, error)
	ClaimWorkItem(id string, nowMs, untilMs int64) (bool, error)
	ExtendLeases(ids []string, untilMs int64) error
	ReleaseWorkItem(id string, nowMs int64) error
	DeleteWorkItems(ids []string) error
	DeleteWorkItemsBySub(subID string) (int64, error)
	FindSubscription(subID string) (*model.Subscription, error)
}

// Recorder receives delivery counters. Satisfied by *metrics.Collector.
type Recorder interface {
	RecordDelivery(subID string, items int, ok bool)
	RecordOrphanSweep()
}

// Config carries the dispatcher tuning knobs.
type Config struct {
	BatchLimit     int
	MaxRetries     int
	RetrySleep     time.Duration
	StepSleep      time.Duration
	DrainCooloff   time.Duration
	InitialDelay   time.Duration
	SuccessDelay   time.Duration
	MaxDelay       time.Duration
	ClaimWindow    time.Duration
	SentWindow     time.Duration
	WebhookTimeout time.Duration
}

// Dispatcher drains the work-item backlog into subscriber webhooks. One
// goroutine owns the queue and performs every send; concurrency safety for
// the backlog itself comes from the per-item lease, so running a second
// process against the same store is safe, just not faster.
type Dispatcher struct {
	store    Store
	cfg      Config
	client   *http.Client
	recorder Recorder

	queue *subQueue

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a dispatcher. recorder may be nil.
func New(store Store, cfg Config, recorder Recorder) *Dispatcher {
	return &Dispatcher{
		store:    store,
		cfg:      cfg,
		client:   netutil.NewOutboundClient(cfg.WebhookTimeout),
		recorder: recorder,
		queue:    newSubQueue(cfg.InitialDelay, cfg.MaxDelay),
		stopCh:   make(chan struct{}),
	}
}

// Start launches the dispatch goroutine.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run()
	}()
}

// Stop terminates the dispatch goroutine and waits for the in-flight
// attempt, if any, to finish.
func (d *Dispatcher) Stop() {
	close(d.stopCh)
	d.wg.Wait()
}

func (d *Dispatcher) sleep(dur time.Duration) bool {
	select {
	case <-d.stopCh:
		return false
	case <-time.After(dur):
		return true
	}
}

// run is the rotation loop. Each pass pops the head subscription; if its
// wait window has not lapsed it rotates to the tail, and a bounded retry
// counter guards against spinning on a queue where everything is waiting.
// When the counter runs out the queue is topped up from the store, which
// also admits subscriptions that gained work since the last refill.
func (d *Dispatcher) run() {
	log.Printf("[dispatch] dispatcher started")
	retries := d.cfg.MaxRetries

	for {
		select {
		case <-d.stopCh:
			log.Printf("[dispatch] dispatcher stopped")
			return
		default:
		}

		if d.queue.Len() == 0 {
			d.refill()
			if !d.sleep(d.cfg.DrainCooloff) {
				return
			}
			continue
		}

		subID, _ := d.queue.Pop()

		if delay := d.queue.Delay(subID); time.Now().Before(delay.waitUntil) {
			d.queue.PushBack(subID)
			retries--
			if retries <= 0 {
				d.refill()
				retries = d.cfg.MaxRetries
			}
			if !d.sleep(d.cfg.RetrySleep) {
				return
			}
			continue
		}
		retries = d.cfg.MaxRetries

		result := d.trySend(subID)
		if result == sendIdle || result == sendOrphaned {
			d.queue.Drop(subID)
			if !d.sleep(d.cfg.StepSleep) {
				return
			}
			continue
		}

		pending, err := d.store.AnyWorkPending(subID)
		if err != nil {
			log.Printf("[dispatch] pending check for %s: %v", subID, err)
			pending = true // assume work remains, the next pass re-checks
		}
		if pending {
			d.queue.Requeue(subID, result == sendDelivered, d.cfg.SuccessDelay)
		} else {
			d.queue.Drop(subID)
		}

		if !d.sleep(d.cfg.StepSleep) {
			return
		}
	}
}

func (d *Dispatcher) refill() {
	ids, err := d.store.PendingSubIDs()
	if err != nil {
		log.Printf("[dispatch] queue refill failed: %v", err)
		return
	}
	d.queue.Merge(ids)
}

type sendResult int

const (
	sendDelivered sendResult = iota // batch posted and acknowledged
	sendFailed                      // lease contention, store error, or webhook failure
	sendIdle                        // no work items for this subscription
	sendOrphaned                    // subscription gone; items swept
)

// trySend delivers at most one batch for the subscription.
//
// Lease discipline: the first item of the batch carries the lease for the
// whole send. Acknowledged items get their lease extended before deletion
// so a crash between the two steps hides them until the sent window lapses
// instead of re-delivering immediately.
func (d *Dispatcher) trySend(subID string) sendResult {
	items, err := d.store.FetchWorkBatch(subID, d.cfg.BatchLimit)
	if err != nil {
		log.Printf("[dispatch] fetch batch for %s: %v", subID, err)
		return sendFailed
	}
	if len(items) == 0 {
		return sendIdle
	}

	nowMs := time.Now().UnixMilli()
	claimed, err := d.store.ClaimWorkItem(items[0].ID, nowMs, nowMs+d.cfg.ClaimWindow.Milliseconds())
	if err != nil {
		log.Printf("[dispatch] claim for %s: %v", subID, err)
		return sendFailed
	}
	if !claimed {
		log.Printf("[dispatch] sub %s: batch head already leased", subID)
		return sendFailed
	}

	sub, err := d.store.FindSubscription(subID)
	if err != nil {
		log.Printf("[dispatch] load subscription %s: %v", subID, err)
		d.release(items[0].ID, nowMs)
		return sendFailed
	}
	if sub == nil {
		n, err := d.store.DeleteWorkItemsBySub(subID)
		if err != nil {
			log.Printf("[dispatch] orphan sweep for %s: %v", subID, err)
			return sendFailed
		}
		log.Printf("[dispatch] sub %s no longer exists, swept %d work items", subID, n)
		if d.recorder != nil {
			d.recorder.RecordOrphanSweep()
		}
		return sendOrphaned
	}

	payload := make([]PayloadEntry, 0, len(items))
	ackIDs := make([]string, 0, len(items))
	for i := range items {
		payload = append(payload, buildPayloadEntry(&items[i]))
		ackIDs = append(ackIDs, items[i].ID)
	}

	ok := d.post(subID, sub, payload)
	if d.recorder != nil {
		d.recorder.RecordDelivery(subID, len(items), ok)
	}
	if !ok {
		d.release(items[0].ID, nowMs)
		return sendFailed
	}

	sentMs := time.Now().UnixMilli() + d.cfg.SentWindow.Milliseconds()
	if err := d.store.ExtendLeases(ackIDs, sentMs); err != nil {
		log.Printf("[dispatch] extend leases for %s: %v", subID, err)
	}
	if err := d.store.DeleteWorkItems(ackIDs); err != nil {
		log.Printf("[dispatch] ack delete for %s: %v", subID, err)
		return sendFailed
	}
	return sendDelivered
}

func (d *Dispatcher) release(id string, nowMs int64) {
	if err := d.store.ReleaseWorkItem(id, nowMs); err != nil {
		log.Printf("[dispatch] release %s: %v", id, err)
	}
}

// post signs and delivers one webhook body. Any transport error or
// non-2xx status counts as failure.
func (d *Dispatcher) post(subID string, sub *model.Subscription, payload []PayloadEntry) bool {
	headers, err := BuildWebhookHeaders(subID, sub, time.Now())
	if err != nil {
		log.Printf("[dispatch] sub %s: %v", subID, err)
		return false
	}

	body, err := json.Marshal(WebhookBody{
		Metadata:     WebhookMetadata{ContractID: sub.ContractID},
		PayloadCount: len(payload),
		Payload:      payload,
	})
	if err != nil {
		log.Printf("[dispatch] sub %s: marshal body: %v", subID, err)
		return false
	}

	req, err := http.NewRequest(http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		log.Printf("[dispatch] sub %s: build request: %v", subID, err)
		return false
	}
	req.Header = headers
	req.Header.Set("User-Agent", netutil.DefaultUserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		log.Printf("[dispatch] sub %s: webhook post failed: %v", subID, err)
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("[dispatch] sub %s: webhook returned status %d", subID, resp.StatusCode)
		return false
	}
	return true
}
