// Package metrics tracks ingestion and delivery counters. Counters are
// updated from the ingestion handlers and the dispatcher loop and read
// concurrently by the API snapshot endpoint.
package metrics

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"
)

// Collector aggregates process-wide counters.
type Collector struct {
	pushesReceived    *xsync.Counter
	blocksAccepted    *xsync.Counter
	blocksSuppressed  *xsync.Counter
	itemsInserted     *xsync.Counter
	duplicatesSkipped *xsync.Counter
	deliveries        *xsync.Counter
	deliveryFailures  *xsync.Counter
	orphanSweeps      *xsync.Counter

	// Sampled, not counted.
	backlog atomic.Int64

	// key: sub_id
	deliveredBySub *xsync.Map[string, *atomic.Int64]
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		pushesReceived:    xsync.NewCounter(),
		blocksAccepted:    xsync.NewCounter(),
		blocksSuppressed:  xsync.NewCounter(),
		itemsInserted:     xsync.NewCounter(),
		duplicatesSkipped: xsync.NewCounter(),
		deliveries:        xsync.NewCounter(),
		deliveryFailures:  xsync.NewCounter(),
		orphanSweeps:      xsync.NewCounter(),
		deliveredBySub:    xsync.NewMap[string, *atomic.Int64](),
	}
}

// RecordPush records one accepted HTTP push with its filter outcome.
func (c *Collector) RecordPush(accepted, suppressed int) {
	c.pushesReceived.Inc()
	c.blocksAccepted.Add(int64(accepted))
	c.blocksSuppressed.Add(int64(suppressed))
}

// RecordInsert records a bulk-insert outcome.
func (c *Collector) RecordInsert(inserted, duplicates int) {
	c.itemsInserted.Add(int64(inserted))
	c.duplicatesSkipped.Add(int64(duplicates))
}

// RecordDelivery records one webhook POST outcome for a subscription.
func (c *Collector) RecordDelivery(subID string, items int, ok bool) {
	if !ok {
		c.deliveryFailures.Inc()
		return
	}
	c.deliveries.Inc()
	ctr, _ := c.deliveredBySub.LoadOrStore(subID, new(atomic.Int64))
	ctr.Add(int64(items))
}

// RecordOrphanSweep records one lazy garbage collection of a deleted
// subscription's work items.
func (c *Collector) RecordOrphanSweep() {
	c.orphanSweeps.Inc()
}

// SetBacklog records the sampled work-item backlog size.
func (c *Collector) SetBacklog(n int64) {
	c.backlog.Store(n)
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	PushesReceived    int64            `json:"pushes_received"`
	BlocksAccepted    int64            `json:"blocks_accepted"`
	BlocksSuppressed  int64            `json:"blocks_suppressed"`
	ItemsInserted     int64            `json:"items_inserted"`
	DuplicatesSkipped int64            `json:"duplicates_skipped"`
	Deliveries        int64            `json:"deliveries"`
	DeliveryFailures  int64            `json:"delivery_failures"`
	OrphanSweeps      int64            `json:"orphan_sweeps"`
	Backlog           int64            `json:"backlog"`
	DeliveredItems    map[string]int64 `json:"delivered_items_by_subscription"`
}

// Snapshot returns a best-effort point-in-time copy of the counters.
func (c *Collector) Snapshot() Snapshot {
	delivered := make(map[string]int64)
	c.deliveredBySub.Range(func(subID string, ctr *atomic.Int64) bool {
		delivered[subID] = ctr.Load()
		return true
	})
	return Snapshot{
		PushesReceived:    c.pushesReceived.Value(),
		BlocksAccepted:    c.blocksAccepted.Value(),
		BlocksSuppressed:  c.blocksSuppressed.Value(),
		ItemsInserted:     c.itemsInserted.Value(),
		DuplicatesSkipped: c.duplicatesSkipped.Value(),
		Deliveries:        c.deliveries.Value(),
		DeliveryFailures:  c.deliveryFailures.Value(),
		OrphanSweeps:      c.orphanSweeps.Value(),
		Backlog:           c.backlog.Load(),
		DeliveredItems:    delivered,
	}
}
