// Package dispatch delivers persisted work items to subscriber webhooks.
// A single goroutine rotates through a subscription queue, leases one batch
// at a time, signs it, posts it, and deletes acknowledged items.
package dispatch

import (
	"time"
)

// delayState is the per-subscription pacing record: the next backoff step
// and the instant before which the subscription must not be dispatched.
type delayState struct {
	increase  time.Duration
	waitUntil time.Time
}

// subQueue is the dispatcher's rotation structure: a FIFO of subscription
// ids plus a pacing record per queued id. Owned by the dispatcher goroutine,
// not safe for concurrent use.
type subQueue struct {
	list    []string
	entries map[string]delayState

	initialDelay time.Duration
	maxDelay     time.Duration
}

func newSubQueue(initialDelay, maxDelay time.Duration) *subQueue {
	return &subQueue{
		entries:      make(map[string]delayState),
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
	}
}

func (q *subQueue) Len() int {
	return len(q.list)
}

// Pop removes and returns the head of the FIFO. The pacing entry stays in
// the map until Drop or Schedule.
func (q *subQueue) Pop() (string, bool) {
	if len(q.list) == 0 {
		return "", false
	}
	subID := q.list[0]
	q.list = q.list[1:]
	return subID, true
}

// PushBack returns a popped subscription to the tail unchanged. Used when
// its wait window has not lapsed yet.
func (q *subQueue) PushBack(subID string) {
	q.list = append(q.list, subID)
}

// Merge appends ids not already queued, each with a fresh pacing entry.
// Existing entries are never touched, so a subscription deep in backoff
// keeps its accumulated delay across merges.
func (q *subQueue) Merge(ids []string) {
	for _, id := range ids {
		if _, ok := q.entries[id]; ok {
			continue
		}
		q.list = append(q.list, id)
		q.entries[id] = delayState{increase: q.initialDelay, waitUntil: time.Now()}
	}
}

// Delay returns the pacing record for a subscription. Missing entries read
// as immediately eligible.
func (q *subQueue) Delay(subID string) delayState {
	if d, ok := q.entries[subID]; ok {
		return d
	}
	return delayState{increase: q.initialDelay}
}

// Requeue puts a subscription with remaining work back on the tail and sets
// its next wait window. On success the backoff resets and the short success
// delay applies; on failure the backoff step doubles up to the cap and the
// subscription waits out the new step.
func (q *subQueue) Requeue(subID string, ok bool, successDelay time.Duration) {
	cur := q.Delay(subID)

	var next delayState
	if ok {
		next = delayState{increase: q.initialDelay, waitUntil: time.Now().Add(successDelay)}
	} else {
		step := min(cur.increase*2, q.maxDelay)
		next = delayState{increase: step, waitUntil: time.Now().Add(step)}
	}

	q.list = append(q.list, subID)
	q.entries[subID] = next
}

// Drop forgets a subscription's pacing entry. Called when a popped
// subscription has no remaining work, so the next Merge re-admits it fresh.
func (q *subQueue) Drop(subID string) {
	delete(q.entries, subID)
}
