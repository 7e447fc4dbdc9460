package metrics

import (
	"sync"
	"testing"
)

func TestCollector_Snapshot(t *testing.T) {
	c := NewCollector()

	c.RecordPush(3, 1)
	c.RecordPush(0, 2)
	c.RecordInsert(6, 2)
	c.RecordDelivery("sub-1", 4, true)
	c.RecordDelivery("sub-1", 2, true)
	c.RecordDelivery("sub-2", 1, false)
	c.RecordOrphanSweep()
	c.SetBacklog(42)

	s := c.Snapshot()
	if s.PushesReceived != 2 || s.BlocksAccepted != 3 || s.BlocksSuppressed != 3 {
		t.Fatalf("unexpected push counters: %+v", s)
	}
	if s.ItemsInserted != 6 || s.DuplicatesSkipped != 2 {
		t.Fatalf("unexpected insert counters: %+v", s)
	}
	if s.Deliveries != 2 || s.DeliveryFailures != 1 {
		t.Fatalf("unexpected delivery counters: %+v", s)
	}
	if s.DeliveredItems["sub-1"] != 6 {
		t.Fatalf("expected 6 items delivered to sub-1, got %d", s.DeliveredItems["sub-1"])
	}
	if _, ok := s.DeliveredItems["sub-2"]; ok {
		t.Fatal("failed deliveries must not count items")
	}
	if s.OrphanSweeps != 1 || s.Backlog != 42 {
		t.Fatalf("unexpected sweep/backlog: %+v", s)
	}
}

func TestCollector_ConcurrentUpdates(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.RecordPush(1, 0)
				c.RecordDelivery("sub-1", 1, true)
			}
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	if s.PushesReceived != 8000 || s.Deliveries != 8000 {
		t.Fatalf("lost updates: %+v", s)
	}
	if s.DeliveredItems["sub-1"] != 8000 {
		t.Fatalf("lost per-subscription counts: %d", s.DeliveredItems["sub-1"])
	}
}
