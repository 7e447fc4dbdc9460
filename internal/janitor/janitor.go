// Package janitor removes water-mark state for contracts that are no longer
// registered. Producers can keep pushing briefly after a contract is
// removed; without the sweep their water-marks would accumulate forever.
package janitor

import (
	"log"

	"github.com/robfig/cron/v3"
)

// Store is the persistence dependency of the janitor.
type Store interface {
	ContractIDs() ([]string, error)
	DeleteWaterMarksExcept(keep []string) (int64, error)
}

// Janitor runs the water-mark sweep on a cron schedule. It never touches
// work items; undelivered events for removed contracts still drain through
// the dispatcher's own orphan handling.
type Janitor struct {
	store Store
	cron  *cron.Cron
}

// New creates a janitor with the given standard cron schedule. The schedule
// must already be validated by config loading.
func New(store Store, schedule string) (*Janitor, error) {
	j := &Janitor{store: store, cron: cron.New()}
	if _, err := j.cron.AddFunc(schedule, j.Sweep); err != nil {
		return nil, err
	}
	return j, nil
}

// Start begins cron scheduling in its own goroutine.
func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop halts scheduling and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

// Sweep deletes water-marks whose contract is no longer registered.
// Also callable directly, outside the schedule.
func (j *Janitor) Sweep() {
	keep, err := j.store.ContractIDs()
	if err != nil {
		log.Printf("[janitor] contract listing failed: %v", err)
		return
	}
	n, err := j.store.DeleteWaterMarksExcept(keep)
	if err != nil {
		log.Printf("[janitor] water-mark sweep failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[janitor] swept %d stale water-marks", n)
	}
}
