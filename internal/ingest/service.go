package ingest

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/web3cache/web3cache/internal/model"
)

// ErrInsert marks a work-item insert failure that was not a duplicate-key
// rejection. The API layer maps it to a client-visible error.
var ErrInsert = errors.New("error inserting work items")

// Store is the persistence dependency of the service.
type Store interface {
	FindWaterMark(contractID string) (*model.EventWaterMark, error)
	UpsertWaterMark(wm model.EventWaterMark, nowMs int64) error
	InsertWorkItems(items []model.WorkItem) (inserted, duplicates int, err error)
}

// Recorder receives ingestion counters. Satisfied by *metrics.Collector.
type Recorder interface {
	RecordPush(accepted, suppressed int)
	RecordInsert(inserted, duplicates int)
}

// Service runs the full intake path for one push: water-mark filtering,
// fan-out into work items, persistence, and the realtime sideband.
type Service struct {
	store    Store
	subs     *SubscriptionCache
	realtime *RealtimeNotifier
	recorder Recorder
}

// NewService wires the intake path. realtime and recorder may be nil.
func NewService(store Store, subs *SubscriptionCache, realtime *RealtimeNotifier, recorder Recorder) *Service {
	return &Service{store: store, subs: subs, realtime: realtime, recorder: recorder}
}

// ProcessPush ingests one push payload.
//
// A push that yields only duplicates (or nothing at all) is still a success:
// the producer retried a batch we already hold. Only a non-duplicate insert
// failure is surfaced as ErrInsert; a water-mark upsert failure after a
// successful insert is logged and swallowed, since the filter re-suppresses
// duplicates on the next push anyway via the unique index. The upsert runs
// even when nothing was accepted, so an empty push with a fresh reset_nonce
// still clears the stored marks.
func (s *Service) ProcessPush(payload *PushPayload) error {
	wm, err := s.store.FindWaterMark(payload.ContractID)
	if err != nil {
		return fmt.Errorf("load water-mark for %s: %w", payload.ContractID, err)
	}

	subs, err := s.subs.ActiveSubscriptions(payload.ContractID)
	if err != nil {
		return fmt.Errorf("load subscriptions for %s: %w", payload.ContractID, err)
	}

	accepted, next := FilterBlocks(payload, wm)
	if s.recorder != nil {
		s.recorder.RecordPush(len(accepted), len(payload.Data)-len(accepted))
	}

	nowMs := time.Now().UnixMilli()
	if len(accepted) > 0 {
		items, sideband := BuildWorkItems(payload.ContractID, accepted, subs, nowMs)

		if s.realtime != nil {
			go s.realtime.Notify(sideband)
		}

		inserted, duplicates, err := s.store.InsertWorkItems(items)
		if s.recorder != nil {
			s.recorder.RecordInsert(inserted, duplicates)
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInsert, err)
		}
		if duplicates > 0 {
			log.Printf("[ingest] contract %s: skipped %d duplicate work items", payload.ContractID, duplicates)
		}
	}

	if err := s.store.UpsertWaterMark(next, nowMs); err != nil {
		log.Printf("[ingest] contract %s: water-mark upsert failed: %v", payload.ContractID, err)
	}
	return nil
}
