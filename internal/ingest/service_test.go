package ingest

import (
	"errors"
	"testing"

	"github.com/web3cache/web3cache/internal/model"
)

// fakeStore implements Store and SubscriptionSource in memory.
type fakeStore struct {
	wm        *model.EventWaterMark
	subs      []model.Subscription
	inserted  []model.WorkItem
	insertErr error
	upsertErr error
	upserted  *model.EventWaterMark
}

func (f *fakeStore) FindWaterMark(string) (*model.EventWaterMark, error) { return f.wm, nil }

func (f *fakeStore) UpsertWaterMark(wm model.EventWaterMark, _ int64) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = &wm
	return nil
}

func (f *fakeStore) InsertWorkItems(items []model.WorkItem) (int, int, error) {
	if f.insertErr != nil {
		return 0, 0, f.insertErr
	}
	f.inserted = append(f.inserted, items...)
	return len(items), 0, nil
}

func (f *fakeStore) FindActiveSubscriptionsByContract(string) ([]model.Subscription, error) {
	return f.subs, nil
}

func newTestService(f *fakeStore) *Service {
	return NewService(f, NewSubscriptionCache(f, 0), nil, nil)
}

func TestService_ProcessPush_PersistsItemsAndWaterMark(t *testing.T) {
	f := &fakeStore{subs: []model.Subscription{{SubID: "sub-1"}, {SubID: "sub-2"}}}
	svc := newTestService(f)

	payload := &PushPayload{
		ContractID: "contract-1",
		ResetNonce: 1,
		Data:       []TransactionBlock{block("Transfer", 100)},
	}
	if err := svc.ProcessPush(payload); err != nil {
		t.Fatal(err)
	}

	if len(f.inserted) != 2 {
		t.Fatalf("expected 2 work items, got %d", len(f.inserted))
	}
	if f.upserted == nil || f.upserted.Marks["Transfer"] != 100 {
		t.Fatalf("expected water-mark advanced to 100, got %+v", f.upserted)
	}
}

func TestService_ProcessPush_AllSuppressedInsertsNothing(t *testing.T) {
	f := &fakeStore{
		wm: &model.EventWaterMark{
			ContractID: "contract-1",
			ResetNonce: 1,
			Marks:      map[string]int64{"Transfer": 100},
		},
		subs: []model.Subscription{{SubID: "sub-1"}},
	}
	svc := newTestService(f)

	payload := &PushPayload{
		ContractID: "contract-1",
		ResetNonce: 1,
		Data:       []TransactionBlock{block("Transfer", 100)},
	}
	if err := svc.ProcessPush(payload); err != nil {
		t.Fatal(err)
	}
	if len(f.inserted) != 0 {
		t.Fatal("expected no items for a fully suppressed push")
	}
	if f.upserted == nil || f.upserted.Marks["Transfer"] != 100 {
		t.Fatalf("expected unchanged water-mark write, got %+v", f.upserted)
	}
}

func TestService_ProcessPush_EmptyPushWithFreshNonceResetsMarks(t *testing.T) {
	f := &fakeStore{
		wm: &model.EventWaterMark{
			ContractID: "contract-1",
			ResetNonce: 1,
			Marks:      map[string]int64{"Transfer": 100},
		},
	}
	svc := newTestService(f)

	payload := &PushPayload{ContractID: "contract-1", ResetNonce: 2}
	if err := svc.ProcessPush(payload); err != nil {
		t.Fatal(err)
	}
	if len(f.inserted) != 0 {
		t.Fatal("expected no items for an empty push")
	}
	if f.upserted == nil || f.upserted.ResetNonce != 2 || len(f.upserted.Marks) != 0 {
		t.Fatalf("expected empty marks under nonce 2, got %+v", f.upserted)
	}
}

func TestService_ProcessPush_InsertFailure(t *testing.T) {
	f := &fakeStore{
		subs:      []model.Subscription{{SubID: "sub-1"}},
		insertErr: errors.New("disk full"),
	}
	svc := newTestService(f)

	payload := &PushPayload{
		ContractID: "contract-1",
		Data:       []TransactionBlock{block("Transfer", 100)},
	}
	err := svc.ProcessPush(payload)
	if !errors.Is(err, ErrInsert) {
		t.Fatalf("expected ErrInsert, got %v", err)
	}
}

func TestService_ProcessPush_WaterMarkFailureIsSwallowed(t *testing.T) {
	f := &fakeStore{
		subs:      []model.Subscription{{SubID: "sub-1"}},
		upsertErr: errors.New("locked"),
	}
	svc := newTestService(f)

	payload := &PushPayload{
		ContractID: "contract-1",
		Data:       []TransactionBlock{block("Transfer", 100)},
	}
	// Items are in; the next push re-suppresses via the unique index.
	if err := svc.ProcessPush(payload); err != nil {
		t.Fatal(err)
	}
	if len(f.inserted) != 1 {
		t.Fatalf("expected 1 item inserted, got %d", len(f.inserted))
	}
}
