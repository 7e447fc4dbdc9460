// Package model defines the entities shared by ingestion, dispatch, and the
// store: contracts, subscriptions, event water-marks, and work items.
package model

import "encoding/json"

// ContractStatus is the runtime status requirement of a contract.
// The deployment controller consumes it to decide which contracts should have
// a live producer workload; this service only reads it.
type ContractStatus string

const (
	ContractOnline  ContractStatus = "online"
	ContractOffline ContractStatus = "offline"
)

// Contract is a registered blockchain contract. Created by the registration
// service; never mutated here.
type Contract struct {
	ContractID    string
	Network       string
	Address       string
	Events        []string
	Status        ContractStatus
	CreationBlock int64
}

// Subscription is a webhook subscription owned by an API key. A subscription
// is eligible for dispatch iff IsActive is true.
type Subscription struct {
	SubID       string
	APIKey      string
	ContractID  string
	URL         string
	Topics      []string
	IsActive    bool
	CreatedAtMs int64
	UpdatedAtMs int64
}

// EventWaterMark is the per-contract duplicate-suppression state: the highest
// accepted block number per event name, plus the producer's reset nonce.
// When ResetNonce changes, all marks are discarded.
type EventWaterMark struct {
	ContractID string
	ResetNonce int64
	// Marks maps event_name -> last accepted block number.
	Marks map[string]int64
}

// BlockAt returns the mark for an event, or -1 when the event is unseen.
// -1 compares below every valid block number, so an absent entry accepts all.
func (w *EventWaterMark) BlockAt(eventName string) int64 {
	if w == nil || w.Marks == nil {
		return -1
	}
	if b, ok := w.Marks[eventName]; ok {
		return b
	}
	return -1
}

// WorkItem is one undelivered block of transactions addressed to one
// subscription. The unique triple (SubID, BlockNumber, EventName) is enforced
// by the store; LockedUntilMs implements the lease protocol.
type WorkItem struct {
	ID            string
	SubID         string
	ContractID    string
	EventName     string
	BlockNumber   int64
	Transactions  []json.RawMessage
	LockedUntilMs int64
	CreatedAtMs   int64
}
