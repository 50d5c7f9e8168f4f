package model

import "time"

const (
	CleanupTypeFlat      = "flat"
	CleanupTypeComposite = "composite"
)

// CleanupSearch describes a stale-record scan. DateField and SlotsField
// default to "date" and "slots"; they exist because collections name their
// schedule fields differently and this service stays schema-agnostic.
type CleanupSearch struct {
	Collection string
	Before     time.Time
	Type       string
	DateField  string
	SlotsField string
	Limit      int
}

// CleanupCandidate is a read-only projection of one stale document. For
// composite collections the slot counts expose partial staleness: a document
// with future slots may still be worth keeping.
type CleanupCandidate struct {
	DocID           string   `json:"doc_id"`
	Timestamp       string   `json:"timestamp"`
	PastSlotCount   int      `json:"past_slot_count,omitempty"`
	FutureSlotCount int      `json:"future_slot_count,omitempty"`
	Data            Document `json:"data"`
}
