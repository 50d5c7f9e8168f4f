package model

import "time"

type OperationType string

const (
	OperationCreate OperationType = "create"
	OperationUpdate OperationType = "update"
	OperationDelete OperationType = "delete"
)

func (t OperationType) Valid() bool {
	switch t {
	case OperationCreate, OperationUpdate, OperationDelete:
		return true
	}
	return false
}

// OperationLogEntry records one mutating administrative operation with full
// before/after snapshots. Entries are immutable once written; a restore that
// replays an entry produces a fresh entry instead of touching the original.
type OperationLogEntry struct {
	ID               string        `json:"id"`
	TargetCollection string        `json:"target_collection"`
	TargetDocID      string        `json:"target_doc_id"`
	OperationType    OperationType `json:"operation_type"`
	BeforeData       Document      `json:"before_data,omitempty"`
	AfterData        Document      `json:"after_data,omitempty"`
	OperatedBy       string        `json:"operated_by"`
	Description      string        `json:"description,omitempty"`
	Timestamp        time.Time     `json:"timestamp"`
	ExpiresAt        time.Time     `json:"expires_at"`
}

// OperationLogFilter narrows a log listing. All set fields apply conjunctively.
type OperationLogFilter struct {
	Collection    string
	OperationType string
	DocID         string
}
