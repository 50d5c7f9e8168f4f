package docstore

import (
	"context"

	"pvsf-admin/internal/model"
)

// Operator for query conditions. Values compare the way JSON scalars do:
// strings lexicographically (the service's fixed-width timestamps order
// correctly), numbers numerically, booleans by equality only.
type Operator string

const (
	OpEqual        Operator = "=="
	OpLess         Operator = "<"
	OpLessOrEqual  Operator = "<="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
)

type Condition struct {
	Field string
	Op    Operator
	Value any
}

// Query selects documents in one collection. Conditions are conjunctive.
// OrderBy is optional (defaults to document id). After, when set, resumes a
// previous page: only documents whose OrderBy value is strictly beyond it are
// returned, in the direction given by Descending. AfterID extends After into
// a composite keyset position, breaking ties on document id so documents
// sharing an OrderBy value stay reachable across page boundaries.
type Query struct {
	Conditions []Condition
	OrderBy    string
	Descending bool
	Limit      int
	After      any
	AfterID    string
}

// Snapshot is a matched document together with its id.
type Snapshot struct {
	ID   string
	Data model.Document
}

type BatchKind string

const (
	BatchSet    BatchKind = "set"
	BatchUpdate BatchKind = "update"
	BatchDelete BatchKind = "delete"
)

// BatchOp is one mutation inside an atomic batch. Set carries a full
// document, Update a shallow field merge, Delete neither.
type BatchOp struct {
	Kind   BatchKind
	ID     string
	Doc    model.Document
	Fields map[string]any
}

// Store is a keyed, collection-oriented document store. Implementations
// guarantee single-document atomicity for Set/Update/Delete and whole-batch
// atomicity for ApplyBatch. Missing documents surface model.ErrNotFound;
// transient backend failures wrap model.ErrStoreUnavailable.
type Store interface {
	Get(ctx context.Context, collection string, id string) (model.Document, error)

	// Set writes the full document, creating or overwriting it.
	Set(ctx context.Context, collection string, id string, doc model.Document) error

	// Update merges the given top-level fields into an existing document.
	// A nil field value writes JSON null.
	Update(ctx context.Context, collection string, id string, fields map[string]any) error

	Delete(ctx context.Context, collection string, id string) error

	Query(ctx context.Context, collection string, q Query) ([]Snapshot, error)

	// ApplyBatch applies all ops as one indivisible unit. len(ops) must not
	// exceed MaxBatchSize; callers split larger work into sequential batches.
	ApplyBatch(ctx context.Context, collection string, ops []BatchOp) error

	MaxBatchSize() int
}
