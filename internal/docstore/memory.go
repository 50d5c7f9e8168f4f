package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"pvsf-admin/internal/model"
)

// MemoryStore is an in-process Store with the same semantics as the Postgres
// implementation. It backs the service tests and local runs without a
// database.
type MemoryStore struct {
	mu           sync.RWMutex
	collections  map[string]map[string]model.Document
	maxBatchSize int
}

func NewMemoryStore(maxBatchSize int) *MemoryStore {
	if maxBatchSize <= 0 {
		maxBatchSize = 500
	}
	return &MemoryStore{
		collections:  make(map[string]map[string]model.Document),
		maxBatchSize: maxBatchSize,
	}
}

func (s *MemoryStore) MaxBatchSize() int {
	return s.maxBatchSize
}

func (s *MemoryStore) Get(_ context.Context, collection string, id string) (model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return doc.Clone(), nil
}

func (s *MemoryStore) Set(_ context.Context, collection string, id string, doc model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.setLocked(collection, id, doc)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, collection string, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.updateLocked(collection, id, fields)
}

func (s *MemoryStore) Delete(_ context.Context, collection string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.deleteLocked(collection, id)
}

func (s *MemoryStore) Query(_ context.Context, collection string, q Query) ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]Snapshot, 0)
	for id, doc := range s.collections[collection] {
		ok, err := matches(doc, q.Conditions)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if q.OrderBy != "" {
			if _, present := doc[q.OrderBy]; !present {
				continue
			}
		}
		if q.After != nil {
			cmp, err := compareValues(doc[q.OrderBy], q.After)
			if err != nil {
				return nil, err
			}
			beyond := cmp > 0
			if q.Descending {
				beyond = cmp < 0
			}
			if cmp == 0 && q.AfterID != "" {
				if q.Descending {
					beyond = id < q.AfterID
				} else {
					beyond = id > q.AfterID
				}
			}
			if !beyond {
				continue
			}
		}
		matched = append(matched, Snapshot{ID: id, Data: doc.Clone()})
	}

	sort.SliceStable(matched, func(i, j int) bool {
		var cmp int
		if q.OrderBy != "" {
			cmp, _ = compareValues(matched[i].Data[q.OrderBy], matched[j].Data[q.OrderBy])
		}
		if cmp == 0 {
			if matched[i].ID < matched[j].ID {
				cmp = -1
			} else if matched[i].ID > matched[j].ID {
				cmp = 1
			}
		}
		if q.Descending {
			return cmp > 0
		}
		return cmp < 0
	})

	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

func (s *MemoryStore) ApplyBatch(_ context.Context, collection string, ops []BatchOp) error {
	if len(ops) == 0 {
		return nil
	}
	if len(ops) > s.maxBatchSize {
		return fmt.Errorf("%w: batch of %d exceeds store maximum %d", model.ErrInvalidInput, len(ops), s.maxBatchSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate every op before touching anything so the batch stays
	// all-or-nothing.
	for _, op := range ops {
		switch op.Kind {
		case BatchSet:
		case BatchUpdate, BatchDelete:
			if _, ok := s.collections[collection][op.ID]; !ok {
				return fmt.Errorf("batch %s %s/%s: %w", op.Kind, collection, op.ID, model.ErrNotFound)
			}
		default:
			return fmt.Errorf("%w: unknown batch op kind %q", model.ErrInvalidInput, op.Kind)
		}
	}

	for _, op := range ops {
		switch op.Kind {
		case BatchSet:
			s.setLocked(collection, op.ID, op.Doc)
		case BatchUpdate:
			_ = s.updateLocked(collection, op.ID, op.Fields)
		case BatchDelete:
			_ = s.deleteLocked(collection, op.ID)
		}
	}
	return nil
}

func (s *MemoryStore) setLocked(collection string, id string, doc model.Document) {
	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string]model.Document)
	}
	s.collections[collection][id] = doc.Clone()
}

func (s *MemoryStore) updateLocked(collection string, id string, fields map[string]any) error {
	doc, ok := s.collections[collection][id]
	if !ok {
		return model.ErrNotFound
	}
	merged := doc.Clone()
	for k, v := range fields {
		merged[k] = cloneAny(v)
	}
	s.collections[collection][id] = merged
	return nil
}

func (s *MemoryStore) deleteLocked(collection string, id string) error {
	if _, ok := s.collections[collection][id]; !ok {
		return model.ErrNotFound
	}
	delete(s.collections[collection], id)
	return nil
}

func cloneAny(v any) any {
	if doc, ok := v.(model.Document); ok {
		return doc.Clone()
	}
	if m, ok := v.(map[string]any); ok {
		return model.Document(m).Clone()
	}
	return v
}

func matches(doc model.Document, conditions []Condition) (bool, error) {
	for _, cond := range conditions {
		if cond.Field == "" {
			return false, fmt.Errorf("%w: condition field is required", model.ErrInvalidInput)
		}

		if b, ok := cond.Value.(bool); ok {
			if cond.Op != OpEqual {
				return false, fmt.Errorf("%w: booleans only support equality", model.ErrInvalidInput)
			}
			actual, _ := doc[cond.Field].(bool)
			if actual != b {
				return false, nil
			}
			continue
		}

		actual, present := doc[cond.Field]
		if !present {
			return false, nil
		}
		cmp, err := compareValues(actual, cond.Value)
		if err != nil {
			return false, err
		}

		var ok bool
		switch cond.Op {
		case OpEqual:
			ok = cmp == 0
		case OpLess:
			ok = cmp < 0
		case OpLessOrEqual:
			ok = cmp <= 0
		case OpGreater:
			ok = cmp > 0
		case OpGreaterEqual:
			ok = cmp >= 0
		default:
			return false, fmt.Errorf("%w: unknown operator %q", model.ErrInvalidInput, cond.Op)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// compareValues orders two JSON scalars: strings lexicographically, numbers
// numerically. Mismatched or non-scalar types fail rather than guess.
func compareValues(a any, b any) (int, error) {
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		if !ok {
			return 0, fmt.Errorf("%w: cannot compare string with %T", model.ErrInvalidInput, b)
		}
		switch {
		case as < bs:
			return -1, nil
		case as > bs:
			return 1, nil
		}
		return 0, nil
	}

	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		}
		return 0, nil
	}

	return 0, fmt.Errorf("%w: cannot compare %T with %T", model.ErrInvalidInput, a, b)
}

func toFloat(v any) (float64, bool) {
	switch value := v.(type) {
	case int:
		return float64(value), true
	case int32:
		return float64(value), true
	case int64:
		return float64(value), true
	case float32:
		return float64(value), true
	case float64:
		return value, true
	}
	return 0, false
}
