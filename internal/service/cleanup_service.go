package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"pvsf-admin/internal/docstore"
	"pvsf-admin/internal/metrics"
	"pvsf-admin/internal/model"
)

const (
	defaultDateField  = "date"
	defaultSlotsField = "slots"
)

// CleanupService scans collections for stale records and, once an operator
// confirms a selection, soft-deletes them in atomic sub-batches.
type CleanupService struct {
	store     docstore.Store
	oplog     *OplogService
	scanLimit int
	metrics   *metrics.Metrics
}

func NewCleanupService(store docstore.Store, oplog *OplogService, scanLimit int, m *metrics.Metrics) *CleanupService {
	if scanLimit <= 0 {
		scanLimit = 200
	}
	return &CleanupService{store: store, oplog: oplog, scanLimit: scanLimit, metrics: m}
}

// FindStale is read-only: it reports candidates and never mutates anything.
func (s *CleanupService) FindStale(ctx context.Context, search model.CleanupSearch) ([]model.CleanupCandidate, error) {
	if strings.TrimSpace(search.Collection) == "" {
		return nil, fmt.Errorf("%w: collection is required", model.ErrInvalidInput)
	}
	if search.Before.IsZero() {
		return nil, fmt.Errorf("%w: cutoff is required", model.ErrInvalidInput)
	}
	if search.DateField == "" {
		search.DateField = defaultDateField
	}
	if search.SlotsField == "" {
		search.SlotsField = defaultSlotsField
	}
	if search.Limit <= 0 || search.Limit > s.scanLimit {
		search.Limit = s.scanLimit
	}

	switch search.Type {
	case model.CleanupTypeFlat:
		return s.findStaleFlat(ctx, search)
	case model.CleanupTypeComposite:
		return s.findStaleComposite(ctx, search)
	}
	return nil, fmt.Errorf("%w: unknown cleanup type %q", model.ErrInvalidInput, search.Type)
}

func (s *CleanupService) findStaleFlat(ctx context.Context, search model.CleanupSearch) ([]model.CleanupCandidate, error) {
	cutoff := model.FormatTimestamp(search.Before)

	snapshots, err := s.store.Query(ctx, search.Collection, docstore.Query{
		Conditions: []docstore.Condition{
			{Field: search.DateField, Op: docstore.OpLess, Value: cutoff},
			{Field: model.FieldIsDeleted, Op: docstore.OpEqual, Value: false},
		},
		OrderBy:    search.DateField,
		Descending: true,
		Limit:      search.Limit,
	})
	if err != nil {
		return nil, err
	}

	candidates := make([]model.CleanupCandidate, 0, len(snapshots))
	for _, snap := range snapshots {
		candidates = append(candidates, model.CleanupCandidate{
			DocID:     snap.ID,
			Timestamp: snap.Data.StringField(search.DateField),
			Data:      snap.Data,
		})
	}
	return candidates, nil
}

// findStaleComposite reports one candidate per parent document, annotated
// with how many of its slots are past versus future so an operator can see
// partial staleness. Documents with zero past slots are dropped.
func (s *CleanupService) findStaleComposite(ctx context.Context, search model.CleanupSearch) ([]model.CleanupCandidate, error) {
	snapshots, err := s.store.Query(ctx, search.Collection, docstore.Query{
		Conditions: []docstore.Condition{
			{Field: model.FieldIsDeleted, Op: docstore.OpEqual, Value: false},
		},
		Limit: s.scanLimit,
	})
	if err != nil {
		return nil, err
	}

	cutoff := model.FormatTimestamp(search.Before)
	candidates := make([]model.CleanupCandidate, 0)
	for _, snap := range snapshots {
		slots, ok := snap.Data[search.SlotsField].([]any)
		if !ok {
			continue
		}

		past, future, newestPast := countSlots(slots, search.DateField, cutoff)
		if past == 0 {
			continue
		}

		candidates = append(candidates, model.CleanupCandidate{
			DocID:           snap.ID,
			Timestamp:       newestPast,
			PastSlotCount:   past,
			FutureSlotCount: future,
			Data:            snap.Data,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Timestamp > candidates[j].Timestamp
	})
	if len(candidates) > search.Limit {
		candidates = candidates[:search.Limit]
	}
	return candidates, nil
}

func countSlots(slots []any, dateField string, cutoff string) (past int, future int, newestPast string) {
	for _, raw := range slots {
		slot, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		date, ok := slot[dateField].(string)
		if !ok {
			continue
		}
		if date < cutoff {
			past++
			if date > newestPast {
				newestPast = date
			}
		} else {
			future++
		}
	}
	return past, future, newestPast
}

// BatchSoftDelete stamps every given id as soft-deleted, splitting the work
// into sub-batches of the store's maximum. Each sub-batch is atomic; a
// failure partway returns a BatchError carrying how many documents were
// stamped by the earlier sub-batches.
func (s *CleanupService) BatchSoftDelete(ctx context.Context, collection string, ids []string, actor string) (int, error) {
	if strings.TrimSpace(collection) == "" {
		return 0, fmt.Errorf("%w: collection is required", model.ErrInvalidInput)
	}
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: no document ids given", model.ErrEmptyInput)
	}

	now := model.FormatTimestamp(time.Now())
	fields := map[string]any{
		model.FieldIsDeleted: true,
		model.FieldDeletedAt: now,
		model.FieldDeletedBy: actor,
	}

	maxBatch := s.store.MaxBatchSize()
	stamped := 0
	for start := 0; start < len(ids); start += maxBatch {
		end := start + maxBatch
		if end > len(ids) {
			end = len(ids)
		}

		if err := s.softDeleteChunk(ctx, collection, ids[start:end], actor, fields); err != nil {
			s.metrics.AddBatchStamped(stamped)
			return stamped, &model.BatchError{Count: stamped, Err: err}
		}
		stamped += end - start
	}

	s.metrics.AddBatchStamped(stamped)
	return stamped, nil
}

func (s *CleanupService) softDeleteChunk(ctx context.Context, collection string, ids []string, actor string, fields map[string]any) error {
	ops := make([]docstore.BatchOp, 0, len(ids))
	for _, id := range ids {
		doc, err := s.store.Get(ctx, collection, id)
		if err != nil {
			return fmt.Errorf("%s/%s: %w", collection, id, err)
		}
		if doc.IsDeleted() {
			return fmt.Errorf("%s/%s: %w", collection, id, model.ErrAlreadyDeleted)
		}

		after := doc.Clone()
		for k, v := range fields {
			after[k] = v
		}

		if _, err := s.oplog.Append(ctx, model.OperationLogEntry{
			TargetCollection: collection,
			TargetDocID:      id,
			OperationType:    model.OperationUpdate,
			BeforeData:       doc,
			AfterData:        after,
			OperatedBy:       actor,
			Description:      "cleanup batch soft delete",
		}); err != nil {
			return err
		}

		ops = append(ops, docstore.BatchOp{Kind: docstore.BatchUpdate, ID: id, Fields: fields})
	}

	return s.store.ApplyBatch(ctx, collection, ops)
}
