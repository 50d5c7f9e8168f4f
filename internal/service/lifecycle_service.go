package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pvsf-admin/internal/docstore"
	"pvsf-admin/internal/metrics"
	"pvsf-admin/internal/model"
)

// LifecycleService drives the per-document state machine:
// active -> soft-deleted -> active (restore) or purged (permanent delete).
// Every transition appends its log entry before the document mutation so a
// crash in between never loses the audit trail.
type LifecycleService struct {
	store     docstore.Store
	oplog     *OplogService
	retention time.Duration
	metrics   *metrics.Metrics
}

func NewLifecycleService(store docstore.Store, oplog *OplogService, retention time.Duration, m *metrics.Metrics) *LifecycleService {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &LifecycleService{store: store, oplog: oplog, retention: retention, metrics: m}
}

func (s *LifecycleService) SoftDelete(ctx context.Context, collection string, id string, actor string) error {
	if err := validateTarget(collection, id); err != nil {
		return err
	}

	doc, err := s.store.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	if doc.IsDeleted() {
		return fmt.Errorf("%s/%s: %w", collection, id, model.ErrAlreadyDeleted)
	}

	now := model.FormatTimestamp(time.Now())
	fields := map[string]any{
		model.FieldIsDeleted: true,
		model.FieldDeletedAt: now,
		model.FieldDeletedBy: actor,
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
		Description:      "soft delete",
	}); err != nil {
		return err
	}

	if err := s.store.Update(ctx, collection, id, fields); err != nil {
		return err
	}

	s.metrics.IncSoftDeletes()
	return nil
}

// Restore un-deletes a document directly by id. This is independent of the
// log-replay path: callers restoring from the deleted-items view use this,
// callers restoring from history use RestoreService.
func (s *LifecycleService) Restore(ctx context.Context, collection string, id string, actor string) error {
	if err := validateTarget(collection, id); err != nil {
		return err
	}

	doc, err := s.store.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	if !doc.IsDeleted() {
		return fmt.Errorf("%s/%s: %w", collection, id, model.ErrNotDeleted)
	}

	fields := map[string]any{
		model.FieldIsDeleted: false,
		model.FieldDeletedAt: nil,
		model.FieldDeletedBy: nil,
		model.FieldUpdatedAt: model.FormatTimestamp(time.Now()),
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
		Description:      "restore",
	}); err != nil {
		return err
	}

	if err := s.store.Update(ctx, collection, id, fields); err != nil {
		return err
	}

	s.metrics.IncRestores()
	return nil
}

// PermanentDelete removes a soft-deleted document for good. The retention
// gate compares whole days since deletion against the configured window and
// only force bypasses it. The audit entry goes in before the physical delete.
func (s *LifecycleService) PermanentDelete(ctx context.Context, collection string, id string, actor string, force bool) error {
	if err := validateTarget(collection, id); err != nil {
		return err
	}

	doc, err := s.store.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	if !doc.IsDeleted() {
		return fmt.Errorf("%s/%s: %w", collection, id, model.ErrNotSoftDeleted)
	}

	requiredDays := int(s.retention.Hours() / 24)
	days := daysSince(doc.DeletedAt(), time.Now())
	if days < requiredDays && !force {
		return &model.RetentionWindowError{DaysSinceDeleted: days, RequiredDays: requiredDays}
	}

	if _, err := s.oplog.Append(ctx, model.OperationLogEntry{
		TargetCollection: collection,
		TargetDocID:      id,
		OperationType:    model.OperationDelete,
		BeforeData:       doc,
		OperatedBy:       actor,
		Description:      "permanent delete",
	}); err != nil {
		return err
	}

	if err := s.store.Delete(ctx, collection, id); err != nil {
		return err
	}

	s.metrics.IncPermanentDeletes()
	return nil
}

// ListDeleted pages through a collection's soft-deleted documents ordered by
// deletion time. newestFirst is an explicit caller choice rather than policy.
func (s *LifecycleService) ListDeleted(ctx context.Context, collection string, newestFirst bool, limit int, cursor string) ([]model.DeletedItem, string, error) {
	if strings.TrimSpace(collection) == "" {
		return nil, "", fmt.Errorf("%w: collection is required", model.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}

	afterValue, afterID, err := decodeFieldCursor(cursor)
	if err != nil {
		return nil, "", err
	}

	q := docstore.Query{
		Conditions: []docstore.Condition{
			{Field: model.FieldIsDeleted, Op: docstore.OpEqual, Value: true},
		},
		OrderBy:    model.FieldDeletedAt,
		Descending: newestFirst,
		Limit:      limit,
	}
	if afterValue != "" {
		q.After = afterValue
		q.AfterID = afterID
	}

	snapshots, err := s.store.Query(ctx, collection, q)
	if err != nil {
		return nil, "", err
	}

	now := time.Now()
	items := make([]model.DeletedItem, 0, len(snapshots))
	for _, snap := range snapshots {
		items = append(items, model.DeletedItem{
			Collection:       collection,
			ID:               snap.ID,
			DeletedAt:        snap.Data.StringField(model.FieldDeletedAt),
			DeletedBy:        snap.Data.DeletedBy(),
			DaysSinceDeleted: daysSince(snap.Data.DeletedAt(), now),
			Data:             snap.Data,
		})
	}

	nextCursor := ""
	if len(items) == limit && len(items) > 0 {
		last := items[len(items)-1]
		nextCursor = encodeFieldCursor(last.DeletedAt, last.ID)
	}
	return items, nextCursor, nil
}

func validateTarget(collection string, id string) error {
	if strings.TrimSpace(collection) == "" {
		return fmt.Errorf("%w: collection is required", model.ErrInvalidInput)
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: document id is required", model.ErrInvalidInput)
	}
	return nil
}

func daysSince(t time.Time, now time.Time) int {
	if t.IsZero() {
		return 0
	}
	days := int(now.UTC().Sub(t).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
