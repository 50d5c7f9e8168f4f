package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"pvsf-admin/internal/metrics"
	"pvsf-admin/internal/model"
	"pvsf-admin/internal/repository"
)

const defaultListLimit = 50

// OplogStore is the slice of the log repository the services consume.
type OplogStore interface {
	Append(ctx context.Context, entry model.OperationLogEntry) error
	FindByID(ctx context.Context, id string) (model.OperationLogEntry, error)
	List(ctx context.Context, filter model.OperationLogFilter, limit int, cursor *repository.OplogCursor) ([]model.OperationLogEntry, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// OplogService owns the operation log: it is the only writer of entries and
// the only component that assigns ids and expiry stamps.
type OplogService struct {
	repo      OplogStore
	retention time.Duration
	maxLimit  int
	metrics   *metrics.Metrics
}

func NewOplogService(repo OplogStore, retention time.Duration, maxLimit int, m *metrics.Metrics) *OplogService {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	if maxLimit <= 0 {
		maxLimit = 500
	}
	return &OplogService{repo: repo, retention: retention, maxLimit: maxLimit, metrics: m}
}

// Append validates and persists one entry, assigning id, timestamp and
// expiry. The returned id identifies the stored entry.
func (s *OplogService) Append(ctx context.Context, entry model.OperationLogEntry) (string, error) {
	if strings.TrimSpace(entry.TargetCollection) == "" {
		return "", fmt.Errorf("%w: target collection is required", model.ErrInvalidInput)
	}
	if strings.TrimSpace(entry.TargetDocID) == "" {
		return "", fmt.Errorf("%w: target doc id is required", model.ErrInvalidInput)
	}
	if !entry.OperationType.Valid() {
		return "", fmt.Errorf("%w: unknown operation type %q", model.ErrInvalidInput, entry.OperationType)
	}
	if entry.OperationType == model.OperationCreate && entry.AfterData == nil {
		return "", fmt.Errorf("%w: create entries require after data", model.ErrInvalidInput)
	}
	if entry.OperationType == model.OperationDelete && entry.BeforeData == nil {
		return "", fmt.Errorf("%w: delete entries require before data", model.ErrInvalidInput)
	}

	entry.ID = uuid.NewString()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	entry.ExpiresAt = entry.Timestamp.Add(s.retention)

	if err := s.repo.Append(ctx, entry); err != nil {
		return "", err
	}
	return entry.ID, nil
}

func (s *OplogService) Get(ctx context.Context, id string) (model.OperationLogEntry, error) {
	if strings.TrimSpace(id) == "" {
		return model.OperationLogEntry{}, fmt.Errorf("%w: log entry id is required", model.ErrInvalidInput)
	}
	return s.repo.FindByID(ctx, id)
}

// List returns entries newest-first with an opaque continuation cursor. The
// cursor is empty when the last page has been reached.
func (s *OplogService) List(ctx context.Context, filter model.OperationLogFilter, limit int, cursor string) ([]model.OperationLogEntry, string, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}

	position, err := decodeLogCursor(cursor)
	if err != nil {
		return nil, "", err
	}

	entries, err := s.repo.List(ctx, filter, limit, position)
	if err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(entries) == limit {
		last := entries[len(entries)-1]
		nextCursor = encodeLogCursor(last.Timestamp, last.ID)
	}
	return entries, nextCursor, nil
}

// PurgeExpired removes every entry whose expiry has passed. Safe to call
// repeatedly; a second call with no new expirations reports zero.
func (s *OplogService) PurgeExpired(ctx context.Context) (int64, error) {
	deleted, err := s.repo.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	s.metrics.AddPurgedEntries(deleted)
	return deleted, nil
}
