package service

import (
	"context"
	"errors"
	"fmt"

	"pvsf-admin/internal/docstore"
	"pvsf-admin/internal/metrics"
	"pvsf-admin/internal/model"
)

// RestoreService replays log entries: it writes an entry's before-snapshot
// back over the target document and records the replay as a fresh entry, so
// restores are themselves auditable and restorable.
type RestoreService struct {
	store   docstore.Store
	oplog   *OplogService
	metrics *metrics.Metrics
}

func NewRestoreService(store docstore.Store, oplog *OplogService, m *metrics.Metrics) *RestoreService {
	return &RestoreService{store: store, oplog: oplog, metrics: m}
}

// RestoreFromLog rewrites the target document to exactly the entry's
// before-snapshot. The write is a full overwrite, never a merge: fields added
// to the document after the entry was taken are gone afterwards. If the
// document was deleted, it is recreated at its original id. No conflict
// detection happens here; the log is totally ordered by timestamp and the
// caller decides whether replaying an old entry over newer data is wanted.
func (s *RestoreService) RestoreFromLog(ctx context.Context, logEntryID string, actor string) (string, error) {
	entry, err := s.oplog.Get(ctx, logEntryID)
	if err != nil {
		return "", err
	}

	if entry.OperationType == model.OperationCreate {
		return "", fmt.Errorf("create entry %s has no prior state: %w", entry.ID, model.ErrUnsupportedOperation)
	}

	current, err := s.store.Get(ctx, entry.TargetCollection, entry.TargetDocID)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return "", err
	}

	if _, err := s.oplog.Append(ctx, model.OperationLogEntry{
		TargetCollection: entry.TargetCollection,
		TargetDocID:      entry.TargetDocID,
		OperationType:    model.OperationUpdate,
		BeforeData:       current,
		AfterData:        entry.BeforeData,
		OperatedBy:       actor,
		Description:      fmt.Sprintf("restore from log entry %s", entry.ID),
	}); err != nil {
		return "", err
	}

	if err := s.store.Set(ctx, entry.TargetCollection, entry.TargetDocID, entry.BeforeData); err != nil {
		return "", err
	}

	s.metrics.IncLogReplays()
	return entry.TargetDocID, nil
}
