package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"pvsf-admin/internal/model"
)

// MemoryOplogRepository mirrors OplogRepository semantics in memory. It backs
// tests and database-less local runs.
type MemoryOplogRepository struct {
	mu      sync.RWMutex
	entries []model.OperationLogEntry
}

func NewMemoryOplogRepository() *MemoryOplogRepository {
	return &MemoryOplogRepository{}
}

func (r *MemoryOplogRepository) Append(_ context.Context, entry model.OperationLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry.BeforeData = entry.BeforeData.Clone()
	entry.AfterData = entry.AfterData.Clone()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *MemoryOplogRepository) FindByID(_ context.Context, id string) (model.OperationLogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, entry := range r.entries {
		if entry.ID == id {
			entry.BeforeData = entry.BeforeData.Clone()
			entry.AfterData = entry.AfterData.Clone()
			return entry, nil
		}
	}
	return model.OperationLogEntry{}, model.ErrLogEntryNotFound
}

func (r *MemoryOplogRepository) List(_ context.Context, filter model.OperationLogFilter, limit int, cursor *OplogCursor) ([]model.OperationLogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]model.OperationLogEntry, 0)
	for _, entry := range r.entries {
		if c := strings.TrimSpace(filter.Collection); c != "" && entry.TargetCollection != c {
			continue
		}
		if t := strings.TrimSpace(filter.OperationType); t != "" && string(entry.OperationType) != t {
			continue
		}
		if d := strings.TrimSpace(filter.DocID); d != "" && entry.TargetDocID != d {
			continue
		}
		if cursor != nil && !beforeCursor(entry, cursor) {
			continue
		}
		entry.BeforeData = entry.BeforeData.Clone()
		entry.AfterData = entry.AfterData.Clone()
		matched = append(matched, entry)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (r *MemoryOplogRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.entries[:0]
	var deleted int64
	for _, entry := range r.entries {
		if entry.ExpiresAt.After(now) {
			kept = append(kept, entry)
		} else {
			deleted++
		}
	}
	r.entries = kept
	return deleted, nil
}

func beforeCursor(entry model.OperationLogEntry, cursor *OplogCursor) bool {
	if entry.Timestamp.Before(cursor.Timestamp) {
		return true
	}
	return entry.Timestamp.Equal(cursor.Timestamp) && entry.ID < cursor.ID
}
