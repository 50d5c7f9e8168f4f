package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pvsf-admin/internal/docstore"
	"pvsf-admin/internal/model"
)

type restoreFixture struct {
	store *docstore.MemoryStore
	oplog *OplogService
	svc   *RestoreService
}

func newRestoreFixture(t *testing.T) *restoreFixture {
	t.Helper()
	store := docstore.NewMemoryStore(0)
	oplog, _ := newTestOplogService(time.Hour, 0)
	return &restoreFixture{
		store: store,
		oplog: oplog,
		svc:   NewRestoreService(store, oplog, nil),
	}
}

func (f *restoreFixture) appendEntry(t *testing.T, entry model.OperationLogEntry) string {
	t.Helper()
	id, err := f.oplog.Append(context.Background(), entry)
	require.NoError(t, err)
	return id
}

func TestRestoreService_RestoreFromLog(t *testing.T) {
	ctx := context.Background()

	t.Run("overwrites, never merges", func(t *testing.T) {
		f := newRestoreFixture(t)

		// Document gained a field after the logged update.
		require.NoError(t, f.store.Set(ctx, "videos", "v1", model.Document{
			"title":    "renamed",
			"newField": "added later",
		}))
		entryID := f.appendEntry(t, model.OperationLogEntry{
			TargetCollection: "videos",
			TargetDocID:      "v1",
			OperationType:    model.OperationUpdate,
			BeforeData:       model.Document{"title": "original"},
			AfterData:        model.Document{"title": "renamed"},
			OperatedBy:       "admin_1",
		})

		docID, err := f.svc.RestoreFromLog(ctx, entryID, "admin_2")
		require.NoError(t, err)
		assert.Equal(t, "v1", docID)

		doc, err := f.store.Get(ctx, "videos", "v1")
		require.NoError(t, err)
		assert.Equal(t, "original", doc["title"])
		_, hasNewField := doc["newField"]
		assert.False(t, hasNewField, "fields absent from the snapshot must not survive")
	})

	t.Run("recreates a deleted document at its original id", func(t *testing.T) {
		f := newRestoreFixture(t)

		entryID := f.appendEntry(t, model.OperationLogEntry{
			TargetCollection: "videos",
			TargetDocID:      "v1",
			OperationType:    model.OperationDelete,
			BeforeData:       model.Document{"title": "gone"},
			OperatedBy:       "admin_1",
		})

		docID, err := f.svc.RestoreFromLog(ctx, entryID, "admin_2")
		require.NoError(t, err)
		assert.Equal(t, "v1", docID)

		doc, err := f.store.Get(ctx, "videos", "v1")
		require.NoError(t, err)
		assert.Equal(t, "gone", doc["title"])
	})

	t.Run("create entries cannot be replayed", func(t *testing.T) {
		f := newRestoreFixture(t)

		entryID := f.appendEntry(t, model.OperationLogEntry{
			TargetCollection: "videos",
			TargetDocID:      "v1",
			OperationType:    model.OperationCreate,
			AfterData:        model.Document{"title": "fresh"},
			OperatedBy:       "admin_1",
		})

		_, err := f.svc.RestoreFromLog(ctx, entryID, "admin_2")
		assert.ErrorIs(t, err, model.ErrUnsupportedOperation)
	})

	t.Run("unknown entry id", func(t *testing.T) {
		f := newRestoreFixture(t)
		_, err := f.svc.RestoreFromLog(ctx, "does-not-exist", "admin_1")
		assert.ErrorIs(t, err, model.ErrLogEntryNotFound)
	})

	t.Run("replay is logged and itself replayable", func(t *testing.T) {
		f := newRestoreFixture(t)

		require.NoError(t, f.store.Set(ctx, "videos", "v1", model.Document{"title": "current"}))
		entryID := f.appendEntry(t, model.OperationLogEntry{
			TargetCollection: "videos",
			TargetDocID:      "v1",
			OperationType:    model.OperationUpdate,
			BeforeData:       model.Document{"title": "past"},
			AfterData:        model.Document{"title": "current"},
			OperatedBy:       "admin_1",
		})

		_, err := f.svc.RestoreFromLog(ctx, entryID, "admin_2")
		require.NoError(t, err)

		entries, _, err := f.oplog.List(ctx, model.OperationLogFilter{}, 10, "")
		require.NoError(t, err)
		require.Len(t, entries, 2)

		// Newest entry records the replay with the pre-replay state as before.
		replay := entries[0]
		if replay.ID == entryID {
			replay = entries[1]
		}
		assert.Equal(t, model.OperationUpdate, replay.OperationType)
		assert.Equal(t, "current", replay.BeforeData["title"])
		assert.Equal(t, "past", replay.AfterData["title"])
		assert.Equal(t, "admin_2", replay.OperatedBy)

		// Undoing the restore replays the replay entry.
		_, err = f.svc.RestoreFromLog(ctx, replay.ID, "admin_3")
		require.NoError(t, err)

		doc, err := f.store.Get(ctx, "videos", "v1")
		require.NoError(t, err)
		assert.Equal(t, "current", doc["title"])
	})
}
