package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pvsf-admin/internal/model"
)

func TestMemoryStore_CRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	t.Run("get missing document", func(t *testing.T) {
		_, err := store.Get(ctx, "videos", "v1")
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("set then get returns a copy", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "videos", "v1", model.Document{"title": "a"}))

		doc, err := store.Get(ctx, "videos", "v1")
		require.NoError(t, err)
		doc["title"] = "mutated"

		again, err := store.Get(ctx, "videos", "v1")
		require.NoError(t, err)
		assert.Equal(t, "a", again["title"])
	})

	t.Run("update merges fields and writes nulls", func(t *testing.T) {
		require.NoError(t, store.Update(ctx, "videos", "v1", map[string]any{
			"title":  "b",
			"author": nil,
		}))

		doc, err := store.Get(ctx, "videos", "v1")
		require.NoError(t, err)
		assert.Equal(t, "b", doc["title"])
		value, present := doc["author"]
		assert.True(t, present)
		assert.Nil(t, value)
	})

	t.Run("update missing document", func(t *testing.T) {
		err := store.Update(ctx, "videos", "missing", map[string]any{"x": 1})
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("delete removes and second delete fails", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "videos", "v1"))
		assert.ErrorIs(t, store.Delete(ctx, "videos", "v1"), model.ErrNotFound)
	})
}

func TestMemoryStore_Query(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	seed := map[string]model.Document{
		"a": {"date": "2025-01-01T00:00:00Z", "views": float64(5)},
		"b": {"date": "2025-03-01T00:00:00Z", "views": float64(10)},
		"c": {"date": "2025-05-01T00:00:00Z", "views": float64(1), model.FieldIsDeleted: true},
		"d": {"views": float64(7)}, // no date field
	}
	for id, doc := range seed {
		require.NoError(t, store.Set(ctx, "videos", id, doc))
	}

	t.Run("range condition with ordering", func(t *testing.T) {
		snaps, err := store.Query(ctx, "videos", Query{
			Conditions: []Condition{{Field: "date", Op: OpLess, Value: "2025-04-01T00:00:00Z"}},
			OrderBy:    "date",
			Descending: true,
		})
		require.NoError(t, err)
		require.Len(t, snaps, 2)
		assert.Equal(t, "b", snaps[0].ID)
		assert.Equal(t, "a", snaps[1].ID)
	})

	t.Run("bool equality treats absent as false", func(t *testing.T) {
		snaps, err := store.Query(ctx, "videos", Query{
			Conditions: []Condition{{Field: model.FieldIsDeleted, Op: OpEqual, Value: false}},
		})
		require.NoError(t, err)
		assert.Len(t, snaps, 3)
	})

	t.Run("documents missing the order field are excluded", func(t *testing.T) {
		snaps, err := store.Query(ctx, "videos", Query{OrderBy: "date"})
		require.NoError(t, err)
		assert.Len(t, snaps, 3)
	})

	t.Run("after cursor resumes past the given value", func(t *testing.T) {
		snaps, err := store.Query(ctx, "videos", Query{
			OrderBy:    "date",
			Descending: true,
			After:      "2025-05-01T00:00:00Z",
		})
		require.NoError(t, err)
		require.Len(t, snaps, 2)
		assert.Equal(t, "b", snaps[0].ID)
	})

	t.Run("after cursor breaks ties on id", func(t *testing.T) {
		for _, id := range []string{"x", "y", "z"} {
			require.NoError(t, store.Set(ctx, "ties", id, model.Document{"date": "2025-06-01T00:00:00Z"}))
		}

		snaps, err := store.Query(ctx, "ties", Query{
			OrderBy:    "date",
			Descending: true,
			After:      "2025-06-01T00:00:00Z",
			AfterID:    "y",
		})
		require.NoError(t, err)
		require.Len(t, snaps, 1)
		assert.Equal(t, "x", snaps[0].ID)
	})

	t.Run("numeric comparison", func(t *testing.T) {
		snaps, err := store.Query(ctx, "videos", Query{
			Conditions: []Condition{{Field: "views", Op: OpGreaterEqual, Value: float64(7)}},
			OrderBy:    "views",
		})
		require.NoError(t, err)
		require.Len(t, snaps, 2)
		assert.Equal(t, "d", snaps[0].ID)
		assert.Equal(t, "b", snaps[1].ID)
	})

	t.Run("limit caps results", func(t *testing.T) {
		snaps, err := store.Query(ctx, "videos", Query{OrderBy: "date", Limit: 1})
		require.NoError(t, err)
		assert.Len(t, snaps, 1)
	})
}

func TestMemoryStore_ApplyBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("mixed batch applies atomically", func(t *testing.T) {
		store := NewMemoryStore(0)
		require.NoError(t, store.Set(ctx, "videos", "v1", model.Document{"title": "a"}))
		require.NoError(t, store.Set(ctx, "videos", "v2", model.Document{"title": "b"}))

		err := store.ApplyBatch(ctx, "videos", []BatchOp{
			{Kind: BatchSet, ID: "v3", Doc: model.Document{"title": "c"}},
			{Kind: BatchUpdate, ID: "v1", Fields: map[string]any{"title": "a2"}},
			{Kind: BatchDelete, ID: "v2"},
		})
		require.NoError(t, err)

		doc, err := store.Get(ctx, "videos", "v1")
		require.NoError(t, err)
		assert.Equal(t, "a2", doc["title"])

		_, err = store.Get(ctx, "videos", "v2")
		assert.ErrorIs(t, err, model.ErrNotFound)

		_, err = store.Get(ctx, "videos", "v3")
		assert.NoError(t, err)
	})

	t.Run("one bad op fails the whole batch", func(t *testing.T) {
		store := NewMemoryStore(0)
		require.NoError(t, store.Set(ctx, "videos", "v1", model.Document{"title": "a"}))

		err := store.ApplyBatch(ctx, "videos", []BatchOp{
			{Kind: BatchUpdate, ID: "v1", Fields: map[string]any{"title": "changed"}},
			{Kind: BatchDelete, ID: "missing"},
		})
		require.ErrorIs(t, err, model.ErrNotFound)

		// The valid op must not have been applied.
		doc, err := store.Get(ctx, "videos", "v1")
		require.NoError(t, err)
		assert.Equal(t, "a", doc["title"])
	})

	t.Run("oversized batch is rejected", func(t *testing.T) {
		store := NewMemoryStore(2)
		err := store.ApplyBatch(ctx, "videos", []BatchOp{
			{Kind: BatchSet, ID: "a", Doc: model.Document{}},
			{Kind: BatchSet, ID: "b", Doc: model.Document{}},
			{Kind: BatchSet, ID: "c", Doc: model.Document{}},
		})
		assert.ErrorIs(t, err, model.ErrInvalidInput)
	})
}
