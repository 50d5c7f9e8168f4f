package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocument_Clone(t *testing.T) {
	t.Run("nested structures are copied, not shared", func(t *testing.T) {
		original := Document{
			"title": "summer festival",
			"slots": []any{
				map[string]any{"date": "2025-08-01T12:00:00Z", "name": "opening"},
			},
			"meta": map[string]any{"views": float64(10)},
		}

		clone := original.Clone()
		clone["title"] = "changed"
		clone["slots"].([]any)[0].(map[string]any)["name"] = "changed"
		clone["meta"].(map[string]any)["views"] = float64(99)

		assert.Equal(t, "summer festival", original["title"])
		assert.Equal(t, "opening", original["slots"].([]any)[0].(map[string]any)["name"])
		assert.Equal(t, float64(10), original["meta"].(map[string]any)["views"])
	})

	t.Run("nil document clones to nil", func(t *testing.T) {
		var doc Document
		assert.Nil(t, doc.Clone())
	})
}

func TestDocument_SoftDeleteFields(t *testing.T) {
	t.Run("untouched document reads as active", func(t *testing.T) {
		doc := Document{"title": "x"}
		assert.False(t, doc.IsDeleted())
		assert.True(t, doc.DeletedAt().IsZero())
		assert.Empty(t, doc.DeletedBy())
	})

	t.Run("stamped document exposes the deletion metadata", func(t *testing.T) {
		stamp := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)
		doc := Document{
			FieldIsDeleted: true,
			FieldDeletedAt: FormatTimestamp(stamp),
			FieldDeletedBy: "admin_1",
		}

		assert.True(t, doc.IsDeleted())
		assert.Equal(t, stamp, doc.DeletedAt())
		assert.Equal(t, "admin_1", doc.DeletedBy())
	})

	t.Run("garbage deletedAt reads as zero time", func(t *testing.T) {
		doc := Document{FieldDeletedAt: "not-a-time"}
		assert.True(t, doc.DeletedAt().IsZero())
	})
}

func TestFormatTimestamp(t *testing.T) {
	t.Run("fixed width keeps lexicographic order across precisions", func(t *testing.T) {
		whole := FormatTimestamp(time.Date(2025, 6, 1, 10, 30, 5, 0, time.UTC))
		fractional := FormatTimestamp(time.Date(2025, 6, 1, 10, 30, 5, 500_000_000, time.UTC))

		assert.Len(t, whole, len(fractional))
		assert.True(t, whole < fractional)
	})

	t.Run("round trips through ParseTimestamp", func(t *testing.T) {
		stamp := time.Date(2025, 6, 1, 10, 30, 5, 123_000_000, time.UTC)
		parsed, err := ParseTimestamp(FormatTimestamp(stamp))
		require.NoError(t, err)
		assert.Equal(t, stamp, parsed)
	})
}

func TestParseTimestamp(t *testing.T) {
	t.Run("accepts nano and second precision", func(t *testing.T) {
		for _, raw := range []string{"2025-06-01T10:30:00.123456789Z", "2025-06-01T10:30:00Z"} {
			parsed, err := ParseTimestamp(raw)
			require.NoError(t, err)
			assert.Equal(t, 2025, parsed.Year())
		}
	})

	t.Run("rejects non-timestamps", func(t *testing.T) {
		_, err := ParseTimestamp("yesterday")
		assert.Error(t, err)
	})
}
