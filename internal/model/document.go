package model

import (
	"strings"
	"time"
)

// Reserved document fields managed by this service. Everything else in a
// document is opaque business data and passes through untouched.
const (
	FieldIsDeleted = "isDeleted"
	FieldDeletedAt = "deletedAt"
	FieldDeletedBy = "deletedBy"
	FieldUpdatedAt = "updatedAt"
)

// Document is a schemaless business document as stored in a collection.
type Document map[string]any

func (d Document) IsDeleted() bool {
	v, ok := d[FieldIsDeleted].(bool)
	return ok && v
}

// DeletedAt parses the deletion stamp. The zero time is returned when the
// field is absent or not a recognizable timestamp.
func (d Document) DeletedAt() time.Time {
	raw, ok := d[FieldDeletedAt].(string)
	if !ok {
		return time.Time{}
	}
	ts, err := ParseTimestamp(raw)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func (d Document) DeletedBy() string {
	v, _ := d[FieldDeletedBy].(string)
	return v
}

// StringField returns a trimmed top-level string field, or "" when the field
// is absent or of another type.
func (d Document) StringField(key string) string {
	v, _ := d[key].(string)
	return strings.TrimSpace(v)
}

// Clone deep-copies the document so snapshots stay immutable after the
// original is mutated. Only JSON-shaped values (maps, slices, scalars) are
// expected; other types are copied by reference.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, item := range value {
			out[k] = cloneValue(item)
		}
		return out
	case Document:
		return map[string]any(value.Clone())
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return value
	}
}

// timestampLayout pads fractional seconds to nine digits. Variable-width
// fractions break lexicographic ordering: "05Z" would sort after "05.5Z".
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTimestamp renders a time the way documents and cursors store it.
// Output is fixed width so stamps compare correctly as strings.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// ParseTimestamp accepts the formats this service writes plus plain RFC3339,
// since imported documents may carry second-precision stamps.
func ParseTimestamp(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if value, err := time.Parse(time.RFC3339Nano, trimmed); err == nil {
		return value.UTC(), nil
	}

	value, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return time.Time{}, err
	}

	return value.UTC(), nil
}
