package service

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"pvsf-admin/internal/model"
	"pvsf-admin/internal/repository"
)

// Cursors are opaque to clients: base64 over the keyset position. Log
// listings use "timestamp|id"; deleted-item listings use "deletedAt|id".
// Both carry the id so ties on the ordering value cannot skip rows.

func encodeLogCursor(ts time.Time, id string) string {
	raw := model.FormatTimestamp(ts) + "|" + id
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeLogCursor(raw string) (*repository.OplogCursor, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", model.ErrInvalidInput)
	}

	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return nil, fmt.Errorf("%w: malformed cursor", model.ErrInvalidInput)
	}

	ts, err := model.ParseTimestamp(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor timestamp", model.ErrInvalidInput)
	}

	return &repository.OplogCursor{Timestamp: ts, ID: parts[1]}, nil
}

func encodeFieldCursor(value string, id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(value + "|" + id))
}

func decodeFieldCursor(raw string) (string, string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", "", nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(trimmed)
	if err != nil {
		return "", "", fmt.Errorf("%w: malformed cursor", model.ErrInvalidInput)
	}

	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: malformed cursor", model.ErrInvalidInput)
	}
	return parts[0], parts[1], nil
}
