package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"pvsf-admin/internal/model"
)

// OplogCursor positions a keyset page: entries strictly older than
// (Timestamp, ID) in newest-first order.
type OplogCursor struct {
	Timestamp time.Time
	ID        string
}

type OplogRepository struct {
	pool *pgxpool.Pool
}

func NewOplogRepository(pool *pgxpool.Pool) *OplogRepository {
	return &OplogRepository{pool: pool}
}

func (r *OplogRepository) Append(ctx context.Context, entry model.OperationLogEntry) error {
	beforeJSON, afterJSON, err := marshalSnapshots(entry)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO operation_log_entries
		 (id, target_collection, target_doc_id, operation_type,
		  before_data, after_data, operated_by, description, ts, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.TargetCollection, entry.TargetDocID, string(entry.OperationType),
		beforeJSON, afterJSON, entry.OperatedBy, entry.Description,
		entry.Timestamp, entry.ExpiresAt)
	if err != nil {
		return mapRepoError("append log entry", err)
	}
	return nil
}

func (r *OplogRepository) FindByID(ctx context.Context, id string) (model.OperationLogEntry, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, target_collection, target_doc_id, operation_type,
		        before_data, after_data, operated_by, description, ts, expires_at
		 FROM operation_log_entries WHERE id = $1`, id)

	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.OperationLogEntry{}, model.ErrLogEntryNotFound
	}
	if err != nil {
		return model.OperationLogEntry{}, mapRepoError("find log entry", err)
	}
	return entry, nil
}

func (r *OplogRepository) List(ctx context.Context, filter model.OperationLogFilter, limit int, cursor *OplogCursor) ([]model.OperationLogEntry, error) {
	where := make([]string, 0)
	args := make([]any, 0)

	if collection := strings.TrimSpace(filter.Collection); collection != "" {
		args = append(args, collection)
		where = append(where, fmt.Sprintf("target_collection = $%d", len(args)))
	}
	if opType := strings.TrimSpace(filter.OperationType); opType != "" {
		args = append(args, opType)
		where = append(where, fmt.Sprintf("operation_type = $%d", len(args)))
	}
	if docID := strings.TrimSpace(filter.DocID); docID != "" {
		args = append(args, docID)
		where = append(where, fmt.Sprintf("target_doc_id = $%d", len(args)))
	}
	if cursor != nil {
		args = append(args, cursor.Timestamp, cursor.ID)
		where = append(where, fmt.Sprintf("(ts, id) < ($%d, $%d)", len(args)-1, len(args)))
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	args = append(args, limit)
	sql := fmt.Sprintf(
		`SELECT id, target_collection, target_doc_id, operation_type,
		        before_data, after_data, operated_by, description, ts, expires_at
		 FROM operation_log_entries %s
		 ORDER BY ts DESC, id DESC LIMIT $%d`, whereClause, len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapRepoError("list log entries", err)
	}
	defer rows.Close()

	entries := make([]model.OperationLogEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, mapRepoError("list log entries", err)
	}

	return entries, nil
}

func (r *OplogRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM operation_log_entries WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, mapRepoError("purge expired log entries", err)
	}
	return tag.RowsAffected(), nil
}

func marshalSnapshots(entry model.OperationLogEntry) ([]byte, []byte, error) {
	var beforeJSON, afterJSON []byte
	var err error

	if entry.BeforeData != nil {
		beforeJSON, err = json.Marshal(entry.BeforeData)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal before data: %w", err)
		}
	}
	if entry.AfterData != nil {
		afterJSON, err = json.Marshal(entry.AfterData)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal after data: %w", err)
		}
	}
	return beforeJSON, afterJSON, nil
}

func scanEntry(row pgx.Row) (model.OperationLogEntry, error) {
	var entry model.OperationLogEntry
	var opType string
	var beforeJSON, afterJSON []byte
	var ts, expiresAt time.Time

	if err := row.Scan(
		&entry.ID, &entry.TargetCollection, &entry.TargetDocID, &opType,
		&beforeJSON, &afterJSON, &entry.OperatedBy, &entry.Description,
		&ts, &expiresAt,
	); err != nil {
		return model.OperationLogEntry{}, err
	}

	entry.OperationType = model.OperationType(opType)
	entry.Timestamp = ts.UTC()
	entry.ExpiresAt = expiresAt.UTC()

	if len(beforeJSON) > 0 {
		if err := json.Unmarshal(beforeJSON, &entry.BeforeData); err != nil {
			return model.OperationLogEntry{}, fmt.Errorf("decode before data: %w", err)
		}
	}
	if len(afterJSON) > 0 {
		if err := json.Unmarshal(afterJSON, &entry.AfterData); err != nil {
			return model.OperationLogEntry{}, fmt.Errorf("decode after data: %w", err)
		}
	}

	return entry, nil
}

func mapRepoError(action string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%s: %w: %v", action, model.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", action, err)
}
