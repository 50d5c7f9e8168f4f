package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"pvsf-admin/internal/model"
)

// PostgresStore keeps each collection's documents as JSONB rows in a single
// documents table keyed by (collection, id).
type PostgresStore struct {
	pool         *pgxpool.Pool
	maxBatchSize int
}

func NewPostgresStore(pool *pgxpool.Pool, maxBatchSize int) *PostgresStore {
	if maxBatchSize <= 0 {
		maxBatchSize = 500
	}
	return &PostgresStore{pool: pool, maxBatchSize: maxBatchSize}
}

func (s *PostgresStore) MaxBatchSize() int {
	return s.maxBatchSize
}

func (s *PostgresStore) Get(ctx context.Context, collection string, id string) (model.Document, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id).Scan(&data)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, mapStoreError("get document", err)
	}

	var doc model.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

func (s *PostgresStore) Set(ctx context.Context, collection string, id string, doc model.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document %s/%s: %w", collection, id, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)
		 ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data`,
		collection, id, data)
	if err != nil {
		return mapStoreError("set document", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, collection string, id string, fields map[string]any) error {
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode patch %s/%s: %w", collection, id, err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET data = data || $3::jsonb WHERE collection = $1 AND id = $2`,
		collection, id, patch)
	if err != nil {
		return mapStoreError("update document", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection string, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return mapStoreError("delete document", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, collection string, q Query) ([]Snapshot, error) {
	where := []string{"collection = $1"}
	args := []any{collection}

	for _, cond := range q.Conditions {
		expr, condArgs, err := conditionSQL(cond, len(args)+1)
		if err != nil {
			return nil, err
		}
		where = append(where, expr)
		args = append(args, condArgs...)
	}

	orderExpr := "id"
	if q.OrderBy != "" {
		args = append(args, q.OrderBy)
		orderExpr = fmt.Sprintf("data->>$%d", len(args))
		// Documents missing the ordering field cannot be positioned.
		where = append(where, fmt.Sprintf("data ? $%d", len(args)))
	}

	if q.After != nil {
		if q.AfterID != "" {
			// Composite keyset over (value, id) so ties on the ordering
			// field cannot hide documents across page boundaries.
			op := ">"
			if q.Descending {
				op = "<"
			}
			args = append(args, q.OrderBy, q.After, q.AfterID)
			where = append(where, fmt.Sprintf("(data->>$%d, id) %s ($%d, $%d)",
				len(args)-2, op, len(args)-1, len(args)))
		} else {
			op := OpGreater
			if q.Descending {
				op = OpLess
			}
			expr, condArgs, err := conditionSQL(Condition{Field: q.OrderBy, Op: op, Value: q.After}, len(args)+1)
			if err != nil {
				return nil, err
			}
			where = append(where, expr)
			args = append(args, condArgs...)
		}
	}

	direction := "ASC"
	if q.Descending {
		direction = "DESC"
	}

	sql := fmt.Sprintf(
		`SELECT id, data FROM documents WHERE %s ORDER BY %s %s, id %s`,
		strings.Join(where, " AND "), orderExpr, direction, direction)
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapStoreError("query documents", err)
	}
	defer rows.Close()

	snapshots := make([]Snapshot, 0)
	for rows.Next() {
		var snap Snapshot
		var data []byte
		if err := rows.Scan(&snap.ID, &data); err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		if err := json.Unmarshal(data, &snap.Data); err != nil {
			return nil, fmt.Errorf("decode document %s/%s: %w", collection, snap.ID, err)
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, mapStoreError("query documents", err)
	}

	return snapshots, nil
}

func (s *PostgresStore) ApplyBatch(ctx context.Context, collection string, ops []BatchOp) error {
	if len(ops) == 0 {
		return nil
	}
	if len(ops) > s.maxBatchSize {
		return fmt.Errorf("%w: batch of %d exceeds store maximum %d", model.ErrInvalidInput, len(ops), s.maxBatchSize)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapStoreError("begin batch", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, op := range ops {
		if err := applyBatchOp(ctx, tx, collection, op); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return mapStoreError("commit batch", err)
	}
	return nil
}

func applyBatchOp(ctx context.Context, tx pgx.Tx, collection string, op BatchOp) error {
	switch op.Kind {
	case BatchSet:
		data, err := json.Marshal(op.Doc)
		if err != nil {
			return fmt.Errorf("encode document %s/%s: %w", collection, op.ID, err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)
			 ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data`,
			collection, op.ID, data)
		if err != nil {
			return mapStoreError("batch set", err)
		}
		return nil

	case BatchUpdate:
		patch, err := json.Marshal(op.Fields)
		if err != nil {
			return fmt.Errorf("encode patch %s/%s: %w", collection, op.ID, err)
		}
		tag, err := tx.Exec(ctx,
			`UPDATE documents SET data = data || $3::jsonb WHERE collection = $1 AND id = $2`,
			collection, op.ID, patch)
		if err != nil {
			return mapStoreError("batch update", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("batch update %s/%s: %w", collection, op.ID, model.ErrNotFound)
		}
		return nil

	case BatchDelete:
		tag, err := tx.Exec(ctx,
			`DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, op.ID)
		if err != nil {
			return mapStoreError("batch delete", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("batch delete %s/%s: %w", collection, op.ID, model.ErrNotFound)
		}
		return nil
	}

	return fmt.Errorf("%w: unknown batch op kind %q", model.ErrInvalidInput, op.Kind)
}

// conditionSQL renders one condition against the JSONB data column, casting
// by the Go type of the value so numbers and booleans compare natively.
func conditionSQL(cond Condition, argIdx int) (string, []any, error) {
	if cond.Field == "" {
		return "", nil, fmt.Errorf("%w: condition field is required", model.ErrInvalidInput)
	}

	op, ok := sqlOperator(cond.Op)
	if !ok {
		return "", nil, fmt.Errorf("%w: unknown operator %q", model.ErrInvalidInput, cond.Op)
	}

	switch value := cond.Value.(type) {
	case bool:
		if cond.Op != OpEqual {
			return "", nil, fmt.Errorf("%w: booleans only support equality", model.ErrInvalidInput)
		}
		// Treat an absent field as false so isDeleted filters match
		// documents that were never touched by this service.
		return fmt.Sprintf("COALESCE((data->>$%d)::boolean, false) = $%d", argIdx, argIdx+1),
			[]any{cond.Field, value}, nil
	case int, int32, int64, float32, float64:
		return fmt.Sprintf("(data->>$%d)::numeric %s $%d", argIdx, op, argIdx+1),
			[]any{cond.Field, value}, nil
	case string:
		return fmt.Sprintf("data->>$%d %s $%d", argIdx, op, argIdx+1),
			[]any{cond.Field, value}, nil
	}

	return "", nil, fmt.Errorf("%w: unsupported condition value type %T", model.ErrInvalidInput, cond.Value)
}

func sqlOperator(op Operator) (string, bool) {
	switch op {
	case OpEqual:
		return "=", true
	case OpLess:
		return "<", true
	case OpLessOrEqual:
		return "<=", true
	case OpGreater:
		return ">", true
	case OpGreaterEqual:
		return ">=", true
	}
	return "", false
}

// mapStoreError folds transient backend failures into ErrStoreUnavailable so
// callers can tell retryable conditions from logic errors.
func mapStoreError(action string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%s: %w: %v", action, model.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", action, err)
}
