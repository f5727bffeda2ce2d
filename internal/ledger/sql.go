package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"image-studio-backend/internal/models"
)

const pqUndefinedFunction = "42883"

// FunctionIncrementer calls the increment_* SQL functions installed by the
// migrations. One round trip, atomic on the database side.
type FunctionIncrementer struct {
	db *sql.DB
}

func NewFunctionIncrementer(db *sql.DB) *FunctionIncrementer {
	return &FunctionIncrementer{db: db}
}

func (f *FunctionIncrementer) Name() string { return "function" }

func (f *FunctionIncrementer) Increment(ctx context.Context, ref models.IdentityRef) (int, error) {
	t, err := targetFor(ref)
	if err != nil {
		return 0, err
	}

	var n sql.NullInt64
	err = f.db.QueryRowContext(ctx, fmt.Sprintf("SELECT %s($1)", t.function), ref.Key).Scan(&n)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUndefinedFunction {
			return 0, fmt.Errorf("%w: %s", ErrUnavailable, pqErr.Message)
		}
		return 0, fmt.Errorf("call %s: %w", t.function, err)
	}
	if !n.Valid {
		return 0, ErrRowNotFound
	}

	return int(n.Int64), nil
}

// ReadModifyWriteIncrementer reads the counter, adds one and writes it back.
//
// This is NOT race-free: two concurrent callers can read the same value and
// one increment is lost. It exists only as a fallback for when the atomic
// function is missing or unreachable. It must not run after an error that
// leaves the atomic write's outcome unknown (a reset after the server
// committed, a timeout), or the image is counted twice.
type ReadModifyWriteIncrementer struct {
	db *sql.DB
}

func NewReadModifyWriteIncrementer(db *sql.DB) *ReadModifyWriteIncrementer {
	return &ReadModifyWriteIncrementer{db: db}
}

func (r *ReadModifyWriteIncrementer) Name() string { return "read_modify_write" }

func (r *ReadModifyWriteIncrementer) Increment(ctx context.Context, ref models.IdentityRef) (int, error) {
	t, err := targetFor(ref)
	if err != nil {
		return 0, err
	}

	var current int
	err = r.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", t.column, t.table, t.keyColumn),
		ref.Key,
	).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrRowNotFound
		}
		return 0, fmt.Errorf("read %s: %w", t.column, err)
	}

	next := current + 1
	if _, err := r.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET %s = $1 WHERE %s = $2", t.table, t.column, t.keyColumn),
		next, ref.Key,
	); err != nil {
		return 0, fmt.Errorf("write %s: %w", t.column, err)
	}

	return next, nil
}
