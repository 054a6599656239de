package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"symptomlog/internal/core"
)

// TxFn is a unit of work executed inside a database transaction.
type TxFn func(ctx context.Context, tx *sql.Tx) error

// RunInTransaction begins a transaction, runs fn and commits. Any error from
// fn, and any panic, rolls the transaction back.
func RunInTransaction(ctx context.Context, db *sql.DB, fn TxFn) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to begin transaction", "error", err)
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				slog.ErrorContext(ctx, "Failed to roll back transaction after panic",
					"error", rbErr, "panic", p)
			}
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Failed to roll back transaction",
				"rollback_error", rbErr, "original_error", err)
			return fmt.Errorf("roll back transaction: %v (original error: %w)", rbErr, err)
		}
		slog.DebugContext(ctx, "Rolled back transaction", "error", err)
		return err
	}

	if err := tx.Commit(); err != nil {
		slog.ErrorContext(ctx, "Failed to commit transaction", "error", err)
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// wrapStorage leaves validation errors alone and turns everything else into a
// StorageError.
func wrapStorage(op string, err error) error {
	if err == nil || core.IsValidationError(err) {
		return err
	}
	return core.NewStorageError(op, err)
}
