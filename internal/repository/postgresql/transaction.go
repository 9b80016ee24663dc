package postgresql

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/compliance"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

// WithTransaction executes fn inside a database transaction
func WithTransaction(ctx context.Context, db *database.DB, fn func(tx pgx.Tx) error) error {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				slog.Error("rollback error during panic recovery", "error", rbErr)
			}
			panic(p)
		}
	}()

	// Execute function
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback error: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// GetQuerier returns either transaction or pool
// Used in repositories to support both transactional and non-transactional operations
func GetQuerier(ctx context.Context, db *database.DB) database.Querier {
	if tx, ok := ctx.Value("tx").(pgx.Tx); ok {
		return tx
	}
	return db.Pool
}

type employeeLocker struct {
	db *database.DB
}

// NewEmployeeLocker serialises pipeline passes per employee with a
// transaction-scoped advisory lock. Every repository call made by fn joins
// the transaction through the ctx.
func NewEmployeeLocker(db *database.DB) compliance.Locker {
	return &employeeLocker{db: db}
}

// WithEmployeeLock implements compliance.Locker.
func (l *employeeLocker) WithEmployeeLock(ctx context.Context, employeeID string, fn func(ctx context.Context) error) error {
	// Advisory locks are re-entrant within a session, so a caller already
	// inside a transaction just takes the lock again.
	if tx, ok := ctx.Value("tx").(pgx.Tx); ok {
		if err := advisoryLock(ctx, tx, employeeID); err != nil {
			return err
		}
		return fn(ctx)
	}

	return WithTransaction(ctx, l.db, func(tx pgx.Tx) error {
		if err := advisoryLock(ctx, tx, employeeID); err != nil {
			return err
		}
		return fn(context.WithValue(ctx, "tx", tx))
	})
}

func advisoryLock(ctx context.Context, tx pgx.Tx, employeeID string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, employeeID); err != nil {
		return fmt.Errorf("failed to lock employee %s: %w", employeeID, err)
	}
	return nil
}
