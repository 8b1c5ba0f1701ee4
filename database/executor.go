package database

import (
	"context"
	"errors"

	"github.com/gaborage/go-sqltx/database/internal/tracking"
)

// Apply runs op in a transaction of db and commits it, retrying according
// to db's retry policy.
//
// Each attempt begins a new transaction, nested when ctx already carries one
// of db. The attempt's transaction is always finished before the retry
// decision, so no state survives between attempts. Only failures that are or
// wrap an *Error are offered to the policy, with their root cause and a fail
// count starting at 1; every other error, and the last *Error the policy
// declines, is returned unchanged.
func Apply[R any](ctx context.Context, db *Database, readOnly bool, op func(context.Context, *Transaction) (R, error)) (R, error) {
	for failCount := 1; ; failCount++ {
		result, err := attempt(ctx, db, readOnly, op)
		if err == nil {
			return result, nil
		}

		var dbErr *Error
		if !errors.As(err, &dbErr) {
			return result, err
		}
		cause := RootCause(dbErr)
		if !db.policy.Retry(ctx, failCount, cause) {
			return result, err
		}
		tracking.TrackRetry(ctx, db.tracking, failCount, cause)
	}
}

func attempt[R any](ctx context.Context, db *Database, readOnly bool, op func(context.Context, *Transaction) (R, error)) (result R, err error) {
	tx, txCtx := db.BeginTx(ctx, readOnly)
	defer func() {
		if cerr := tx.abort(txCtx); cerr != nil {
			db.log.WithContext(ctx).Debug().
				Err(cerr).
				Str("tx", tx.String()).
				Msg("Failed to roll back transaction after error")
		}
	}()

	result, err = op(txCtx, tx)
	if err != nil {
		var zero R
		return zero, err
	}
	if !tx.Finished() {
		if err = tx.Commit(txCtx); err != nil {
			var zero R
			return zero, err
		}
	}
	return result, nil
}

// Query runs op in a read-only transaction. See Apply.
func Query[R any](ctx context.Context, db *Database, op func(context.Context, *Transaction) (R, error)) (R, error) {
	return Apply(ctx, db, true, op)
}

// Accept runs op in a read/write transaction. See Apply.
func Accept(ctx context.Context, db *Database, op func(context.Context, *Transaction) error) error {
	_, err := Apply(ctx, db, false, func(ctx context.Context, tx *Transaction) (struct{}, error) {
		return struct{}{}, op(ctx, tx)
	})
	return err
}
