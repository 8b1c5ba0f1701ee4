package database

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-sqltx/database/mapping"
	"github.com/gaborage/go-sqltx/database/retry"
)

func TestApplyRetriesUpToPolicyLimit(t *testing.T) {
	const retries = 2
	deadlock := errors.New("deadlock detected")

	var causes []error
	policy := retry.Func(func(_ context.Context, failCount int, cause error) bool {
		causes = append(causes, cause)
		return failCount <= retries
	})
	db, mock, counter := newMockDatabase(t, WithRetryPolicy(policy))

	for range retries + 1 {
		mock.ExpectBegin()
		mock.ExpectExec("^UPDATE accounts").WillReturnError(deadlock)
		mock.ExpectRollback()
	}

	attempts := 0
	err := Accept(context.Background(), db, func(ctx context.Context, tx *Transaction) error {
		attempts++
		return tx.SQL("UPDATE accounts SET balance = balance - {}", 10).Exec(ctx)
	})

	require.Error(t, err)
	assert.Equal(t, retries+1, attempts)
	assert.Equal(t, int32(retries+1), counter.calls.Load())
	assert.True(t, IsDatabaseError(err))
	assert.Same(t, deadlock, RootCause(err))
	require.Len(t, causes, retries+1)
	for _, cause := range causes {
		assert.Same(t, deadlock, cause, "the policy sees the root cause")
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplySucceedsAfterTransientFailure(t *testing.T) {
	db, mock, _ := newMockDatabase(t, WithRetryPolicy(retry.MaxAttempts(3, retry.Always)))

	mock.ExpectBegin()
	mock.ExpectQuery("^SELECT balance").WillReturnError(errors.New("serialization failure"))
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectQuery("^SELECT balance").WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(90)))
	mock.ExpectCommit()

	balance, err := Query(context.Background(), db, func(ctx context.Context, tx *Transaction) (int64, error) {
		assert.True(t, tx.ReadOnly())
		return Map(tx.SQL("SELECT balance FROM accounts WHERE id = {}", 1).Rows(), mapping.Int64).Get(ctx)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(90), balance)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyDoesNotRetryOtherErrors(t *testing.T) {
	db, mock, counter := newMockDatabase(t, WithRetryPolicy(retry.MaxAttempts(5, retry.Always)))
	insufficient := errors.New("insufficient funds")

	attempts := 0
	_, err := Apply(context.Background(), db, false, func(context.Context, *Transaction) (int, error) {
		attempts++
		return 0, insufficient
	})

	assert.Same(t, insufficient, err)
	assert.Equal(t, 1, attempts)
	assert.Zero(t, counter.calls.Load())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyDoesNotRetryUsageErrors(t *testing.T) {
	db, _, _ := newMockDatabase(t, WithRetryPolicy(retry.MaxAttempts(5, retry.Always)))

	attempts := 0
	err := Accept(context.Background(), db, func(ctx context.Context, tx *Transaction) error {
		attempts++
		db.Begin(ctx)
		return tx.SQL("SELECT 1").Exec(ctx)
	})

	assert.ErrorIs(t, err, ErrNestedTransactionsActive)
	assert.Equal(t, 1, attempts)
}

func TestApplyHookSeesRollbackWhenBodyFails(t *testing.T) {
	db, mock, _ := newMockDatabase(t)
	hooks := &hookRecorder{}
	failure := errors.New("validation failed")

	mock.ExpectBegin()
	mock.ExpectExec("^INSERT INTO orders").WillReturnResult(okResult())
	mock.ExpectRollback()

	err := Accept(context.Background(), db, func(ctx context.Context, tx *Transaction) error {
		if err := tx.AddCompletionHook(hooks.hook); err != nil {
			return err
		}
		if err := tx.SQL("INSERT INTO orders (id) VALUES ({})", 1).Exec(ctx); err != nil {
			return err
		}
		return failure
	})

	assert.Same(t, failure, err)
	assert.Equal(t, []Outcome{RolledBack}, hooks.calls())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyReadOnlyFailureRollsBack(t *testing.T) {
	db, mock, _ := newMockDatabase(t)

	mock.ExpectBegin()
	mock.ExpectQuery("^SELECT").WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow(int64(1)))
	mock.ExpectRollback()

	_, err := Query(context.Background(), db, func(ctx context.Context, tx *Transaction) (int64, error) {
		if _, err := tx.SQL("SELECT v FROM t").Rows().List(ctx); err != nil {
			return 0, err
		}
		return 0, errors.New("unexpected shape")
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyNestsInsideOpenTransaction(t *testing.T) {
	db, mock, counter := newMockDatabase(t, WithRetryPolicy(retry.MaxAttempts(1, retry.Always)))

	mock.ExpectBegin()
	mock.ExpectExec(savepointPattern).WillReturnResult(okResult())
	mock.ExpectExec("^INSERT INTO events").WillReturnError(errors.New("lock timeout"))
	mock.ExpectExec(rollbackToPattern).WillReturnResult(okResult())
	mock.ExpectExec(savepointPattern).WillReturnResult(okResult())
	mock.ExpectExec("^INSERT INTO events").WillReturnResult(okResult())
	mock.ExpectExec(releasePattern).WillReturnResult(okResult())
	mock.ExpectCommit()

	root, rootCtx := db.Begin(context.Background())
	err := Accept(rootCtx, db, func(ctx context.Context, tx *Transaction) error {
		assert.Same(t, root, tx.Parent())
		return tx.SQL("INSERT INTO events (kind) VALUES ({})", "created").Exec(ctx)
	})
	require.NoError(t, err)
	require.NoError(t, root.Commit(rootCtx))

	assert.Equal(t, int32(1), counter.calls.Load())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyCommitsOnlyUnfinishedTransactions(t *testing.T) {
	db, mock, _ := newMockDatabase(t)

	mock.ExpectBegin()
	mock.ExpectExec("^DELETE").WillReturnResult(okResult())
	mock.ExpectRollback()

	err := Accept(context.Background(), db, func(ctx context.Context, tx *Transaction) error {
		if err := tx.SQL("DELETE FROM drafts").Exec(ctx); err != nil {
			return err
		}
		return tx.Rollback(ctx)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyClosesLeakedChildren(t *testing.T) {
	db, mock, _ := newMockDatabase(t)

	mock.ExpectBegin()
	mock.ExpectExec(savepointPattern).WillReturnResult(okResult())
	mock.ExpectExec("^UPDATE").WillReturnResult(okResult())
	mock.ExpectExec(rollbackToPattern).WillReturnResult(okResult())
	mock.ExpectRollback()

	err := Accept(context.Background(), db, func(ctx context.Context, _ *Transaction) error {
		child, childCtx := db.Begin(ctx)
		if err := child.SQL("UPDATE t SET v = 1").Exec(childCtx); err != nil {
			return err
		}
		return errors.New("forgot to finish the child")
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
