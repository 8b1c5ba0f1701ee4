package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"sync"
	"sync/atomic"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-sqltx/logger"
	testconsts "github.com/gaborage/go-sqltx/testing"
)

const (
	savepointPattern  = `^SAVEPOINT sp_\d+$`
	releasePattern    = `^RELEASE SAVEPOINT sp_\d+$`
	rollbackToPattern = `^ROLLBACK TO SAVEPOINT sp_\d+$`
)

// newTestLogger creates a logger for database package tests.
func newTestLogger() logger.Logger {
	return logger.New(testconsts.TestLoggerLevelDisabled, false)
}

// connCounter is a ConnectionFactory counting how often a physical
// connection was requested.
type connCounter struct {
	pool  *sql.DB
	calls atomic.Int32
}

func (c *connCounter) factory(ctx context.Context) (*sql.Conn, error) {
	c.calls.Add(1)
	return c.pool.Conn(ctx)
}

// newMockDatabase returns a Database backed by sqlmock together with the
// mock and the connection counter.
func newMockDatabase(t *testing.T, opts ...Option) (*Database, sqlmock.Sqlmock, *connCounter) {
	t.Helper()

	pool, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	counter := &connCounter{pool: pool}
	opts = append([]Option{WithLogger(newTestLogger())}, opts...)
	return New(counter.factory, opts...), mock, counter
}

// hookRecorder collects completion hook invocations.
type hookRecorder struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (r *hookRecorder) hook(_ context.Context, outcome Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
	return nil
}

func (r *hookRecorder) calls() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Outcome(nil), r.outcomes...)
}

func okResult() driver.Result {
	return sqlmock.NewResult(0, 0)
}
