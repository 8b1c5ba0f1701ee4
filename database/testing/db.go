// Package testing provides helpers for unit testing code that runs its
// statements through package database.
//
// TestDB is a Database backed by sqlmock. Expectations are declared on its
// Mock in the order the code under test issues them:
//
//	db := dbtesting.NewTestDB(t)
//	db.Mock.ExpectBegin()
//	db.Mock.ExpectExec("^INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
//	db.Mock.ExpectCommit()
//
//	err := database.Accept(ctx, db.Database, createUser)
//	require.NoError(t, err)
//	db.AssertExpectations(t)
//
// For behaviour that depends on a real server see testing/containers.
package testing

import (
	"context"
	"database/sql"
	"sync/atomic"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/gaborage/go-sqltx/database"
	"github.com/gaborage/go-sqltx/logger"
)

// TestDB is a Database whose connections come from a sqlmock pool.
type TestDB struct {
	*database.Database

	// Mock receives the expectations for the statements the Database issues.
	Mock sqlmock.Sqlmock

	pool        *sql.DB
	connections atomic.Int32
}

// NewTestDB creates a TestDB with logging disabled. opts are applied after
// the defaults, so a dialect or retry policy can be swapped in. The pool is
// closed when the test finishes.
func NewTestDB(t testing.TB, opts ...database.Option) *TestDB {
	t.Helper()

	pool, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create sqlmock pool: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })

	db := &TestDB{Mock: mock, pool: pool}
	defaults := []database.Option{
		database.WithLogger(logger.New("disabled", false)),
	}
	db.Database = database.New(db.connect, append(defaults, opts...)...)
	return db
}

func (db *TestDB) connect(ctx context.Context) (*sql.Conn, error) {
	db.connections.Add(1)
	return db.pool.Conn(ctx)
}

// Connections returns how many physical connections were requested.
func (db *TestDB) Connections() int {
	return int(db.connections.Load())
}

// AssertExpectations fails the test when a declared expectation was not met.
func (db *TestDB) AssertExpectations(t testing.TB) {
	t.Helper()
	if err := db.Mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet database expectations: %v", err)
	}
}
