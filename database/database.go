// Package database executes parameterized SQL inside nested transactions.
//
// A Database hands out transactions. The current transaction travels in a
// context.Context: beginning a transaction with a context that already
// carries an open transaction of the same Database nests the new one under
// it, sharing the physical connection through a savepoint. Statements are
// built from templates (see package template), executed against the
// transaction's connection and read through lazy row sources. Apply, Query
// and Accept wrap the whole lifecycle in a retry loop.
package database

import (
	"context"
	"database/sql"
	"reflect"

	"github.com/gaborage/go-sqltx/config"
	"github.com/gaborage/go-sqltx/database/internal/tracking"
	"github.com/gaborage/go-sqltx/database/retry"
	"github.com/gaborage/go-sqltx/database/types"
	"github.com/gaborage/go-sqltx/logger"
)

// ConnectionFactory supplies the physical connection of a root transaction.
// It is invoked lazily, at most once per root transaction, and the
// connection is closed when the root transaction finishes.
type ConnectionFactory func(ctx context.Context) (*sql.Conn, error)

// FromDB returns a ConnectionFactory drawing connections from db's pool.
func FromDB(db *sql.DB) ConnectionFactory {
	return db.Conn
}

// Database is the entry point for transactions. It is safe for concurrent
// use; the transactions it creates are not.
type Database struct {
	factory  ConnectionFactory
	dialect  Dialect
	policy   retry.Policy
	registry *types.Registry
	log      logger.Logger
	settings tracking.Settings
	tracking *tracking.Context
}

// Option configures a Database.
type Option func(*Database)

// WithDialect sets the SQL dialect. The default is GenericDialect.
func WithDialect(d Dialect) Option {
	return func(db *Database) {
		if d != nil {
			db.dialect = d
		}
	}
}

// WithRetryPolicy sets the policy consulted by Apply. The default never retries.
func WithRetryPolicy(p retry.Policy) Option {
	return func(db *Database) {
		if p != nil {
			db.policy = p
		}
	}
}

// WithTypeConverter registers a converter for values of type t, used when
// binding statement parameters and when scanning typed columns.
func WithTypeConverter(t reflect.Type, c types.Converter) Option {
	return func(db *Database) {
		db.registry.Register(t, c)
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logger.Logger) Option {
	return func(db *Database) {
		if l != nil {
			db.log = l
		}
	}
}

// WithTracking configures statement logging and slow statement detection.
func WithTracking(cfg config.QueryConfig) Option {
	return func(db *Database) {
		db.settings = tracking.NewSettings(cfg)
	}
}

// New creates a Database whose root transactions obtain their connection
// from factory.
func New(factory ConnectionFactory, opts ...Option) *Database {
	db := &Database{
		factory:  factory,
		dialect:  GenericDialect{},
		policy:   retry.None,
		registry: types.NewRegistry(),
		log:      logger.Nop(),
		settings: tracking.DefaultSettings(),
	}
	for _, opt := range opts {
		opt(db)
	}
	db.tracking = &tracking.Context{
		Logger:   db.log,
		Vendor:   db.dialect.Name(),
		Settings: db.settings,
	}
	return db
}

// Dialect returns the configured dialect.
func (db *Database) Dialect() Dialect {
	return db.dialect
}

// Registry returns the type converter registry.
func (db *Database) Registry() *types.Registry {
	return db.registry
}

// Begin starts a read/write transaction. See BeginTx.
func (db *Database) Begin(ctx context.Context) (*Transaction, context.Context) {
	return db.BeginTx(ctx, false)
}

// BeginReadOnly starts a read-only transaction. See BeginTx.
func (db *Database) BeginReadOnly(ctx context.Context) (*Transaction, context.Context) {
	return db.BeginTx(ctx, true)
}

// BeginTx starts a transaction. When ctx carries an open transaction of db
// the new transaction is nested under it; otherwise it is a root
// transaction. The returned context carries the new transaction and must be
// passed to everything running inside it. No I/O happens until the
// transaction is first used.
func (db *Database) BeginTx(ctx context.Context, readOnly bool) (*Transaction, context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	if c := chainFrom(ctx, db); c != nil && c.current() != nil {
		return c.push(readOnly), ctx
	}

	c := &chain{db: db}
	tx := c.push(readOnly)
	return tx, context.WithValue(ctx, chainKey{db: db}, c)
}

// Current returns the innermost open transaction of db carried by ctx.
func (db *Database) Current(ctx context.Context) (*Transaction, bool) {
	c := chainFrom(ctx, db)
	if c == nil {
		return nil, false
	}
	tx := c.current()
	return tx, tx != nil
}
