package database

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/gaborage/go-sqltx/config"
	"github.com/gaborage/go-sqltx/database/internal/tracking"
	"github.com/gaborage/go-sqltx/database/oracle"
	"github.com/gaborage/go-sqltx/database/postgresql"
	"github.com/gaborage/go-sqltx/database/retry"
	"github.com/gaborage/go-sqltx/logger"
)

// vendor binds a supported database type to its pool opener and its
// transient error classifier.
type vendor struct {
	open     func(context.Context, *config.DatabaseConfig, logger.Logger) (*sql.DB, error)
	classify retry.Classifier
}

var vendors = map[string]vendor{
	PostgreSQL: {open: postgresql.Open, classify: postgresql.IsRetryable},
	Oracle:     {open: oracle.Open, classify: oracle.IsRetryable},
}

// Handle owns the connection pool behind a Database opened with Open.
type Handle struct {
	*Database

	pool       *sql.DB
	unregister func()
}

// Pool returns the underlying connection pool.
func (h *Handle) Pool() *sql.DB {
	return h.pool
}

// Close stops the pool metrics and closes the pool. Transactions still open
// fail on their next use.
func (h *Handle) Close() error {
	h.unregister()
	return h.pool.Close()
}

// Open connects to the database described by cfg and returns a Database
// using the vendor's dialect, the configured retry policy with the vendor's
// transient error classifier, and the configured statement tracking.
func Open(ctx context.Context, cfg *config.Config, log logger.Logger, opts ...Option) (*Handle, error) {
	if err := ValidateDatabaseType(cfg.Database.Type); err != nil {
		return nil, err
	}
	v := vendors[cfg.Database.Type]

	pool, err := v.open(ctx, &cfg.Database, log)
	if err != nil {
		return nil, err
	}
	return newHandle(pool, cfg, v, log, opts...), nil
}

func newHandle(pool *sql.DB, cfg *config.Config, v vendor, log logger.Logger, opts ...Option) *Handle {
	base := []Option{
		WithDialect(DialectFor(cfg.Database.Type)),
		WithRetryPolicy(retry.FromConfig(cfg.Retry, v.classify)),
		WithLogger(log),
		WithTracking(cfg.Database.Query),
	}
	return &Handle{
		Database:   New(FromDB(pool), append(base, opts...)...),
		pool:       pool,
		unregister: tracking.RegisterConnectionPoolMetrics(pool.Stats, cfg.Database.Type),
	}
}

// ValidateDatabaseType returns nil if dbType is one of the supported database types.
// If dbType is not supported, it returns an error describing the invalid value and listing the supported types.
func ValidateDatabaseType(dbType string) error {
	if !slices.Contains(GetSupportedDatabaseTypes(), dbType) {
		return fmt.Errorf("unsupported database type: %s (supported: %v)", dbType, GetSupportedDatabaseTypes())
	}
	return nil
}

// GetSupportedDatabaseTypes returns a list of supported database types
func GetSupportedDatabaseTypes() []string {
	return []string{PostgreSQL, Oracle}
}
