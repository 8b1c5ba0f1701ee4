// Package postgresql opens PostgreSQL connection pools through the pgx
// driver and classifies PostgreSQL errors for the retry policy.
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/gaborage/go-sqltx/config"
	"github.com/gaborage/go-sqltx/logger"
)

// SQLSTATE codes of failures that succeed when the transaction is repeated.
const (
	SerializationFailure = "40001"
	DeadlockDetected     = "40P01"
)

const pingTimeout = 10 * time.Second

var (
	openPostgresDB = func(cfg *pgx.ConnConfig) *sql.DB {
		return stdlib.OpenDB(*cfg)
	}
	pingPostgresDB = func(ctx context.Context, db *sql.DB) error {
		return db.PingContext(ctx)
	}
)

// quoteDSN quotes a DSN value according to libpq rules:
// - Returns double single quotes for empty strings (empty value)
// - Escapes backslashes and single quotes
// - Wraps in single quotes when value contains non-alphanumeric/._- characters
func quoteDSN(value string) string {
	if value == "" {
		return "''"
	}

	needsQuoting := strings.ContainsFunc(value, func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') &&
			(r < '0' || r > '9') && r != '.' && r != '_' && r != '-'
	})
	if !needsQuoting {
		return value
	}

	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, "'", `\'`)
	return "'" + escaped + "'"
}

// DSN returns the keyword/value connection string for cfg. An explicit
// ConnectionString wins over the individual fields.
func DSN(cfg *config.DatabaseConfig) string {
	if cfg.ConnectionString != "" {
		return cfg.ConnectionString
	}

	parts := []string{
		"host=" + quoteDSN(cfg.Host),
		fmt.Sprintf("port=%d", cfg.Port),
		"user=" + quoteDSN(cfg.Username),
		"password=" + quoteDSN(cfg.Password),
		"dbname=" + quoteDSN(cfg.Database),
	}
	if cfg.TLS.Mode != "" {
		parts = append(parts, "sslmode="+cfg.TLS.Mode)
	}
	return strings.Join(parts, " ")
}

// Open creates a pgx backed connection pool configured from cfg and checks
// it with a ping. The caller owns the returned pool.
func Open(ctx context.Context, cfg *config.DatabaseConfig, log logger.Logger) (*sql.DB, error) {
	pgxConfig, err := pgx.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse PostgreSQL config: %w", err)
	}
	if schema := cfg.PostgreSQL.Schema; schema != "" {
		if pgxConfig.RuntimeParams == nil {
			pgxConfig.RuntimeParams = map[string]string{}
		}
		pgxConfig.RuntimeParams["search_path"] = schema
	}

	db := openPostgresDB(pgxConfig)
	db.SetMaxOpenConns(int(cfg.Pool.Max.Connections))
	db.SetMaxIdleConns(int(cfg.Pool.Idle.Connections))
	db.SetConnMaxIdleTime(cfg.Pool.Idle.Time)
	db.SetConnMaxLifetime(cfg.Pool.Lifetime.Max)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := pingPostgresDB(pingCtx, db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to close PostgreSQL database connection after ping failure")
		}
		return nil, fmt.Errorf("failed to ping PostgreSQL database: %w", err)
	}

	log.Info().
		Str("host", pgxConfig.Host).
		Int("port", int(pgxConfig.Port)).
		Str("database", pgxConfig.Database).
		Msg("Connected to PostgreSQL database")

	return db, nil
}

// IsRetryable reports whether err is a serialization failure or a detected
// deadlock.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == SerializationFailure || pgErr.Code == DeadlockDetected
}
