// Package oracle opens Oracle connection pools through the go-ora driver
// and classifies Oracle errors for the retry policy.
package oracle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	go_ora "github.com/sijms/go-ora/v2"
	"github.com/sijms/go-ora/v2/network"

	"github.com/gaborage/go-sqltx/config"
	"github.com/gaborage/go-sqltx/logger"
)

// Oracle error numbers of failures that succeed when the transaction is
// repeated.
const (
	// ORA-08177: can't serialize access for this transaction
	CannotSerialize = 8177
	// ORA-00060: deadlock detected while waiting for resource
	DeadlockDetected = 60
)

const pingTimeout = 10 * time.Second

var (
	openOracleDB = func(dsn string) (*sql.DB, error) {
		return sql.Open("oracle", dsn)
	}
	pingOracleDB = func(ctx context.Context, db *sql.DB) error {
		return db.PingContext(ctx)
	}
)

// DSN returns the go-ora URL for cfg. An explicit ConnectionString wins;
// otherwise the service name, then the SID, then the database name selects
// the target.
func DSN(cfg *config.DatabaseConfig) string {
	if cfg.ConnectionString != "" {
		return cfg.ConnectionString
	}
	switch {
	case cfg.Oracle.Service.Name != "":
		return go_ora.BuildUrl(cfg.Host, cfg.Port, cfg.Oracle.Service.Name, cfg.Username, cfg.Password, nil)
	case cfg.Oracle.Service.SID != "":
		return go_ora.BuildUrl(cfg.Host, cfg.Port, "", cfg.Username, cfg.Password, map[string]string{"SID": cfg.Oracle.Service.SID})
	default:
		return go_ora.BuildUrl(cfg.Host, cfg.Port, cfg.Database, cfg.Username, cfg.Password, nil)
	}
}

// Open creates a go-ora connection pool configured from cfg and checks it
// with a ping. The caller owns the returned pool.
func Open(ctx context.Context, cfg *config.DatabaseConfig, log logger.Logger) (*sql.DB, error) {
	db, err := openOracleDB(DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open Oracle connection: %w", err)
	}

	db.SetMaxOpenConns(int(cfg.Pool.Max.Connections))
	db.SetMaxIdleConns(int(cfg.Pool.Idle.Connections))
	db.SetConnMaxIdleTime(cfg.Pool.Idle.Time)
	db.SetConnMaxLifetime(cfg.Pool.Lifetime.Max)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := pingOracleDB(pingCtx, db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to close Oracle database connection after ping failure")
		}
		return nil, fmt.Errorf("failed to ping Oracle database: %w", err)
	}

	ev := log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port)
	switch {
	case cfg.Oracle.Service.Name != "":
		ev = ev.Str("service_name", cfg.Oracle.Service.Name)
	case cfg.Oracle.Service.SID != "":
		ev = ev.Str("sid", cfg.Oracle.Service.SID)
	default:
		ev = ev.Str("database", cfg.Database)
	}
	ev.Msg("Connected to Oracle database")

	return db, nil
}

// IsRetryable reports whether err is a serialization failure or a detected
// deadlock.
func IsRetryable(err error) bool {
	var oraErr *network.OracleError
	if !errors.As(err, &oraErr) {
		return false
	}
	return oraErr.ErrCode == CannotSerialize || oraErr.ErrCode == DeadlockDetected
}
