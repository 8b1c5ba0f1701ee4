//go:build integration

package containers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gaborage/go-sqltx/config"
	"github.com/gaborage/go-sqltx/logger"
)

// PostgreSQLContainerConfig holds configuration for PostgreSQL test container
type PostgreSQLContainerConfig struct {
	// ImageTag specifies the PostgreSQL version (default: "17-alpine")
	ImageTag string
	Username string
	Password string
	Database string
	// StartupTimeout for container initialization (default: 60 seconds)
	StartupTimeout time.Duration
}

// DefaultPostgreSQLConfig returns the settings used when StartPostgreSQL gets
// a nil config.
func DefaultPostgreSQLConfig() *PostgreSQLContainerConfig {
	return &PostgreSQLContainerConfig{
		ImageTag:       "17-alpine",
		Username:       "testuser",
		Password:       "testpass",
		Database:       "testdb",
		StartupTimeout: 60 * time.Second,
	}
}

// PostgreSQLContainer is a running PostgreSQL server for integration tests.
type PostgreSQLContainer struct {
	container *postgres.PostgresContainer
	cfg       *PostgreSQLContainerConfig
	host      string
	port      int
}

// StartPostgreSQL starts a PostgreSQL container. The test is skipped when
// Docker is not available.
func StartPostgreSQL(ctx context.Context, t *testing.T, cfg *PostgreSQLContainerConfig) (*PostgreSQLContainer, error) {
	t.Helper()

	if cfg == nil {
		cfg = DefaultPostgreSQLConfig()
	}
	if !isDockerAvailable(ctx) {
		t.Skip("Docker is not available - skipping integration test")
		return nil, nil
	}

	pgContainer, err := postgres.Run(ctx,
		fmt.Sprintf("postgres:%s", cfg.ImageTag),
		postgres.WithDatabase(cfg.Database),
		postgres.WithUsername(cfg.Username),
		postgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2). // Postgres restarts after initial setup
				WithStartupTimeout(cfg.StartupTimeout),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start PostgreSQL container: %w", err)
	}

	host, err := pgContainer.Host(ctx)
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to get PostgreSQL container host: %w", err)
	}
	mappedPort, err := pgContainer.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to get PostgreSQL container port: %w", err)
	}

	c := &PostgreSQLContainer{container: pgContainer, cfg: cfg, host: host, port: mappedPort.Int()}
	if connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable"); err == nil {
		masked := logger.NewSensitiveDataFilter(nil).FilterString("dsn", connStr)
		t.Logf("PostgreSQL container started at %s", masked)
	}
	return c, nil
}

// MustStartPostgreSQL is StartPostgreSQL failing the test on error. The
// container is terminated when the test finishes.
func MustStartPostgreSQL(ctx context.Context, t *testing.T, cfg *PostgreSQLContainerConfig) *PostgreSQLContainer {
	t.Helper()

	c, err := StartPostgreSQL(ctx, t, cfg)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := c.container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate PostgreSQL container: %v", err)
		}
	})
	return c
}

// Config returns a complete configuration pointing at the container.
func (c *PostgreSQLContainer) Config() *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{
			Type:     "postgresql",
			Host:     c.host,
			Port:     c.port,
			Database: c.cfg.Database,
			Username: c.cfg.Username,
			Password: c.cfg.Password,
			TLS:      config.TLSConfig{Mode: "disable"},
			Pool: config.PoolConfig{
				Max:      config.PoolMaxConfig{Connections: 10},
				Idle:     config.PoolIdleConfig{Connections: 2, Time: time.Minute},
				Lifetime: config.LifetimeConfig{Max: time.Hour},
			},
		},
		Retry: config.RetryConfig{
			Enabled:  true,
			Attempts: 3,
		},
	}
}
