package config

import (
	"time"

	"github.com/knadh/koanf/v2"
)

// Config represents the overall library configuration structure.
// It includes sections for the default database connection, additional named
// databases, the retry policy of the transactional executor, logging
// preferences and the OpenTelemetry setup.
// The embedded koanf.Koanf instance allows for flexible access to
// additional custom configurations not explicitly defined in the struct.
type Config struct {
	Database DatabaseConfig `koanf:"database" json:"database" yaml:"database" toml:"database" mapstructure:"database"`

	// Databases holds additional databases served by database.Manager, by key.
	Databases map[string]DatabaseConfig `koanf:"databases" json:"databases" yaml:"databases" toml:"databases" mapstructure:"databases" validate:"dive"`

	Retry RetryConfig `koanf:"retry" json:"retry" yaml:"retry" toml:"retry" mapstructure:"retry"`
	Log   LogConfig   `koanf:"log" json:"log" yaml:"log" toml:"log" mapstructure:"log"`

	// Observability configures the OpenTelemetry providers receiving the
	// database spans and metrics.
	Observability ObservabilityConfig `koanf:"observability" json:"observability" yaml:"observability" toml:"observability" mapstructure:"observability"`

	// k holds the underlying Koanf instance for flexible access to custom configurations
	k *koanf.Koanf `json:"-" yaml:"-" toml:"-" mapstructure:"-"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Type     string `koanf:"type" json:"type" yaml:"type" toml:"type" mapstructure:"type" validate:"required,oneof=postgresql oracle"`
	Host     string `koanf:"host" json:"host" yaml:"host" toml:"host" mapstructure:"host" validate:"required_without=ConnectionString"`
	Port     int    `koanf:"port" json:"port" yaml:"port" toml:"port" mapstructure:"port" validate:"gte=0,lte=65535"`
	Database string `koanf:"database" json:"database" yaml:"database" toml:"database" mapstructure:"database" validate:"required_without=ConnectionString"`
	Username string `koanf:"username" json:"username" yaml:"username" toml:"username" mapstructure:"username" validate:"required_without=ConnectionString"`
	Password string `koanf:"password" json:"password" yaml:"password" toml:"password" mapstructure:"password"`

	ConnectionString string `koanf:"connectionstring" json:"connectionstring" yaml:"connectionstring" toml:"connectionstring" mapstructure:"connectionstring"`

	Pool  PoolConfig  `koanf:"pool" json:"pool" yaml:"pool" toml:"pool" mapstructure:"pool"`
	Query QueryConfig `koanf:"query" json:"query" yaml:"query" toml:"query" mapstructure:"query"`
	TLS   TLSConfig   `koanf:"tls" json:"tls" yaml:"tls" toml:"tls" mapstructure:"tls"`

	PostgreSQL PostgreSQLConfig `koanf:"postgresql" json:"postgresql" yaml:"postgresql" toml:"postgresql" mapstructure:"postgresql"`
	Oracle     OracleConfig     `koanf:"oracle" json:"oracle" yaml:"oracle" toml:"oracle" mapstructure:"oracle"`
}

// PoolConfig holds connection pool settings.
// Production-safe defaults are applied automatically:
//   - Max.Connections: 25 (maximum open connections)
//   - Idle.Connections: 2 (minimum warm connections)
//   - Idle.Time: 5m (close idle connections before NAT/firewall timeout)
//   - Lifetime.Max: 30m (periodic connection recycling)
type PoolConfig struct {
	Max      PoolMaxConfig  `koanf:"max" json:"max" yaml:"max" toml:"max" mapstructure:"max"`
	Idle     PoolIdleConfig `koanf:"idle" json:"idle" yaml:"idle" toml:"idle" mapstructure:"idle"`
	Lifetime LifetimeConfig `koanf:"lifetime" json:"lifetime" yaml:"lifetime" toml:"lifetime" mapstructure:"lifetime"`
}

// PoolMaxConfig holds maximum connections settings.
type PoolMaxConfig struct {
	// Connections is the maximum number of open connections to the database.
	// Every root transaction holds one connection until it finishes.
	Connections int32 `koanf:"connections" json:"connections" yaml:"connections" toml:"connections" mapstructure:"connections" validate:"gt=0"`
}

// PoolIdleConfig holds idle connections settings.
type PoolIdleConfig struct {
	// Connections is the number of idle connections kept in the pool.
	Connections int32 `koanf:"connections" json:"connections" yaml:"connections" toml:"connections" mapstructure:"connections" validate:"gte=0"`

	// Time is the maximum duration an idle connection may remain unused before closing.
	Time time.Duration `koanf:"time" json:"time" yaml:"time" toml:"time" mapstructure:"time" validate:"gte=0"`
}

// LifetimeConfig holds maximum lifetime settings for connections.
type LifetimeConfig struct {
	// Max is the maximum duration a connection may be reused before closing.
	// Set to 0 for no lifetime limit.
	Max time.Duration `koanf:"max" json:"max" yaml:"max" toml:"max" mapstructure:"max" validate:"gte=0"`
}

// QueryConfig holds settings related to statement logging and slow statement detection.
type QueryConfig struct {
	Slow SlowQueryConfig `koanf:"slow" json:"slow" yaml:"slow" toml:"slow" mapstructure:"slow"`
	Log  QueryLogConfig  `koanf:"log" json:"log" yaml:"log" toml:"log" mapstructure:"log"`
}

// SlowQueryConfig holds settings for slow statement detection.
type SlowQueryConfig struct {
	Threshold time.Duration `koanf:"threshold" json:"threshold" yaml:"threshold" toml:"threshold" mapstructure:"threshold" validate:"gte=0"`
	Enabled   bool          `koanf:"enabled" json:"enabled" yaml:"enabled" toml:"enabled" mapstructure:"enabled"`
}

// QueryLogConfig holds settings for statement logging.
type QueryLogConfig struct {
	Parameters bool `koanf:"parameters" json:"parameters" yaml:"parameters" toml:"parameters" mapstructure:"parameters"`
	MaxLength  int  `koanf:"max" json:"max" yaml:"max" toml:"max" mapstructure:"max" validate:"gte=0"`
}

// TLSConfig holds TLS/SSL settings for database connections.
type TLSConfig struct {
	Mode string `koanf:"mode" json:"mode" yaml:"mode" toml:"mode" mapstructure:"mode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
}

// PostgreSQLConfig holds PostgreSQL-specific database settings.
type PostgreSQLConfig struct {
	Schema string `koanf:"schema" json:"schema" yaml:"schema" toml:"schema" mapstructure:"schema"`
}

// OracleConfig holds Oracle-specific database settings.
type OracleConfig struct {
	Service ServiceConfig `koanf:"service" json:"service" yaml:"service" toml:"service" mapstructure:"service"`
}

// ServiceConfig holds Oracle service connection settings.
type ServiceConfig struct {
	Name string `koanf:"name" json:"name" yaml:"name" toml:"name" mapstructure:"name"`
	SID  string `koanf:"sid" json:"sid" yaml:"sid" toml:"sid" mapstructure:"sid"`
}

// RetryConfig holds the retry policy of the transactional executor.
// Defaults:
//   - Enabled: true
//   - Attempts: 3 (retries after the first attempt)
//   - Backoff.Initial: 50ms, Backoff.Max: 2s, Backoff.Multiplier: 2, Backoff.Jitter: 0.5
//   - Budget.Rate: 0 (unlimited)
type RetryConfig struct {
	Enabled  bool          `koanf:"enabled" json:"enabled" yaml:"enabled" toml:"enabled" mapstructure:"enabled"`
	Attempts int           `koanf:"attempts" json:"attempts" yaml:"attempts" toml:"attempts" mapstructure:"attempts" validate:"gte=0"`
	Backoff  BackoffConfig `koanf:"backoff" json:"backoff" yaml:"backoff" toml:"backoff" mapstructure:"backoff"`
	Budget   BudgetConfig  `koanf:"budget" json:"budget" yaml:"budget" toml:"budget" mapstructure:"budget"`
}

// BackoffConfig holds the exponential delay applied between retries.
type BackoffConfig struct {
	Initial    time.Duration `koanf:"initial" json:"initial" yaml:"initial" toml:"initial" mapstructure:"initial" validate:"gte=0"`
	Max        time.Duration `koanf:"max" json:"max" yaml:"max" toml:"max" mapstructure:"max" validate:"gte=0"`
	Multiplier float64       `koanf:"multiplier" json:"multiplier" yaml:"multiplier" toml:"multiplier" mapstructure:"multiplier" validate:"gte=1"`
	Jitter     float64       `koanf:"jitter" json:"jitter" yaml:"jitter" toml:"jitter" mapstructure:"jitter" validate:"gte=0,lte=1"`
}

// BudgetConfig caps the process wide retry rate with a token bucket.
// A zero Rate disables the budget.
type BudgetConfig struct {
	Rate  float64 `koanf:"rate" json:"rate" yaml:"rate" toml:"rate" mapstructure:"rate" validate:"gte=0"`
	Burst int     `koanf:"burst" json:"burst" yaml:"burst" toml:"burst" mapstructure:"burst" validate:"gte=0"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" toml:"level" mapstructure:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty" toml:"pretty" mapstructure:"pretty"`
}

// ObservabilityConfig holds the OpenTelemetry SDK settings.
// Defaults:
//   - Enabled: false (spans and metrics go to the no-op global providers)
//   - Service.Name: "go-sqltx"
//   - Trace.SampleRate: 1.0
type ObservabilityConfig struct {
	Enabled bool                       `koanf:"enabled" json:"enabled" yaml:"enabled" toml:"enabled" mapstructure:"enabled"`
	Service ObservabilityServiceConfig `koanf:"service" json:"service" yaml:"service" toml:"service" mapstructure:"service"`
	Trace   TraceConfig                `koanf:"trace" json:"trace" yaml:"trace" toml:"trace" mapstructure:"trace"`
}

// ObservabilityServiceConfig identifies the service in exported telemetry.
type ObservabilityServiceConfig struct {
	Name    string `koanf:"name" json:"name" yaml:"name" toml:"name" mapstructure:"name"`
	Version string `koanf:"version" json:"version" yaml:"version" toml:"version" mapstructure:"version"`
}

// TraceConfig holds span sampling settings.
type TraceConfig struct {
	// SampleRate is the fraction of root spans recorded.
	SampleRate float64 `koanf:"samplerate" json:"samplerate" yaml:"samplerate" toml:"samplerate" mapstructure:"samplerate" validate:"gte=0,lte=1"`
}
