// Package tracking provides performance tracking for database operations.
// It implements statement tracking, slow statement detection, transaction
// lifecycle tracking and structured logging for every supported vendor.
package tracking

import (
	"time"

	"github.com/gaborage/go-sqltx/config"
	"github.com/gaborage/go-sqltx/logger"
)

const (
	// DefaultSlowQueryThreshold defines the default threshold for slow query detection
	DefaultSlowQueryThreshold = 200 * time.Millisecond
	// DefaultMaxQueryLength defines the default maximum query length for logging
	DefaultMaxQueryLength = 1000
)

// Settings holds configuration for database statement tracking and logging.
type Settings struct {
	slowQueryEnabled   bool
	slowQueryThreshold time.Duration
	maxQueryLength     int
	logQueryParameters bool
}

// Context groups tracking-related parameters to reduce function parameter count.
// This context is passed to tracking functions to provide consistent access to
// logger, database vendor information, and tracking settings.
type Context struct {
	Logger   logger.Logger
	Vendor   string
	Settings Settings
}

// NewSettings creates Settings populated from cfg. Non-positive numeric
// fields fall back to DefaultSlowQueryThreshold and DefaultMaxQueryLength.
func NewSettings(cfg config.QueryConfig) Settings {
	settings := Settings{
		slowQueryEnabled:   cfg.Slow.Enabled,
		slowQueryThreshold: DefaultSlowQueryThreshold,
		maxQueryLength:     DefaultMaxQueryLength,
		logQueryParameters: cfg.Log.Parameters,
	}

	if cfg.Slow.Threshold > 0 {
		settings.slowQueryThreshold = cfg.Slow.Threshold
	}
	if cfg.Log.MaxLength > 0 {
		settings.maxQueryLength = cfg.Log.MaxLength
	}

	return settings
}

// DefaultSettings returns the settings used when no query configuration is
// supplied: slow statement detection on, parameters not logged.
func DefaultSettings() Settings {
	return NewSettings(config.QueryConfig{Slow: config.SlowQueryConfig{Enabled: true}})
}

// SlowQueryEnabled reports whether slow statements are logged at warn level
func (s Settings) SlowQueryEnabled() bool {
	return s.slowQueryEnabled
}

// SlowQueryThreshold returns the threshold for slow query detection
func (s Settings) SlowQueryThreshold() time.Duration {
	return s.slowQueryThreshold
}

// MaxQueryLength returns the maximum query length for logging
func (s Settings) MaxQueryLength() int {
	return s.maxQueryLength
}

// LogQueryParameters returns whether query parameters should be logged
func (s Settings) LogQueryParameters() bool {
	return s.logQueryParameters
}
