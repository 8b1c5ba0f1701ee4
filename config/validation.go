package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Database type constants
const (
	PostgreSQL = "postgresql"
	Oracle     = "oracle"
)

// Default ports applied when a host is configured without one.
const (
	DefaultPostgreSQLPort = 5432
	DefaultOraclePort     = 1521
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report koanf paths instead of Go field names
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("koanf"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks cfg against its struct tags and the cross field rules,
// applying vendor defaults and inherited pool settings in place. The first failure is returned as a
// *ConfigError.
func Validate(cfg *Config) error {
	inheritDefaults(cfg)

	if err := structValidator().Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return newFieldError(validationErrors[0])
		}
		return err
	}

	if err := validateDatabase(&cfg.Database); err != nil {
		return err
	}
	for key, db := range cfg.Databases {
		if err := validateDatabase(&db); err != nil {
			err.Field = "databases." + key + strings.TrimPrefix(err.Field, "database")
			return err
		}
		cfg.Databases[key] = db
	}

	if cfg.Observability.Enabled && cfg.Observability.Service.Name == "" {
		const field = "observability.service.name"
		return NewMissingFieldError(field, EnvPrefix+"OBSERVABILITY_SERVICE_NAME", field)
	}
	return nil
}

// inheritDefaults copies the pool and query sections of the default database
// into named databases that leave them unset.
func inheritDefaults(cfg *Config) {
	for key, db := range cfg.Databases {
		if db.Pool == (PoolConfig{}) {
			db.Pool = cfg.Database.Pool
		}
		if db.Query == (QueryConfig{}) {
			db.Query = cfg.Database.Query
		}
		cfg.Databases[key] = db
	}
}

func newFieldError(fe validator.FieldError) *ConfigError {
	// Namespace is "Config.database.host"; drop the root struct name
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}

	switch fe.Tag() {
	case "required", "required_without":
		envVar := EnvPrefix + strings.ToUpper(strings.ReplaceAll(field, ".", "_"))
		return NewMissingFieldError(field, envVar, field)
	case "oneof":
		return NewInvalidFieldError(field, fmt.Sprintf("invalid value %q", fmt.Sprint(fe.Value())), strings.Fields(fe.Param()))
	default:
		return NewValidationError(field, fmt.Sprintf("must satisfy %s=%s, got %v", fe.Tag(), fe.Param(), fe.Value()))
	}
}

func validateDatabase(cfg *DatabaseConfig) *ConfigError {
	if cfg.ConnectionString != "" {
		return nil
	}

	if cfg.Port == 0 {
		switch cfg.Type {
		case PostgreSQL:
			cfg.Port = DefaultPostgreSQLPort
		case Oracle:
			cfg.Port = DefaultOraclePort
		}
	}

	if cfg.Type == Oracle && cfg.Oracle.Service.Name != "" && cfg.Oracle.Service.SID != "" {
		return NewValidationError("database.oracle.service", "name and sid are mutually exclusive")
	}

	return nil
}
