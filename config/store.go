package config

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// Store provides per-key configurations for database.Manager. The empty key
// selects the default database; any other key selects an entry of
// Config.Databases. Every returned Config shares the retry and log sections
// of the base configuration.
type Store struct {
	base *Config

	mu        sync.RWMutex
	databases map[string]DatabaseConfig
}

// NewStore creates a config-backed store.
func NewStore(cfg *Config) *Store {
	return &Store{
		base:      cfg,
		databases: maps.Clone(cfg.Databases),
	}
}

// Config returns the configuration for key with Database set to the keyed
// database.
func (s *Store) Config(_ context.Context, key string) (*Config, error) {
	if key == "" {
		return s.base, nil
	}

	s.mu.RLock()
	db, exists := s.databases[key]
	s.mu.RUnlock()
	if !exists {
		return nil, &ConfigError{
			Category: "missing",
			Field:    "databases." + key,
			Message:  "not configured",
			Action:   "add a databases." + key + " section to the yaml config",
		}
	}

	cfg := *s.base
	cfg.Database = db
	return &cfg, nil
}

// Add registers or replaces the database for key at runtime.
func (s *Store) Add(key string, db DatabaseConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.databases == nil {
		s.databases = make(map[string]DatabaseConfig)
	}
	s.databases[key] = db
}

// Remove forgets the database for key.
func (s *Store) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.databases, key)
}

// Keys returns the sorted keys of the named databases.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.databases))
}
