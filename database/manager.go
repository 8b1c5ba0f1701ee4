package database

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gaborage/go-sqltx/config"
	"github.com/gaborage/go-sqltx/logger"
)

// ConfigSource provides the configuration of a keyed database.
// config.Store is the config-backed implementation.
type ConfigSource interface {
	Config(ctx context.Context, key string) (*config.Config, error)
}

// Opener opens the database described by a configuration.
type Opener func(context.Context, *config.Config, logger.Logger) (*Handle, error)

// Manager opens databases by string key on first use and keeps them cached
// with LRU eviction and idle cleanup. The empty key is the default database.
type Manager struct {
	logger logger.Logger
	source ConfigSource
	opener Opener

	mu      sync.Mutex
	entries map[string]*managerEntry
	lru     *list.List
	maxSize int
	closed  bool

	idleTTL   time.Duration
	cleanupMu sync.Mutex
	cleanupCh chan struct{}

	sfg singleflight.Group
}

type managerEntry struct {
	handle   *Handle
	element  *list.Element
	lastUsed time.Time
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	MaxSize int           // Maximum number of open databases (default 16)
	IdleTTL time.Duration // Idle time after which cleanup closes a database (default 30m)
	Opener  Opener        // Defaults to Open
}

// ErrManagerClosed is returned by Get after Close.
var ErrManagerClosed = errors.New("database manager closed")

// NewManager creates a Manager reading configurations from source.
func NewManager(source ConfigSource, log logger.Logger, opts ManagerOptions) *Manager {
	if opts.MaxSize <= 0 {
		opts.MaxSize = 16
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 30 * time.Minute
	}
	if opts.Opener == nil {
		opts.Opener = func(ctx context.Context, cfg *config.Config, log logger.Logger) (*Handle, error) {
			return Open(ctx, cfg, log)
		}
	}

	return &Manager{
		logger:  log,
		source:  source,
		opener:  opts.Opener,
		entries: make(map[string]*managerEntry),
		lru:     list.New(),
		maxSize: opts.MaxSize,
		idleTTL: opts.IdleTTL,
	}
}

// Get returns the database for key, opening it on first use. Concurrent
// callers asking for the same key share one open.
//
// Evicting a database closes its pool, so a *Database returned earlier must
// not be kept beyond the unit of work it was fetched for.
func (m *Manager) Get(ctx context.Context, key string) (*Database, error) {
	if h, err := m.existing(key); h != nil || err != nil {
		return databaseOf(h), err
	}

	result, err, _ := m.sfg.Do(key, func() (any, error) {
		if h, err := m.existing(key); h != nil || err != nil {
			return h, err
		}
		return m.open(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return databaseOf(result.(*Handle)), nil
}

func databaseOf(h *Handle) *Database {
	if h == nil {
		return nil
	}
	return h.Database
}

// existing returns the cached handle for key and marks it used.
func (m *Manager) existing(key string) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}
	entry, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	entry.lastUsed = time.Now()
	m.lru.MoveToFront(entry.element)
	return entry.handle, nil
}

func (m *Manager) open(ctx context.Context, key string) (*Handle, error) {
	cfg, err := m.source.Config(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get database config for key %q: %w", key, err)
	}

	h, err := m.opener(ctx, cfg, m.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database for key %q: %w", key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		m.closeHandle(key, h, "Error closing database opened during shutdown")
		return nil, ErrManagerClosed
	}

	m.evictIfNeeded()
	m.entries[key] = &managerEntry{
		handle:   h,
		element:  m.lru.PushFront(key),
		lastUsed: time.Now(),
	}

	m.logger.Info().
		Str("key", key).
		Str("db_type", cfg.Database.Type).
		Msg("Opened database")
	return h, nil
}

// evictIfNeeded closes the least recently used database when at capacity.
// The caller holds m.mu.
func (m *Manager) evictIfNeeded() {
	if len(m.entries) < m.maxSize {
		return
	}
	oldest := m.lru.Back()
	if oldest == nil {
		return
	}

	key := oldest.Value.(string)
	m.remove(key)
	m.logger.Debug().
		Str("key", key).
		Msg("Evicted database due to LRU limit")
}

// remove closes and forgets the database for key. The caller holds m.mu.
func (m *Manager) remove(key string) {
	entry := m.entries[key]
	m.closeHandle(key, entry.handle, "Error closing database")
	delete(m.entries, key)
	m.lru.Remove(entry.element)
}

func (m *Manager) closeHandle(key string, h *Handle, msg string) {
	if err := h.Close(); err != nil {
		m.logger.Error().
			Err(err).
			Str("key", key).
			Msg(msg)
	}
}

// StartCleanup starts the background routine closing idle databases.
func (m *Manager) StartCleanup(interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	m.cleanupMu.Lock()
	if m.cleanupCh != nil {
		m.cleanupMu.Unlock()
		return
	}
	done := make(chan struct{})
	m.cleanupCh = done
	m.cleanupMu.Unlock()

	go m.cleanupLoop(interval, done)
}

// StopCleanup stops the background cleanup routine.
func (m *Manager) StopCleanup() {
	m.cleanupMu.Lock()
	defer m.cleanupMu.Unlock()
	if m.cleanupCh == nil {
		return
	}
	close(m.cleanupCh)
	m.cleanupCh = nil
}

func (m *Manager) cleanupLoop(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanupIdle()
		case <-done:
			return
		}
	}
}

// cleanupIdle closes databases unused for longer than the idle TTL.
func (m *Manager) cleanupIdle() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for key, entry := range m.entries {
		idle := now.Sub(entry.lastUsed)
		if idle <= m.idleTTL {
			continue
		}
		m.remove(key)
		m.logger.Debug().
			Str("key", key).
			Dur("idle_time", idle).
			Msg("Closed idle database")
	}
}

// Close stops the cleanup routine and closes every open database. Get fails
// with ErrManagerClosed afterwards.
func (m *Manager) Close() error {
	m.StopCleanup()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	var errs []error
	for key, entry := range m.entries {
		if err := entry.handle.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing database for key %q: %w", key, err))
		}
	}
	clear(m.entries)
	m.lru.Init()

	return errors.Join(errs...)
}

// Size returns the number of open databases.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Stats returns the open databases and their pool usage.
func (m *Manager) Stats() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	databases := make([]map[string]any, 0, len(m.entries))
	for key, entry := range m.entries {
		pool := entry.handle.Pool().Stats()
		databases = append(databases, map[string]any{
			"key":              key,
			"last_used":        entry.lastUsed.Format(time.RFC3339),
			"idle_duration":    int(now.Sub(entry.lastUsed).Seconds()),
			"open_connections": pool.OpenConnections,
			"in_use":           pool.InUse,
		})
	}

	return map[string]any{
		"open_databases":   len(m.entries),
		"max_databases":    m.maxSize,
		"idle_ttl_seconds": int(m.idleTTL.Seconds()),
		"databases":        databases,
	}
}
