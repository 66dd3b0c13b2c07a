// Package pool maintains one database/sql connection pool per
// configured database. Pools are created on first use and shared by
// all executions against that database; database/sql handles per-query
// connection checkout internally.
package pool

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sync"
	"time"

	goversion "github.com/hashicorp/go-version"

	"github.com/satishbabariya/quarry/driver"
	"github.com/satishbabariya/quarry/internal/debug"
)

// Spec identifies one configured database and how to reach it.
type Spec struct {
	DatabaseID int64
	Engine     string
	Details    driver.ConnectionDetails
}

// Settings bound every pool the manager creates.
type Settings struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultSettings mirror conservative production defaults.
var DefaultSettings = Settings{
	MaxOpenConns:    15,
	MaxIdleConns:    5,
	ConnMaxLifetime: 30 * time.Minute,
}

// Manager owns the pools. Safe for concurrent use.
type Manager struct {
	settings Settings

	mu    sync.Mutex
	pools map[int64]*sql.DB
}

// NewManager builds a manager; zero-valued settings fall back to
// defaults.
func NewManager(settings Settings) *Manager {
	if settings.MaxOpenConns == 0 {
		settings.MaxOpenConns = DefaultSettings.MaxOpenConns
	}
	if settings.MaxIdleConns == 0 {
		settings.MaxIdleConns = DefaultSettings.MaxIdleConns
	}
	if settings.ConnMaxLifetime == 0 {
		settings.ConnMaxLifetime = DefaultSettings.ConnMaxLifetime
	}
	return &Manager{settings: settings, pools: make(map[int64]*sql.DB)}
}

// Acquire returns the pool for a database, creating it on first use.
// Creation verifies connectivity and the driver's minimum supported
// server version.
func (m *Manager) Acquire(ctx context.Context, spec Spec) (*sql.DB, error) {
	m.mu.Lock()
	if db, ok := m.pools[spec.DatabaseID]; ok {
		m.mu.Unlock()
		return db, nil
	}
	m.mu.Unlock()

	db, err := m.open(ctx, spec)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.pools[spec.DatabaseID]; ok {
		// Lost the race; keep the winner.
		db.Close()
		return existing, nil
	}
	m.pools[spec.DatabaseID] = db
	return db, nil
}

func (m *Manager) open(ctx context.Context, spec Spec) (*sql.DB, error) {
	if err := driver.Default.LoadIfNeeded(spec.Engine); err != nil {
		return nil, err
	}
	buildDSN, err := driver.BuildDSN.For(spec.Engine)
	if err != nil {
		return nil, err
	}
	sqlDriver, dsn, err := buildDSN(spec.Details)
	if err != nil {
		return nil, fmt.Errorf("build connection spec for database %d: %w", spec.DatabaseID, err)
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %d (%s): %w", spec.DatabaseID, spec.Engine, err)
	}
	db.SetMaxOpenConns(m.settings.MaxOpenConns)
	db.SetMaxIdleConns(m.settings.MaxIdleConns)
	db.SetConnMaxLifetime(m.settings.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database %d (%s): %w", spec.DatabaseID, spec.Engine, err)
	}
	if err := m.checkVersion(ctx, db, spec.Engine); err != nil {
		db.Close()
		return nil, err
	}
	debug.Info("opened connection pool", "database_id", spec.DatabaseID, "engine", spec.Engine)
	return db, nil
}

var versionPattern = regexp.MustCompile(`\d+(\.\d+)+`)

// checkVersion rejects servers older than the driver's declared
// minimum.
func (m *Manager) checkVersion(ctx context.Context, db *sql.DB, engine string) error {
	min, err := driver.MinServerVersion.For(engine)
	if err != nil || min == "" {
		return nil
	}
	versionSQL, err := driver.VersionQuery.For(engine)
	if err != nil || versionSQL == "" {
		return nil
	}

	var reported string
	if err := db.QueryRowContext(ctx, versionSQL).Scan(&reported); err != nil {
		debug.Warn("version check query failed", "engine", engine, "error", err)
		return nil
	}
	raw := versionPattern.FindString(reported)
	if raw == "" {
		return nil
	}
	server, err := goversion.NewVersion(raw)
	if err != nil {
		return nil
	}
	minimum, err := goversion.NewVersion(min)
	if err != nil {
		return nil
	}
	if server.LessThan(minimum) {
		return fmt.Errorf("%s server version %s is older than the minimum supported %s", engine, server, minimum)
	}
	return nil
}

// Close shuts every pool down.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, db := range m.pools {
		db.Close()
		delete(m.pools, id)
	}
}

// OpenPools reports how many pools exist, for leak checks in tests.
func (m *Manager) OpenPools() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pools)
}
