package config

import (
	"context"
	"fmt"
	"sync"

	"github.com/satishbabariya/quarry/introspect"
	"github.com/satishbabariya/quarry/metadata"
	"github.com/satishbabariya/quarry/pool"
)

// Resolver serves database specs and metadata out of a loaded
// configuration. Metadata comes from live schema introspection, run
// once per database and cached.
type Resolver struct {
	cfg   *Config
	pools *pool.Manager

	mu        sync.Mutex
	providers map[int64]metadata.Provider
}

// NewResolver builds a resolver over a configuration and pool manager.
func NewResolver(cfg *Config, pools *pool.Manager) *Resolver {
	return &Resolver{
		cfg:       cfg,
		pools:     pools,
		providers: make(map[int64]metadata.Provider),
	}
}

// DatabaseSpec returns the connection spec for a configured database.
func (r *Resolver) DatabaseSpec(_ context.Context, id int64) (pool.Spec, error) {
	db, ok := r.cfg.Database(id)
	if !ok {
		return pool.Spec{}, fmt.Errorf("database %d is not configured", id)
	}
	return db.Spec(), nil
}

// MetadataProvider introspects the database schema on first use and
// serves the snapshot afterwards.
func (r *Resolver) MetadataProvider(ctx context.Context, id int64) (metadata.Provider, error) {
	r.mu.Lock()
	if p, ok := r.providers[id]; ok {
		r.mu.Unlock()
		return p, nil
	}
	r.mu.Unlock()

	db, ok := r.cfg.Database(id)
	if !ok {
		return nil, fmt.Errorf("database %d is not configured", id)
	}
	conn, err := r.pools.Acquire(ctx, db.Spec())
	if err != nil {
		return nil, err
	}
	snapshot, err := introspect.NewCatalog(conn, db.Engine).Snapshot(ctx, db.Schema)
	if err != nil {
		return nil, fmt.Errorf("introspect database %d: %w", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[id]; ok {
		return p, nil
	}
	r.providers[id] = snapshot
	return snapshot, nil
}

// Invalidate drops the cached metadata snapshot for a database so the
// next lookup re-introspects.
func (r *Resolver) Invalidate(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.providers, id)
}
