// Package driver maintains the process-wide hierarchy of database
// drivers and the capability dispatch that resolves per-driver
// behavior through it.
//
// Drivers form a directed acyclic graph: a concrete driver such as
// "postgres" derives from the abstract "sql" parent, which supplies
// default behavior for every capability a child does not override.
// Multiple parents are allowed; resolution prefers the most-derived
// implementation, walking parents in declaration order.
package driver

import (
	"fmt"
	"sync"
)

// Concrete is the sentinel marker every non-abstract driver derives
// from. A driver is concrete (usable against a real database) exactly
// when it descends from this marker.
const Concrete = "quarry.driver/concrete"

// Options configures a driver registration.
type Options struct {
	Parents  []string
	Abstract bool
}

type node struct {
	name     string
	parents  []string
	abstract bool
}

// Registry is the driver hierarchy. The zero value is not usable; use
// NewRegistry or the package-level Default registry.
//
// Lookups take a read lock and never block each other; registration
// and lazy loading take the write lock.
type Registry struct {
	mu         sync.RWMutex
	nodes      map[string]*node
	loaders    map[string]func() error
	loaded     map[string]bool
	loading    map[string]chan struct{}
	generation uint64

	initMu      sync.Mutex
	initialized map[string]bool
}

// NewRegistry returns an empty registry containing only the concrete
// sentinel.
func NewRegistry() *Registry {
	r := &Registry{
		nodes:       make(map[string]*node),
		loaders:     make(map[string]func() error),
		loaded:      make(map[string]bool),
		loading:     make(map[string]chan struct{}),
		initialized: make(map[string]bool),
	}
	r.nodes[Concrete] = &node{name: Concrete, abstract: true}
	return r
}

// Default is the process-wide registry driver packages register into.
var Default = NewRegistry()

// Register adds a driver to the hierarchy. Registration is idempotent:
// re-registering an existing driver with the same abstractness adds any
// new parents and succeeds. Changing abstractness fails without
// touching the hierarchy, as does giving an abstract driver a concrete
// parent.
func (r *Registry) Register(name string, opts Options) error {
	if name == "" {
		return fmt.Errorf("driver name is required")
	}

	// Parents must be loaded before we can link to them.
	for _, parent := range opts.Parents {
		if err := r.LoadIfNeeded(parent); err != nil {
			return fmt.Errorf("load parent of %s: %w", name, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing := r.nodes[name]
	if existing != nil && existing.abstract != opts.Abstract {
		return fmt.Errorf("driver %s is already registered as %s; cannot re-register as %s",
			name, abstractness(existing.abstract), abstractness(opts.Abstract))
	}

	// Validate before mutating anything.
	parents := opts.Parents
	if !opts.Abstract {
		parents = append(append([]string{}, opts.Parents...), Concrete)
	}
	for _, parent := range parents {
		pn := r.nodes[parent]
		if pn == nil {
			return fmt.Errorf("driver %s: unknown parent %s", name, parent)
		}
		if opts.Abstract && r.descendsLocked(parent, Concrete) {
			return fmt.Errorf("abstract driver %s cannot have concrete parent %s", name, parent)
		}
	}

	if existing == nil {
		r.nodes[name] = &node{name: name, parents: parents, abstract: opts.Abstract}
	} else {
		for _, parent := range parents {
			if !contains(existing.parents, parent) {
				existing.parents = append(existing.parents, parent)
			}
		}
	}
	r.generation++
	return nil
}

// RegisterLoader declares how a driver gets loaded on first use. A
// driver package calls this from init; the loader performs the actual
// Register call plus capability registration.
func (r *Registry) RegisterLoader(name string, load func() error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[name] = load
}

// LoadIfNeeded runs a driver's loader exactly once. Safe under
// concurrent callers: racing callers wait for the in-flight load to
// finish instead of returning before the driver is registered, and a
// failed load can be retried.
func (r *Registry) LoadIfNeeded(name string) error {
	for {
		r.mu.RLock()
		inflight := r.loading[name]
		done := inflight == nil && (r.loaded[name] || r.nodes[name] != nil)
		loader := r.loaders[name]
		r.mu.RUnlock()
		if done {
			return nil
		}
		if inflight != nil {
			<-inflight
			continue
		}
		if loader == nil {
			return fmt.Errorf("driver %s is not available: no loader registered (missing driver package import?)", name)
		}

		r.mu.Lock()
		if r.loaded[name] {
			r.mu.Unlock()
			return nil
		}
		if ch := r.loading[name]; ch != nil {
			r.mu.Unlock()
			<-ch
			continue
		}
		ch := make(chan struct{})
		r.loading[name] = ch
		r.mu.Unlock()

		// The loader registers the driver, which re-enters the registry;
		// run it outside the lock.
		err := loader()

		r.mu.Lock()
		if err == nil {
			r.loaded[name] = true
		}
		delete(r.loading, name)
		r.mu.Unlock()
		close(ch)

		if err != nil {
			return fmt.Errorf("load driver %s: %w", name, err)
		}
		return nil
	}
}

// InitializeIfNeeded runs initFn exactly once per driver, after
// initializing all parents. Guarded by a dedicated mutex with a second
// check after acquisition.
func (r *Registry) InitializeIfNeeded(name string, initFn func(name string) error) error {
	r.initMu.Lock()
	defer r.initMu.Unlock()
	return r.initializeLocked(name, initFn)
}

func (r *Registry) initializeLocked(name string, initFn func(string) error) error {
	if r.initialized[name] {
		return nil
	}
	for _, parent := range r.Parents(name) {
		if parent == Concrete {
			continue
		}
		if err := r.initializeLocked(parent, initFn); err != nil {
			return err
		}
	}
	if initFn != nil {
		if err := initFn(name); err != nil {
			return fmt.Errorf("initialize driver %s: %w", name, err)
		}
	}
	r.initialized[name] = true
	return nil
}

// IsRegistered reports whether the driver exists in the hierarchy.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nodes[name] != nil
}

// IsAbstract reports whether the driver is abstract.
func (r *Registry) IsAbstract(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := r.nodes[name]
	return n != nil && n.abstract
}

// IsConcrete reports whether the driver is registered and descends
// from the concrete sentinel.
func (r *Registry) IsConcrete(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nodes[name] != nil && r.descendsLocked(name, Concrete)
}

// Parents returns the direct parents of a driver in declaration order.
func (r *Registry) Parents(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := r.nodes[name]
	if n == nil {
		return nil
	}
	return append([]string{}, n.parents...)
}

// Ancestors returns the driver followed by all ancestors in method
// resolution order: self, then each parent subtree depth-first in
// declaration order, deduplicated on first visit.
func (r *Registry) Ancestors(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.nodes[name] == nil {
		return nil
	}
	seen := make(map[string]bool)
	var order []string
	var walk func(string)
	walk = func(cur string) {
		if seen[cur] {
			return
		}
		seen[cur] = true
		order = append(order, cur)
		n := r.nodes[cur]
		if n == nil {
			return
		}
		for _, parent := range n.parents {
			walk(parent)
		}
	}
	walk(name)
	return order
}

// Registered returns the names of all registered drivers, excluding
// the sentinel.
func (r *Registry) Registered() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.nodes))
	for name := range r.nodes {
		if name != Concrete {
			out = append(out, name)
		}
	}
	return out
}

// Generation increments on every registration; dispatch caches key
// their entries by it.
func (r *Registry) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}

func (r *Registry) descendsLocked(name, ancestor string) bool {
	if name == ancestor {
		return true
	}
	n := r.nodes[name]
	if n == nil {
		return false
	}
	for _, parent := range n.parents {
		if r.descendsLocked(parent, ancestor) {
			return true
		}
	}
	return false
}

func abstractness(abstract bool) string {
	if abstract {
		return "abstract"
	}
	return "concrete"
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
