package driver

import (
	"fmt"
	"sync"
)

// NoImplementationError is returned when neither the driver, any of
// its ancestors, nor a declared default implements an operation.
type NoImplementationError struct {
	Operation string
	Driver    string
}

func (e *NoImplementationError) Error() string {
	return fmt.Sprintf("driver %s has no implementation of %s", e.Driver, e.Operation)
}

// Method is one dispatchable operation: a mapping from driver name to
// implementation, resolved through the hierarchy. Resolution prefers
// the most-derived registration (self first, then ancestors in method
// resolution order) and falls back to the declared default.
//
// Resolved implementations are cached per driver and invalidated
// whenever the hierarchy changes.
type Method[T any] struct {
	registry *Registry
	name     string

	mu         sync.RWMutex
	impls      map[string]T
	def        T
	hasDefault bool
	cache      map[string]T
	cacheGen   uint64
}

// NewMethod declares an operation dispatched through reg.
func NewMethod[T any](reg *Registry, name string) *Method[T] {
	return &Method[T]{
		registry: reg,
		name:     name,
		impls:    make(map[string]T),
		cache:    make(map[string]T),
	}
}

// Impl registers an implementation for one driver, replacing any
// previous registration for that driver.
func (m *Method[T]) Impl(driverName string, impl T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.impls[driverName] = impl
	m.cache = make(map[string]T)
}

// Default declares the fallback used when no driver in the ancestor
// chain has an implementation.
func (m *Method[T]) Default(impl T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.def = impl
	m.hasDefault = true
	m.cache = make(map[string]T)
}

// For resolves the implementation for a driver.
func (m *Method[T]) For(driverName string) (T, error) {
	gen := m.registry.Generation()

	m.mu.RLock()
	if gen == m.cacheGen {
		if impl, ok := m.cache[driverName]; ok {
			m.mu.RUnlock()
			return impl, nil
		}
	}
	m.mu.RUnlock()

	var zero T
	ancestors := m.registry.Ancestors(driverName)
	if ancestors == nil {
		return zero, fmt.Errorf("driver %s is not registered", driverName)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.cacheGen {
		m.cache = make(map[string]T)
		m.cacheGen = gen
	}
	for _, name := range ancestors {
		if impl, ok := m.impls[name]; ok {
			m.cache[driverName] = impl
			return impl, nil
		}
	}
	if m.hasDefault {
		m.cache[driverName] = m.def
		return m.def, nil
	}
	return zero, &NoImplementationError{Operation: m.name, Driver: driverName}
}

// ForParent resolves the implementation registered at exactly the
// named ancestor, bypassing any more-derived override. Used by a
// driver that wants to delegate to a specific parent's behavior.
func (m *Method[T]) ForParent(parentName string) (T, error) {
	m.mu.RLock()
	impl, ok := m.impls[parentName]
	m.mu.RUnlock()
	if ok {
		return impl, nil
	}
	var zero T
	if !m.registry.IsRegistered(parentName) {
		return zero, fmt.Errorf("driver %s is not registered", parentName)
	}
	// Continue the walk above the named parent.
	for _, name := range m.registry.Ancestors(parentName)[1:] {
		m.mu.RLock()
		impl, ok := m.impls[name]
		m.mu.RUnlock()
		if ok {
			return impl, nil
		}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.hasDefault {
		return m.def, nil
	}
	return zero, &NoImplementationError{Operation: m.name, Driver: parentName}
}

// MustFor is For for callers that have already validated the driver;
// it panics on resolution failure.
func (m *Method[T]) MustFor(driverName string) T {
	impl, err := m.For(driverName)
	if err != nil {
		panic(err)
	}
	return impl
}
