package driver

import (
	"errors"
	"testing"
)

func hierarchy(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	if err := r.Register("sqlbase", Options{Abstract: true}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("pg", Options{Parents: []string{"sqlbase"}}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("redshift", Options{Parents: []string{"pg"}}); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestDispatchPrefersOwnImplementation(t *testing.T) {
	r := hierarchy(t)
	m := NewMethod[string](r, "greeting")
	m.Impl("sqlbase", "base")
	m.Impl("pg", "pg")

	got, err := m.For("pg")
	if err != nil {
		t.Fatal(err)
	}
	if got != "pg" {
		t.Errorf("got %q, want pg", got)
	}
}

func TestDispatchWalksAncestors(t *testing.T) {
	r := hierarchy(t)
	m := NewMethod[string](r, "greeting")
	m.Impl("sqlbase", "base")

	// redshift has no impl and neither does pg; sqlbase's applies.
	got, err := m.For("redshift")
	if err != nil {
		t.Fatal(err)
	}
	if got != "base" {
		t.Errorf("got %q, want base", got)
	}

	// Now pg gains an override; redshift inherits the nearer one.
	m.Impl("pg", "pg")
	got, err = m.For("redshift")
	if err != nil {
		t.Fatal(err)
	}
	if got != "pg" {
		t.Errorf("after pg override: got %q, want pg", got)
	}
}

func TestDispatchDefaultFallback(t *testing.T) {
	r := hierarchy(t)
	m := NewMethod[int](r, "limit")
	m.Default(42)

	got, err := m.For("redshift")
	if err != nil {
		t.Fatal(err)
	}
	if got != 42 {
		t.Errorf("got %d, want default 42", got)
	}
}

func TestDispatchNoImplementation(t *testing.T) {
	r := hierarchy(t)
	m := NewMethod[string](r, "quoting")

	_, err := m.For("pg")
	var noImpl *NoImplementationError
	if !errors.As(err, &noImpl) {
		t.Fatalf("expected NoImplementationError, got %v", err)
	}
	if noImpl.Operation != "quoting" || noImpl.Driver != "pg" {
		t.Errorf("unexpected error detail: %+v", noImpl)
	}
}

func TestDispatchUnregisteredDriver(t *testing.T) {
	r := hierarchy(t)
	m := NewMethod[string](r, "greeting")
	if _, err := m.For("missing"); err == nil {
		t.Fatal("expected error for unregistered driver")
	}
}

func TestDispatchForParentBypassesOverride(t *testing.T) {
	r := hierarchy(t)
	m := NewMethod[string](r, "greeting")
	m.Impl("sqlbase", "base")
	m.Impl("pg", "pg")
	m.Impl("redshift", "redshift")

	// A driver delegating to its parent sees the parent's registration,
	// not its own.
	got, err := m.ForParent("pg")
	if err != nil {
		t.Fatal(err)
	}
	if got != "pg" {
		t.Errorf("got %q, want pg", got)
	}

	// Delegating past a parent without a registration keeps walking up.
	m2 := NewMethod[string](r, "other")
	m2.Impl("sqlbase", "base")
	got, err = m2.ForParent("pg")
	if err != nil {
		t.Fatal(err)
	}
	if got != "base" {
		t.Errorf("got %q, want base", got)
	}
}

func TestDispatchResolvesAfterLateRegistration(t *testing.T) {
	r := hierarchy(t)
	m := NewMethod[string](r, "greeting")
	m.Impl("sqlbase", "base")

	if _, err := m.For("vertica"); err == nil {
		t.Fatal("expected failure before registration")
	}

	// Registration advances the generation; cached resolution state
	// must not survive it.
	if err := r.Register("vertica", Options{Parents: []string{"sqlbase"}}); err != nil {
		t.Fatal(err)
	}
	got, err := m.For("vertica")
	if err != nil {
		t.Fatal(err)
	}
	if got != "base" {
		t.Errorf("got %q, want base after late registration", got)
	}
}

func TestDispatchMustForPanics(t *testing.T) {
	r := hierarchy(t)
	m := NewMethod[string](r, "greeting")
	defer func() {
		if recover() == nil {
			t.Error("MustFor should panic without an implementation")
		}
	}()
	m.MustFor("pg")
}
