package pool

import (
	"context"
	sqldriver "database/sql/driver"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/satishbabariya/quarry/driver"
	"github.com/satishbabariya/quarry/internal/sqltest"
)

// registerEngine installs a stub engine backed by an in-memory
// database/sql driver. Names must be unique per test.
func registerEngine(t *testing.T, engine, sqlName string, setup func(*sqltest.Store)) {
	t.Helper()
	store := sqltest.Register(sqlName)
	if setup != nil {
		setup(store)
	}
	driver.Default.RegisterLoader(engine, func() error {
		if err := driver.Default.Register(engine, driver.Options{Parents: []string{driver.SQL}}); err != nil {
			return err
		}
		driver.BuildDSN.Impl(engine, func(driver.ConnectionDetails) (string, string, error) {
			return sqlName, "stub", nil
		})
		return nil
	})
}

func TestNewManagerFillsDefaults(t *testing.T) {
	m := NewManager(Settings{})
	if m.settings != DefaultSettings {
		t.Errorf("settings = %+v, want defaults", m.settings)
	}

	custom := Settings{MaxOpenConns: 3, MaxIdleConns: 1, ConnMaxLifetime: time.Minute}
	if m := NewManager(custom); m.settings != custom {
		t.Errorf("settings = %+v, want %+v", m.settings, custom)
	}
}

func TestAcquireCreatesPoolOnce(t *testing.T) {
	registerEngine(t, "granite", "pool-once", nil)
	m := NewManager(Settings{})
	defer m.Close()

	spec := Spec{DatabaseID: 1, Engine: "granite"}
	a, err := m.Acquire(context.Background(), spec)
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.Acquire(context.Background(), spec)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("second acquire returned a different pool")
	}
	if m.OpenPools() != 1 {
		t.Errorf("open pools = %d, want 1", m.OpenPools())
	}
}

func TestAcquireSeparatesDatabases(t *testing.T) {
	registerEngine(t, "granite2", "pool-multi", nil)
	m := NewManager(Settings{})
	defer m.Close()

	a, err := m.Acquire(context.Background(), Spec{DatabaseID: 1, Engine: "granite2"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.Acquire(context.Background(), Spec{DatabaseID: 2, Engine: "granite2"})
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("distinct databases share a pool")
	}
	if m.OpenPools() != 2 {
		t.Errorf("open pools = %d, want 2", m.OpenPools())
	}
}

func TestAcquireConcurrently(t *testing.T) {
	registerEngine(t, "granite3", "pool-race", nil)
	m := NewManager(Settings{})
	defer m.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Acquire(context.Background(), Spec{DatabaseID: 7, Engine: "granite3"}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if m.OpenPools() != 1 {
		t.Errorf("open pools = %d, want 1 after racing acquires", m.OpenPools())
	}
}

func TestAcquireUnknownEngine(t *testing.T) {
	m := NewManager(Settings{})
	defer m.Close()
	if _, err := m.Acquire(context.Background(), Spec{DatabaseID: 1, Engine: "no-such-engine"}); err == nil {
		t.Fatal("expected error for unknown engine")
	}
}

func TestAcquireBadConnectionDetails(t *testing.T) {
	driver.Default.RegisterLoader("granite4", func() error {
		if err := driver.Default.Register("granite4", driver.Options{Parents: []string{driver.SQL}}); err != nil {
			return err
		}
		driver.BuildDSN.Impl("granite4", func(d driver.ConnectionDetails) (string, string, error) {
			if d.String("host") == "" {
				return "", "", &missingHostError{}
			}
			return "", "", nil
		})
		return nil
	})

	m := NewManager(Settings{})
	defer m.Close()
	_, err := m.Acquire(context.Background(), Spec{DatabaseID: 1, Engine: "granite4"})
	if err == nil || !strings.Contains(err.Error(), "build connection spec") {
		t.Fatalf("got %v", err)
	}
	if m.OpenPools() != 0 {
		t.Errorf("open pools = %d after failed acquire", m.OpenPools())
	}
}

type missingHostError struct{}

func (*missingHostError) Error() string { return "connection requires a host" }

func TestVersionCheckRejectsOldServers(t *testing.T) {
	const versionSQL = "SELECT version_string"
	register := func(engine, sqlName, reported string) {
		registerEngine(t, engine, sqlName, func(s *sqltest.Store) {
			s.ByQuery = map[string]sqltest.Result{
				versionSQL: {Cols: []string{"version"}, Rows: [][]sqldriver.Value{{reported}}},
			}
		})
		if err := driver.Default.LoadIfNeeded(engine); err != nil {
			t.Fatal(err)
		}
		driver.VersionQuery.Impl(engine, versionSQL)
		driver.MinServerVersion.Impl(engine, "11.0")
	}

	m := NewManager(Settings{})
	defer m.Close()

	register("marble-old", "pool-ver-old", "server 9.4.1 on x86_64")
	_, err := m.Acquire(context.Background(), Spec{DatabaseID: 1, Engine: "marble-old"})
	if err == nil || !strings.Contains(err.Error(), "older than the minimum supported") {
		t.Fatalf("got %v", err)
	}

	register("marble-new", "pool-ver-new", "server 15.2 on x86_64")
	if _, err := m.Acquire(context.Background(), Spec{DatabaseID: 2, Engine: "marble-new"}); err != nil {
		t.Fatalf("new enough server rejected: %v", err)
	}
}

func TestCloseShutsEveryPool(t *testing.T) {
	registerEngine(t, "granite5", "pool-close", nil)
	m := NewManager(Settings{})
	if _, err := m.Acquire(context.Background(), Spec{DatabaseID: 1, Engine: "granite5"}); err != nil {
		t.Fatal(err)
	}
	m.Close()
	if m.OpenPools() != 0 {
		t.Errorf("open pools = %d after close", m.OpenPools())
	}
}
