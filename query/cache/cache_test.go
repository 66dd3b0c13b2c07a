package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/satishbabariya/quarry/query/executor"
)

func completedResult(rows int) *executor.Result {
	return &executor.Result{RowCount: rows, Status: executor.StatusCompleted}
}

func TestGetMissThenHit(t *testing.T) {
	c := New(4, time.Minute)

	if _, ok := c.Get(1, "abc"); ok {
		t.Fatal("expected a miss on an empty cache")
	}

	c.Put(1, "abc", completedResult(3), 0)
	got, ok := c.Get(1, "abc")
	if !ok {
		t.Fatal("expected a hit after Put")
	}
	if got.RowCount != 3 {
		t.Fatalf("RowCount = %d, want 3", got.RowCount)
	}

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.Size != 1 {
		t.Fatalf("stats = %+v, want 1 hit, 1 miss, size 1", s)
	}
}

func TestKeysAreScopedByDatabase(t *testing.T) {
	c := New(4, time.Minute)
	c.Put(1, "abc", completedResult(1), 0)

	if _, ok := c.Get(2, "abc"); ok {
		t.Fatal("same hash on another database must not hit")
	}
}

func TestEntriesExpire(t *testing.T) {
	c := New(4, time.Minute)
	c.Put(1, "abc", completedResult(1), time.Millisecond)

	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get(1, "abc"); ok {
		t.Fatal("expired entry must miss")
	}
	if s := c.Stats(); s.Size != 0 {
		t.Fatalf("expired entry still counted, size = %d", s.Size)
	}
}

func TestNonCompletedResultsAreNotCached(t *testing.T) {
	c := New(4, time.Minute)

	c.Put(1, "failed", &executor.Result{Status: executor.StatusFailed}, 0)
	c.Put(1, "interrupted", &executor.Result{Status: executor.StatusInterrupted}, 0)
	c.Put(1, "nil", nil, 0)

	if s := c.Stats(); s.Size != 0 {
		t.Fatalf("size = %d, want 0", s.Size)
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(2, time.Minute)
	c.Put(1, "a", completedResult(1), 0)
	c.Put(1, "b", completedResult(2), 0)

	// Touch "a" so "b" becomes the eviction candidate.
	if _, ok := c.Get(1, "a"); !ok {
		t.Fatal("expected hit on a")
	}

	c.Put(1, "c", completedResult(3), 0)

	if _, ok := c.Get(1, "b"); ok {
		t.Fatal("b should have been evicted")
	}
	if _, ok := c.Get(1, "a"); !ok {
		t.Fatal("a should have survived")
	}
	if _, ok := c.Get(1, "c"); !ok {
		t.Fatal("c should be present")
	}
	if s := c.Stats(); s.Evictions != 1 {
		t.Fatalf("evictions = %d, want 1", s.Evictions)
	}
}

func TestPutRefreshesExistingEntry(t *testing.T) {
	c := New(2, time.Minute)
	c.Put(1, "a", completedResult(1), 0)
	c.Put(1, "a", completedResult(9), 0)

	got, ok := c.Get(1, "a")
	if !ok || got.RowCount != 9 {
		t.Fatalf("got %+v, want refreshed result with 9 rows", got)
	}
	if s := c.Stats(); s.Size != 1 {
		t.Fatalf("size = %d, want 1", s.Size)
	}
}

func TestInvalidateDatabase(t *testing.T) {
	c := New(8, time.Minute)
	c.Put(1, "a", completedResult(1), 0)
	c.Put(1, "b", completedResult(2), 0)
	c.Put(2, "a", completedResult(3), 0)

	c.InvalidateDatabase(1)

	if _, ok := c.Get(1, "a"); ok {
		t.Fatal("database 1 entries should be gone")
	}
	if _, ok := c.Get(1, "b"); ok {
		t.Fatal("database 1 entries should be gone")
	}
	if _, ok := c.Get(2, "a"); !ok {
		t.Fatal("database 2 entry should survive")
	}
}

func TestClearResetsCounters(t *testing.T) {
	c := New(4, time.Minute)
	c.Put(1, "a", completedResult(1), 0)
	c.Get(1, "a")
	c.Get(1, "missing")

	c.Clear()

	s := c.Stats()
	if s.Size != 0 || s.Hits != 0 || s.Misses != 0 {
		t.Fatalf("stats after Clear = %+v, want zeroes", s)
	}
	if s.MaxSize != 4 {
		t.Fatalf("MaxSize = %d, want 4", s.MaxSize)
	}
}

func TestDefaultCapacityWhenUnset(t *testing.T) {
	c := New(0, 0)
	for i := 0; i < 300; i++ {
		c.Put(1, fmt.Sprintf("q%d", i), completedResult(i), 0)
	}
	if s := c.Stats(); s.Size != 256 {
		t.Fatalf("size = %d, want default capacity 256", s.Size)
	}
}
