// Package sqltest registers stub database/sql drivers with canned
// results, so executor and pool behavior can be tested without a real
// database server.
package sqltest

import (
	"context"
	"database/sql"
	sqldriver "database/sql/driver"
	"fmt"
	"io"
	"sync"
	"time"
)

// Result is one canned result set.
type Result struct {
	Cols []string
	Rows [][]sqldriver.Value
}

// Store configures a registered stub driver and records the queries it
// receives. Safe for concurrent use.
type Store struct {
	mu sync.Mutex

	// Default result for any query without an override.
	Cols []string
	Rows [][]sqldriver.Value

	// ByQuery overrides results for exact SQL text.
	ByQuery map[string]Result

	// RowDelay is slept before each row, to exercise timeouts and
	// cancellation.
	RowDelay time.Duration

	// QueryErr fails every query when set.
	QueryErr error

	queries []string
}

var (
	registerMu sync.Mutex
	registered = map[string]*Store{}
)

// Register installs a stub driver under the given database/sql name.
// database/sql forbids duplicate driver names, so registering a name
// again returns the store already behind it; suites stay re-runnable
// in one process (go test -count=N).
func Register(name string) *Store {
	registerMu.Lock()
	defer registerMu.Unlock()
	if s, ok := registered[name]; ok {
		return s
	}
	s := &Store{}
	sql.Register(name, &stubDriver{store: s})
	registered[name] = s
	return s
}

// SetResult replaces the default result set.
func (s *Store) SetResult(cols []string, rows [][]sqldriver.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Cols = cols
	s.Rows = rows
}

// Queries returns the SQL texts received so far.
func (s *Store) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.queries...)
}

func (s *Store) record(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
}

func (s *Store) result(query string) (Result, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.QueryErr != nil {
		return Result{}, 0, s.QueryErr
	}
	if r, ok := s.ByQuery[query]; ok {
		return r, s.RowDelay, nil
	}
	return Result{Cols: s.Cols, Rows: s.Rows}, s.RowDelay, nil
}

type stubDriver struct {
	store *Store
}

func (d *stubDriver) Open(string) (sqldriver.Conn, error) {
	return &conn{store: d.store}, nil
}

type conn struct {
	store *Store
}

var _ sqldriver.QueryerContext = (*conn)(nil)

func (c *conn) Prepare(query string) (sqldriver.Stmt, error) {
	return nil, fmt.Errorf("prepare is not supported")
}

func (c *conn) Close() error { return nil }

// Begin fails so callers exercise their non-transactional fallback.
func (c *conn) Begin() (sqldriver.Tx, error) {
	return nil, fmt.Errorf("transactions are not supported")
}

func (c *conn) QueryContext(_ context.Context, query string, _ []sqldriver.NamedValue) (sqldriver.Rows, error) {
	c.store.record(query)
	res, delay, err := c.store.result(query)
	if err != nil {
		return nil, err
	}
	return &rows{res: res, delay: delay}, nil
}

type rows struct {
	res   Result
	delay time.Duration
	pos   int
}

func (r *rows) Columns() []string { return r.res.Cols }

func (r *rows) Close() error { return nil }

func (r *rows) Next(dest []sqldriver.Value) error {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if r.pos >= len(r.res.Rows) {
		return io.EOF
	}
	copy(dest, r.res.Rows[r.pos])
	r.pos++
	return nil
}
