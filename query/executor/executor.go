// Package executor runs compiled native queries against pooled
// connections: bounded timeouts, cooperative cancellation, streamed
// row reduction, and a uniform result envelope on every exit path.
package executor

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/satishbabariya/quarry/driver"
	"github.com/satishbabariya/quarry/internal/debug"
	"github.com/satishbabariya/quarry/metadata"
	"github.com/satishbabariya/quarry/query/qerror"
	"github.com/satishbabariya/quarry/query/sqlgen"
)

// State tracks one execution through its lifecycle.
type State int32

const (
	StatePending State = iota
	StateCompiling
	StateExecuting
	StateStreaming
	StateCompleted
	StateFailed
	StateCancelled
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateCompiling:
		return "compiling"
	case StateExecuting:
		return "executing"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	case StateTimedOut:
		return "timed-out"
	}
	return "unknown"
}

// Options bound one execution.
type Options struct {
	// Timeout is the hard wall-clock cap; zero means no timeout.
	Timeout time.Duration
	// MaxRows caps streamed rows upstream of materialization; zero
	// means unlimited.
	MaxRows int
}

// Execution is the context of one query run: cancellation signal,
// deadline, raise callback, and state. Scoped to a single execution
// and dead once results are reduced or an error fires.
type Execution struct {
	ID      uuid.UUID
	Driver  string
	state   atomic.Int32
	started time.Time
	raised  error

	mu        sync.Mutex
	cancel    context.CancelFunc
	cancelled bool
}

// NewExecution prepares an execution context for one query.
func NewExecution(driverName string) *Execution {
	return &Execution{ID: uuid.New(), Driver: driverName, started: time.Now()}
}

// State returns the current lifecycle state.
func (e *Execution) State() State { return State(e.state.Load()) }

func (e *Execution) transition(s State) {
	e.state.Store(int32(s))
}

// Compiling marks the execution as compiling its query. Run moves it
// to executing.
func (e *Execution) Compiling() { e.transition(StateCompiling) }

// Cancel triggers cooperative cancellation; in-flight statements are
// closed through context propagation into the driver. A cancel issued
// before Run is remembered and honored when Run starts.
func (e *Execution) Cancel() {
	e.mu.Lock()
	e.cancelled = true
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// raise records an error instead of letting it escape the reduction
// loop; the first raised error wins.
func (e *Execution) raise(err error) {
	if e.raised == nil {
		e.raised = err
	}
}

// Run executes a compiled query on db and reduces rows into sink.
// Column metadata always reaches the sink before any row; rows arrive
// in engine order. The connection's statement and cursor are closed on
// every path.
func (e *Execution) Run(ctx context.Context, db *sql.DB, native *sqlgen.Query, opts Options, sink RowSink) error {
	if opts.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, opts.Timeout)
		defer cancelTimeout()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.mu.Lock()
	e.cancel = cancel
	pre := e.cancelled
	e.mu.Unlock()
	if pre {
		cancel()
	}

	e.transition(StateExecuting)
	debug.Debug("executing query", "execution_id", e.ID.String(), "driver", e.Driver)

	isolation, err := driver.TxIsolation.For(e.Driver)
	if err != nil {
		isolation = sql.LevelDefault
	}
	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: isolation, ReadOnly: true})
	if err != nil {
		// Not every engine supports read-only transactions; fall back
		// to direct queries.
		return e.stream(ctx, db.QueryContext, native, opts, sink)
	}
	defer tx.Rollback()
	return e.stream(ctx, tx.QueryContext, native, opts, sink)
}

type queryFunc func(ctx context.Context, query string, args ...any) (*sql.Rows, error)

func (e *Execution) stream(ctx context.Context, query queryFunc, native *sqlgen.Query, opts Options, sink RowSink) error {
	rows, err := query(ctx, native.SQL, native.Args...)
	if err != nil {
		return e.finish(ctx, qerror.Execution(e.Driver, err))
	}
	defer rows.Close()

	cols, err := e.columns(rows)
	if err != nil {
		return e.finish(ctx, err)
	}
	// Emulated pagination appends a synthetic row-number column; it
	// never reaches the sink.
	width := len(cols)
	if width > 0 && cols[width-1].Name == sqlgen.RowNumber {
		width--
	}
	if err := sink.Cols(cols[:width]); err != nil {
		return e.finish(ctx, err)
	}

	e.transition(StateStreaming)
	scan := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range scan {
		ptrs[i] = &scan[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			e.raise(qerror.Execution(e.Driver, err))
			break
		}
		row := make([]any, width)
		for i := range row {
			row[i] = normalizeValue(scan[i])
		}
		if err := sink.Row(row); err != nil {
			if errors.Is(err, ErrRowCap) {
				break
			}
			e.raise(err)
			break
		}
	}
	if err := rows.Err(); err != nil {
		e.raise(qerror.Execution(e.Driver, err))
	}
	return e.finish(ctx, e.raised)
}

// finish settles the terminal state. Context errors outrank whatever
// the driver surfaced while being interrupted.
func (e *Execution) finish(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			e.transition(StateTimedOut)
			return qerror.Wrap(qerror.TypeTimeout, context.DeadlineExceeded,
				"query execution timed out")
		}
		e.transition(StateCancelled)
		return qerror.Wrap(qerror.TypeCancelled, context.Canceled, "query execution cancelled")
	case err != nil:
		e.transition(StateFailed)
		return err
	default:
		e.transition(StateCompleted)
		return nil
	}
}

// columns normalizes driver column metadata into the uniform shape.
func (e *Execution) columns(rows *sql.Rows) ([]Column, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, qerror.Execution(e.Driver, err)
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, qerror.Execution(e.Driver, err)
	}
	mapType, mapErr := driver.MapColumnType.For(e.Driver)

	cols := make([]Column, len(names))
	for i, name := range names {
		col := Column{Name: name, BaseType: metadata.TypeUnknown}
		if mapErr == nil && i < len(types) {
			col.BaseType = mapType(types[i].DatabaseTypeName())
		}
		cols[i] = col
	}
	return cols, nil
}

// normalizeValue converts driver-specific scan values into plain Go
// values so rows look the same regardless of engine.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case sql.RawBytes:
		return string(val)
	default:
		return v
	}
}

// Elapsed is the wall-clock time since the execution started.
func (e *Execution) Elapsed() time.Duration { return time.Since(e.started) }
