package executor

import (
	"github.com/satishbabariya/quarry/metadata"
	"github.com/satishbabariya/quarry/query/qerror"
)

// Column is normalized column metadata, uniform across drivers.
type Column struct {
	Name     string            `json:"name"`
	BaseType metadata.BaseType `json:"base_type"`
}

// Data is the tabular payload of a result.
type Data struct {
	Cols []Column `json:"cols"`
	Rows [][]any  `json:"rows"`
}

// Result is the uniform result envelope returned to callers. Failed
// results always carry a non-empty Error; rows and cols are present
// (possibly empty) on every path.
type Result struct {
	Data      Data        `json:"data"`
	RowCount  int         `json:"row_count"`
	Status    string      `json:"status"`
	Error     string      `json:"error,omitempty"`
	ErrorType qerror.Type `json:"error_type,omitempty"`
	Truncated bool        `json:"truncated,omitempty"`
}

const (
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
	StatusInterrupted = "interrupted"
)

// FailedResult builds a failure envelope from an error, normalizing
// the cause chain. The data block is present but empty so callers can
// consume the shape without nil checks.
func FailedResult(err error) *Result {
	env := qerror.Normalize(err)
	return &Result{
		Data:      Data{Cols: []Column{}, Rows: [][]any{}},
		RowCount:  0,
		Status:    env.Status,
		Error:     env.Error,
		ErrorType: env.ErrorType,
	}
}

// RowSink consumes a streamed result: column metadata exactly once,
// then rows in engine order.
type RowSink interface {
	Cols([]Column) error
	Row([]any) error
}

// CappedSink materializes rows up to a cap; rows past the cap mark the
// result truncated and stop consumption.
type CappedSink struct {
	Cap       int
	cols      []Column
	rows      [][]any
	truncated bool
}

// ErrRowCap is the sentinel a sink returns to stop streaming without
// reporting a failure.
var ErrRowCap = errRowCap{}

type errRowCap struct{}

func (errRowCap) Error() string { return "row cap reached" }

func (s *CappedSink) Cols(cols []Column) error {
	s.cols = cols
	return nil
}

func (s *CappedSink) Row(row []any) error {
	if s.Cap > 0 && len(s.rows) >= s.Cap {
		s.truncated = true
		return ErrRowCap
	}
	s.rows = append(s.rows, row)
	return nil
}

// Result assembles the completed envelope.
func (s *CappedSink) Result() *Result {
	cols := s.cols
	if cols == nil {
		cols = []Column{}
	}
	rows := s.rows
	if rows == nil {
		rows = [][]any{}
	}
	return &Result{
		Data:      Data{Cols: cols, Rows: rows},
		RowCount:  len(rows),
		Status:    StatusCompleted,
		Truncated: s.truncated,
	}
}
