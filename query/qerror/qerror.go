// Package qerror defines the query error taxonomy and the normalized
// error envelope returned to callers.
package qerror

import (
	"context"
	"errors"
	"fmt"
)

// Type categorizes a query failure. The values are stable and
// machine-readable by API clients.
type Type string

const (
	TypeInvalidQuery    Type = "invalid-query"
	TypeFieldResolution Type = "invalid-field"
	TypeInvalidParam    Type = "invalid-parameter"
	TypeUnsupported     Type = "unsupported-operation"
	TypePermissions     Type = "permissions-error"
	TypeDriverExecution Type = "driver-execution"
	TypeTimeout         Type = "timeout"
	TypeCancelled       Type = "cancelled"
	TypeUnknown         Type = "unknown"
)

// QueryError is a failure raised by any stage of the query pipeline.
// Clause and Driver are set when the failing clause or target driver
// is known.
type QueryError struct {
	Type    Type
	Message string
	Clause  string
	Driver  string
	Cause   error
}

func (e *QueryError) Error() string {
	switch {
	case e.Clause != "" && e.Driver != "":
		return fmt.Sprintf("%s: %s (clause %s, driver %s)", e.Type, e.Message, e.Clause, e.Driver)
	case e.Clause != "":
		return fmt.Sprintf("%s: %s (clause %s)", e.Type, e.Message, e.Clause)
	case e.Driver != "":
		return fmt.Sprintf("%s: %s (driver %s)", e.Type, e.Message, e.Driver)
	default:
		return fmt.Sprintf("%s: %s", e.Type, e.Message)
	}
}

func (e *QueryError) Unwrap() error { return e.Cause }

// InvalidQuery reports a malformed or unnormalizable query document.
func InvalidQuery(clause, format string, args ...any) *QueryError {
	return &QueryError{Type: TypeInvalidQuery, Clause: clause, Message: fmt.Sprintf(format, args...)}
}

// FieldResolution reports an unknown field or table reference.
func FieldResolution(format string, args ...any) *QueryError {
	return &QueryError{Type: TypeFieldResolution, Message: fmt.Sprintf(format, args...)}
}

// Unsupported reports a clause the target driver cannot express.
func Unsupported(clause, driver, format string, args ...any) *QueryError {
	return &QueryError{Type: TypeUnsupported, Clause: clause, Driver: driver, Message: fmt.Sprintf(format, args...)}
}

// Permissions reports an authorization denial. The message is surfaced
// unchanged; the denial itself is decided by the external checker.
func Permissions(format string, args ...any) *QueryError {
	return &QueryError{Type: TypePermissions, Message: fmt.Sprintf(format, args...)}
}

// Execution wraps an error raised by the native database engine.
func Execution(driver string, cause error) *QueryError {
	return &QueryError{Type: TypeDriverExecution, Driver: driver, Message: cause.Error(), Cause: cause}
}

// Wrap attaches a query error type to an underlying cause.
func Wrap(t Type, cause error, format string, args ...any) *QueryError {
	return &QueryError{Type: t, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// DriverError carries a native engine error together with the engine's
// own error code (SQLSTATE or vendor code). Kept verbatim because the
// native message is more actionable than any wrapper around it.
type DriverError struct {
	Driver  string
	Code    string
	Message string
	Cause   error
}

func (e *DriverError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Driver, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Driver, e.Message)
}

func (e *DriverError) Unwrap() error { return e.Cause }

// sqlStater is implemented by lib/pq and mysql driver errors.
type sqlStater interface {
	SQLState() string
}

// TypeOf reports the query error type of err, walking the cause chain.
// Context cancellation and deadline errors take precedence because an
// interrupted execution frequently surfaces first as a driver error.
func TypeOf(err error) Type {
	if err == nil {
		return TypeUnknown
	}
	if errors.Is(err, context.Canceled) {
		return TypeCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TypeTimeout
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		if qe, ok := e.(*QueryError); ok {
			return qe.Type
		}
	}
	var de *DriverError
	if errors.As(err, &de) {
		return TypeDriverExecution
	}
	if isNativeError(err) {
		return TypeDriverExecution
	}
	return TypeUnknown
}

func isNativeError(err error) bool {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if _, ok := e.(sqlStater); ok {
			return true
		}
	}
	return false
}
