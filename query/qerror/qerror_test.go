package qerror

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestTypeOfConstructors(t *testing.T) {
	tests := []struct {
		err  error
		want Type
	}{
		{InvalidQuery("filter", "bad clause"), TypeInvalidQuery},
		{FieldResolution("field 9 missing"), TypeFieldResolution},
		{Unsupported("joins", "sqlite", "no full joins"), TypeUnsupported},
		{Permissions("denied"), TypePermissions},
		{Execution("postgres", errors.New("relation does not exist")), TypeDriverExecution},
		{Wrap(TypeInvalidParam, errors.New("boom"), "bad param"), TypeInvalidParam},
		{errors.New("plain"), TypeUnknown},
		{nil, TypeUnknown},
	}
	for _, tt := range tests {
		if got := TypeOf(tt.err); got != tt.want {
			t.Errorf("TypeOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestTypeOfWalksWrapChain(t *testing.T) {
	inner := FieldResolution("field 3 missing")
	wrapped := fmt.Errorf("running pipeline: %w", inner)
	if got := TypeOf(wrapped); got != TypeFieldResolution {
		t.Errorf("TypeOf = %v, want invalid-field through fmt wrapper", got)
	}
}

func TestTypeOfContextTakesPrecedence(t *testing.T) {
	// A cancel often surfaces wrapped inside a driver error; the
	// interruption is the truth.
	err := Execution("postgres", fmt.Errorf("query aborted: %w", context.Canceled))
	if got := TypeOf(err); got != TypeCancelled {
		t.Errorf("TypeOf = %v, want cancelled over driver-execution", got)
	}

	err = Wrap(TypeDriverExecution, context.DeadlineExceeded, "statement timeout")
	if got := TypeOf(err); got != TypeTimeout {
		t.Errorf("TypeOf = %v, want timeout over driver-execution", got)
	}
}

type fakeSQLState struct{ msg string }

func (e *fakeSQLState) Error() string    { return e.msg }
func (e *fakeSQLState) SQLState() string { return "42P01" }

func TestTypeOfDetectsNativeErrors(t *testing.T) {
	err := fmt.Errorf("exec: %w", &fakeSQLState{msg: `relation "orders" does not exist`})
	if got := TypeOf(err); got != TypeDriverExecution {
		t.Errorf("TypeOf = %v, want driver-execution for SQLState errors", got)
	}
}

func TestNormalizePrefersNativeMessage(t *testing.T) {
	native := &DriverError{Driver: "postgres", Code: "42P01", Message: `relation "orders" does not exist`}
	err := Wrap(TypeDriverExecution, fmt.Errorf("run query: %w", native), "execution failed")

	env := Normalize(err)
	if env.Status != "failed" {
		t.Errorf("status = %q", env.Status)
	}
	if env.ErrorType != TypeDriverExecution {
		t.Errorf("error type = %v", env.ErrorType)
	}
	if env.Error != native.Error() {
		t.Errorf("error = %q, want the native message %q", env.Error, native.Error())
	}
	if len(env.Via) == 0 {
		t.Error("via chain is empty")
	}
}

func TestNormalizeCancellationIsInterrupted(t *testing.T) {
	err := fmt.Errorf("streaming rows: %w", context.Canceled)
	env := Normalize(err)
	if env.Status != "interrupted" {
		t.Errorf("status = %q, want interrupted", env.Status)
	}
	if env.ErrorType != TypeCancelled {
		t.Errorf("error type = %v", env.ErrorType)
	}
}

func TestNormalizeTimeoutMessage(t *testing.T) {
	err := Wrap(TypeTimeout, context.DeadlineExceeded, "deadline hit")
	env := Normalize(err)
	if env.Status != "failed" {
		t.Errorf("status = %q", env.Status)
	}
	if env.ErrorType != TypeTimeout {
		t.Errorf("error type = %v", env.ErrorType)
	}
	if env.Error != "query timed out" {
		t.Errorf("error = %q", env.Error)
	}
}

func TestNormalizeValidationDigsForInnermostMessage(t *testing.T) {
	inner := InvalidQuery("filter", "unknown filter operator %q", "frobnicate")
	err := Wrap(TypeInvalidQuery, inner, "normalize query")
	env := Normalize(err)
	if env.Error != inner.Error() {
		t.Errorf("error = %q, want innermost %q", env.Error, inner.Error())
	}
}

func TestNormalizeNilError(t *testing.T) {
	env := Normalize(nil)
	if env.Status != "failed" || env.ErrorType != TypeUnknown {
		t.Errorf("got %+v", env)
	}
}

func TestQueryErrorFormatting(t *testing.T) {
	e := Unsupported("joins", "sqlite", "no full joins")
	want := "unsupported-operation: no full joins (clause joins, driver sqlite)"
	if e.Error() != want {
		t.Errorf("got %q, want %q", e.Error(), want)
	}

	d := &DriverError{Driver: "mysql", Code: "1146", Message: "table missing"}
	if d.Error() != "mysql [1146]: table missing" {
		t.Errorf("got %q", d.Error())
	}
}

func TestQueryErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	e := Execution("postgres", cause)
	if !errors.Is(e, cause) {
		t.Error("errors.Is does not reach the cause")
	}
}
