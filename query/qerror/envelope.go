package qerror

import (
	"context"
	"errors"
)

// Envelope is the normalized, user-facing error response. Status is
// "failed" for genuine failures and "interrupted" for caller-triggered
// cancellation; Via records every wrapper between the reported message
// and the innermost cause.
type Envelope struct {
	Status    string   `json:"status"`
	Error     string   `json:"error"`
	ErrorType Type     `json:"error_type"`
	Via       []string `json:"via,omitempty"`
}

// Normalize folds an error's cause chain into one envelope.
//
// The top-level message wins unless a database-native error appears
// anywhere in the chain; the native message is preferred because it
// names the actual engine-side problem. Cancellation is reported as
// status "interrupted", never as a failure.
func Normalize(err error) Envelope {
	if err == nil {
		return Envelope{Status: "failed", Error: "unknown error", ErrorType: TypeUnknown}
	}

	t := TypeOf(err)
	env := Envelope{Status: "failed", Error: err.Error(), ErrorType: t}
	if t == TypeCancelled {
		env.Status = "interrupted"
	}

	// Walk innermost-to-outermost wrappers into via, and pick the most
	// informative message along the way.
	var native string
	for e := err; e != nil; e = errors.Unwrap(e) {
		if e != err {
			env.Via = append(env.Via, e.Error())
		}
		switch v := e.(type) {
		case *DriverError:
			native = v.Error()
		case sqlStater:
			native = e.Error()
		}
		// Validation wrappers bury the useful message; keep digging for
		// the innermost named failure.
		if qe, ok := e.(*QueryError); ok && qe.Type == TypeInvalidQuery && qe.Cause != nil {
			env.Error = innermostMessage(qe)
		}
	}
	if native != "" && t == TypeDriverExecution {
		env.Error = native
	}
	if errors.Is(err, context.DeadlineExceeded) && t == TypeTimeout {
		env.Error = "query timed out"
	}
	return env
}

func innermostMessage(err error) string {
	msg := err.Error()
	for e := err; e != nil; e = errors.Unwrap(e) {
		msg = e.Error()
	}
	return msg
}
