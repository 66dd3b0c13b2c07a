// Package auth declares the authorization boundary. The decision
// itself belongs to the surrounding product; the query core only asks
// before compiling and surfaces a denial unchanged.
package auth

import (
	"context"

	"github.com/satishbabariya/quarry/query/ast"
)

// Checker answers whether a user may run a query.
type Checker interface {
	CanRun(ctx context.Context, userID int64, q *ast.Query) (bool, error)
}

// AllowAll approves every query; the default when no authorization
// collaborator is wired.
type AllowAll struct{}

func (AllowAll) CanRun(context.Context, int64, *ast.Query) (bool, error) {
	return true, nil
}

// DenyFunc adapts a function to the Checker interface.
type DenyFunc func(ctx context.Context, userID int64, q *ast.Query) (bool, error)

func (f DenyFunc) CanRun(ctx context.Context, userID int64, q *ast.Query) (bool, error) {
	return f(ctx, userID, q)
}
