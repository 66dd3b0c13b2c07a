package compile

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/quarry/query/ast"
	"github.com/satishbabariya/quarry/query/qerror"
	"github.com/satishbabariya/quarry/query/sqlgen"
)

// filter compiles a filter tree to one WHERE fragment. Values are
// always parameterized; the single exception is boolean literals,
// which render through the driver's boolean representation so engines
// without a boolean type compare against 1/0.
func (c *compiler) filter(f ast.Filter) (sqlgen.Expr, error) {
	switch v := f.(type) {
	case ast.Comparison:
		return c.comparison(v)
	case ast.Logical:
		return c.logical(v)
	case ast.Between:
		field, err := c.fieldExpr(v.Field)
		if err != nil {
			return sqlgen.Expr{}, err
		}
		return sqlgen.Expr{
			SQL:  fmt.Sprintf("%s BETWEEN ? AND ?", field.SQL),
			Args: append(append([]any{}, field.Args...), v.Low, v.High),
		}, nil
	case ast.NullCheck:
		field, err := c.fieldExpr(v.Field)
		if err != nil {
			return sqlgen.Expr{}, err
		}
		op := "IS NOT NULL"
		if v.IsNull {
			op = "IS NULL"
		}
		return sqlgen.Expr{SQL: fmt.Sprintf("%s %s", field.SQL, op), Args: field.Args}, nil
	case ast.StringMatch:
		return c.stringMatch(v)
	default:
		return sqlgen.Expr{}, qerror.Unsupported("filter", c.d.Driver, "filter kind %T", f)
	}
}

func (c *compiler) comparison(v ast.Comparison) (sqlgen.Expr, error) {
	field, err := c.fieldExpr(v.Field)
	if err != nil {
		return sqlgen.Expr{}, err
	}
	if len(v.Values) == 0 {
		return sqlgen.Expr{}, qerror.InvalidQuery("filter", "comparison on %s has no value", v.Field.ColumnName())
	}

	// Multi-value equality is set membership.
	if len(v.Values) > 1 {
		op := "IN"
		if v.Op == ast.OpNe {
			op = "NOT IN"
		} else if v.Op != ast.OpEq {
			return sqlgen.Expr{}, qerror.InvalidQuery("filter", "%s takes exactly one value", v.Op)
		}
		marks := make([]string, len(v.Values))
		args := append([]any{}, field.Args...)
		for i, val := range v.Values {
			marks[i] = "?"
			args = append(args, val)
		}
		return sqlgen.Expr{
			SQL:  fmt.Sprintf("%s %s (%s)", field.SQL, op, strings.Join(marks, ", ")),
			Args: args,
		}, nil
	}

	op := string(v.Op)
	if v.Op == ast.OpNe {
		op = "<>"
	}
	if b, ok := v.Values[0].(bool); ok {
		return sqlgen.Expr{
			SQL:  fmt.Sprintf("%s %s %s", field.SQL, op, c.d.BooleanLiteral(b)),
			Args: field.Args,
		}, nil
	}
	return sqlgen.Expr{
		SQL:  fmt.Sprintf("%s %s ?", field.SQL, op),
		Args: append(append([]any{}, field.Args...), v.Values[0]),
	}, nil
}

func (c *compiler) logical(v ast.Logical) (sqlgen.Expr, error) {
	if v.Op == ast.OpNot {
		if len(v.Args) != 1 {
			return sqlgen.Expr{}, qerror.InvalidQuery("filter", "not takes exactly one argument")
		}
		arg, err := c.filter(v.Args[0])
		if err != nil {
			return sqlgen.Expr{}, err
		}
		return sqlgen.Expr{SQL: fmt.Sprintf("NOT (%s)", arg.SQL), Args: arg.Args}, nil
	}

	if len(v.Args) == 0 {
		return sqlgen.Expr{}, qerror.InvalidQuery("filter", "%s has no arguments", v.Op)
	}
	joiner := " AND "
	if v.Op == ast.OpOr {
		joiner = " OR "
	}
	parts := make([]string, len(v.Args))
	var args []any
	for i, sub := range v.Args {
		expr, err := c.filter(sub)
		if err != nil {
			return sqlgen.Expr{}, err
		}
		parts[i] = "(" + expr.SQL + ")"
		args = append(args, expr.Args...)
	}
	return sqlgen.Expr{SQL: strings.Join(parts, joiner), Args: args}, nil
}

func (c *compiler) stringMatch(v ast.StringMatch) (sqlgen.Expr, error) {
	field, err := c.fieldExpr(v.Field)
	if err != nil {
		return sqlgen.Expr{}, err
	}

	var pattern string
	escaped := escapeLike(v.Value)
	switch v.Op {
	case ast.OpContains:
		pattern = "%" + escaped + "%"
	case ast.OpStartsWith:
		pattern = escaped + "%"
	case ast.OpEndsWith:
		pattern = "%" + escaped
	default:
		return sqlgen.Expr{}, qerror.Unsupported("filter", c.d.Driver, "string match %q", v.Op)
	}

	lhs := field.SQL
	op := "LIKE"
	if !v.CaseSensitive {
		if c.d.SupportsILike {
			op = "ILIKE"
		} else {
			lhs = fmt.Sprintf("LOWER(%s)", lhs)
			pattern = strings.ToLower(pattern)
		}
	}
	return sqlgen.Expr{
		SQL:  fmt.Sprintf("%s %s ?", lhs, op),
		Args: append(append([]any{}, field.Args...), pattern),
	}, nil
}

// escapeLike guards LIKE metacharacters in user-supplied match text.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}
