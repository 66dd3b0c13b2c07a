package normalize

import (
	"github.com/satishbabariya/quarry/query/ast"
	"github.com/satishbabariya/quarry/query/qerror"
)

// filter parses a filter clause into the tagged filter union. Unknown
// operators are rejected here so the compiler never sees them.
func filter(raw any) (ast.Filter, error) {
	clause, ok := raw.([]any)
	if !ok || len(clause) == 0 {
		return nil, qerror.InvalidQuery("filter", "expected clause list, got %v", raw)
	}
	op, ok := clause[0].(string)
	if !ok {
		return nil, qerror.InvalidQuery("filter", "expected operator name, got %T", clause[0])
	}

	switch op = canonicalToken(op); op {
	case "and", "or":
		if len(clause) < 2 {
			return nil, qerror.InvalidQuery("filter", "%s requires at least one argument", op)
		}
		// Single-argument and/or collapses to its argument.
		if len(clause) == 2 {
			return filter(clause[1])
		}
		args := make([]ast.Filter, 0, len(clause)-1)
		for _, sub := range clause[1:] {
			f, err := filter(sub)
			if err != nil {
				return nil, err
			}
			args = append(args, f)
		}
		return ast.Logical{Op: ast.LogicalOp(op), Args: args}, nil

	case "not":
		if len(clause) != 2 {
			return nil, qerror.InvalidQuery("filter", "not takes exactly one argument")
		}
		arg, err := filter(clause[1])
		if err != nil {
			return nil, err
		}
		return ast.Logical{Op: ast.OpNot, Args: []ast.Filter{arg}}, nil

	case "=", "!=", ">", "<", ">=", "<=":
		if len(clause) < 3 {
			return nil, qerror.InvalidQuery("filter", "%s requires a field and a value", op)
		}
		f, err := fieldRef(clause[1])
		if err != nil {
			return nil, qerror.InvalidQuery("filter", "%v", err)
		}
		values := clause[2:]
		// ["=", f, nil] is a null check in the legacy grammar.
		if len(values) == 1 && values[0] == nil {
			switch op {
			case "=":
				return ast.NullCheck{Field: *f, IsNull: true}, nil
			case "!=":
				return ast.NullCheck{Field: *f, IsNull: false}, nil
			}
		}
		if len(values) > 1 && op != "=" && op != "!=" {
			return nil, qerror.InvalidQuery("filter", "%s takes exactly one value", op)
		}
		return ast.Comparison{Op: ast.ComparisonOp(op), Field: *f, Values: values}, nil

	case "between":
		if len(clause) != 4 {
			return nil, qerror.InvalidQuery("filter", "between requires a field and two bounds")
		}
		f, err := fieldRef(clause[1])
		if err != nil {
			return nil, qerror.InvalidQuery("filter", "%v", err)
		}
		return ast.Between{Field: *f, Low: clause[2], High: clause[3]}, nil

	case "is-null", "not-null":
		if len(clause) != 2 {
			return nil, qerror.InvalidQuery("filter", "%s takes exactly one field", op)
		}
		f, err := fieldRef(clause[1])
		if err != nil {
			return nil, qerror.InvalidQuery("filter", "%v", err)
		}
		return ast.NullCheck{Field: *f, IsNull: op == "is-null"}, nil

	case "contains", "starts-with", "ends-with":
		if len(clause) < 3 {
			return nil, qerror.InvalidQuery("filter", "%s requires a field and a string", op)
		}
		f, err := fieldRef(clause[1])
		if err != nil {
			return nil, qerror.InvalidQuery("filter", "%v", err)
		}
		s, ok := clause[2].(string)
		if !ok {
			return nil, qerror.InvalidQuery("filter", "%s requires a string value, got %T", op, clause[2])
		}
		m := ast.StringMatch{Op: ast.StringMatchOp(op), Field: *f, Value: s, CaseSensitive: true}
		if len(clause) > 3 {
			if opts, ok := clause[3].(map[string]any); ok {
				if cs, ok := canonicalKeys(opts)["case-sensitive"].(bool); ok {
					m.CaseSensitive = cs
				}
			}
		}
		return m, nil

	case "inside", "time-interval", "segment":
		return nil, qerror.InvalidQuery("filter", "filter %q is not supported", op)
	}

	return nil, qerror.InvalidQuery("filter", "unknown filter operator %q", op)
}
