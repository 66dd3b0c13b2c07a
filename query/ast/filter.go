package ast

// Filter is a tagged-union filter clause. The normalizer constructs
// only the variants below; the compiler rejects anything else.
type Filter interface {
	FilterKind() FilterKind
}

// FilterKind discriminates filter variants.
type FilterKind string

const (
	KindComparison  FilterKind = "comparison"
	KindLogical     FilterKind = "logical"
	KindBetween     FilterKind = "between"
	KindNullCheck   FilterKind = "null-check"
	KindStringMatch FilterKind = "string-match"
)

// ComparisonOp is a binary comparison operator.
type ComparisonOp string

const (
	OpEq  ComparisonOp = "="
	OpNe  ComparisonOp = "!="
	OpGt  ComparisonOp = ">"
	OpLt  ComparisonOp = "<"
	OpGte ComparisonOp = ">="
	OpLte ComparisonOp = "<="
)

// Comparison compares a field against one or more literal values.
// More than one value means set membership (IN / NOT IN).
type Comparison struct {
	Op     ComparisonOp
	Field  FieldRef
	Values []any
}

func (Comparison) FilterKind() FilterKind { return KindComparison }

// LogicalOp combines sub-filters.
type LogicalOp string

const (
	OpAnd LogicalOp = "and"
	OpOr  LogicalOp = "or"
	OpNot LogicalOp = "not"
)

// Logical is a boolean combination of sub-filters. Not has exactly one
// argument.
type Logical struct {
	Op   LogicalOp
	Args []Filter
}

func (Logical) FilterKind() FilterKind { return KindLogical }

// Between is an inclusive range check.
type Between struct {
	Field FieldRef
	Low   any
	High  any
}

func (Between) FilterKind() FilterKind { return KindBetween }

// NullCheck tests a field for NULL.
type NullCheck struct {
	Field  FieldRef
	IsNull bool
}

func (NullCheck) FilterKind() FilterKind { return KindNullCheck }

// StringMatchOp is a substring match operator.
type StringMatchOp string

const (
	OpContains   StringMatchOp = "contains"
	OpStartsWith StringMatchOp = "starts-with"
	OpEndsWith   StringMatchOp = "ends-with"
)

// StringMatch matches a text field by substring position.
type StringMatch struct {
	Op            StringMatchOp
	Field         FieldRef
	Value         string
	CaseSensitive bool
}

func (StringMatch) FilterKind() FilterKind { return KindStringMatch }

// MapFields rebuilds the filter tree with fn applied to every field
// reference. The input tree is never mutated.
func MapFields(f Filter, fn func(FieldRef) (FieldRef, error)) (Filter, error) {
	if f == nil {
		return nil, nil
	}
	switch v := f.(type) {
	case Comparison:
		field, err := fn(v.Field)
		if err != nil {
			return nil, err
		}
		v.Field = field
		return v, nil
	case Between:
		field, err := fn(v.Field)
		if err != nil {
			return nil, err
		}
		v.Field = field
		return v, nil
	case NullCheck:
		field, err := fn(v.Field)
		if err != nil {
			return nil, err
		}
		v.Field = field
		return v, nil
	case StringMatch:
		field, err := fn(v.Field)
		if err != nil {
			return nil, err
		}
		v.Field = field
		return v, nil
	case Logical:
		args := make([]Filter, len(v.Args))
		for i, arg := range v.Args {
			mapped, err := MapFields(arg, fn)
			if err != nil {
				return nil, err
			}
			args[i] = mapped
		}
		v.Args = args
		return v, nil
	default:
		return f, nil
	}
}

// Fields collects every field reference in the filter tree.
func Fields(f Filter) []FieldRef {
	var out []FieldRef
	switch v := f.(type) {
	case Comparison:
		out = append(out, v.Field)
	case Between:
		out = append(out, v.Field)
	case NullCheck:
		out = append(out, v.Field)
	case StringMatch:
		out = append(out, v.Field)
	case Logical:
		for _, arg := range v.Args {
			out = append(out, Fields(arg)...)
		}
	}
	return out
}
