package normalize

import (
	"testing"

	"github.com/satishbabariya/quarry/query/ast"
)

func parseFilter(t *testing.T, raw any) ast.Filter {
	t.Helper()
	f, err := filter(raw)
	if err != nil {
		t.Fatalf("filter parse failed: %v", err)
	}
	return f
}

func TestFilterComparison(t *testing.T) {
	f := parseFilter(t, []any{">", float64(4), float64(100)})
	cmp, ok := f.(ast.Comparison)
	if !ok {
		t.Fatalf("expected comparison, got %T", f)
	}
	if cmp.Op != ast.OpGt || cmp.Field.ID != 4 || len(cmp.Values) != 1 {
		t.Errorf("unexpected comparison: %+v", cmp)
	}
}

func TestFilterMultiValueEquality(t *testing.T) {
	f := parseFilter(t, []any{"=", float64(4), "a", "b", "c"})
	cmp, ok := f.(ast.Comparison)
	if !ok {
		t.Fatalf("expected comparison, got %T", f)
	}
	if len(cmp.Values) != 3 {
		t.Errorf("expected 3 membership values, got %d", len(cmp.Values))
	}
}

func TestFilterEqualityNilIsNullCheck(t *testing.T) {
	f := parseFilter(t, []any{"=", float64(4), nil})
	nc, ok := f.(ast.NullCheck)
	if !ok {
		t.Fatalf("expected null check, got %T", f)
	}
	if !nc.IsNull {
		t.Error("= nil should mean IS NULL")
	}

	f = parseFilter(t, []any{"!=", float64(4), nil})
	nc, ok = f.(ast.NullCheck)
	if !ok {
		t.Fatalf("expected null check, got %T", f)
	}
	if nc.IsNull {
		t.Error("!= nil should mean IS NOT NULL")
	}
}

func TestFilterSingleArgAndCollapses(t *testing.T) {
	f := parseFilter(t, []any{"and", []any{">", float64(4), float64(1)}})
	if _, ok := f.(ast.Comparison); !ok {
		t.Errorf("single-argument and should collapse to its argument, got %T", f)
	}
}

func TestFilterNested(t *testing.T) {
	f := parseFilter(t, []any{"or",
		[]any{"and",
			[]any{"=", float64(1), "x"},
			[]any{"between", float64(2), float64(1), float64(10)},
		},
		[]any{"not", []any{"is-null", float64(3)}},
	})
	or, ok := f.(ast.Logical)
	if !ok || or.Op != ast.OpOr {
		t.Fatalf("expected or, got %+v", f)
	}
	if len(or.Args) != 2 {
		t.Fatalf("expected 2 or-arguments, got %d", len(or.Args))
	}
	if not, ok := or.Args[1].(ast.Logical); !ok || not.Op != ast.OpNot || len(not.Args) != 1 {
		t.Errorf("expected single-argument not, got %+v", or.Args[1])
	}
}

func TestFilterStringMatchCaseOption(t *testing.T) {
	f := parseFilter(t, []any{"contains", float64(4), "widget", map[string]any{"case_sensitive": false}})
	sm, ok := f.(ast.StringMatch)
	if !ok {
		t.Fatalf("expected string match, got %T", f)
	}
	if sm.CaseSensitive {
		t.Error("case_sensitive false was not honored")
	}

	// Defaults to case-sensitive.
	f = parseFilter(t, []any{"starts-with", float64(4), "wid"})
	sm = f.(ast.StringMatch)
	if !sm.CaseSensitive {
		t.Error("string match should default to case-sensitive")
	}
}

func TestFilterUnsupportedOperators(t *testing.T) {
	for _, op := range []string{"inside", "time-interval", "segment", "frobnicate"} {
		if _, err := filter([]any{op, float64(1), float64(2)}); err == nil {
			t.Errorf("expected error for operator %q", op)
		}
	}
}
