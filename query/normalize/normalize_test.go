package normalize

import (
	"errors"
	"reflect"
	"testing"

	"github.com/satishbabariya/quarry/query/ast"
	"github.com/satishbabariya/quarry/query/qerror"
)

func TestNormalizeBasicStructured(t *testing.T) {
	raw := map[string]any{
		"database": float64(1),
		"type":     "query",
		"query": map[string]any{
			"source_table": float64(10),
			"limit":        float64(100),
		},
	}
	q, err := Query(raw)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if q.Type != ast.TypeStructured {
		t.Errorf("expected structured type, got %s", q.Type)
	}
	if q.Database != 1 {
		t.Errorf("expected database 1, got %d", q.Database)
	}
	if q.Query.SourceTable != 10 {
		t.Errorf("expected source table 10, got %d", q.Query.SourceTable)
	}
	if q.Query.Limit == nil || *q.Query.Limit != 100 {
		t.Errorf("expected limit 100, got %v", q.Query.Limit)
	}
}

func TestNormalizeInfersTypeFromPayload(t *testing.T) {
	q, err := Query(map[string]any{
		"database": float64(1),
		"native":   map[string]any{"query": "SELECT 1"},
	})
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if q.Type != ast.TypeNative {
		t.Errorf("expected inferred native type, got %s", q.Type)
	}

	q, err = Query(map[string]any{
		"database": float64(1),
		"query":    map[string]any{"source-table": float64(3)},
	})
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if q.Type != ast.TypeStructured {
		t.Errorf("expected inferred structured type, got %s", q.Type)
	}
}

func TestNormalizeSnakeCaseKeys(t *testing.T) {
	q, err := Query(map[string]any{
		"database": float64(1),
		"type":     "query",
		"query": map[string]any{
			"source_table": float64(5),
			"order_by":     []any{[]any{"asc", float64(7)}},
		},
	})
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if len(q.Query.OrderBy) != 1 {
		t.Fatalf("expected 1 order-by, got %d", len(q.Query.OrderBy))
	}
	if q.Query.OrderBy[0].Field.ID != 7 {
		t.Errorf("expected order-by field 7, got %d", q.Query.OrderBy[0].Field.ID)
	}
}

func TestNormalizeFieldRefForms(t *testing.T) {
	cases := []struct {
		name string
		raw  any
		want ast.FieldRef
	}{
		{"bare id", float64(17), ast.FieldRef{ID: 17}},
		{"field-id", []any{"field-id", float64(17)}, ast.FieldRef{ID: 17}},
		{"field id", []any{"field", float64(17), nil}, ast.FieldRef{ID: 17}},
		{"field name", []any{"field", "total", map[string]any{"base-type": "type/Float"}},
			ast.FieldRef{Name: "total", BaseType: "type/Float"}},
		{"field-literal", []any{"field-literal", "total", "type/Float"},
			ast.FieldRef{Name: "total", BaseType: "type/Float"}},
		{"datetime-field", []any{"datetime-field", []any{"field-id", float64(3)}, "month"},
			ast.FieldRef{ID: 3, Unit: ast.UnitMonth}},
		{"datetime-field as", []any{"datetime-field", float64(3), "as", "day"},
			ast.FieldRef{ID: 3, Unit: ast.UnitDay}},
		{"fk->", []any{"fk->", float64(4), float64(9)},
			ast.FieldRef{ID: 9, SourceField: 4}},
		{"join alias", []any{"field", float64(2), map[string]any{"join-alias": "o", "temporal-unit": "year"}},
			ast.FieldRef{ID: 2, JoinAlias: "o", Unit: ast.UnitYear}},
	}
	for _, tc := range cases {
		f, err := fieldRef(tc.raw)
		if err != nil {
			t.Errorf("%s: %v", tc.name, err)
			continue
		}
		if !reflect.DeepEqual(*f, tc.want) {
			t.Errorf("%s: got %+v, want %+v", tc.name, *f, tc.want)
		}
	}
}

func TestNormalizeAggregationShorthand(t *testing.T) {
	// A single non-nested clause is shorthand for a one-element list.
	q, err := Query(map[string]any{
		"database": float64(1),
		"type":     "query",
		"query": map[string]any{
			"source-table": float64(1),
			"aggregation":  []any{"count"},
		},
	})
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if len(q.Query.Aggregations) != 1 || q.Query.Aggregations[0].Op != ast.AggCount {
		t.Fatalf("expected single count aggregation, got %+v", q.Query.Aggregations)
	}
}

func TestNormalizeRowsAggregationDropped(t *testing.T) {
	q, err := Query(map[string]any{
		"database": float64(1),
		"type":     "query",
		"query": map[string]any{
			"source-table": float64(1),
			"aggregation":  []any{[]any{"rows"}},
		},
	})
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if len(q.Query.Aggregations) != 0 {
		t.Errorf("expected rows aggregation to be dropped, got %+v", q.Query.Aggregations)
	}
}

func TestNormalizePageClause(t *testing.T) {
	q, err := Query(map[string]any{
		"database": float64(1),
		"type":     "query",
		"query": map[string]any{
			"source-table": float64(1),
			"page":         map[string]any{"page": float64(3), "items": float64(25)},
		},
	})
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if q.Query.Limit == nil || *q.Query.Limit != 25 {
		t.Errorf("expected limit 25, got %v", q.Query.Limit)
	}
	if q.Query.Offset == nil || *q.Query.Offset != 50 {
		t.Errorf("expected offset 50, got %v", q.Query.Offset)
	}
}

func TestNormalizePageOneKeepsZeroOffset(t *testing.T) {
	// Page one carries offset zero rather than no offset, so every page
	// of a paginated query takes the same representation downstream.
	q, err := Query(map[string]any{
		"database": float64(1),
		"type":     "query",
		"query": map[string]any{
			"source-table": float64(1),
			"page":         map[string]any{"page": float64(1), "items": float64(25)},
		},
	})
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if q.Query.Offset == nil || *q.Query.Offset != 0 {
		t.Errorf("expected offset 0, got %v", q.Query.Offset)
	}
}

func TestNormalizeLegacyOrderByAndDedup(t *testing.T) {
	q, err := Query(map[string]any{
		"database": float64(1),
		"type":     "query",
		"query": map[string]any{
			"source-table": float64(1),
			"order-by": []any{
				[]any{float64(5), "ascending"}, // legacy [field dir]
				[]any{"asc", float64(5)},       // duplicate, dropped
				[]any{"desc", float64(6)},
			},
		},
	})
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if len(q.Query.OrderBy) != 2 {
		t.Fatalf("expected 2 order-by entries after dedup, got %d", len(q.Query.OrderBy))
	}
	if q.Query.OrderBy[0].Field.ID != 5 || q.Query.OrderBy[0].Direction != ast.SortAsc {
		t.Errorf("unexpected first order-by: %+v", q.Query.OrderBy[0])
	}
	if q.Query.OrderBy[1].Field.ID != 6 || q.Query.OrderBy[1].Direction != ast.SortDesc {
		t.Errorf("unexpected second order-by: %+v", q.Query.OrderBy[1])
	}
}

func TestNormalizeCardSource(t *testing.T) {
	q, err := Query(map[string]any{
		"database": float64(1),
		"type":     "query",
		"query":    map[string]any{"source-table": "card__42"},
	})
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if q.Query.SourceCard != 42 {
		t.Errorf("expected source card 42, got %d", q.Query.SourceCard)
	}
}

func TestNormalizeJoinRequiresAliasAndCondition(t *testing.T) {
	_, err := Query(map[string]any{
		"database": float64(1),
		"type":     "query",
		"query": map[string]any{
			"source-table": float64(1),
			"joins": []any{map[string]any{
				"source-table": float64(2),
				"condition":    []any{"=", float64(1), float64(2)},
			}},
		},
	})
	if err == nil {
		t.Fatal("expected error for join without alias")
	}

	_, err = Query(map[string]any{
		"database": float64(1),
		"type":     "query",
		"query": map[string]any{
			"source-table": float64(1),
			"joins": []any{map[string]any{
				"source-table": float64(2),
				"alias":        "o",
			}},
		},
	})
	if err == nil {
		t.Fatal("expected error for join without condition")
	}
}

func TestNormalizeErrorsAreTyped(t *testing.T) {
	cases := []map[string]any{
		{},
		{"database": float64(1), "type": "query"},
		{"database": float64(1), "type": "query", "query": map[string]any{}},
		{"database": float64(1), "type": "query", "query": map[string]any{
			"source-table": float64(1), "limit": float64(-1),
		}},
		{"database": "nope", "type": "query", "query": map[string]any{"source-table": float64(1)}},
	}
	for i, raw := range cases {
		_, err := Query(raw)
		if err == nil {
			t.Errorf("case %d: expected error", i)
			continue
		}
		var qe *qerror.QueryError
		if !errors.As(err, &qe) || qe.Type != qerror.TypeInvalidQuery {
			t.Errorf("case %d: expected invalid-query error, got %v", i, err)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	raw := map[string]any{
		"database": float64(2),
		"type":     "query",
		"query": map[string]any{
			"source_table": float64(10),
			"aggregation":  []any{[]any{"count"}, []any{"sum", float64(4)}},
			"breakout":     []any{[]any{"datetime-field", float64(3), "month"}},
			"filter":       []any{"and", []any{">", float64(4), float64(100)}, []any{"is-null", float64(5)}},
			"order_by":     []any{[]any{"desc", []any{"field", float64(3), map[string]any{"temporal_unit": "month"}}}},
			"limit":        float64(10),
			"offset":       float64(20),
		},
	}
	first, err := Query(raw)
	if err != nil {
		t.Fatalf("first normalize failed: %v", err)
	}
	second, err := Query(ToWire(first))
	if err != nil {
		t.Fatalf("re-normalize failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("normalization is not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestNormalizeNativePassthrough(t *testing.T) {
	q, err := Query(map[string]any{
		"database": float64(1),
		"type":     "native",
		"native": map[string]any{
			"query":  "SELECT * FROM orders WHERE id = ?",
			"params": []any{float64(7)},
		},
	})
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if q.Native.Query != "SELECT * FROM orders WHERE id = ?" {
		t.Errorf("unexpected native text: %s", q.Native.Query)
	}
	if len(q.Native.Params) != 1 {
		t.Errorf("expected 1 param, got %d", len(q.Native.Params))
	}
}

func TestNormalizeEmptyNativeRejected(t *testing.T) {
	_, err := Query(map[string]any{
		"database": float64(1),
		"type":     "native",
		"native":   map[string]any{"query": "   "},
	})
	if err == nil {
		t.Fatal("expected error for blank native query")
	}
}
