// Package normalize converts raw wire-format query documents into the
// canonical AST. It accepts every clause spelling the API has ever
// shipped (snake_case keys, legacy field refs, implicit aggregation
// lists) and produces exactly one shape, so downstream stages never see
// a legacy form.
//
// Normalization is pure and idempotent: re-normalizing the wire form of
// a normalized query is a no-op.
package normalize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/satishbabariya/quarry/metadata"
	"github.com/satishbabariya/quarry/query/ast"
	"github.com/satishbabariya/quarry/query/qerror"
)

// Query normalizes a raw query document.
func Query(raw map[string]any) (*ast.Query, error) {
	if len(raw) == 0 {
		return nil, qerror.InvalidQuery("", "query document is empty")
	}
	doc := canonicalKeys(raw)

	q := &ast.Query{}

	switch t := doc["type"].(type) {
	case string:
		q.Type = ast.QueryType(strings.ToLower(t))
	case nil:
		// Infer from payload for documents predating the discriminator.
		if _, ok := doc["native"]; ok {
			q.Type = ast.TypeNative
		} else {
			q.Type = ast.TypeStructured
		}
	default:
		return nil, qerror.InvalidQuery("type", "expected string, got %T", t)
	}

	if id, ok := asInt(doc["database"]); ok {
		q.Database = id
	} else if doc["database"] != nil {
		return nil, qerror.InvalidQuery("database", "expected integer id, got %T", doc["database"])
	}

	switch q.Type {
	case ast.TypeStructured:
		inner, ok := doc["query"].(map[string]any)
		if !ok {
			return nil, qerror.InvalidQuery("query", "structured query requires a query clause")
		}
		body, err := structuredQuery(canonicalKeys(inner))
		if err != nil {
			return nil, err
		}
		q.Query = body
	case ast.TypeNative:
		inner, ok := doc["native"].(map[string]any)
		if !ok {
			return nil, qerror.InvalidQuery("native", "native query requires a native clause")
		}
		body, err := nativeQuery(canonicalKeys(inner))
		if err != nil {
			return nil, err
		}
		q.Native = body
	default:
		return nil, qerror.InvalidQuery("type", "unknown query type %q", q.Type)
	}

	return q, nil
}

func structuredQuery(doc map[string]any) (*ast.StructuredQuery, error) {
	q := &ast.StructuredQuery{}

	if v, ok := doc["source-table"]; ok && v != nil {
		id, ok := asInt(v)
		if !ok {
			// Card references arrive as "card__123".
			if s, isStr := v.(string); isStr && strings.HasPrefix(s, "card__") {
				cardID, ok2 := asIntString(strings.TrimPrefix(s, "card__"))
				if !ok2 {
					return nil, qerror.InvalidQuery("source-table", "malformed card reference %q", s)
				}
				q.SourceCard = cardID
			} else {
				return nil, qerror.InvalidQuery("source-table", "expected table id, got %T", v)
			}
		} else {
			q.SourceTable = id
		}
	}
	if v, ok := doc["source-card"]; ok && v != nil {
		id, ok := asInt(v)
		if !ok {
			return nil, qerror.InvalidQuery("source-card", "expected card id, got %T", v)
		}
		q.SourceCard = id
	}
	if v, ok := doc["source-query"].(map[string]any); ok {
		sub, err := structuredQuery(canonicalKeys(v))
		if err != nil {
			return nil, err
		}
		q.SourceQuery = sub
	}
	if q.Empty() {
		return nil, qerror.InvalidQuery("source-table", "query has no source table, card, or source query")
	}

	if v, ok := doc["joins"].([]any); ok {
		for i, raw := range v {
			jm, ok := raw.(map[string]any)
			if !ok {
				return nil, qerror.InvalidQuery("joins", "join %d: expected map, got %T", i, raw)
			}
			j, err := join(canonicalKeys(jm))
			if err != nil {
				return nil, err
			}
			q.Joins = append(q.Joins, *j)
		}
	}

	if v, ok := doc["fields"].([]any); ok {
		for _, raw := range v {
			f, err := fieldRef(raw)
			if err != nil {
				return nil, qerror.InvalidQuery("fields", "%v", err)
			}
			q.Fields = append(q.Fields, *f)
		}
	}

	if v, ok := doc["filter"]; ok && v != nil {
		f, err := filter(v)
		if err != nil {
			return nil, err
		}
		q.Filter = f
	}

	if v, ok := doc["aggregation"]; ok && v != nil {
		aggs, err := aggregations(v)
		if err != nil {
			return nil, err
		}
		q.Aggregations = aggs
	}

	if v, ok := doc["breakout"].([]any); ok {
		for _, raw := range v {
			f, err := fieldRef(raw)
			if err != nil {
				return nil, qerror.InvalidQuery("breakout", "%v", err)
			}
			q.Breakouts = append(q.Breakouts, *f)
		}
	}

	if v, ok := doc["order-by"].([]any); ok {
		for _, raw := range v {
			ob, err := orderBy(raw)
			if err != nil {
				return nil, err
			}
			// An order-by duplicating an earlier one is dropped, not an
			// error.
			dup := false
			for _, existing := range q.OrderBy {
				if existing.Field.Key() == ob.Field.Key() {
					dup = true
					break
				}
			}
			if !dup {
				q.OrderBy = append(q.OrderBy, *ob)
			}
		}
	}

	if v, ok := doc["limit"]; ok && v != nil {
		n, ok := asInt(v)
		if !ok || n < 0 {
			return nil, qerror.InvalidQuery("limit", "expected non-negative integer, got %v", v)
		}
		q.Limit = &n
	}
	if v, ok := doc["offset"]; ok && v != nil {
		n, ok := asInt(v)
		if !ok || n < 0 {
			return nil, qerror.InvalidQuery("offset", "expected non-negative integer, got %v", v)
		}
		q.Offset = &n
	}

	if v, ok := doc["page"].(map[string]any); ok {
		// Legacy pagination clause {page: {page: k, items: n}} rewritten
		// to limit/offset.
		pm := canonicalKeys(v)
		page, ok1 := asInt(pm["page"])
		items, ok2 := asInt(pm["items"])
		if !ok1 || !ok2 || page < 1 || items < 1 {
			return nil, qerror.InvalidQuery("page", "expected {page >= 1, items >= 1}, got %v", v)
		}
		q.Limit = &items
		// Page one keeps its zero offset so every page of a paginated
		// query takes the same representation.
		off := (page - 1) * items
		q.Offset = &off
	}

	return q, nil
}

func nativeQuery(doc map[string]any) (*ast.NativeQuery, error) {
	n := &ast.NativeQuery{}
	switch v := doc["query"].(type) {
	case string:
		n.Query = v
	default:
		return nil, qerror.InvalidQuery("native", "expected query text, got %T", v)
	}
	if strings.TrimSpace(n.Query) == "" {
		return nil, qerror.InvalidQuery("native", "native query text is empty")
	}
	if v, ok := doc["params"].([]any); ok && len(v) > 0 {
		n.Params = v
	}
	if v, ok := doc["template-tags"].(map[string]any); ok && len(v) > 0 {
		n.TemplateTags = make(map[string]ast.TemplateTag, len(v))
		for name, raw := range v {
			tm, ok := raw.(map[string]any)
			if !ok {
				return nil, qerror.InvalidQuery("template-tags", "tag %q: expected map, got %T", name, raw)
			}
			tag := canonicalKeys(tm)
			t := ast.TemplateTag{Name: name}
			if s, ok := tag["display-name"].(string); ok {
				t.DisplayName = s
			}
			if s, ok := tag["type"].(string); ok {
				t.Type = s
			}
			if b, ok := tag["required"].(bool); ok {
				t.Required = b
			}
			t.Default = tag["default"]
			n.TemplateTags[name] = t
		}
	}
	return n, nil
}

func join(doc map[string]any) (*ast.Join, error) {
	j := &ast.Join{Strategy: ast.JoinLeft}
	if v, ok := doc["source-table"]; ok && v != nil {
		id, ok := asInt(v)
		if !ok {
			return nil, qerror.InvalidQuery("joins", "join source-table: expected id, got %T", v)
		}
		j.SourceTable = id
	}
	if v, ok := doc["source-card"]; ok && v != nil {
		id, ok := asInt(v)
		if !ok {
			return nil, qerror.InvalidQuery("joins", "join source-card: expected id, got %T", v)
		}
		j.SourceCard = id
	}
	if v, ok := doc["source-query"].(map[string]any); ok {
		sub, err := structuredQuery(canonicalKeys(v))
		if err != nil {
			return nil, err
		}
		j.SourceQuery = sub
	}
	if j.SourceTable == 0 && j.SourceCard == 0 && j.SourceQuery == nil {
		return nil, qerror.InvalidQuery("joins", "join has no source")
	}
	if s, ok := doc["alias"].(string); ok && s != "" {
		j.Alias = s
	} else {
		return nil, qerror.InvalidQuery("joins", "join requires an alias")
	}
	if s, ok := doc["strategy"].(string); ok && s != "" {
		switch strat := ast.JoinStrategy(canonicalToken(s)); strat {
		case ast.JoinLeft, ast.JoinInner, ast.JoinRight, ast.JoinFull:
			j.Strategy = strat
		default:
			return nil, qerror.InvalidQuery("joins", "unknown join strategy %q", s)
		}
	}
	if v, ok := doc["condition"]; ok && v != nil {
		f, err := filter(v)
		if err != nil {
			return nil, err
		}
		j.Condition = f
	} else {
		return nil, qerror.InvalidQuery("joins", "join %q requires a condition", j.Alias)
	}
	return j, nil
}

func aggregations(v any) ([]ast.Aggregation, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, qerror.InvalidQuery("aggregation", "expected list, got %T", v)
	}
	if len(list) == 0 {
		return nil, nil
	}
	// A single non-nested clause like ["count"] is a shorthand for
	// [["count"]].
	if _, isStr := list[0].(string); isStr {
		list = []any{list}
	}
	var out []ast.Aggregation
	for _, raw := range list {
		clause, ok := raw.([]any)
		if !ok || len(clause) == 0 {
			return nil, qerror.InvalidQuery("aggregation", "expected clause list, got %v", raw)
		}
		op, ok := clause[0].(string)
		if !ok {
			return nil, qerror.InvalidQuery("aggregation", "expected operator name, got %T", clause[0])
		}
		op = canonicalToken(op)
		// ["rows"] was the pre-aggregation way to say "no aggregation".
		if op == "rows" {
			continue
		}
		agg := ast.Aggregation{Op: ast.AggregationOp(op)}
		switch agg.Op {
		case ast.AggCount:
			// Bare count; a field argument means count of non-null.
			if len(clause) > 1 && clause[1] != nil {
				f, err := fieldRef(clause[1])
				if err != nil {
					return nil, qerror.InvalidQuery("aggregation", "%v", err)
				}
				agg.Field = f
			}
		case ast.AggSum, ast.AggAvg, ast.AggMin, ast.AggMax, ast.AggDistinct:
			if len(clause) < 2 {
				return nil, qerror.InvalidQuery("aggregation", "%s requires a field", agg.Op)
			}
			f, err := fieldRef(clause[1])
			if err != nil {
				return nil, qerror.InvalidQuery("aggregation", "%v", err)
			}
			agg.Field = f
		default:
			return nil, qerror.InvalidQuery("aggregation", "unknown aggregation %q", op)
		}
		out = append(out, agg)
	}
	return out, nil
}

func orderBy(raw any) (*ast.OrderBy, error) {
	clause, ok := raw.([]any)
	if !ok || len(clause) != 2 {
		return nil, qerror.InvalidQuery("order-by", "expected [direction field], got %v", raw)
	}
	dir, dirFirst := clause[0].(string)
	if !dirFirst {
		// Legacy ordering [field "ascending"].
		legacyDir, ok := clause[1].(string)
		if !ok {
			return nil, qerror.InvalidQuery("order-by", "missing sort direction in %v", raw)
		}
		dir = legacyDir
		clause = []any{dir, clause[0]}
	}
	ob := &ast.OrderBy{}
	switch canonicalToken(dir) {
	case "asc", "ascending":
		ob.Direction = ast.SortAsc
	case "desc", "descending":
		ob.Direction = ast.SortDesc
	default:
		return nil, qerror.InvalidQuery("order-by", "unknown sort direction %q", dir)
	}
	f, err := fieldRef(clause[1])
	if err != nil {
		return nil, qerror.InvalidQuery("order-by", "%v", err)
	}
	ob.Field = *f
	return ob, nil
}

// fieldRef parses every field reference shape the wire format has ever
// used:
//
//	17                                  bare field id
//	["field-id" 17]                     legacy id ref
//	["field-literal" "name" "type"]     legacy name ref
//	["datetime-field" ref "month"]      legacy bucketing wrapper
//	["fk->" a b]                        legacy foreign-key ref
//	["field" 17 opts]                   current form
//	["field" "name" opts]               current name form
func fieldRef(raw any) (*ast.FieldRef, error) {
	if id, ok := asInt(raw); ok {
		return &ast.FieldRef{ID: id}, nil
	}
	clause, ok := raw.([]any)
	if !ok || len(clause) == 0 {
		return nil, fmt.Errorf("unrecognized field reference %v", raw)
	}
	head, ok := clause[0].(string)
	if !ok {
		return nil, fmt.Errorf("unrecognized field reference %v", raw)
	}

	switch canonicalToken(head) {
	case "field-id":
		if len(clause) != 2 {
			return nil, fmt.Errorf("malformed field-id reference %v", raw)
		}
		return fieldRef(clause[1])

	case "field-literal":
		if len(clause) < 2 {
			return nil, fmt.Errorf("malformed field-literal reference %v", raw)
		}
		name, ok := clause[1].(string)
		if !ok {
			return nil, fmt.Errorf("field-literal requires a name, got %v", clause[1])
		}
		f := &ast.FieldRef{Name: name}
		if len(clause) > 2 {
			if bt, ok := clause[2].(string); ok {
				f.BaseType = metadata.BaseType(bt)
			}
		}
		return f, nil

	case "datetime-field":
		if len(clause) < 3 {
			return nil, fmt.Errorf("malformed datetime-field reference %v", raw)
		}
		inner, err := fieldRef(clause[1])
		if err != nil {
			return nil, err
		}
		unit, ok := clause[len(clause)-1].(string)
		if !ok {
			return nil, fmt.Errorf("datetime-field requires a unit, got %v", clause[len(clause)-1])
		}
		inner.Unit = ast.TemporalUnit(canonicalToken(unit))
		return inner, nil

	case "fk->":
		if len(clause) != 3 {
			return nil, fmt.Errorf("malformed fk-> reference %v", raw)
		}
		src, err := fieldRef(clause[1])
		if err != nil {
			return nil, err
		}
		dest, err := fieldRef(clause[2])
		if err != nil {
			return nil, err
		}
		dest.SourceField = src.ID
		return dest, nil

	case "field":
		if len(clause) < 2 {
			return nil, fmt.Errorf("malformed field reference %v", raw)
		}
		f := &ast.FieldRef{}
		switch v := clause[1].(type) {
		case string:
			f.Name = v
		default:
			id, ok := asInt(v)
			if !ok {
				return nil, fmt.Errorf("field reference requires an id or name, got %v", v)
			}
			f.ID = id
		}
		if len(clause) > 2 && clause[2] != nil {
			opts, ok := clause[2].(map[string]any)
			if !ok {
				return nil, fmt.Errorf("field options must be a map, got %T", clause[2])
			}
			opts = canonicalKeys(opts)
			if s, ok := opts["join-alias"].(string); ok {
				f.JoinAlias = s
			}
			if v, ok := opts["source-field"]; ok {
				if id, ok := asInt(v); ok {
					f.SourceField = id
				}
			}
			if s, ok := opts["base-type"].(string); ok {
				f.BaseType = metadata.BaseType(s)
			}
			if s, ok := opts["temporal-unit"].(string); ok {
				f.Unit = ast.TemporalUnit(canonicalToken(s))
			}
		}
		return f, nil
	}

	return nil, fmt.Errorf("unrecognized field reference head %q", head)
}

// canonicalKeys lower-kebabs every key of a clause map. Values are left
// alone; nested maps are canonicalized at the point of use.
func canonicalKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[canonicalToken(k)] = v
	}
	return out
}

// canonicalToken rewrites snake_case and camelCase tokens to
// lower-kebab-case.
func canonicalToken(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	for i, r := range s {
		switch {
		case r == '_':
			b.WriteByte('-')
		case r >= 'A' && r <= 'Z':
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
		return 0, false
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

func asIntString(s string) (int64, bool) {
	var n int64
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int64(r-'0')
	}
	return n, true
}
