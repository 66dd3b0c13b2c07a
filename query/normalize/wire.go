package normalize

import (
	"github.com/satishbabariya/quarry/query/ast"
)

// ToWire renders a normalized query back into the canonical wire form.
// The output round-trips: Query(ToWire(q)) reproduces q exactly, which
// is also how the execution layer derives a stable query hash
// (encoding/json marshals map keys sorted).
func ToWire(q *ast.Query) map[string]any {
	doc := map[string]any{"type": string(q.Type)}
	if q.Database != 0 {
		doc["database"] = q.Database
	}
	switch q.Type {
	case ast.TypeStructured:
		if q.Query != nil {
			doc["query"] = structuredToWire(q.Query)
		}
	case ast.TypeNative:
		if q.Native != nil {
			doc["native"] = nativeToWire(q.Native)
		}
	}
	return doc
}

func structuredToWire(q *ast.StructuredQuery) map[string]any {
	doc := map[string]any{}
	if q.SourceTable != 0 {
		doc["source-table"] = q.SourceTable
	}
	if q.SourceCard != 0 {
		doc["source-card"] = q.SourceCard
	}
	if q.SourceQuery != nil {
		doc["source-query"] = structuredToWire(q.SourceQuery)
	}
	if len(q.Joins) > 0 {
		joins := make([]any, len(q.Joins))
		for i, j := range q.Joins {
			joins[i] = joinToWire(j)
		}
		doc["joins"] = joins
	}
	if len(q.Fields) > 0 {
		fields := make([]any, len(q.Fields))
		for i, f := range q.Fields {
			fields[i] = fieldToWire(f)
		}
		doc["fields"] = fields
	}
	if q.Filter != nil {
		doc["filter"] = filterToWire(q.Filter)
	}
	if len(q.Aggregations) > 0 {
		aggs := make([]any, len(q.Aggregations))
		for i, a := range q.Aggregations {
			clause := []any{string(a.Op)}
			if a.Field != nil {
				clause = append(clause, fieldToWire(*a.Field))
			}
			aggs[i] = clause
		}
		doc["aggregation"] = aggs
	}
	if len(q.Breakouts) > 0 {
		bs := make([]any, len(q.Breakouts))
		for i, f := range q.Breakouts {
			bs[i] = fieldToWire(f)
		}
		doc["breakout"] = bs
	}
	if len(q.OrderBy) > 0 {
		obs := make([]any, len(q.OrderBy))
		for i, ob := range q.OrderBy {
			obs[i] = []any{string(ob.Direction), fieldToWire(ob.Field)}
		}
		doc["order-by"] = obs
	}
	if q.Limit != nil {
		doc["limit"] = *q.Limit
	}
	if q.Offset != nil {
		doc["offset"] = *q.Offset
	}
	return doc
}

func nativeToWire(n *ast.NativeQuery) map[string]any {
	doc := map[string]any{"query": n.Query}
	if len(n.Params) > 0 {
		doc["params"] = n.Params
	}
	if len(n.TemplateTags) > 0 {
		tags := make(map[string]any, len(n.TemplateTags))
		for name, t := range n.TemplateTags {
			tag := map[string]any{"type": t.Type}
			if t.DisplayName != "" {
				tag["display-name"] = t.DisplayName
			}
			if t.Required {
				tag["required"] = true
			}
			if t.Default != nil {
				tag["default"] = t.Default
			}
			tags[name] = tag
		}
		doc["template-tags"] = tags
	}
	return doc
}

func joinToWire(j ast.Join) map[string]any {
	doc := map[string]any{
		"alias":    j.Alias,
		"strategy": string(j.Strategy),
	}
	if j.SourceTable != 0 {
		doc["source-table"] = j.SourceTable
	}
	if j.SourceCard != 0 {
		doc["source-card"] = j.SourceCard
	}
	if j.SourceQuery != nil {
		doc["source-query"] = structuredToWire(j.SourceQuery)
	}
	if j.Condition != nil {
		doc["condition"] = filterToWire(j.Condition)
	}
	return doc
}

func fieldToWire(f ast.FieldRef) []any {
	var head any
	if f.ByName() {
		head = f.Name
	} else {
		head = f.ID
	}
	opts := map[string]any{}
	if f.JoinAlias != "" {
		opts["join-alias"] = f.JoinAlias
	}
	if f.SourceField != 0 {
		opts["source-field"] = f.SourceField
	}
	if f.BaseType != "" {
		opts["base-type"] = string(f.BaseType)
	}
	if f.Unit != ast.UnitNone {
		opts["temporal-unit"] = string(f.Unit)
	}
	if len(opts) == 0 {
		return []any{"field", head, nil}
	}
	return []any{"field", head, opts}
}

func filterToWire(f ast.Filter) []any {
	switch v := f.(type) {
	case ast.Comparison:
		clause := []any{string(v.Op), fieldToWire(v.Field)}
		return append(clause, v.Values...)
	case ast.Logical:
		clause := []any{string(v.Op)}
		for _, arg := range v.Args {
			clause = append(clause, filterToWire(arg))
		}
		return clause
	case ast.Between:
		return []any{"between", fieldToWire(v.Field), v.Low, v.High}
	case ast.NullCheck:
		if v.IsNull {
			return []any{"is-null", fieldToWire(v.Field)}
		}
		return []any{"not-null", fieldToWire(v.Field)}
	case ast.StringMatch:
		clause := []any{string(v.Op), fieldToWire(v.Field), v.Value}
		if !v.CaseSensitive {
			clause = append(clause, map[string]any{"case-sensitive": false})
		}
		return clause
	}
	return nil
}
