// Package resolve annotates a normalized query with live schema
// metadata: physical column names, base and effective types, and
// coercion strategies. The compiler depends on these annotations to
// pick date-bucketing functions and cast strategies, and never touches
// the metadata store itself.
package resolve

import (
	"context"
	"errors"

	"github.com/satishbabariya/quarry/metadata"
	"github.com/satishbabariya/quarry/query/ast"
	"github.com/satishbabariya/quarry/query/qerror"
)

// Query resolves every field and table reference in q against the
// provider, returning a new annotated query. The input is not
// mutated. Unknown references fail with a field-resolution error,
// which is deliberately distinct from a permissions denial.
func Query(ctx context.Context, provider metadata.Provider, q *ast.Query) (*ast.Query, error) {
	if q.Type != ast.TypeStructured || q.Query == nil {
		// Native queries have nothing to resolve.
		return q, nil
	}
	body, err := structured(ctx, provider, q.Query)
	if err != nil {
		return nil, err
	}
	out := *q
	out.Query = body
	return &out, nil
}

func structured(ctx context.Context, provider metadata.Provider, q *ast.StructuredQuery) (*ast.StructuredQuery, error) {
	out := *q

	if q.SourceTable != 0 {
		if _, err := lookupTable(ctx, provider, q.SourceTable); err != nil {
			return nil, err
		}
	}
	if q.SourceQuery != nil {
		sub, err := structured(ctx, provider, q.SourceQuery)
		if err != nil {
			return nil, err
		}
		out.SourceQuery = sub
	}

	out.Joins = make([]ast.Join, len(q.Joins))
	for i, j := range q.Joins {
		rj := j
		if j.SourceTable != 0 {
			if _, err := lookupTable(ctx, provider, j.SourceTable); err != nil {
				return nil, err
			}
		}
		if j.SourceQuery != nil {
			sub, err := structured(ctx, provider, j.SourceQuery)
			if err != nil {
				return nil, err
			}
			rj.SourceQuery = sub
		}
		if j.Condition != nil {
			cond, err := ast.MapFields(j.Condition, func(f ast.FieldRef) (ast.FieldRef, error) {
				return field(ctx, provider, f)
			})
			if err != nil {
				return nil, err
			}
			rj.Condition = cond
		}
		out.Joins[i] = rj
	}

	out.Fields = make([]ast.FieldRef, len(q.Fields))
	for i, f := range q.Fields {
		rf, err := field(ctx, provider, f)
		if err != nil {
			return nil, err
		}
		out.Fields[i] = rf
	}

	if q.Filter != nil {
		f, err := ast.MapFields(q.Filter, func(f ast.FieldRef) (ast.FieldRef, error) {
			return field(ctx, provider, f)
		})
		if err != nil {
			return nil, err
		}
		out.Filter = f
	}

	out.Aggregations = make([]ast.Aggregation, len(q.Aggregations))
	for i, agg := range q.Aggregations {
		ra := agg
		if agg.Field != nil {
			rf, err := field(ctx, provider, *agg.Field)
			if err != nil {
				return nil, err
			}
			ra.Field = &rf
		}
		out.Aggregations[i] = ra
	}

	out.Breakouts = make([]ast.FieldRef, len(q.Breakouts))
	for i, f := range q.Breakouts {
		rf, err := field(ctx, provider, f)
		if err != nil {
			return nil, err
		}
		out.Breakouts[i] = rf
	}

	out.OrderBy = make([]ast.OrderBy, len(q.OrderBy))
	for i, ob := range q.OrderBy {
		rf, err := field(ctx, provider, ob.Field)
		if err != nil {
			return nil, err
		}
		out.OrderBy[i] = ast.OrderBy{Field: rf, Direction: ob.Direction}
	}

	return &out, nil
}

// field attaches resolved metadata to one reference. Name references
// have no metadata row; their effective type is the authoring-time
// hint.
func field(ctx context.Context, provider metadata.Provider, f ast.FieldRef) (ast.FieldRef, error) {
	if f.ByName() {
		f.Resolved = &ast.ResolvedField{
			Column:        f.Name,
			BaseType:      f.BaseType,
			EffectiveType: f.BaseType,
		}
		if f.Resolved.EffectiveType == "" {
			f.Resolved.BaseType = metadata.TypeUnknown
			f.Resolved.EffectiveType = metadata.TypeUnknown
		}
		return validateUnit(f)
	}

	md, err := provider.LookupField(ctx, f.ID)
	if err != nil {
		var nf *metadata.NotFoundError
		if errors.As(err, &nf) {
			return f, qerror.FieldResolution("field %d does not exist or is inaccessible", f.ID)
		}
		return f, qerror.Wrap(qerror.TypeFieldResolution, err, "lookup field %d", f.ID)
	}

	eff := md.EffectiveType
	if eff == "" {
		eff = metadata.EffectiveType(md.BaseType, md.Coercion)
	}
	f.Resolved = &ast.ResolvedField{
		Column:        md.Name,
		TableID:       md.TableID,
		BaseType:      md.BaseType,
		EffectiveType: eff,
		Coercion:      md.Coercion,
	}
	return validateUnit(f)
}

// validateUnit rejects temporal bucketing on a non-temporal column.
func validateUnit(f ast.FieldRef) (ast.FieldRef, error) {
	if f.Unit != ast.UnitNone && !f.Type().Temporal() && f.Type() != metadata.TypeUnknown {
		return f, qerror.FieldResolution("cannot apply temporal unit %s to %s field %s",
			f.Unit, f.Type(), f.ColumnName())
	}
	return f, nil
}

func lookupTable(ctx context.Context, provider metadata.Provider, id int64) (*metadata.Table, error) {
	t, err := provider.LookupTable(ctx, id)
	if err != nil {
		var nf *metadata.NotFoundError
		if errors.As(err, &nf) {
			return nil, qerror.FieldResolution("table %d does not exist or is inaccessible", id)
		}
		return nil, qerror.Wrap(qerror.TypeFieldResolution, err, "lookup table %d", id)
	}
	return t, nil
}
