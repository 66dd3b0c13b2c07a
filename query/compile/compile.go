// Package compile transforms a normalized, resolved query into a
// driver-native SQL representation. Compilation is a pure function of
// (query, driver): it performs no I/O beyond metadata lookups supplied
// through Env and either produces a complete native query or fails
// without side effects.
//
// The pipeline runs fixed stages: source resolution, join resolution
// (including card-as-table subqueries), filter compilation, breakout
// and aggregation compilation, order-by (mirroring breakout
// expressions), pagination, then dialect touch-ups during rendering.
package compile

import (
	"context"
	"errors"
	"fmt"

	"github.com/satishbabariya/quarry/driver"
	"github.com/satishbabariya/quarry/metadata"
	"github.com/satishbabariya/quarry/query/ast"
	"github.com/satishbabariya/quarry/query/qerror"
	"github.com/satishbabariya/quarry/query/sqlgen"
)

// Env supplies the external lookups compilation needs.
type Env struct {
	Metadata metadata.Provider
	// Card expands a saved-card reference into its structured query.
	// Nil disables card sources.
	Card func(ctx context.Context, id int64) (*ast.StructuredQuery, error)
}

// Compile produces the native query for q on the named driver.
func Compile(ctx context.Context, env Env, driverName string, q *ast.Query) (*sqlgen.Query, error) {
	if q.Type == ast.TypeNative {
		if q.Native == nil {
			return nil, qerror.InvalidQuery("native", "native query has no body")
		}
		return &sqlgen.Query{SQL: q.Native.Query, Args: q.Native.Params}, nil
	}
	if q.Query == nil {
		return nil, qerror.InvalidQuery("query", "structured query has no body")
	}

	d, err := DialectFor(driverName)
	if err != nil {
		return nil, err
	}
	c := &compiler{ctx: ctx, env: env, d: d}
	sel, err := c.selectTree(q.Query)
	if err != nil {
		return nil, err
	}
	out, err := sel.ToSQL(d)
	if err != nil {
		return nil, qerror.Wrap(qerror.TypeInvalidQuery, err, "render query for %s", driverName)
	}
	return out, nil
}

// SelectTree compiles the structured body into the clause tree without
// rendering, for callers that inspect or re-wrap the compiled form.
func SelectTree(ctx context.Context, env Env, driverName string, body *ast.StructuredQuery) (*sqlgen.Select, error) {
	d, err := DialectFor(driverName)
	if err != nil {
		return nil, err
	}
	c := &compiler{ctx: ctx, env: env, d: d}
	return c.selectTree(body)
}

type compiler struct {
	ctx context.Context
	env Env
	d   *sqlgen.Dialect

	// breakoutExprs maps breakout field keys to their compiled
	// expression, so order-by reuses the identical expression instead
	// of referencing a column the bucketing optimization removed.
	breakoutExprs map[ast.FieldKey]sqlgen.Expr
}

func (c *compiler) selectTree(q *ast.StructuredQuery) (*sqlgen.Select, error) {
	sel := &sqlgen.Select{}
	c.breakoutExprs = make(map[ast.FieldKey]sqlgen.Expr)

	// Stage: source resolution.
	src, err := c.source(q)
	if err != nil {
		return nil, err
	}
	sel.From = src

	// Stage: join resolution.
	for _, j := range q.Joins {
		jc, err := c.join(j)
		if err != nil {
			return nil, err
		}
		sel.Joins = append(sel.Joins, *jc)
	}

	// Stage: filter compilation.
	if q.Filter != nil {
		where, err := c.filter(q.Filter)
		if err != nil {
			return nil, err
		}
		sel.Where = &where
	}

	// Stage: breakout and aggregation compilation. Breakouts project
	// and group; aggregations project.
	for _, b := range q.Breakouts {
		expr, err := c.fieldExpr(b)
		if err != nil {
			return nil, err
		}
		c.breakoutExprs[b.Key()] = expr
		sel.GroupBy = append(sel.GroupBy, expr)
		sel.Columns = append(sel.Columns, sqlgen.Column{Expr: expr, Alias: breakoutAlias(b)})
	}
	for i, agg := range q.Aggregations {
		col, err := c.aggregation(agg, i)
		if err != nil {
			return nil, err
		}
		sel.Columns = append(sel.Columns, *col)
	}

	// Stage: explicit field projection (only when not aggregating).
	if len(q.Aggregations) == 0 && len(q.Breakouts) == 0 {
		for _, f := range q.Fields {
			expr, err := c.fieldExpr(f)
			if err != nil {
				return nil, err
			}
			sel.Columns = append(sel.Columns, sqlgen.Column{Expr: expr})
		}
	}

	// Stage: order-by compilation, mirroring breakout expressions.
	for _, ob := range q.OrderBy {
		expr, ok := c.breakoutExprs[ob.Field.Key()]
		if !ok {
			var err error
			expr, err = c.fieldExpr(ob.Field)
			if err != nil {
				return nil, err
			}
		}
		sel.OrderBy = append(sel.OrderBy, sqlgen.Order{Expr: expr, Desc: ob.Direction == ast.SortDesc})
	}

	// Stage: pagination.
	sel.Limit = q.Limit
	sel.Offset = q.Offset

	return sel, nil
}

func (c *compiler) source(q *ast.StructuredQuery) (sqlgen.Source, error) {
	switch {
	case q.SourceQuery != nil:
		sub, err := c.subquery(q.SourceQuery)
		if err != nil {
			return sqlgen.Source{}, err
		}
		return sqlgen.Source{Sub: sub, Alias: "source"}, nil
	case q.SourceCard != 0:
		body, err := c.cardBody(q.SourceCard)
		if err != nil {
			return sqlgen.Source{}, err
		}
		sub, err := c.subquery(body)
		if err != nil {
			return sqlgen.Source{}, err
		}
		return sqlgen.Source{Sub: sub, Alias: fmt.Sprintf("card_%d", q.SourceCard)}, nil
	case q.SourceTable != 0:
		schema, name, err := c.tableName(q.SourceTable)
		if err != nil {
			return sqlgen.Source{}, err
		}
		return sqlgen.Source{Schema: schema, Table: name}, nil
	default:
		return sqlgen.Source{}, qerror.InvalidQuery("source-table", "query has no source")
	}
}

// subquery compiles a nested body with fresh breakout state so inner
// order-by mirroring cannot leak into the outer query.
func (c *compiler) subquery(body *ast.StructuredQuery) (*sqlgen.Select, error) {
	inner := &compiler{ctx: c.ctx, env: c.env, d: c.d}
	return inner.selectTree(body)
}

func (c *compiler) cardBody(id int64) (*ast.StructuredQuery, error) {
	if c.env.Card == nil {
		return nil, qerror.InvalidQuery("source-card", "card sources are not configured")
	}
	body, err := c.env.Card(c.ctx, id)
	if err != nil {
		return nil, qerror.Wrap(qerror.TypeFieldResolution, err, "expand card %d", id)
	}
	return body, nil
}

func (c *compiler) join(j ast.Join) (*sqlgen.Join, error) {
	if j.Strategy == ast.JoinFull {
		full, err := driver.SupportsFullJoin.For(c.d.Driver)
		if err != nil {
			return nil, err
		}
		if !full {
			return nil, qerror.Unsupported("joins", c.d.Driver, "driver does not support full joins")
		}
	}

	var src sqlgen.Source
	switch {
	case j.SourceQuery != nil:
		sub, err := c.subquery(j.SourceQuery)
		if err != nil {
			return nil, err
		}
		src = sqlgen.Source{Sub: sub, Alias: j.Alias}
	case j.SourceCard != 0:
		body, err := c.cardBody(j.SourceCard)
		if err != nil {
			return nil, err
		}
		sub, err := c.subquery(body)
		if err != nil {
			return nil, err
		}
		src = sqlgen.Source{Sub: sub, Alias: j.Alias}
	default:
		schema, name, err := c.tableName(j.SourceTable)
		if err != nil {
			return nil, err
		}
		src = sqlgen.Source{Schema: schema, Table: name, Alias: j.Alias}
	}

	on, err := c.filter(j.Condition)
	if err != nil {
		return nil, err
	}
	return &sqlgen.Join{Strategy: j.Strategy, Source: src, On: on}, nil
}

func (c *compiler) tableName(id int64) (string, string, error) {
	if c.env.Metadata == nil {
		return "", "", qerror.FieldResolution("no metadata provider configured")
	}
	t, err := c.env.Metadata.LookupTable(c.ctx, id)
	if err != nil {
		var nf *metadata.NotFoundError
		if errors.As(err, &nf) {
			return "", "", qerror.FieldResolution("table %d does not exist or is inaccessible", id)
		}
		return "", "", qerror.Wrap(qerror.TypeFieldResolution, err, "lookup table %d", id)
	}
	return t.Schema, t.Name, nil
}

// fieldExpr renders a field reference: qualified column, coercion
// cast, then date bucketing.
func (c *compiler) fieldExpr(f ast.FieldRef) (sqlgen.Expr, error) {
	col := f.ColumnName()
	if col == "" {
		return sqlgen.Expr{}, qerror.FieldResolution("field %d has no resolved column name", f.ID)
	}
	var sql string
	if f.JoinAlias != "" {
		sql = c.d.Ident(f.JoinAlias, col)
	} else {
		sql = c.d.Ident(col)
	}

	if f.Resolved != nil && f.Resolved.Coercion != metadata.CoerceNone {
		coerce, err := driver.CoerceExpr.For(c.d.Driver)
		if err != nil {
			return sqlgen.Expr{}, err
		}
		sql, err = coerce(sql, f.Resolved.Coercion)
		if err != nil {
			return sqlgen.Expr{}, qerror.Unsupported("fields", c.d.Driver, "%v", err)
		}
	}

	if f.Unit != ast.UnitNone {
		if !f.Type().Temporal() && f.Type() != metadata.TypeUnknown {
			return sqlgen.Expr{}, qerror.InvalidQuery("breakout",
				"temporal unit %s on non-temporal field %s", f.Unit, col)
		}
		bucketed, err := c.d.DateBucket(sql, f.Unit)
		if err != nil {
			return sqlgen.Expr{}, qerror.Unsupported("breakout", c.d.Driver, "%v", err)
		}
		sql = bucketed
	}

	return sqlgen.Expr{SQL: sql}, nil
}

func (c *compiler) aggregation(agg ast.Aggregation, idx int) (*sqlgen.Column, error) {
	alias := string(agg.Op)
	if idx > 0 {
		alias = fmt.Sprintf("%s_%d", agg.Op, idx)
	}
	switch agg.Op {
	case ast.AggCount:
		if agg.Field == nil {
			return &sqlgen.Column{Expr: sqlgen.Expr{SQL: "COUNT(*)"}, Alias: alias}, nil
		}
		expr, err := c.fieldExpr(*agg.Field)
		if err != nil {
			return nil, err
		}
		return &sqlgen.Column{Expr: sqlgen.Expr{SQL: fmt.Sprintf("COUNT(%s)", expr.SQL), Args: expr.Args}, Alias: alias}, nil
	case ast.AggDistinct:
		expr, err := c.fieldExpr(*agg.Field)
		if err != nil {
			return nil, err
		}
		return &sqlgen.Column{Expr: sqlgen.Expr{SQL: fmt.Sprintf("COUNT(DISTINCT %s)", expr.SQL), Args: expr.Args}, Alias: alias}, nil
	case ast.AggSum, ast.AggAvg, ast.AggMin, ast.AggMax:
		fn := map[ast.AggregationOp]string{
			ast.AggSum: "SUM", ast.AggAvg: "AVG", ast.AggMin: "MIN", ast.AggMax: "MAX",
		}[agg.Op]
		expr, err := c.fieldExpr(*agg.Field)
		if err != nil {
			return nil, err
		}
		return &sqlgen.Column{Expr: sqlgen.Expr{SQL: fmt.Sprintf("%s(%s)", fn, expr.SQL), Args: expr.Args}, Alias: alias}, nil
	default:
		return nil, qerror.Unsupported("aggregation", c.d.Driver, "unknown aggregation %q", agg.Op)
	}
}

// breakoutAlias names a breakout column in the projection, including
// the bucketing unit so month and year buckets of one column do not
// collide.
func breakoutAlias(f ast.FieldRef) string {
	name := f.ColumnName()
	if f.Unit != ast.UnitNone {
		return fmt.Sprintf("%s_%s", name, f.Unit)
	}
	return name
}
