// Package sqlgen renders compiled clause trees into parameterized SQL.
//
// The compiler produces a Select tree; nothing mutates it afterwards.
// Rendering consults a Dialect, the capability bundle resolved for one
// driver, so the tree itself stays driver-agnostic: fragments carry
// "?" markers that are rebound to the dialect's placeholder style in a
// final pass.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/quarry/query/ast"
)

// RowNumber is the synthetic column emulated pagination appends to the
// inner query. The executor drops it before results reach callers.
const RowNumber = "__rownum"

// Query is a rendered SQL string with its arguments.
type Query struct {
	SQL  string
	Args []any
}

// Dialect is the per-driver rendering behavior, resolved once from the
// capability dispatch before compilation starts.
type Dialect struct {
	Driver             string
	Quote              func(string) string
	Placeholder        func(int) string
	BooleanLiteral     func(bool) string
	DateBucket         func(expr string, unit ast.TemporalUnit) (string, error)
	MaxIdentifierBytes int
	SupportsOffset     bool
	SupportsILike      bool
}

// Ident quotes a possibly schema-qualified identifier, truncating each
// segment to the dialect's byte limit.
func (d *Dialect) Ident(segments ...string) string {
	quoted := make([]string, 0, len(segments))
	for _, s := range segments {
		if s == "" {
			continue
		}
		quoted = append(quoted, d.Quote(TruncateIdentifier(s, d.MaxIdentifierBytes)))
	}
	return strings.Join(quoted, ".")
}

// Expr is a SQL fragment with positional "?" markers and matching
// arguments.
type Expr struct {
	SQL  string
	Args []any
}

// Column is one projected column.
type Column struct {
	Expr  Expr
	Alias string
}

// Source is a FROM or JOIN source: a physical table or a subquery.
type Source struct {
	Schema string
	Table  string
	Sub    *Select
	Alias  string
}

// Join is one rendered join clause.
type Join struct {
	Strategy ast.JoinStrategy
	Source   Source
	On       Expr
}

// Order is one ORDER BY entry.
type Order struct {
	Expr Expr
	Desc bool
}

// Select is the compiled, immutable representation of one query.
type Select struct {
	Columns []Column
	From    Source
	Joins   []Join
	Where   *Expr
	GroupBy []Expr
	OrderBy []Order
	Limit   *int64
	Offset  *int64
}

// ToSQL renders the tree for the dialect. When the tree carries a
// limit or an offset and the dialect has no native LIMIT/OFFSET, the
// query is wrapped in a row-numbering subquery; every page, including
// a limit-only first page, takes the same shape.
func (s *Select) ToSQL(d *Dialect) (*Query, error) {
	if (s.Limit != nil || s.Offset != nil) && !d.SupportsOffset {
		return s.toPaginatedSQL(d)
	}
	sql, args, err := s.render(d, true)
	if err != nil {
		return nil, err
	}
	return rebind(sql, args, d), nil
}

func (s *Select) render(d *Dialect, withPagination bool) (string, []any, error) {
	var b strings.Builder
	var args []any

	b.WriteString("SELECT ")
	if len(s.Columns) == 0 {
		b.WriteString("*")
	}
	for i, col := range s.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(col.Expr.SQL)
		args = append(args, col.Expr.Args...)
		if col.Alias != "" {
			b.WriteString(" AS ")
			b.WriteString(d.Quote(TruncateIdentifier(col.Alias, d.MaxIdentifierBytes)))
		}
	}

	b.WriteString(" FROM ")
	srcSQL, srcArgs, err := s.From.render(d)
	if err != nil {
		return "", nil, err
	}
	b.WriteString(srcSQL)
	args = append(args, srcArgs...)

	for _, j := range s.Joins {
		b.WriteString(" ")
		b.WriteString(joinKeyword(j.Strategy))
		b.WriteString(" ")
		jSQL, jArgs, err := j.Source.render(d)
		if err != nil {
			return "", nil, err
		}
		b.WriteString(jSQL)
		args = append(args, jArgs...)
		b.WriteString(" ON ")
		b.WriteString(j.On.SQL)
		args = append(args, j.On.Args...)
	}

	if s.Where != nil {
		b.WriteString(" WHERE ")
		b.WriteString(s.Where.SQL)
		args = append(args, s.Where.Args...)
	}

	if len(s.GroupBy) > 0 {
		b.WriteString(" GROUP BY ")
		for i, g := range s.GroupBy {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(g.SQL)
			args = append(args, g.Args...)
		}
	}

	if len(s.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		orderSQL, orderArgs := renderOrderBy(s.OrderBy)
		b.WriteString(orderSQL)
		args = append(args, orderArgs...)
	}

	if withPagination {
		if s.Limit != nil {
			b.WriteString(fmt.Sprintf(" LIMIT %d", *s.Limit))
		}
		if s.Offset != nil {
			b.WriteString(fmt.Sprintf(" OFFSET %d", *s.Offset))
		}
	}

	return b.String(), args, nil
}

// toPaginatedSQL emulates LIMIT/OFFSET with a ROW_NUMBER() window over
// the inner query's ordering. Page k of size n selects row numbers in
// ((k-1)*n, k*n].
func (s *Select) toPaginatedSQL(d *Dialect) (*Query, error) {
	inner := *s
	inner.Limit = nil
	inner.Offset = nil
	// Ordering moves into the window function; the row number carries
	// it outward.
	inner.OrderBy = nil

	over := "ORDER BY 1"
	var overArgs []any
	if len(s.OrderBy) > 0 {
		orderSQL, orderArgs := renderOrderBy(s.OrderBy)
		over = "ORDER BY " + orderSQL
		overArgs = orderArgs
	}
	rownumCol := Column{
		Expr:  Expr{SQL: fmt.Sprintf("ROW_NUMBER() OVER (%s)", over), Args: overArgs},
		Alias: RowNumber,
	}
	innerCols := append([]Column{}, inner.Columns...)
	if len(innerCols) == 0 {
		// Without an explicit projection the inner query must still
		// carry every data column; the executor strips the row number
		// back out of the results.
		innerCols = append(innerCols, Column{Expr: Expr{SQL: "*"}})
	}
	inner.Columns = append(innerCols, rownumCol)

	innerSQL, innerArgs, err := inner.render(d, false)
	if err != nil {
		return nil, err
	}

	var offset int64
	if s.Offset != nil {
		offset = *s.Offset
	}
	rownum := d.Quote("__page") + "." + d.Quote(RowNumber)
	var bound string
	if s.Limit != nil {
		bound = fmt.Sprintf("%s > %d AND %s <= %d", rownum, offset, rownum, offset+*s.Limit)
	} else {
		bound = fmt.Sprintf("%s > %d", rownum, offset)
	}

	cols := "*"
	if len(s.Columns) > 0 {
		names := make([]string, len(s.Columns))
		for i, col := range s.Columns {
			names[i] = d.Quote(TruncateIdentifier(outputName(col), d.MaxIdentifierBytes))
		}
		cols = strings.Join(names, ", ")
	}

	sql := fmt.Sprintf("SELECT %s FROM (%s) %s WHERE %s ORDER BY %s ASC",
		cols, innerSQL, d.Quote("__page"), bound, rownum)
	return rebind(sql, innerArgs, d), nil
}

func (src Source) render(d *Dialect) (string, []any, error) {
	switch {
	case src.Sub != nil:
		sub, subArgs, err := src.Sub.render(d, true)
		if err != nil {
			return "", nil, err
		}
		alias := src.Alias
		if alias == "" {
			alias = "source"
		}
		return fmt.Sprintf("(%s) %s", sub, d.Quote(TruncateIdentifier(alias, d.MaxIdentifierBytes))), subArgs, nil
	case src.Table != "":
		sql := d.Ident(src.Schema, src.Table)
		if src.Alias != "" {
			sql += " " + d.Quote(TruncateIdentifier(src.Alias, d.MaxIdentifierBytes))
		}
		return sql, nil, nil
	default:
		return "", nil, fmt.Errorf("query source has neither table nor subquery")
	}
}

func renderOrderBy(orders []Order) (string, []any) {
	var parts []string
	var args []any
	for _, o := range orders {
		dir := " ASC"
		if o.Desc {
			dir = " DESC"
		}
		parts = append(parts, o.Expr.SQL+dir)
		args = append(args, o.Expr.Args...)
	}
	return strings.Join(parts, ", "), args
}

func joinKeyword(s ast.JoinStrategy) string {
	switch s {
	case ast.JoinInner:
		return "INNER JOIN"
	case ast.JoinRight:
		return "RIGHT JOIN"
	case ast.JoinFull:
		return "FULL JOIN"
	default:
		return "LEFT JOIN"
	}
}

// outputName is the column name a projected column surfaces under.
func outputName(col Column) string {
	if col.Alias != "" {
		return col.Alias
	}
	// Bare column references surface under their own name.
	expr := col.Expr.SQL
	if i := strings.LastIndexByte(expr, '.'); i >= 0 {
		expr = expr[i+1:]
	}
	return strings.Trim(expr, `"`+"`")
}

// rebind rewrites "?" markers to the dialect's placeholder style.
// Markers inside quoted strings do not occur: every literal is
// parameterized, never inlined.
func rebind(sql string, args []any, d *Dialect) *Query {
	if d.Placeholder == nil {
		return &Query{SQL: sql, Args: args}
	}
	var b strings.Builder
	b.Grow(len(sql) + 8)
	n := 0
	for i := 0; i < len(sql); i++ {
		if sql[i] == '?' {
			n++
			b.WriteString(d.Placeholder(n))
			continue
		}
		b.WriteByte(sql[i])
	}
	return &Query{SQL: b.String(), Args: args}
}
