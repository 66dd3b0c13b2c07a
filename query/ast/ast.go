// Package ast defines the canonical internal representation of a
// structured query. Everything downstream of the normalizer operates on
// this tree and may assume one consistent shape: clause keys resolved,
// shorthand expanded, empty clauses absent.
package ast

import "github.com/satishbabariya/quarry/metadata"

// QueryType discriminates structured from native queries.
type QueryType string

const (
	TypeStructured QueryType = "query"
	TypeNative     QueryType = "native"
)

// Query is the root of a normalized query.
type Query struct {
	Type     QueryType
	Database int64
	Query    *StructuredQuery
	Native   *NativeQuery
}

// NativeQuery is driver-native query text plus parameters.
type NativeQuery struct {
	Query        string
	Params       []any
	TemplateTags map[string]TemplateTag
}

// TemplateTag declares a substitutable parameter inside native query
// text.
type TemplateTag struct {
	Name        string
	DisplayName string
	Type        string
	Required    bool
	Default     any
}

// StructuredQuery is the driver-agnostic query body. Exactly one of
// SourceTable, SourceQuery, SourceCard identifies the source.
type StructuredQuery struct {
	SourceTable  int64
	SourceCard   int64
	SourceQuery  *StructuredQuery
	Joins        []Join
	Fields       []FieldRef
	Filter       Filter
	Aggregations []Aggregation
	Breakouts    []FieldRef
	OrderBy      []OrderBy
	Limit        *int64
	Offset       *int64
}

// Empty reports whether the query body carries no clauses at all.
func (q *StructuredQuery) Empty() bool {
	return q.SourceTable == 0 && q.SourceCard == 0 && q.SourceQuery == nil
}

// TemporalUnit is a date-bucketing granularity applied to a temporal
// field reference.
type TemporalUnit string

const (
	UnitNone      TemporalUnit = ""
	UnitMinute    TemporalUnit = "minute"
	UnitHour      TemporalUnit = "hour"
	UnitDay       TemporalUnit = "day"
	UnitWeek      TemporalUnit = "week"
	UnitMonth     TemporalUnit = "month"
	UnitQuarter   TemporalUnit = "quarter"
	UnitYear      TemporalUnit = "year"
	UnitDayOfWeek TemporalUnit = "day-of-week"
	UnitMonthOfYr TemporalUnit = "month-of-year"
)

// ExtractionUnit reports whether the unit is a date-part extraction
// (an integer like year or month number) rather than a truncation to a
// coarser timestamp. Extractions can use indexable scalar functions.
func (u TemporalUnit) ExtractionUnit() bool {
	switch u {
	case UnitDayOfWeek, UnitMonthOfYr:
		return true
	}
	return false
}

// FieldRef identifies a column, either by metadata id or by literal
// name for columns born inside native source queries. The resolver
// fills the Resolved block; the compiler reads it and never writes.
type FieldRef struct {
	ID          int64
	Name        string
	JoinAlias   string
	SourceField int64
	BaseType    metadata.BaseType // authoring-time hint for name refs
	Unit        TemporalUnit

	Resolved *ResolvedField
}

// ByName reports whether the reference is a literal-name reference.
func (f FieldRef) ByName() bool { return f.ID == 0 && f.Name != "" }

// Key returns a stable identity for the reference, used for clause
// deduplication and breakout/order-by matching.
func (f FieldRef) Key() FieldKey {
	return FieldKey{ID: f.ID, Name: f.Name, JoinAlias: f.JoinAlias, Unit: f.Unit}
}

// SameColumn reports whether two refs address the same column,
// ignoring temporal bucketing.
func (f FieldRef) SameColumn(other FieldRef) bool {
	return f.ID == other.ID && f.Name == other.Name && f.JoinAlias == other.JoinAlias
}

// FieldKey is a comparable identity for a field reference.
type FieldKey struct {
	ID        int64
	Name      string
	JoinAlias string
	Unit      TemporalUnit
}

// ResolvedField is the metadata attached to a reference by the schema
// resolver.
type ResolvedField struct {
	Column        string
	TableID       int64
	BaseType      metadata.BaseType
	EffectiveType metadata.BaseType
	Coercion      metadata.CoercionStrategy
}

// Type returns the effective type the compiler should assume, falling
// back to the authoring-time hint for unresolved name references.
func (f FieldRef) Type() metadata.BaseType {
	if f.Resolved != nil {
		return f.Resolved.EffectiveType
	}
	if f.BaseType != "" {
		return f.BaseType
	}
	return metadata.TypeUnknown
}

// ColumnName returns the physical column name for f.
func (f FieldRef) ColumnName() string {
	if f.Resolved != nil && f.Resolved.Column != "" {
		return f.Resolved.Column
	}
	return f.Name
}

// JoinStrategy selects the SQL join type.
type JoinStrategy string

const (
	JoinLeft  JoinStrategy = "left-join"
	JoinInner JoinStrategy = "inner-join"
	JoinRight JoinStrategy = "right-join"
	JoinFull  JoinStrategy = "full-join"
)

// Join brings another table, card, or subquery into the source.
type Join struct {
	SourceTable int64
	SourceCard  int64
	SourceQuery *StructuredQuery
	Alias       string
	Strategy    JoinStrategy
	Condition   Filter
}

// SortDirection orders a column ascending or descending.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// OrderBy sorts the result by one field reference.
type OrderBy struct {
	Field     FieldRef
	Direction SortDirection
}

// AggregationOp is a supported aggregate function.
type AggregationOp string

const (
	AggCount    AggregationOp = "count"
	AggSum      AggregationOp = "sum"
	AggAvg      AggregationOp = "avg"
	AggMin      AggregationOp = "min"
	AggMax      AggregationOp = "max"
	AggDistinct AggregationOp = "distinct"
)

// Aggregation applies one aggregate, optionally over a field. Count
// has no field.
type Aggregation struct {
	Op    AggregationOp
	Field *FieldRef
}
