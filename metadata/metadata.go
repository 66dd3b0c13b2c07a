// Package metadata defines the schema metadata contract the query core
// resolves field and table references against. The store behind it is
// externally maintained; the core only reads.
package metadata

import (
	"context"
	"fmt"
)

// BaseType is the storage-level type of a column as reported by the
// database engine.
type BaseType string

const (
	TypeUnknown  BaseType = "type/*"
	TypeText     BaseType = "type/Text"
	TypeInteger  BaseType = "type/Integer"
	TypeBigInt   BaseType = "type/BigInteger"
	TypeFloat    BaseType = "type/Float"
	TypeDecimal  BaseType = "type/Decimal"
	TypeBoolean  BaseType = "type/Boolean"
	TypeDate     BaseType = "type/Date"
	TypeTime     BaseType = "type/Time"
	TypeDateTime BaseType = "type/DateTime"
	TypeJSON     BaseType = "type/JSON"
	TypeUUID     BaseType = "type/UUID"
)

// Temporal reports whether t carries a date or time component.
func (t BaseType) Temporal() bool {
	switch t {
	case TypeDate, TypeTime, TypeDateTime:
		return true
	}
	return false
}

// Numeric reports whether t is orderable as a number.
func (t BaseType) Numeric() bool {
	switch t {
	case TypeInteger, TypeBigInt, TypeFloat, TypeDecimal:
		return true
	}
	return false
}

// CoercionStrategy declares a reinterpretation of a stored value's type,
// e.g. a text column that actually holds ISO-8601 timestamps.
type CoercionStrategy string

const (
	CoerceNone              CoercionStrategy = ""
	CoerceISO8601ToDateTime CoercionStrategy = "coerce/ISO8601->DateTime"
	CoerceUnixSecondsToTS   CoercionStrategy = "coerce/UNIXSeconds->DateTime"
	CoerceUnixMillisToTS    CoercionStrategy = "coerce/UNIXMilliSeconds->DateTime"
	CoerceYYYYMMDDToDate    CoercionStrategy = "coerce/YYYYMMDDString->Date"
)

// EffectiveType is the type downstream stages should treat a column as,
// after applying the coercion strategy to the base type.
func EffectiveType(base BaseType, coercion CoercionStrategy) BaseType {
	switch coercion {
	case CoerceISO8601ToDateTime, CoerceUnixSecondsToTS, CoerceUnixMillisToTS:
		return TypeDateTime
	case CoerceYYYYMMDDToDate:
		return TypeDate
	default:
		return base
	}
}

// Field is column metadata as served by the external store.
type Field struct {
	ID            int64
	TableID       int64
	Name          string
	BaseType      BaseType
	EffectiveType BaseType
	Coercion      CoercionStrategy
}

// Table is table metadata as served by the external store.
type Table struct {
	ID     int64
	Schema string
	Name   string
}

// Provider serves field and table lookups for one database.
type Provider interface {
	LookupField(ctx context.Context, id int64) (*Field, error)
	LookupTable(ctx context.Context, id int64) (*Table, error)
}

// NotFoundError reports a field or table id absent from the store.
type NotFoundError struct {
	Kind string // "field" or "table"
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d does not exist", e.Kind, e.ID)
}

// StaticProvider is an in-memory Provider, used by tests and by callers
// that already hold a metadata snapshot.
type StaticProvider struct {
	Fields map[int64]*Field
	Tables map[int64]*Table
}

func (p *StaticProvider) LookupField(_ context.Context, id int64) (*Field, error) {
	f, ok := p.Fields[id]
	if !ok {
		return nil, &NotFoundError{Kind: "field", ID: id}
	}
	if f.EffectiveType == "" {
		cp := *f
		cp.EffectiveType = EffectiveType(f.BaseType, f.Coercion)
		return &cp, nil
	}
	return f, nil
}

func (p *StaticProvider) LookupTable(_ context.Context, id int64) (*Table, error) {
	t, ok := p.Tables[id]
	if !ok {
		return nil, &NotFoundError{Kind: "table", ID: id}
	}
	return t, nil
}
