package driver

import (
	"database/sql"
	"fmt"

	"github.com/satishbabariya/quarry/metadata"
	"github.com/satishbabariya/quarry/query/ast"
)

// SQL is the abstract parent every SQL-speaking driver derives from.
// It carries the default implementation of each capability; concrete
// drivers override only what their engine does differently.
const SQL = "sql"

// ConnectionDetails is the engine-specific connection configuration as
// stored for one database (host, port, dbname, user, or a raw dsn).
type ConnectionDetails map[string]any

// String returns the string value of a detail key, or "".
func (d ConnectionDetails) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// The capability set. Each is one dispatchable operation; drivers
// register overrides from their loader.
var (
	// BuildDSN constructs the database/sql driver name and DSN.
	BuildDSN = NewMethod[func(ConnectionDetails) (string, string, error)](Default, "build-dsn")

	// QuoteIdentifier escapes one identifier segment.
	QuoteIdentifier = NewMethod[func(string) string](Default, "quote-identifier")

	// Placeholder renders the n-th (1-based) parameter placeholder.
	Placeholder = NewMethod[func(int) string](Default, "placeholder")

	// BooleanLiteral renders a boolean literal for engines without a
	// native boolean type.
	BooleanLiteral = NewMethod[func(bool) string](Default, "boolean-literal")

	// MaxIdentifierBytes is the engine's identifier byte limit;
	// generated aliases longer than this are truncated with a checksum
	// suffix.
	MaxIdentifierBytes = NewMethod[int](Default, "max-identifier-bytes")

	// SupportsOffset reports native LIMIT/OFFSET support; without it
	// pagination is emulated with a row-numbering subquery.
	SupportsOffset = NewMethod[bool](Default, "supports-offset")

	// SupportsILike reports native case-insensitive LIKE.
	SupportsILike = NewMethod[bool](Default, "supports-ilike")

	// SupportsFullJoin reports FULL OUTER JOIN support.
	SupportsFullJoin = NewMethod[bool](Default, "supports-full-join")

	// DateBucket renders a date-bucketing expression over expr for the
	// unit: truncation for calendar units, integer extraction for
	// part units.
	DateBucket = NewMethod[func(expr string, unit ast.TemporalUnit) (string, error)](Default, "date-bucket")

	// CoerceExpr casts expr according to a declared coercion strategy
	// so a text or numeric column can be treated as temporal.
	CoerceExpr = NewMethod[func(expr string, c metadata.CoercionStrategy) (string, error)](Default, "coerce-expr")

	// MapColumnType converts an engine-reported column type name to a
	// base type.
	MapColumnType = NewMethod[func(dbType string) metadata.BaseType](Default, "map-column-type")

	// ListTablesQuery returns SQL listing user tables.
	ListTablesQuery = NewMethod[func(schema string) (string, []any)](Default, "list-tables-query")

	// TableColumnsQuery returns SQL listing the columns of one table.
	TableColumnsQuery = NewMethod[func(schema, table string) (string, []any)](Default, "table-columns-query")

	// VersionQuery returns SQL reporting the server version.
	VersionQuery = NewMethod[string](Default, "version-query")

	// MinServerVersion is the oldest server version the driver
	// supports; empty disables the connect-time check.
	MinServerVersion = NewMethod[string](Default, "min-server-version")

	// TxIsolation is the isolation level queries run under.
	TxIsolation = NewMethod[sql.IsolationLevel](Default, "tx-isolation")
)

func init() {
	if err := Default.Register(SQL, Options{Abstract: true}); err != nil {
		panic(err)
	}

	QuoteIdentifier.Impl(SQL, func(name string) string {
		return fmt.Sprintf("%q", name)
	})
	Placeholder.Impl(SQL, func(int) string { return "?" })
	BooleanLiteral.Impl(SQL, func(b bool) string {
		if b {
			return "TRUE"
		}
		return "FALSE"
	})
	MaxIdentifierBytes.Impl(SQL, 63)
	SupportsOffset.Impl(SQL, true)
	SupportsILike.Impl(SQL, false)
	SupportsFullJoin.Impl(SQL, true)
	DateBucket.Impl(SQL, func(expr string, unit ast.TemporalUnit) (string, error) {
		switch unit {
		case ast.UnitNone:
			return expr, nil
		case ast.UnitDayOfWeek:
			return fmt.Sprintf("EXTRACT(DOW FROM %s)", expr), nil
		case ast.UnitMonthOfYr:
			return fmt.Sprintf("EXTRACT(MONTH FROM %s)", expr), nil
		case ast.UnitMinute, ast.UnitHour, ast.UnitDay, ast.UnitWeek,
			ast.UnitMonth, ast.UnitQuarter, ast.UnitYear:
			return fmt.Sprintf("DATE_TRUNC('%s', %s)", unit, expr), nil
		default:
			return "", fmt.Errorf("unknown temporal unit %s", unit)
		}
	})
	CoerceExpr.Impl(SQL, func(expr string, c metadata.CoercionStrategy) (string, error) {
		switch c {
		case metadata.CoerceNone:
			return expr, nil
		case metadata.CoerceISO8601ToDateTime, metadata.CoerceYYYYMMDDToDate:
			return fmt.Sprintf("CAST(%s AS TIMESTAMP)", expr), nil
		case metadata.CoerceUnixSecondsToTS:
			return fmt.Sprintf("TO_TIMESTAMP(%s)", expr), nil
		case metadata.CoerceUnixMillisToTS:
			return fmt.Sprintf("TO_TIMESTAMP(%s / 1000)", expr), nil
		default:
			return "", fmt.Errorf("unknown coercion strategy %s", c)
		}
	})
	MinServerVersion.Impl(SQL, "")
	TxIsolation.Impl(SQL, sql.LevelReadCommitted)
}
