// Package sqlite is the SQLite driver, used for file-backed and
// in-memory databases.
package sqlite

import (
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/satishbabariya/quarry/driver"
	"github.com/satishbabariya/quarry/metadata"
	"github.com/satishbabariya/quarry/query/ast"
)

// Name is the driver identifier in the hierarchy.
const Name = "sqlite"

func init() {
	driver.Default.RegisterLoader(Name, load)
}

func load() error {
	if err := driver.Default.Register(Name, driver.Options{Parents: []string{driver.SQL}}); err != nil {
		return err
	}

	driver.BuildDSN.Impl(Name, buildDSN)
	driver.BooleanLiteral.Impl(Name, func(b bool) string {
		// SQLite has no boolean type; booleans are stored as integers.
		if b {
			return "1"
		}
		return "0"
	})
	// SQLite allows very long identifiers; the practical bound here is
	// interoperability of exported aliases.
	driver.MaxIdentifierBytes.Impl(Name, 128)
	driver.DateBucket.Impl(Name, dateBucket)
	driver.MapColumnType.Impl(Name, mapColumnType)
	driver.VersionQuery.Impl(Name, "SELECT sqlite_version()")
	driver.CoerceExpr.Impl(Name, coerceExpr)
	driver.ListTablesQuery.Impl(Name, listTablesQuery)
	driver.TableColumnsQuery.Impl(Name, tableColumnsQuery)
	return nil
}

func buildDSN(details driver.ConnectionDetails) (string, string, error) {
	if dsn := details.String("dsn"); dsn != "" {
		return "sqlite3", dsn, nil
	}
	path := details.String("path")
	if path == "" {
		return "", "", fmt.Errorf("sqlite connection requires a path (or :memory:)")
	}
	return "sqlite3", path, nil
}

func dateBucket(expr string, unit ast.TemporalUnit) (string, error) {
	switch unit {
	case ast.UnitMinute:
		return fmt.Sprintf("STRFTIME('%%Y-%%m-%%d %%H:%%M', %s)", expr), nil
	case ast.UnitHour:
		return fmt.Sprintf("STRFTIME('%%Y-%%m-%%d %%H:00', %s)", expr), nil
	case ast.UnitDay:
		return fmt.Sprintf("DATE(%s)", expr), nil
	case ast.UnitWeek:
		return fmt.Sprintf("DATE(%s, 'weekday 0', '-6 days')", expr), nil
	case ast.UnitMonth:
		return fmt.Sprintf("DATE(%s, 'start of month')", expr), nil
	case ast.UnitQuarter:
		return fmt.Sprintf("DATE(%s, 'start of month', (-((CAST(STRFTIME('%%m', %s) AS INTEGER) - 1) %% 3)) || ' months')", expr, expr), nil
	case ast.UnitYear:
		return fmt.Sprintf("DATE(%s, 'start of year')", expr), nil
	case ast.UnitDayOfWeek:
		return fmt.Sprintf("(CAST(STRFTIME('%%w', %s) AS INTEGER) + 1)", expr), nil
	case ast.UnitMonthOfYr:
		return fmt.Sprintf("CAST(STRFTIME('%%m', %s) AS INTEGER)", expr), nil
	default:
		return "", fmt.Errorf("unsupported temporal unit %s", unit)
	}
}

func coerceExpr(expr string, c metadata.CoercionStrategy) (string, error) {
	switch c {
	case metadata.CoerceNone:
		return expr, nil
	case metadata.CoerceISO8601ToDateTime:
		return fmt.Sprintf("DATETIME(%s)", expr), nil
	case metadata.CoerceYYYYMMDDToDate:
		return fmt.Sprintf("DATE(SUBSTR(%s, 1, 4) || '-' || SUBSTR(%s, 5, 2) || '-' || SUBSTR(%s, 7, 2))", expr, expr, expr), nil
	case metadata.CoerceUnixSecondsToTS:
		return fmt.Sprintf("DATETIME(%s, 'unixepoch')", expr), nil
	case metadata.CoerceUnixMillisToTS:
		return fmt.Sprintf("DATETIME(%s / 1000, 'unixepoch')", expr), nil
	default:
		return "", fmt.Errorf("unknown coercion strategy %s", c)
	}
}

func mapColumnType(dbType string) metadata.BaseType {
	t := strings.ToUpper(dbType)
	switch {
	case t == "BOOLEAN" || t == "BOOL":
		return metadata.TypeBoolean
	case strings.Contains(t, "INT"):
		return metadata.TypeInteger
	case strings.Contains(t, "CHAR") || strings.Contains(t, "TEXT") || strings.Contains(t, "CLOB"):
		return metadata.TypeText
	case strings.Contains(t, "REAL") || strings.Contains(t, "FLOA") || strings.Contains(t, "DOUB"):
		return metadata.TypeFloat
	case strings.Contains(t, "DECIMAL") || strings.Contains(t, "NUMERIC"):
		return metadata.TypeDecimal
	case t == "DATE":
		return metadata.TypeDate
	case t == "DATETIME" || t == "TIMESTAMP":
		return metadata.TypeDateTime
	case t == "TIME":
		return metadata.TypeTime
	default:
		return metadata.TypeUnknown
	}
}

func listTablesQuery(string) (string, []any) {
	return `SELECT '' AS table_schema, name AS table_name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`, nil
}

func tableColumnsQuery(_, table string) (string, []any) {
	return `SELECT name, type FROM pragma_table_info(?) ORDER BY cid`, []any{table}
}
