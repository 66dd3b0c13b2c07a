// Package postgres is the PostgreSQL driver. Importing it registers a
// lazy loader; the hierarchy node and capability overrides are
// installed on first use.
package postgres

import (
	"fmt"
	"net/url"
	"strings"

	_ "github.com/lib/pq"

	"github.com/satishbabariya/quarry/driver"
	"github.com/satishbabariya/quarry/metadata"
	"github.com/satishbabariya/quarry/query/ast"
)

// Name is the driver identifier in the hierarchy.
const Name = "postgres"

func init() {
	driver.Default.RegisterLoader(Name, load)
}

func load() error {
	if err := driver.Default.Register(Name, driver.Options{Parents: []string{driver.SQL}}); err != nil {
		return err
	}

	driver.BuildDSN.Impl(Name, buildDSN)
	driver.QuoteIdentifier.Impl(Name, func(name string) string {
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	})
	driver.Placeholder.Impl(Name, func(n int) string { return fmt.Sprintf("$%d", n) })
	driver.MaxIdentifierBytes.Impl(Name, 63)
	driver.SupportsILike.Impl(Name, true)
	driver.DateBucket.Impl(Name, dateBucket)
	driver.MapColumnType.Impl(Name, mapColumnType)
	driver.VersionQuery.Impl(Name, "SHOW server_version")
	driver.MinServerVersion.Impl(Name, "9.6")
	driver.ListTablesQuery.Impl(Name, listTablesQuery)
	driver.TableColumnsQuery.Impl(Name, tableColumnsQuery)
	return nil
}

func buildDSN(details driver.ConnectionDetails) (string, string, error) {
	if dsn := details.String("dsn"); dsn != "" {
		return "postgres", dsn, nil
	}
	host := details.String("host")
	if host == "" {
		return "", "", fmt.Errorf("postgres connection requires a host")
	}
	port := details.String("port")
	if port == "" {
		port = "5432"
	}
	dbname := details.String("dbname")
	if dbname == "" {
		return "", "", fmt.Errorf("postgres connection requires a dbname")
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   host + ":" + port,
		Path:   "/" + dbname,
	}
	if user := details.String("user"); user != "" {
		if pass := details.String("password"); pass != "" {
			u.User = url.UserPassword(user, pass)
		} else {
			u.User = url.User(user)
		}
	}
	q := u.Query()
	sslmode := details.String("sslmode")
	if sslmode == "" {
		sslmode = "disable"
	}
	q.Set("sslmode", sslmode)
	u.RawQuery = q.Encode()
	return "postgres", u.String(), nil
}

func dateBucket(expr string, unit ast.TemporalUnit) (string, error) {
	switch unit {
	case ast.UnitMinute, ast.UnitHour, ast.UnitDay, ast.UnitWeek, ast.UnitMonth, ast.UnitQuarter, ast.UnitYear:
		return fmt.Sprintf("DATE_TRUNC('%s', %s)", unit, expr), nil
	case ast.UnitDayOfWeek:
		// EXTRACT is indexable as an expression index and cheaper than
		// truncating when only the part is grouped on.
		return fmt.Sprintf("(EXTRACT(DOW FROM %s) + 1)", expr), nil
	case ast.UnitMonthOfYr:
		return fmt.Sprintf("EXTRACT(MONTH FROM %s)", expr), nil
	default:
		return "", fmt.Errorf("unsupported temporal unit %s", unit)
	}
}

func mapColumnType(dbType string) metadata.BaseType {
	switch strings.ToUpper(dbType) {
	case "INT2", "INT4", "SERIAL", "SMALLINT", "INTEGER":
		return metadata.TypeInteger
	case "INT8", "BIGSERIAL", "BIGINT":
		return metadata.TypeBigInt
	case "FLOAT4", "FLOAT8", "REAL", "DOUBLE PRECISION":
		return metadata.TypeFloat
	case "NUMERIC", "DECIMAL", "MONEY":
		return metadata.TypeDecimal
	case "BOOL", "BOOLEAN":
		return metadata.TypeBoolean
	case "DATE":
		return metadata.TypeDate
	case "TIME", "TIMETZ":
		return metadata.TypeTime
	case "TIMESTAMP", "TIMESTAMPTZ":
		return metadata.TypeDateTime
	case "JSON", "JSONB":
		return metadata.TypeJSON
	case "UUID":
		return metadata.TypeUUID
	case "TEXT", "VARCHAR", "BPCHAR", "CHAR", "NAME", "CITEXT":
		return metadata.TypeText
	default:
		return metadata.TypeUnknown
	}
}

func listTablesQuery(schema string) (string, []any) {
	if schema == "" {
		schema = "public"
	}
	return `SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`, []any{schema}
}

func tableColumnsQuery(schema, table string) (string, []any) {
	if schema == "" {
		schema = "public"
	}
	return `SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, []any{schema, table}
}
