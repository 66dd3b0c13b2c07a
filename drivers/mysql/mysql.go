// Package mysql is the MySQL/MariaDB driver.
package mysql

import (
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"github.com/satishbabariya/quarry/driver"
	"github.com/satishbabariya/quarry/metadata"
	"github.com/satishbabariya/quarry/query/ast"
)

// Name is the driver identifier in the hierarchy.
const Name = "mysql"

func init() {
	driver.Default.RegisterLoader(Name, load)
}

func load() error {
	if err := driver.Default.Register(Name, driver.Options{Parents: []string{driver.SQL}}); err != nil {
		return err
	}

	driver.BuildDSN.Impl(Name, buildDSN)
	driver.QuoteIdentifier.Impl(Name, func(name string) string {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	})
	driver.MaxIdentifierBytes.Impl(Name, 64)
	driver.SupportsFullJoin.Impl(Name, false)
	driver.DateBucket.Impl(Name, dateBucket)
	driver.MapColumnType.Impl(Name, mapColumnType)
	driver.VersionQuery.Impl(Name, "SELECT VERSION()")
	driver.MinServerVersion.Impl(Name, "5.7")
	driver.CoerceExpr.Impl(Name, coerceExpr)
	driver.ListTablesQuery.Impl(Name, listTablesQuery)
	driver.TableColumnsQuery.Impl(Name, tableColumnsQuery)
	return nil
}

func buildDSN(details driver.ConnectionDetails) (string, string, error) {
	if dsn := details.String("dsn"); dsn != "" {
		return "mysql", dsn, nil
	}
	host := details.String("host")
	if host == "" {
		return "", "", fmt.Errorf("mysql connection requires a host")
	}
	port := details.String("port")
	if port == "" {
		port = "3306"
	}
	dbname := details.String("dbname")
	if dbname == "" {
		return "", "", fmt.Errorf("mysql connection requires a dbname")
	}
	var cred string
	if user := details.String("user"); user != "" {
		cred = user
		if pass := details.String("password"); pass != "" {
			cred += ":" + pass
		}
		cred += "@"
	}
	// parseTime makes DATE/DATETIME scan as time.Time instead of raw
	// bytes.
	dsn := fmt.Sprintf("%stcp(%s:%s)/%s?parseTime=true", cred, host, port, dbname)
	return "mysql", dsn, nil
}

func dateBucket(expr string, unit ast.TemporalUnit) (string, error) {
	switch unit {
	case ast.UnitMinute:
		return fmt.Sprintf("STR_TO_DATE(DATE_FORMAT(%s, '%%Y-%%m-%%d %%H:%%i'), '%%Y-%%m-%%d %%H:%%i')", expr), nil
	case ast.UnitHour:
		return fmt.Sprintf("STR_TO_DATE(DATE_FORMAT(%s, '%%Y-%%m-%%d %%H'), '%%Y-%%m-%%d %%H')", expr), nil
	case ast.UnitDay:
		return fmt.Sprintf("DATE(%s)", expr), nil
	case ast.UnitWeek:
		return fmt.Sprintf("STR_TO_DATE(CONCAT(YEARWEEK(%s), ' Sunday'), '%%X%%V %%W')", expr), nil
	case ast.UnitMonth:
		return fmt.Sprintf("STR_TO_DATE(DATE_FORMAT(%s, '%%Y-%%m-01'), '%%Y-%%m-%%d')", expr), nil
	case ast.UnitQuarter:
		return fmt.Sprintf("STR_TO_DATE(CONCAT(YEAR(%s), '-', (QUARTER(%s) * 3) - 2, '-01'), '%%Y-%%m-%%d')", expr, expr), nil
	case ast.UnitYear:
		// YEAR() over a bare column is sargable with a generated index,
		// unlike reconstructing a truncated date.
		return fmt.Sprintf("STR_TO_DATE(CONCAT(YEAR(%s), '-01-01'), '%%Y-%%m-%%d')", expr), nil
	case ast.UnitDayOfWeek:
		return fmt.Sprintf("DAYOFWEEK(%s)", expr), nil
	case ast.UnitMonthOfYr:
		return fmt.Sprintf("MONTH(%s)", expr), nil
	default:
		return "", fmt.Errorf("unsupported temporal unit %s", unit)
	}
}

func coerceExpr(expr string, c metadata.CoercionStrategy) (string, error) {
	switch c {
	case metadata.CoerceNone:
		return expr, nil
	case metadata.CoerceISO8601ToDateTime:
		return fmt.Sprintf("CAST(%s AS DATETIME)", expr), nil
	case metadata.CoerceYYYYMMDDToDate:
		return fmt.Sprintf("STR_TO_DATE(%s, '%%Y%%m%%d')", expr), nil
	case metadata.CoerceUnixSecondsToTS:
		return fmt.Sprintf("FROM_UNIXTIME(%s)", expr), nil
	case metadata.CoerceUnixMillisToTS:
		return fmt.Sprintf("FROM_UNIXTIME(%s / 1000)", expr), nil
	default:
		return "", fmt.Errorf("unknown coercion strategy %s", c)
	}
}

func mapColumnType(dbType string) metadata.BaseType {
	switch strings.ToUpper(dbType) {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "YEAR":
		return metadata.TypeInteger
	case "BIGINT":
		return metadata.TypeBigInt
	case "FLOAT", "DOUBLE":
		return metadata.TypeFloat
	case "DECIMAL", "NUMERIC":
		return metadata.TypeDecimal
	case "BIT", "BOOL", "BOOLEAN":
		return metadata.TypeBoolean
	case "DATE":
		return metadata.TypeDate
	case "TIME":
		return metadata.TypeTime
	case "DATETIME", "TIMESTAMP":
		return metadata.TypeDateTime
	case "JSON":
		return metadata.TypeJSON
	case "CHAR", "VARCHAR", "TEXT", "TINYTEXT", "MEDIUMTEXT", "LONGTEXT", "ENUM", "SET":
		return metadata.TypeText
	default:
		return metadata.TypeUnknown
	}
}

func listTablesQuery(schema string) (string, []any) {
	if schema == "" {
		return `SELECT table_schema, table_name
			FROM information_schema.tables
			WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
			ORDER BY table_name`, nil
	}
	return `SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name`, []any{schema}
}

func tableColumnsQuery(schema, table string) (string, []any) {
	if schema == "" {
		return `SELECT column_name, data_type
			FROM information_schema.columns
			WHERE table_schema = DATABASE() AND table_name = ?
			ORDER BY ordinal_position`, []any{table}
	}
	return `SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`, []any{schema, table}
}
