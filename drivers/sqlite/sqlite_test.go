package sqlite

import (
	"testing"

	"github.com/satishbabariya/quarry/driver"
	"github.com/satishbabariya/quarry/metadata"
	"github.com/satishbabariya/quarry/query/ast"
)

func TestBuildDSN(t *testing.T) {
	name, dsn, err := buildDSN(driver.ConnectionDetails{"path": "/var/data/app.db"})
	if err != nil {
		t.Fatal(err)
	}
	if name != "sqlite3" || dsn != "/var/data/app.db" {
		t.Errorf("got %q %q", name, dsn)
	}

	_, dsn, err = buildDSN(driver.ConnectionDetails{"dsn": ":memory:"})
	if err != nil || dsn != ":memory:" {
		t.Errorf("got %q, %v", dsn, err)
	}

	if _, _, err := buildDSN(driver.ConnectionDetails{}); err == nil {
		t.Error("missing path accepted")
	}
}

func TestDateBucket(t *testing.T) {
	tests := []struct {
		unit ast.TemporalUnit
		want string
	}{
		{ast.UnitDay, `DATE("c")`},
		{ast.UnitMonth, `DATE("c", 'start of month')`},
		{ast.UnitYear, `DATE("c", 'start of year')`},
		{ast.UnitWeek, `DATE("c", 'weekday 0', '-6 days')`},
		{ast.UnitDayOfWeek, `(CAST(STRFTIME('%w', "c") AS INTEGER) + 1)`},
		{ast.UnitMonthOfYr, `CAST(STRFTIME('%m', "c") AS INTEGER)`},
	}
	for _, tt := range tests {
		got, err := dateBucket(`"c"`, tt.unit)
		if err != nil {
			t.Fatalf("%s: %v", tt.unit, err)
		}
		if got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.unit, got, tt.want)
		}
	}
}

func TestCoerceExpr(t *testing.T) {
	got, err := coerceExpr(`"c"`, metadata.CoerceUnixSecondsToTS)
	if err != nil || got != `DATETIME("c", 'unixepoch')` {
		t.Errorf("got %q, %v", got, err)
	}
	got, err = coerceExpr(`"c"`, metadata.CoerceUnixMillisToTS)
	if err != nil || got != `DATETIME("c" / 1000, 'unixepoch')` {
		t.Errorf("got %q, %v", got, err)
	}
}

func TestMapColumnTypeAffinity(t *testing.T) {
	tests := map[string]metadata.BaseType{
		"INTEGER":      metadata.TypeInteger,
		"int":          metadata.TypeInteger,
		"VARCHAR(255)": metadata.TypeText,
		"NVARCHAR(30)": metadata.TypeText,
		"CLOB":         metadata.TypeText,
		"REAL":         metadata.TypeFloat,
		"DOUBLE":       metadata.TypeFloat,
		"DECIMAL(9,2)": metadata.TypeDecimal,
		"BOOLEAN":      metadata.TypeBoolean,
		"DATE":         metadata.TypeDate,
		"DATETIME":     metadata.TypeDateTime,
		"BLOB":         metadata.TypeUnknown,
	}
	for dbType, want := range tests {
		if got := mapColumnType(dbType); got != want {
			t.Errorf("mapColumnType(%q) = %s, want %s", dbType, got, want)
		}
	}
}

func TestLoadBooleanLiteralsAsIntegers(t *testing.T) {
	if err := driver.Default.LoadIfNeeded(Name); err != nil {
		t.Fatal(err)
	}
	lit, err := driver.BooleanLiteral.For(Name)
	if err != nil {
		t.Fatal(err)
	}
	if lit(true) != "1" || lit(false) != "0" {
		t.Errorf("got %q/%q", lit(true), lit(false))
	}
}
