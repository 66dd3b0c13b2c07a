// Package introspect reads live schema metadata out of a connected
// database through the driver capability set, and can snapshot it into
// a metadata provider for query resolution.
package introspect

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/satishbabariya/quarry/driver"
	"github.com/satishbabariya/quarry/metadata"
)

// Catalog introspects one database.
type Catalog struct {
	db     *sql.DB
	engine string
}

// NewCatalog wraps a connected pool for introspection.
func NewCatalog(db *sql.DB, engine string) *Catalog {
	return &Catalog{db: db, engine: engine}
}

// Tables lists user tables in a schema ("" means the engine default).
func (c *Catalog) Tables(ctx context.Context, schema string) ([]metadata.Table, error) {
	listQuery, err := driver.ListTablesQuery.For(c.engine)
	if err != nil {
		return nil, err
	}
	q, args := listQuery(schema)
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []metadata.Table
	for rows.Next() {
		var t metadata.Table
		if err := rows.Scan(&t.Schema, &t.Name); err != nil {
			return nil, fmt.Errorf("scan table row: %w", err)
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// Columns lists the columns of one table with mapped base types.
func (c *Catalog) Columns(ctx context.Context, schema, table string) ([]metadata.Field, error) {
	colsQuery, err := driver.TableColumnsQuery.For(c.engine)
	if err != nil {
		return nil, err
	}
	mapType, err := driver.MapColumnType.For(c.engine)
	if err != nil {
		return nil, err
	}

	q, args := colsQuery(schema, table)
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", table, err)
	}
	defer rows.Close()

	var fields []metadata.Field
	for rows.Next() {
		var name, dbType string
		if err := rows.Scan(&name, &dbType); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		base := mapType(dbType)
		fields = append(fields, metadata.Field{
			Name:          name,
			BaseType:      base,
			EffectiveType: base,
		})
	}
	return fields, rows.Err()
}

// Snapshot walks the whole schema and builds an in-memory provider
// with sequentially assigned ids. Useful for standalone deployments
// without an external metadata store.
func (c *Catalog) Snapshot(ctx context.Context, schema string) (*metadata.StaticProvider, error) {
	tables, err := c.Tables(ctx, schema)
	if err != nil {
		return nil, err
	}
	provider := &metadata.StaticProvider{
		Fields: make(map[int64]*metadata.Field),
		Tables: make(map[int64]*metadata.Table),
	}
	var tableID, fieldID int64
	for _, t := range tables {
		tableID++
		tbl := t
		tbl.ID = tableID
		provider.Tables[tableID] = &tbl

		fields, err := c.Columns(ctx, t.Schema, t.Name)
		if err != nil {
			return nil, err
		}
		for _, f := range fields {
			fieldID++
			fld := f
			fld.ID = fieldID
			fld.TableID = tableID
			provider.Fields[fieldID] = &fld
		}
	}
	return provider, nil
}
