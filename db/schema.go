// schema.go introspects the catalog into the nested snapshot the AI
// layer renders into prompt context.
//
// The snapshot is plain data (database → tables → columns plus row
// estimates) passed by value; consumers never touch the pool.
package db

import (
	"context"
	"fmt"
)

// ColumnInfo describes a single column in a table.
type ColumnInfo struct {
	Name       string
	DataType   string
	IsNullable bool
}

// TableSchema holds the columns and estimated row count for one table.
type TableSchema struct {
	Name        string
	Columns     []ColumnInfo
	RowEstimate int64
}

// DatabaseSchema holds every introspected table of one database.
type DatabaseSchema struct {
	Name   string
	Tables []TableSchema
}

// SchemaSnapshot introspects the connected database: all tables in the
// public schema with their columns and estimated row counts.
func (d *DB) SchemaSnapshot(ctx context.Context) ([]DatabaseSchema, error) {
	var dbName string
	if err := d.Pool.QueryRow(ctx, "SELECT current_database()").Scan(&dbName); err != nil {
		return nil, fmt.Errorf("current database: %w", err)
	}

	tables, err := d.ListTables(ctx, "public")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	snapshot := DatabaseSchema{Name: dbName}
	for _, t := range tables {
		ts, err := d.fetchTableColumns(ctx, t.Schema, t.Name)
		if err != nil {
			// Skip tables we cannot describe (e.g. missing permissions).
			continue
		}
		ts.RowEstimate = t.RowCount
		snapshot.Tables = append(snapshot.Tables, ts)
	}

	return []DatabaseSchema{snapshot}, nil
}

// fetchTableColumns retrieves column name/type/nullability for a table.
func (d *DB) fetchTableColumns(ctx context.Context, schema, table string) (TableSchema, error) {
	query := `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`
	rows, err := d.Pool.Query(ctx, query, schema, table)
	if err != nil {
		return TableSchema{}, err
	}
	defer rows.Close()

	ts := TableSchema{Name: table}
	for rows.Next() {
		var col ColumnInfo
		var nullable string
		if err := rows.Scan(&col.Name, &col.DataType, &nullable); err != nil {
			return TableSchema{}, err
		}
		col.IsNullable = nullable == "YES"
		ts.Columns = append(ts.Columns, col)
	}
	return ts, rows.Err()
}
