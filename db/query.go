// query.go implements the query execution engine: arbitrary SQL in,
// structured tabular results out.
//
// All functions accept a context and return structured results that the
// TUI layer can render. Errors are returned, never logged or printed.
package db

import (
	"context"
	"fmt"
	"strings"
)

// QueryResult holds the output of an arbitrary SQL query.
type QueryResult struct {
	Columns     []string
	ColumnTypes []string
	Rows        [][]string
	RowCount    int
	Status      string // e.g. "(5 rows)"
}

// TableInfo describes one table with its estimated row count.
type TableInfo struct {
	Schema   string
	Name     string
	RowCount int64 // estimate from pg_class.reltuples
}

// Execute runs an arbitrary SQL statement and returns results.
func (d *DB) Execute(ctx context.Context, sql string) (*QueryResult, error) {
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return nil, fmt.Errorf("empty query")
	}
	return d.executeQuery(ctx, sql)
}

// ListTables lists tables in a schema with estimated row counts.
func (d *DB) ListTables(ctx context.Context, schema string) ([]TableInfo, error) {
	if schema == "" {
		schema = "public"
	}
	query := `
		SELECT t.table_schema, t.table_name,
		       GREATEST(COALESCE(c.reltuples, 0), 0)::bigint
		FROM information_schema.tables t
		LEFT JOIN pg_class c
		  ON c.relname = t.table_name
		  AND c.relnamespace = (SELECT oid FROM pg_namespace WHERE nspname = t.table_schema)
		WHERE t.table_schema = $1 AND t.table_type = 'BASE TABLE'
		ORDER BY t.table_name`
	rows, err := d.Pool.Query(ctx, query, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []TableInfo
	for rows.Next() {
		var t TableInfo
		if err := rows.Scan(&t.Schema, &t.Name, &t.RowCount); err != nil {
			return nil, err
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

// executeQuery is the internal workhorse for running SQL and collecting results.
func (d *DB) executeQuery(ctx context.Context, sql string, args ...any) (*QueryResult, error) {
	rows, err := d.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := &QueryResult{}

	typeMap := rows.Conn().TypeMap()
	for _, fd := range rows.FieldDescriptions() {
		result.Columns = append(result.Columns, fd.Name)
		if dt, ok := typeMap.TypeForOID(fd.DataTypeOID); ok {
			result.ColumnTypes = append(result.ColumnTypes, dt.Name)
		} else {
			result.ColumnTypes = append(result.ColumnTypes, fmt.Sprintf("oid %d", fd.DataTypeOID))
		}
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = fmt.Sprintf("%v", v)
		}
		result.Rows = append(result.Rows, row)
		result.RowCount++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result.Status = fmt.Sprintf("(%d row%s)", result.RowCount, plural(result.RowCount))
	return result, nil
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// FormatRowCount formats a row count for compact display:
//   - under 1000: exact number (e.g. "42", "999")
//   - 1000..999499: Xk (e.g. "1k", "999k")
//   - 999500+: XM (e.g. "1M", "10M")
func FormatRowCount(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 999500 {
		return fmt.Sprintf("%dk", (n+500)/1000)
	}
	return fmt.Sprintf("%dM", (n+500000)/1000000)
}
