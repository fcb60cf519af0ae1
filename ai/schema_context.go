// schema_context.go renders catalog metadata into the bounded DDL-like
// text block injected into prompts.
//
// The output is approximate CREATE TABLE DDL: enough structure for a
// model to write joins and filters, small enough to fit a prompt budget.
package ai

import (
	"fmt"
	"strings"

	"github.com/askql/askql/db"
)

// SchemaFormatOptions bounds the rendered schema context.
type SchemaFormatOptions struct {
	MaxTables          int
	MaxColumnsPerTable int
	MaxChars           int
}

// DefaultSchemaFormatOptions returns the standard limits.
func DefaultSchemaFormatOptions() SchemaFormatOptions {
	return SchemaFormatOptions{
		MaxTables:          20,
		MaxColumnsPerTable: 15,
		MaxChars:           3000,
	}
}

// SchemaContextResult carries the rendered text plus what actually made
// it in before a limit was hit.
type SchemaContextResult struct {
	Text            string
	Truncated       bool
	TablesIncluded  int
	ColumnsIncluded int
}

const schemaTruncationMarker = "-- [schema truncated]"

// FormatSchemaForContext walks databases → tables → columns and renders
// each table as a CREATE TABLE block. Tables beyond MaxTables and
// columns beyond MaxColumnsPerTable are dropped with a marker; the
// character budget is enforced last by clipping the assembled text, so
// leading tables are never sacrificed for trailing ones.
func FormatSchemaForContext(databases []db.DatabaseSchema, opts SchemaFormatOptions) SchemaContextResult {
	if opts.MaxTables <= 0 || opts.MaxColumnsPerTable <= 0 || opts.MaxChars <= 0 {
		opts = DefaultSchemaFormatOptions()
	}

	res := SchemaContextResult{}
	var sb strings.Builder

	for _, database := range databases {
		if database.Name != "" {
			sb.WriteString(fmt.Sprintf("-- Database: %s\n", database.Name))
		}
		for _, table := range database.Tables {
			if res.TablesIncluded >= opts.MaxTables {
				res.Truncated = true
				break
			}
			res.TablesIncluded++

			sb.WriteString(fmt.Sprintf("CREATE TABLE %s (\n", table.Name))
			for i, col := range table.Columns {
				if i >= opts.MaxColumnsPerTable {
					res.Truncated = true
					sb.WriteString(fmt.Sprintf("  -- %d more columns omitted\n", len(table.Columns)-i))
					break
				}
				res.ColumnsIncluded++

				nullability := "NOT NULL"
				if col.IsNullable {
					nullability = "NULL"
				}
				sb.WriteString(fmt.Sprintf("  %s %s %s,\n", col.Name, col.DataType, nullability))
			}
			if table.RowEstimate > 0 {
				sb.WriteString(fmt.Sprintf("); -- ~%d rows\n\n", table.RowEstimate))
			} else {
				sb.WriteString(");\n\n")
			}
		}
	}

	res.Text = strings.TrimRight(sb.String(), "\n")

	if len(res.Text) > opts.MaxChars {
		res.Truncated = true
		res.Text = res.Text[:opts.MaxChars]
	}
	if res.Truncated {
		res.Text += "\n" + schemaTruncationMarker
	}
	return res
}
