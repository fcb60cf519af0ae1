package tui

import (
	"fmt"
	"strings"
	"testing"

	"github.com/askql/askql/db"
	"github.com/stretchr/testify/assert"
)

func TestRenderResult(t *testing.T) {
	res := &db.QueryResult{
		Columns:  []string{"id", "name"},
		Rows:     [][]string{{"1", "ada"}, {"2", "grace"}},
		RowCount: 2,
	}

	out := strings.Join(renderResult(res), "\n")
	assert.Contains(t, out, "id | name")
	assert.Contains(t, out, "1 | ada")
	assert.Contains(t, out, "2 | grace")
	assert.NotContains(t, out, "more rows")
}

func TestRenderResultCompactsLargeCounts(t *testing.T) {
	rows := make([][]string, 12)
	for i := range rows {
		rows[i] = []string{fmt.Sprintf("%d", i)}
	}
	res := &db.QueryResult{
		Columns:  []string{"id"},
		Rows:     rows,
		RowCount: 4512,
	}

	lines := renderResult(res)
	// Header plus the first ten rows plus the overflow line.
	assert.Len(t, lines, 12)
	assert.Contains(t, lines[len(lines)-1], "(5k more rows)")
}
