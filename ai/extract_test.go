package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSQL_CodeBlock(t *testing.T) {
	parsed := ExtractSQL("Sure! ```sql\nSELECT 1;\n```")

	assert.Equal(t, "SELECT 1;", parsed.SQL)
	assert.Equal(t, []string{"Extracted from code block"}, parsed.Issues)
	assert.InDelta(t, 0.9, parsed.Confidence, 0.001)
}

func TestExtractSQL_Refusal(t *testing.T) {
	parsed := ExtractSQL("I cannot help with that request.")

	assert.Empty(t, parsed.SQL)
	assert.Zero(t, parsed.Confidence)
}

func TestExtractSQL_PrefersKeywordLedBlock(t *testing.T) {
	response := "First some pseudocode:\n```\nfor each row do a thing with more text than sql\n```\n" +
		"then the query:\n```sql\nSELECT id FROM users;\n```"

	parsed := ExtractSQL(response)

	assert.Equal(t, "SELECT id FROM users;", parsed.SQL)
	assert.Contains(t, parsed.Issues, "Extracted from code block")
}

func TestExtractSQL_LongestBlockFallback(t *testing.T) {
	response := "```\nnot sql here\n```\n```\nalso not sql, but this one is noticeably longer\n```"

	parsed := ExtractSQL(response)

	// Neither block leads with a keyword, so validation fails.
	assert.Empty(t, parsed.SQL)
	assert.Zero(t, parsed.Confidence)
	assert.Contains(t, parsed.Issues, "Extracted from longest code block")
}

func TestExtractSQL_ExplanatoryPrefix(t *testing.T) {
	parsed := ExtractSQL("Here's the SQL: SELECT name FROM users;")

	assert.Equal(t, "SELECT name FROM users;", parsed.SQL)
	assert.Contains(t, parsed.Issues, "Removed explanatory prefix")
}

func TestExtractSQL_TrailingExplanationTrimmed(t *testing.T) {
	parsed := ExtractSQL("The answer:\nSELECT count(*) FROM orders; This counts all orders in the table.")

	require.Equal(t, "SELECT count(*) FROM orders;", parsed.SQL)
	assert.Contains(t, parsed.Issues, "Trimmed trailing explanation")
}

func TestExtractSQL_MissingFrom(t *testing.T) {
	parsed := ExtractSQL("SELECT name, email;")

	assert.Equal(t, "SELECT name, email;", parsed.SQL)
	assert.Contains(t, parsed.Issues, "SELECT without FROM clause")
}

func TestExtractSQL_ConstantSelectHasNoMissingFromIssue(t *testing.T) {
	for _, sql := range []string{"SELECT 1;", "SELECT now();", "SELECT 'hello';", "SELECT version();"} {
		parsed := ExtractSQL(sql)
		assert.Equal(t, sql, parsed.SQL)
		assert.NotContains(t, parsed.Issues, "SELECT without FROM clause", "input %q", sql)
	}
}

func TestExtractSQL_MismatchedParens(t *testing.T) {
	parsed := ExtractSQL("SELECT count(* FROM users;")

	assert.NotEmpty(t, parsed.SQL)
	assert.Contains(t, parsed.Issues, "Mismatched parentheses (1 open, 0 close)")
	assert.Greater(t, parsed.Confidence, 0.0)
}

func TestExtractSQL_ProseWithEmbeddedKeywordWord(t *testing.T) {
	// "with" inside lowercase prose must not be mistaken for a CTE.
	parsed := ExtractSQL("Maybe try asking about tables you can work with instead.")

	assert.Empty(t, parsed.SQL)
	assert.Zero(t, parsed.Confidence)
}

func TestExtractSQL_KeywordOnOwnLine(t *testing.T) {
	parsed := ExtractSQL("Run this:\nselect id from events;")

	assert.Equal(t, "select id from events;", parsed.SQL)
}

func TestExtractSQL_StrayBackticks(t *testing.T) {
	parsed := ExtractSQL("`SELECT id FROM logs`")

	assert.Equal(t, "SELECT id FROM logs", parsed.SQL)
}

func TestExtractSQL_ConfidenceFloor(t *testing.T) {
	// Stack enough issues to hit the 0.1 floor: prefix removal, trailing
	// explanation, missing FROM and mismatched parens only reach 0.6, so
	// just assert confidence never goes below the floor on a messy input.
	parsed := ExtractSQL("Sure, here's the SQL: SELECT a, (b; This explains the result.")

	if parsed.SQL != "" {
		assert.GreaterOrEqual(t, parsed.Confidence, 0.1)
	}
}

func TestExtractSQL_WithCTE(t *testing.T) {
	sql := "WITH recent AS (SELECT * FROM orders WHERE created_at > now() - interval '7 days')\nSELECT count(*) FROM recent;"
	parsed := ExtractSQL(sql)

	assert.Equal(t, sql, parsed.SQL)
	assert.Equal(t, 1.0, parsed.Confidence)
	assert.Empty(t, parsed.Issues)
}
