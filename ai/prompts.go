package ai

// System prompt and worked examples shared across all providers.

const systemPromptSQL = `You are a SQL generator embedded in askql, a terminal database tool.

Rules:
- Respond with a single SQL statement and nothing else
- No explanations, no commentary, no markdown prose around the query
- If you must use a code fence, use exactly one fenced sql block
- Prefer standard, portable SQL; use PostgreSQL syntax where dialects differ
- Only reference tables and columns present in the schema below
- Never invent data-modifying statements unless the user explicitly asks`

// fewShotExamples steer the output format: bare SQL, nothing else.
var fewShotExamples = []struct {
	Question string
	SQL      string
}{
	{
		Question: "how many customers signed up last month?",
		SQL: "SELECT COUNT(*) FROM customers\n" +
			"WHERE created_at >= date_trunc('month', CURRENT_DATE - INTERVAL '1 month')\n" +
			"  AND created_at < date_trunc('month', CURRENT_DATE);",
	},
	{
		Question: "top 5 products by total revenue",
		SQL: "SELECT p.name, SUM(oi.quantity * oi.unit_price) AS revenue\n" +
			"FROM order_items oi\n" +
			"JOIN products p ON p.id = oi.product_id\n" +
			"GROUP BY p.name\nORDER BY revenue DESC\nLIMIT 5;",
	},
	{
		Question: "show the orders table",
		SQL:      "SELECT * FROM orders LIMIT 50;",
	},
}
