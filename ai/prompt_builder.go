// prompt_builder.go assembles the ordered message list for a generation:
// system instructions, schema context, a summary of recent query
// results, worked examples, prior turns and the user's new question.
package ai

import (
	"fmt"
	"strings"

	"github.com/askql/askql/db"
)

const (
	// defaultPromptBudget bounds the total prompt size in characters.
	defaultPromptBudget = 12000

	// resultsContextMax is how many prior successful query results are
	// summarized so a later question can reference returned data.
	resultsContextMax = 3

	// resultsContextRows is how many rows of each result are included.
	resultsContextRows = 10

	// historyTurnsMax bounds how many prior conversation turns are
	// replayed as chat messages.
	historyTurnsMax = 10
)

// PromptBuilder builds provider-ready message lists.
type PromptBuilder struct {
	schemaOpts   SchemaFormatOptions
	promptBudget int
}

// NewPromptBuilder returns a builder with default limits.
func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{
		schemaOpts:   DefaultSchemaFormatOptions(),
		promptBudget: defaultPromptBudget,
	}
}

// Build assembles the message list. The schema block is truncated
// before assembly so the finished prompt never silently exceeds the
// character budget.
func (b *PromptBuilder) Build(databases []db.DatabaseSchema, history []ConversationMessage, userText string) []Message {
	resultsBlock := formatResultsContext(history)
	examplesBlock := formatExamples()

	// Everything except the schema is fixed; whatever budget remains
	// belongs to the schema block.
	fixed := len(systemPromptSQL) + len(resultsBlock) + len(examplesBlock) + len(userText)
	schemaOpts := b.schemaOpts
	if remaining := b.promptBudget - fixed; remaining < schemaOpts.MaxChars {
		schemaOpts.MaxChars = remaining
	}
	if schemaOpts.MaxChars < 200 {
		schemaOpts.MaxChars = 200
	}
	schema := FormatSchemaForContext(databases, schemaOpts)

	var system strings.Builder
	system.WriteString(systemPromptSQL)
	if schema.Text != "" {
		system.WriteString("\n\nSchema:\n")
		system.WriteString(schema.Text)
	}
	if resultsBlock != "" {
		system.WriteString("\n\n")
		system.WriteString(resultsBlock)
	}
	system.WriteString("\n\n")
	system.WriteString(examplesBlock)

	msgs := []Message{{Role: RoleSystem, Content: system.String()}}

	// Replay recent turns so follow-up questions keep their context.
	turns := history
	if len(turns) > historyTurnsMax {
		turns = turns[len(turns)-historyTurnsMax:]
	}
	for _, m := range turns {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			continue
		}
		msgs = append(msgs, Message{Role: m.Role, Content: m.Content})
	}

	return append(msgs, Message{Role: RoleUser, Content: userText})
}

// formatExamples renders the worked examples block.
func formatExamples() string {
	var sb strings.Builder
	sb.WriteString("Examples:\n")
	for _, ex := range fewShotExamples {
		sb.WriteString(fmt.Sprintf("Q: %s\nA:\n%s\n\n", ex.Question, ex.SQL))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// formatResultsContext summarizes up to the last three successful query
// results in the conversation, ten rows each, oldest first.
func formatResultsContext(history []ConversationMessage) string {
	var withResults []ConversationMessage
	for i := len(history) - 1; i >= 0 && len(withResults) < resultsContextMax; i-- {
		if history[i].QueryResult != nil {
			withResults = append(withResults, history[i])
		}
	}
	if len(withResults) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Recent query results (oldest first):\n")
	for i := len(withResults) - 1; i >= 0; i-- {
		m := withResults[i]
		r := m.QueryResult
		if m.SQL != "" {
			sb.WriteString(fmt.Sprintf("Query: %s\n", m.SQL))
		}
		sb.WriteString(strings.Join(r.Columns, " | "))
		sb.WriteString("\n")
		rows := r.Rows
		if len(rows) > resultsContextRows {
			rows = rows[:resultsContextRows]
		}
		for _, row := range rows {
			sb.WriteString(strings.Join(row, " | "))
			sb.WriteString("\n")
		}
		if r.RowCount > len(rows) {
			sb.WriteString(fmt.Sprintf("(%d more rows)\n", r.RowCount-len(rows)))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
