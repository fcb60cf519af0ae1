// extract.go pulls a SQL candidate out of free-form model text.
//
// There is no grammar behind this: models wrap SQL in prose, fences and
// apologies in vendor-specific ways, so extraction is an explicit,
// ordered list of approximate rules. Every cleanup step is recorded as
// an issue and lowers the confidence score; validation failure is a
// normal outcome, not an error.
package ai

import (
	"fmt"
	"regexp"
	"strings"
)

// ParsedSQL is the outcome of extraction. SQL is empty when no valid
// statement was found, in which case Confidence is 0.
type ParsedSQL struct {
	SQL        string
	Confidence float64
	Issues     []string
}

// sqlKeywords are the statement-leading keywords we accept.
var sqlKeywords = []string{
	"SELECT", "INSERT", "UPDATE", "DELETE", "CREATE", "DROP", "ALTER",
	"WITH", "SHOW", "DESCRIBE", "EXPLAIN", "PRAGMA", "COPY", "EXPORT", "IMPORT",
}

var (
	codeBlockRe = regexp.MustCompile("(?s)```[a-zA-Z]*\\n?(.*?)```")

	// explanatoryPrefixes are stripped, in order, from the start of
	// unfenced responses.
	explanatoryPrefixes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^here(?:'s| is) (?:the|your|a) (?:sql(?: query| statement)?|query)[:.]?\s*`),
		regexp.MustCompile(`(?i)^(?:sure|certainly|of course|okay|ok)[,!.]?\s*`),
		regexp.MustCompile(`(?i)^the following (?:sql|query)[^:]*:\s*`),
		regexp.MustCompile(`(?i)^this (?:sql|query) (?:should|will)[^:]*:\s*`),
		regexp.MustCompile(`(?i)^sql[:]\s*`),
	}

	// proseAfterSemicolon marks trailing text that reads like an
	// explanation rather than more SQL.
	proseAfterSemicolon = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(?:this|the|that|these|note|explanation|here|it|i )`),
		regexp.MustCompile(`^[A-Z][a-z]+ [a-z]+`),
	}

	// constantSelectRe approximates "SELECT of a constant expression":
	// the select list opens with a literal, a parenthesis or a niladic
	// date/time function, so a missing FROM is expected.
	constantSelectRe = regexp.MustCompile(`(?i)^select\s+(?:[0-9'"(\-+]|now\(\)|current_(?:date|time|timestamp)|version\(\))`)
)

// ExtractSQL runs the ordered heuristic pipeline over raw model text.
func ExtractSQL(response string) ParsedSQL {
	var issues []string
	text := strings.TrimSpace(response)

	// 1. Prefer fenced code blocks when present.
	blocks := codeBlockRe.FindAllStringSubmatch(text, -1)
	if len(blocks) > 0 {
		picked, keywordLed := pickCodeBlock(blocks)
		text = strings.TrimSpace(picked)
		if keywordLed {
			issues = append(issues, "Extracted from code block")
		} else {
			issues = append(issues, "Extracted from longest code block")
		}
	} else {
		// 2. Strip explanatory prefixes from unfenced text.
		for _, re := range explanatoryPrefixes {
			if stripped := re.ReplaceAllString(text, ""); stripped != text {
				text = strings.TrimSpace(stripped)
				issues = append(issues, "Removed explanatory prefix")
			}
		}

		// 3. Slice from the first keyword if the text still leads with
		// prose, then drop anything after a terminating semicolon that
		// reads like an explanation.
		if !startsWithKeyword(text) {
			if idx := firstKeywordIndex(text); idx > 0 {
				text = text[idx:]
			}
			if semi := strings.Index(text, ";"); semi >= 0 {
				trailing := strings.TrimSpace(text[semi+1:])
				if trailing != "" && looksLikeProse(trailing) {
					text = text[:semi+1]
					issues = append(issues, "Trimmed trailing explanation")
				}
			}
		}
	}

	// 4. Stray fence residue.
	text = strings.Trim(strings.TrimSpace(text), "`")
	text = strings.TrimSpace(text)

	// 5. The cleaned text must lead with a recognized keyword.
	if !startsWithKeyword(text) {
		return ParsedSQL{Confidence: 0, Issues: issues}
	}

	// 6. Structural checks append issues, never fail hard.
	issues = append(issues, structuralIssues(text)...)

	// 7. Each issue costs a tenth, floored at 0.1.
	confidence := 1.0 - 0.1*float64(len(issues))
	if confidence < 0.1 {
		confidence = 0.1
	}

	return ParsedSQL{SQL: text, Confidence: confidence, Issues: issues}
}

// pickCodeBlock prefers the first block whose content leads with a SQL
// keyword, falling back to the longest block.
func pickCodeBlock(blocks [][]string) (content string, keywordLed bool) {
	for _, b := range blocks {
		if startsWithKeyword(strings.TrimSpace(b[1])) {
			return b[1], true
		}
	}
	longest := blocks[0][1]
	for _, b := range blocks[1:] {
		if len(b[1]) > len(longest) {
			longest = b[1]
		}
	}
	return longest, false
}

func startsWithKeyword(text string) bool {
	upper := strings.ToUpper(text)
	for _, kw := range sqlKeywords {
		if strings.HasPrefix(upper, kw) {
			return true
		}
	}
	return false
}

// firstKeywordIndex locates the earliest keyword token in the text, or
// -1 when none occurs. Mid-sentence occurrences only count when written
// in SQL's conventional uppercase or at the start of a line; otherwise
// prose like "help with that" would be mistaken for a CTE.
func firstKeywordIndex(text string) int {
	upper := strings.ToUpper(text)
	best := -1
	for _, kw := range sqlKeywords {
		for idx := strings.Index(upper, kw); idx >= 0; {
			if isTokenBoundary(upper, idx, len(kw)) &&
				(text[idx:idx+len(kw)] == kw || atLineStart(text, idx)) {
				if best == -1 || idx < best {
					best = idx
				}
				break
			}
			next := strings.Index(upper[idx+1:], kw)
			if next < 0 {
				break
			}
			idx = idx + 1 + next
		}
	}
	return best
}

func atLineStart(text string, idx int) bool {
	for i := idx - 1; i >= 0; i-- {
		switch text[i] {
		case ' ', '\t':
			continue
		case '\n':
			return true
		default:
			return false
		}
	}
	return true
}

func isTokenBoundary(s string, start, length int) bool {
	if start > 0 && isWordChar(s[start-1]) {
		return false
	}
	end := start + length
	if end < len(s) && isWordChar(s[end]) {
		return false
	}
	return true
}

func isWordChar(c byte) bool {
	return c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

func looksLikeProse(text string) bool {
	for _, re := range proseAfterSemicolon {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// structuralIssues flags suspicious but non-fatal shapes.
func structuralIssues(sql string) []string {
	var issues []string
	upper := strings.ToUpper(sql)

	if strings.HasPrefix(upper, "SELECT") &&
		!regexp.MustCompile(`(?i)\bfrom\b`).MatchString(sql) &&
		!constantSelectRe.MatchString(sql) {
		issues = append(issues, "SELECT without FROM clause")
	}

	open := strings.Count(sql, "(")
	closed := strings.Count(sql, ")")
	if open != closed {
		issues = append(issues, fmt.Sprintf("Mismatched parentheses (%d open, %d close)", open, closed))
	}
	return issues
}
