// logger.go provides file-based logging for AI interactions.
//
// Logs are written to ~/.askql/logs/ai.log with timestamps.
// Prompts, streamed responses and extraction outcomes are logged;
// credentials never are.
package ai

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var (
	logOnce sync.Once
	logFile *os.File
)

// initLog opens (or creates) the log file. Called once lazily.
func initLog() {
	logOnce.Do(func() {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return
		}
		logDir := filepath.Join(homeDir, ".askql", "logs")
		if err := os.MkdirAll(logDir, 0700); err != nil {
			return
		}
		logPath := filepath.Join(logDir, "ai.log")
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return
		}
		logFile = f
	})
}

func logWrite(s string) {
	initLog()
	if logFile != nil {
		logFile.WriteString(s) //nolint:errcheck
	}
}

// LogGenerationRequest logs one outgoing generation request.
func LogGenerationRequest(provider string, msgs []Message) {
	ts := time.Now().Format("2006-01-02 15:04:05")
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(
		"\n════════════════════════════════════════════════════════════════\n"+
			"[REQUEST] %s  |  Provider: %s\n"+
			"════════════════════════════════════════════════════════════════\n",
		ts, provider,
	))
	for _, m := range msgs {
		sb.WriteString(fmt.Sprintf("%s:\n%s\n────────────────────────────────────────\n", m.Role, m.Content))
	}
	logWrite(sb.String())
}

// LogGenerationResult logs the streamed text plus the extraction outcome.
func LogGenerationResult(provider string, raw string, parsed ParsedSQL, err error) {
	ts := time.Now().Format("2006-01-02 15:04:05")
	errStr := "(none)"
	if err != nil {
		errStr = err.Error()
	}
	entry := fmt.Sprintf(
		"[RESPONSE] %s  |  Provider: %s\n"+
			"────────────────────────────────────────\n"+
			"Error: %s\n"+
			"────────────────────────────────────────\n"+
			"Raw response:\n%s\n"+
			"────────────────────────────────────────\n"+
			"Extracted SQL (confidence %.1f):\n%s\n"+
			"Issues: %s\n"+
			"════════════════════════════════════════════════════════════════\n\n",
		ts, provider, errStr, raw, parsed.Confidence, parsed.SQL, strings.Join(parsed.Issues, "; "),
	)
	logWrite(entry)
}
