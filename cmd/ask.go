// ask.go implements the headless one-shot mode: generate SQL for a
// single question, print it, optionally run it, and exit.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/askql/askql/ai"
	"github.com/askql/askql/db"
	"github.com/spf13/cobra"
)

var flagRun bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Generate SQL for one question and exit",
	Long: `Generate SQL for a single natural-language question without the TUI.

The generated statement is printed to stdout. With --run and an active
connection, the statement is executed and its rows are printed too.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		orc, database, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		if database != nil {
			defer database.Close()
		}
		defer orc.Cleanup()

		if err := orc.InitializeProvider(cmd.Context()); err != nil {
			return fmt.Errorf("initialize %s: %w", orc.Provider().Name(), err)
		}

		sql, err := orc.GenerateSQL(cmd.Context(), question)
		if err != nil {
			return err
		}
		if sql == "" {
			fmt.Fprintln(os.Stderr, "no runnable SQL in the response:")
			fmt.Fprintln(os.Stderr, lastAssistantText(orc))
			os.Exit(1)
		}
		fmt.Println(sql)

		if !flagRun {
			return nil
		}
		if database == nil {
			return fmt.Errorf("--run requires a database connection (--host or --conn)")
		}
		return runAndPrint(cmd.Context(), database, sql)
	},
}

func init() {
	askCmd.Flags().BoolVar(&flagRun, "run", false, "execute the generated SQL")
	rootCmd.AddCommand(askCmd)
}

func lastAssistantText(orc *ai.Orchestrator) string {
	history := orc.History()
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == ai.RoleAssistant {
			return history[i].Content
		}
	}
	return ""
}

func runAndPrint(ctx context.Context, database *db.DB, sql string) error {
	res, err := database.Execute(ctx, sql)
	if err != nil {
		return err
	}
	if len(res.Columns) > 0 {
		fmt.Println(strings.Join(res.Columns, "\t"))
		for _, row := range res.Rows {
			fmt.Println(strings.Join(row, "\t"))
		}
	}
	fmt.Fprintln(os.Stderr, res.Status)
	return nil
}
