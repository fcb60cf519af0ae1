// Package cmd contains all Cobra commands for askql.
//
// Design decision: the root command connects to PostgreSQL (flags or a
// saved profile) and launches the chat TUI. A database connection is
// optional: without one askql still generates SQL, it just cannot run
// it.
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/askql/askql/ai"
	"github.com/askql/askql/applog"
	"github.com/askql/askql/config"
	"github.com/askql/askql/db"
	"github.com/askql/askql/tui"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	flagConn     string
	flagHost     string
	flagPort     int
	flagUser     string
	flagPassword string
	flagDatabase string
	flagSSLMode  string
	flagProvider string

	flagSSHHost string
	flagSSHPort int
	flagSSHUser string
	flagSSHKey  string
)

var rootCmd = &cobra.Command{
	Use:   "askql",
	Short: "Ask questions, get SQL",
	Long: `askql turns natural-language questions into PostgreSQL queries:
  • Streaming generation from local or hosted AI providers
  • Schema-aware prompts built from your live database
  • Extracted SQL runnable in place, with results inline
  • Optional SSH tunnel for remote servers

Run 'askql' to start the chat UI.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		orc, database, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		if database != nil {
			defer database.Close()
		}
		return tui.Start(orc, database)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConn, "conn", "", "saved connection profile name")
	pf.StringVar(&flagHost, "host", "", "PostgreSQL host")
	pf.IntVar(&flagPort, "port", 5432, "PostgreSQL port")
	pf.StringVar(&flagUser, "user", "", "PostgreSQL user")
	pf.StringVar(&flagPassword, "password", "", "PostgreSQL password")
	pf.StringVar(&flagDatabase, "dbname", "", "database name")
	pf.StringVar(&flagSSLMode, "sslmode", "prefer", "sslmode (disable, prefer, require)")
	pf.StringVar(&flagProvider, "provider", "", "AI provider (local, openai, anthropic, compatible)")
	pf.StringVar(&flagSSHHost, "ssh-host", "", "SSH bastion host for tunneling")
	pf.IntVar(&flagSSHPort, "ssh-port", 22, "SSH bastion port")
	pf.StringVar(&flagSSHUser, "ssh-user", "", "SSH user")
	pf.StringVar(&flagSSHKey, "ssh-key", "", "path to SSH private key")
}

// Execute runs the root command.
func Execute() error {
	// .env is optional; missing file is not an error.
	_ = godotenv.Load()
	return rootCmd.Execute()
}

// setup builds the orchestrator and (when connection flags are given)
// the database handle shared by the root and ask commands.
func setup(ctx context.Context) (*ai.Orchestrator, *db.DB, error) {
	appCfg, err := config.LoadAppConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if flagProvider != "" {
		appCfg.AI.Provider = flagProvider
	}
	applog.Info("using AI provider %q", appCfg.AI.Provider)

	database, err := connectDatabase(ctx)
	if err != nil {
		return nil, nil, err
	}

	var schema ai.SchemaSource
	if database != nil {
		schema = database
	}
	orc, err := ai.NewOrchestrator(appCfg.AI, schema)
	if err != nil {
		if database != nil {
			database.Close()
		}
		return nil, nil, err
	}
	return orc, database, nil
}

// connectDatabase resolves --conn or the host flags into a connection.
// Returns nil (no error) when no connection was requested.
func connectDatabase(ctx context.Context) (*db.DB, error) {
	var cfg config.Config
	switch {
	case flagConn != "":
		store, err := config.NewConnectionStore()
		if err != nil {
			return nil, fmt.Errorf("open connection store: %w", err)
		}
		saved, ok := store.Get(flagConn)
		if !ok {
			return nil, fmt.Errorf("no saved connection named %q", flagConn)
		}
		cfg = saved.ToConfig()
	case flagHost != "":
		cfg = config.Config{
			Host:     flagHost,
			Port:     flagPort,
			User:     flagUser,
			Password: flagPassword,
			Database: flagDatabase,
			SSLMode:  flagSSLMode,
		}
		if flagSSHHost != "" {
			cfg.SSH = config.SSHConfig{
				Enabled: true,
				Host:    flagSSHHost,
				Port:    flagSSHPort,
				User:    flagSSHUser,
				KeyPath: flagSSHKey,
			}
		}
	default:
		return nil, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	database, err := db.Connect(dialCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	applog.Event("DB", "connected to %s:%d/%s", cfg.Host, cfg.Port, cfg.Database)
	return database, nil
}
