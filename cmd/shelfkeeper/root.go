package main

import (
	"github.com/spf13/cobra"

	"shelfkeeper/internal/config"
)

// rootOptions holds flag values that override the environment.
type rootOptions struct {
	databaseURL    string
	databaseDriver string
	port           string
	logLevel       string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cfg := &config.Config{}

	cmd := &cobra.Command{
		Use:           "shelfkeeper",
		Short:         "Library catalogue, reservations and borrowings server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			*cfg = *loadConfig(cmd, opts)
			return cfg.Validate()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.databaseURL, "database-url", "", "Postgres DSN (overrides DATABASE_URL)")
	flags.StringVar(&opts.databaseDriver, "database-driver", "", `database/sql driver: "postgres" or "pgx" (overrides DATABASE_DRIVER)`)
	flags.StringVar(&opts.port, "port", "", "HTTP listen port (overrides PORT)")
	flags.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")

	cmd.AddCommand(
		newServeCmd(cfg),
		newMigrateCmd(cfg),
		newSweepCmd(cfg),
		newCreateAdminCmd(cfg),
		newSeedCmd(cfg),
	)
	return cmd
}

// loadConfig layers defaults, the environment, then any flags set on the
// command line.
func loadConfig(cmd *cobra.Command, opts *rootOptions) *config.Config {
	cfg := config.LoadConfig()
	flags := cmd.Flags()
	if flags.Changed("database-url") {
		cfg.DatabaseURL = opts.databaseURL
	}
	if flags.Changed("database-driver") {
		cfg.DatabaseDriver = opts.databaseDriver
	}
	if flags.Changed("port") {
		cfg.Port = opts.port
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	return cfg
}
