package main

import (
	"context"

	"github.com/spf13/cobra"

	"shelfkeeper/internal/config"
	"shelfkeeper/internal/storage"
)

func newMigrateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), cfg, func(ctx context.Context, a *app) error {
				if err := storage.Migrate(ctx, a.db); err != nil {
					return err
				}
				a.logger.Info(ctx, "migrations applied")
				return nil
			})
		},
	}
}
