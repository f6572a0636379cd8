package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsline/helpdesk-core/internal/config"
	"github.com/opsline/helpdesk-core/internal/observability"
	"github.com/opsline/helpdesk-core/internal/persistence"
)

// MigrateCmd returns the migrate command.
func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := observability.NewLogger(cfg.Logger)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			if cfg.Postgres.DSN == "" {
				return fmt.Errorf("POSTGRES_DSN is required to run migrations")
			}
			pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pg.Close()

			return persistence.RunMigrations(ctx, pg.PoolHandle(), logger)
		},
	}
}
