package main

import (
	"fmt"

	"gigmatch/config"
	"gigmatch/db"
	"gigmatch/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if err := cfg.Require(config.KeyDatabaseURL); err != nil {
				return err
			}
			logger, err := logging.New(cfg.JSON, cfg.Debug)
			if err != nil {
				return fmt.Errorf("creating a logger: %w", err)
			}
			defer logger.Sync()

			pool, err := db.NewPool(cmd.Context(), cfg.Database.URL, db.PoolOptions{ApplicationName: app + "-migrate"})
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := db.Migrate(cmd.Context(), pool)
			if err != nil {
				return err
			}
			logger.Info("migrations applied", zap.Strings("versions", applied), zap.Int("count", len(applied)))
			return nil
		},
	}
}
