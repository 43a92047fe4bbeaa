package main

import (
	"context"
	"fmt"

	"github.com/bitfantasy/mojing/internal/fleet/repository"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "建表并初始化库存元数据",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		zapLogger, err := initLogger(cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to init logger: %w", err)
		}
		defer zapLogger.Sync()

		db, err := initDatabase(cfg.Database)
		if err != nil {
			return err
		}
		if err := migrate(context.Background(), db, repository.NewRepositories(db)); err != nil {
			return err
		}
		zapLogger.Info("Migration finished", zap.String("driver", cfg.Database.Driver))
		return nil
	},
}
