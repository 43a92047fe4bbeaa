package main

import (
	"context"
	"fmt"

	"github.com/bitfantasy/mojing/internal/fleet/repository"
	"github.com/bitfantasy/mojing/internal/fleet/service"
	"github.com/bitfantasy/mojing/internal/shared/feishu"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var outboxCmd = &cobra.Command{
	Use:   "outbox-retry",
	Short: "立即重试一轮待执行的副作用任务",
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

		opts := service.Options{
			Logger:            zapLogger,
			OutboxMaxAttempts: cfg.Outbox.MaxAttempts,
			OutboxBatchSize:   cfg.Outbox.BatchSize,
		}
		if cfg.Feishu.Enabled() {
			opts.CardSender = feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret)
			opts.NotifyChatID = cfg.Feishu.ChatID
		}
		services := service.NewServices(repository.NewRepositories(db), opts)

		result, err := services.Outbox.RetryPending(context.Background())
		if err != nil {
			return err
		}
		zapLogger.Info("Outbox retry finished",
			zap.Int("done", result.Done),
			zap.Int("failed", result.Failed),
			zap.Int("dead", result.Dead),
			zap.Int("skipped", result.Skipped),
		)
		return nil
	},
}
