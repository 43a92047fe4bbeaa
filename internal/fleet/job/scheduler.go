package job

import (
	"context"
	"fmt"

	"github.com/bitfantasy/mojing/internal/fleet/service"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// OutboxRetrier 重试待执行的副作用任务（*service.OutboxDispatcher 实现）
type OutboxRetrier interface {
	RetryPending(ctx context.Context) (service.DispatchResult, error)
}

// Scheduler 定时任务
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// NewScheduler 注册副作用任务重试，schedule 为 cron 表达式或 @every 形式
func NewScheduler(schedule string, retrier OutboxRetrier, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	s := &Scheduler{cron: c, logger: logger}

	if _, err := c.AddFunc(schedule, func() { s.retryOutbox(retrier) }); err != nil {
		return nil, fmt.Errorf("failed to register outbox retry job %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) retryOutbox(retrier OutboxRetrier) {
	result, err := retrier.RetryPending(context.Background())
	if err != nil {
		s.logger.Warn("outbox retry failed", zap.Error(err))
		return
	}
	if result.Failed > 0 || result.Dead > 0 {
		s.logger.Warn("outbox tasks still failing",
			zap.Int("failed", result.Failed),
			zap.Int("dead", result.Dead),
		)
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop 停止调度并等待正在执行的任务结束
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
}
