package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/bitfantasy/mojing/internal/fleet/entity"
	"github.com/bitfantasy/mojing/internal/fleet/repository"
	"github.com/bitfantasy/mojing/internal/shared/feishu"
	"go.uber.org/zap"
)

// CardSender 飞书卡片发送（*feishu.FeishuClient 实现）
type CardSender interface {
	SendCard(ctx context.Context, chatID string, card feishu.InteractiveCard) error
}

// DispatchResult 一次执行的统计
type DispatchResult struct {
	Done    int `json:"done"`
	Failed  int `json:"failed"`
	Dead    int `json:"dead"`
	Skipped int `json:"skipped"`
}

// permanentError 重试也不会成功的任务，直接标记为 dead
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// OutboxDispatcher 执行事务外的副作用任务
type OutboxDispatcher struct {
	repos       *repository.Repositories
	logger      *zap.Logger
	maxAttempts int
	batchSize   int
	sender      CardSender
	chatID      string

	// 同一进程内串行执行，避免请求与定时任务重复执行同一任务
	mu sync.Mutex
}

func NewOutboxDispatcher(repos *repository.Repositories, logger *zap.Logger, maxAttempts, batchSize int) *OutboxDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &OutboxDispatcher{
		repos:       repos,
		logger:      logger,
		maxAttempts: maxAttempts,
		batchSize:   batchSize,
	}
}

// SetCardSender 配置飞书通知
func (d *OutboxDispatcher) SetCardSender(sender CardSender, chatID string) {
	d.sender = sender
	d.chatID = chatID
}

// NotifyEnabled 是否需要写入通知任务
func (d *OutboxDispatcher) NotifyEnabled() bool {
	return d.sender != nil && d.chatID != ""
}

// Dispatch 按写入顺序执行指定设备的待执行任务
func (d *OutboxDispatcher) Dispatch(ctx context.Context, aggregateIDs ...string) DispatchResult {
	d.mu.Lock()
	defer d.mu.Unlock()

	var total DispatchResult
	for _, id := range aggregateIDs {
		tasks, err := d.repos.Outbox.ListPendingByAggregate(ctx, id)
		if err != nil {
			d.logger.Warn("list outbox tasks failed", zap.String("aggregate_id", id), zap.Error(err))
			continue
		}
		total = total.add(d.run(ctx, tasks))
	}
	return total
}

// RetryPending 重试所有待执行任务（定时任务与手动触发）
func (d *OutboxDispatcher) RetryPending(ctx context.Context) (DispatchResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tasks, err := d.repos.Outbox.ListPending(ctx, d.batchSize)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("查询待执行任务失败: %w", err)
	}
	result := d.run(ctx, tasks)
	if len(tasks) > 0 {
		d.logger.Info("outbox retry finished",
			zap.Int("done", result.Done),
			zap.Int("failed", result.Failed),
			zap.Int("dead", result.Dead),
			zap.Int("skipped", result.Skipped),
		)
	}
	return result, nil
}

// ListTasks 任务列表
func (d *OutboxDispatcher) ListTasks(ctx context.Context, params repository.OutboxListParams) ([]entity.OutboxTask, int64, error) {
	return d.repos.Outbox.List(ctx, params)
}

// run 依次执行任务；同一设备同类任务失败后，本轮跳过其后续任务以保持顺序
func (d *OutboxDispatcher) run(ctx context.Context, tasks []entity.OutboxTask) DispatchResult {
	var result DispatchResult
	blocked := make(map[string]bool)

	for i := range tasks {
		task := &tasks[i]
		key := task.AggregateID + "|" + task.Kind
		if blocked[key] {
			result.Skipped++
			continue
		}

		err := d.execute(ctx, task)
		if err == nil {
			if markErr := d.repos.Outbox.MarkDone(ctx, task.ID); markErr != nil {
				d.logger.Warn("mark outbox task done failed", zap.String("task_id", task.ID), zap.Error(markErr))
			}
			d.logger.Debug("outbox task done", zap.String("task_id", task.ID), zap.String("kind", task.Kind))
			result.Done++
			continue
		}

		var perm *permanentError
		dead := errors.As(err, &perm) || task.Attempts+1 >= d.maxAttempts
		if markErr := d.repos.Outbox.MarkFailed(ctx, task.ID, err, dead); markErr != nil {
			d.logger.Warn("mark outbox task failed", zap.String("task_id", task.ID), zap.Error(markErr))
		}
		d.logger.Warn("outbox task failed",
			zap.String("task_id", task.ID),
			zap.String("kind", task.Kind),
			zap.String("aggregate_id", task.AggregateID),
			zap.Int("attempts", task.Attempts+1),
			zap.Bool("dead", dead),
			zap.Error(err),
		)
		if dead {
			result.Dead++
		} else {
			result.Failed++
			blocked[key] = true
		}
	}
	return result
}

func (d *OutboxDispatcher) execute(ctx context.Context, task *entity.OutboxTask) error {
	switch task.Kind {
	case entity.OutboxKindDeviceCustody:
		var p entity.DeviceCustodyPayload
		if err := json.Unmarshal(task.Payload, &p); err != nil {
			return &permanentError{err: fmt.Errorf("解析任务失败: %w", err)}
		}
		fields := make(map[string]interface{})
		if p.Location != nil {
			fields["location"] = *p.Location
		}
		if p.Owner != nil {
			fields["owner"] = *p.Owner
		}
		if len(fields) == 0 {
			return nil
		}
		ok, err := d.repos.Device.Update(ctx, p.DeviceID, fields)
		if err != nil {
			return err
		}
		if !ok {
			return &permanentError{err: fmt.Errorf("%w: %s", ErrDeviceNotFound, p.DeviceID)}
		}
		return nil

	case entity.OutboxKindPrinterInstance:
		var p entity.PrinterInstancePayload
		if err := json.Unmarshal(task.Payload, &p); err != nil {
			return &permanentError{err: fmt.Errorf("解析任务失败: %w", err)}
		}
		fields := map[string]interface{}{
			"status":        p.Status,
			"deployed_date": p.DeployedDate,
		}
		if p.Location != nil {
			fields["location"] = *p.Location
		}
		ok, err := d.repos.Printer.UpdateInstance(ctx, p.InstanceID, fields)
		if err != nil {
			return err
		}
		if !ok {
			return &permanentError{err: fmt.Errorf("%w: %s", ErrPrinterNotFound, p.InstanceID)}
		}
		return nil

	case entity.OutboxKindAuditLog:
		var p entity.AuditLogPayload
		if err := json.Unmarshal(task.Payload, &p); err != nil {
			return &permanentError{err: fmt.Errorf("解析任务失败: %w", err)}
		}
		// 以任务ID作为日志ID，重复执行不会产生重复日志
		err := d.repos.AuditLog.Create(ctx, &entity.AuditLog{
			ID:         task.ID,
			ActionType: p.ActionType,
			EntityType: p.EntityType,
			EntityID:   p.EntityID,
			Operator:   p.Operator,
			Details:    p.Details,
		})
		if repository.IsUniqueViolation(err) {
			return nil
		}
		return err

	case entity.OutboxKindNotify:
		if !d.NotifyEnabled() {
			return nil
		}
		var p entity.NotifyPayload
		if err := json.Unmarshal(task.Payload, &p); err != nil {
			return &permanentError{err: fmt.Errorf("解析任务失败: %w", err)}
		}
		card := feishu.NewOutboundCard(feishu.OutboundCardInfo{
			Event:       p.Event,
			DeviceName:  p.DeviceName,
			Destination: p.Destination,
			Operator:    p.Operator,
			Summary:     p.Summary,
		})
		return d.sender.SendCard(ctx, d.chatID, card)
	}
	return &permanentError{err: fmt.Errorf("未知任务类型: %s", task.Kind)}
}

func (r DispatchResult) add(o DispatchResult) DispatchResult {
	return DispatchResult{
		Done:    r.Done + o.Done,
		Failed:  r.Failed + o.Failed,
		Dead:    r.Dead + o.Dead,
		Skipped: r.Skipped + o.Skipped,
	}
}
