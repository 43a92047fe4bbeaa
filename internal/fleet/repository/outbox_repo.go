package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bitfantasy/mojing/internal/fleet/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) WithTx(tx *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: tx}
}

// Enqueue 写入一条待执行任务
func (r *OutboxRepository) Enqueue(ctx context.Context, kind, aggregateID string, payload interface{}) (*entity.OutboxTask, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("序列化任务失败: %w", err)
	}
	task := &entity.OutboxTask{
		ID:          uuid.New().String(),
		Kind:        kind,
		AggregateID: aggregateID,
		Payload:     data,
		Status:      entity.OutboxStatusPending,
	}
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return nil, err
	}
	return task, nil
}

// ListPendingByAggregate 某聚合（设备）下的待执行任务，按写入顺序
func (r *OutboxRepository) ListPendingByAggregate(ctx context.Context, aggregateID string) ([]entity.OutboxTask, error) {
	var tasks []entity.OutboxTask
	err := r.db.WithContext(ctx).Where("aggregate_id = ? AND status = ?", aggregateID, entity.OutboxStatusPending).
		Order("created_at ASC").Find(&tasks).Error
	return tasks, err
}

// ListPending 按创建顺序取待执行任务
func (r *OutboxRepository) ListPending(ctx context.Context, limit int) ([]entity.OutboxTask, error) {
	var tasks []entity.OutboxTask
	err := r.db.WithContext(ctx).Where("status = ?", entity.OutboxStatusPending).
		Order("created_at ASC").Limit(limit).Find(&tasks).Error
	return tasks, err
}

func (r *OutboxRepository) MarkDone(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&entity.OutboxTask{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     entity.OutboxStatusDone,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": "",
		}).Error
}

// MarkFailed 记录失败；dead 为 true 时不再重试
func (r *OutboxRepository) MarkFailed(ctx context.Context, id string, cause error, dead bool) error {
	status := entity.OutboxStatusPending
	if dead {
		status = entity.OutboxStatusDead
	}
	return r.db.WithContext(ctx).Model(&entity.OutboxTask{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": cause.Error(),
		}).Error
}

type OutboxListParams struct {
	ListParams
	Status string
	Kind   string
}

func (r *OutboxRepository) List(ctx context.Context, params OutboxListParams) ([]entity.OutboxTask, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.OutboxTask{})
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.Kind != "" {
		query = query.Where("kind = ?", params.Kind)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset, limit := params.normalize()
	var tasks []entity.OutboxTask
	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&tasks).Error
	return tasks, total, err
}

func (r *OutboxRepository) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.OutboxTask{}).
		Where("status = ?", entity.OutboxStatusPending).Count(&count).Error
	return count, err
}
