package repository

import (
	"context"

	"github.com/bitfantasy/mojing/internal/fleet/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditLogRepository 审计日志仓库
type AuditLogRepository struct {
	db *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

func (r *AuditLogRepository) WithTx(tx *gorm.DB) *AuditLogRepository {
	return &AuditLogRepository{db: tx}
}

// Create 创建审计日志
func (r *AuditLogRepository) Create(ctx context.Context, log *entity.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(log).Error
}

type AuditLogListParams struct {
	ListParams
	EntityType string
	EntityID   string
	ActionType string
}

// List 查询审计日志
func (r *AuditLogRepository) List(ctx context.Context, params AuditLogListParams) ([]entity.AuditLog, int64, error) {
	var items []entity.AuditLog
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.AuditLog{})
	if params.EntityType != "" {
		query = query.Where("entity_type = ?", params.EntityType)
	}
	if params.EntityID != "" {
		query = query.Where("entity_id = ?", params.EntityID)
	}
	if params.ActionType != "" {
		query = query.Where("action_type = ?", params.ActionType)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := params.normalize()
	err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&items).Error

	return items, total, err
}

// LogActivity 便捷记录审计日志，忽略错误
func (r *AuditLogRepository) LogActivity(ctx context.Context, actionType, entityType, entityID, operator string, details map[string]interface{}) {
	log := &entity.AuditLog{
		ID:         uuid.New().String(),
		ActionType: actionType,
		EntityType: entityType,
		EntityID:   entityID,
		Operator:   operator,
		Details:    details,
	}
	r.db.WithContext(ctx).Create(log)
}
