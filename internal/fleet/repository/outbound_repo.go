package repository

import (
	"context"
	"time"

	"github.com/bitfantasy/mojing/internal/fleet/entity"
	"gorm.io/gorm"
)

type OutboundRepository struct {
	db *gorm.DB
}

func NewOutboundRepository(db *gorm.DB) *OutboundRepository {
	return &OutboundRepository{db: db}
}

func (r *OutboundRepository) WithTx(tx *gorm.DB) *OutboundRepository {
	return &OutboundRepository{db: tx}
}

func (r *OutboundRepository) Create(ctx context.Context, record *entity.OutboundRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *OutboundRepository) FindByID(ctx context.Context, id string) (*entity.OutboundRecord, error) {
	var record entity.OutboundRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// FindOpenByDevice 查询设备未归还的出库单，没有时返回 nil, nil
func (r *OutboundRepository) FindOpenByDevice(ctx context.Context, deviceID string) (*entity.OutboundRecord, error) {
	var record entity.OutboundRecord
	err := r.db.WithContext(ctx).
		Where("device_id = ? AND status = ?", deviceID, entity.OutboundStatusOutbound).
		First(&record).Error
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// MarkReturned 仅在状态仍为 outbound 时更新为 returned
func (r *OutboundRepository) MarkReturned(ctx context.Context, id string, fields map[string]interface{}) (bool, error) {
	fields["status"] = entity.OutboundStatusReturned
	result := r.db.WithContext(ctx).Model(&entity.OutboundRecord{}).
		Where("id = ? AND status = ?", id, entity.OutboundStatusOutbound).
		Updates(fields)
	return result.RowsAffected == 1, result.Error
}

// DeleteWithStatus 按状态条件删除，返回是否命中
func (r *OutboundRepository) DeleteWithStatus(ctx context.Context, id, status string) (bool, error) {
	result := r.db.WithContext(ctx).Where("id = ? AND status = ?", id, status).Delete(&entity.OutboundRecord{})
	return result.RowsAffected == 1, result.Error
}

type OutboundListParams struct {
	ListParams
	DeviceID string
	Status   string
	Keyword  string
	From     *time.Time
	To       *time.Time
}

func (r *OutboundRepository) filtered(ctx context.Context, params OutboundListParams) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&entity.OutboundRecord{})
	if params.DeviceID != "" {
		query = query.Where("device_id = ?", params.DeviceID)
	}
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.Keyword != "" {
		kw := "%" + params.Keyword + "%"
		query = query.Where("device_name LIKE ? OR destination LIKE ? OR operator LIKE ?", kw, kw, kw)
	}
	if params.From != nil {
		query = query.Where("date >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("date < ?", *params.To)
	}
	return query
}

func (r *OutboundRepository) List(ctx context.Context, params OutboundListParams) ([]entity.OutboundRecord, int64, error) {
	query := r.filtered(ctx, params)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset, limit := params.normalize()
	var items []entity.OutboundRecord
	err := query.Order("date DESC").Offset(offset).Limit(limit).Find(&items).Error
	return items, total, err
}

// ListAll 导出用，不分页
func (r *OutboundRepository) ListAll(ctx context.Context, params OutboundListParams) ([]entity.OutboundRecord, error) {
	var items []entity.OutboundRecord
	err := r.filtered(ctx, params).Order("date DESC").Find(&items).Error
	return items, err
}

// CountOpen 未归还出库单数量
func (r *OutboundRepository) CountOpen(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.OutboundRecord{}).
		Where("status = ?", entity.OutboundStatusOutbound).
		Count(&count).Error
	return count, err
}
