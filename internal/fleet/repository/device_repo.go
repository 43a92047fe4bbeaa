package repository

import (
	"context"

	"github.com/bitfantasy/mojing/internal/fleet/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DeviceRepository struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

func (r *DeviceRepository) WithTx(tx *gorm.DB) *DeviceRepository {
	return &DeviceRepository{db: tx}
}

// FindByID 查询设备
func (r *DeviceRepository) FindByID(ctx context.Context, id string) (*entity.Device, error) {
	var device entity.Device
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&device).Error; err != nil {
		return nil, err
	}
	return &device, nil
}

func (r *DeviceRepository) Create(ctx context.Context, device *entity.Device) error {
	return r.db.WithContext(ctx).Create(device).Error
}

// Update 按字段更新，返回是否命中
func (r *DeviceRepository) Update(ctx context.Context, id string, fields map[string]interface{}) (bool, error) {
	result := r.db.WithContext(ctx).Model(&entity.Device{}).Where("id = ?", id).Updates(fields)
	return result.RowsAffected > 0, result.Error
}

func (r *DeviceRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.Device{}).Error
}

// Upsert 导入时按id覆盖
func (r *DeviceRepository) Upsert(ctx context.Context, devices []entity.Device) error {
	if len(devices) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "serial", "location", "owner", "status", "model_code", "updated_at"}),
	}).Create(&devices).Error
}

type DeviceListParams struct {
	ListParams
	Keyword string
	Status  string
}

func (r *DeviceRepository) List(ctx context.Context, params DeviceListParams) ([]entity.Device, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.Device{})
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.Keyword != "" {
		kw := "%" + params.Keyword + "%"
		query = query.Where("id LIKE ? OR name LIKE ? OR serial LIKE ? OR location LIKE ?", kw, kw, kw, kw)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset, limit := params.normalize()
	var items []entity.Device
	err := query.Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error
	return items, total, err
}

// CountByStatus 各状态设备数量
func (r *DeviceRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&entity.Device{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make(map[string]int64, len(rows))
	for _, row := range rows {
		result[row.Status] = row.Count
	}
	return result, nil
}
