package repository

import (
	"context"

	"github.com/bitfantasy/mojing/internal/fleet/entity"
	"gorm.io/gorm"
)

// PrinterRepository 打印机型号与实体
type PrinterRepository struct {
	db *gorm.DB
}

func NewPrinterRepository(db *gorm.DB) *PrinterRepository {
	return &PrinterRepository{db: db}
}

func (r *PrinterRepository) WithTx(tx *gorm.DB) *PrinterRepository {
	return &PrinterRepository{db: tx}
}

// === 型号 ===

func (r *PrinterRepository) FindModel(ctx context.Context, code string) (*entity.PrinterModel, error) {
	var model entity.PrinterModel
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&model).Error; err != nil {
		return nil, err
	}
	return &model, nil
}

func (r *PrinterRepository) ListModels(ctx context.Context) ([]entity.PrinterModel, error) {
	var models []entity.PrinterModel
	err := r.db.WithContext(ctx).Order("code ASC").Find(&models).Error
	return models, err
}

// ModelIndex 以code为键的型号表
func (r *PrinterRepository) ModelIndex(ctx context.Context) (map[string]*entity.PrinterModel, error) {
	models, err := r.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[string]*entity.PrinterModel, len(models))
	for i := range models {
		index[models[i].Code] = &models[i]
	}
	return index, nil
}

func (r *PrinterRepository) CreateModel(ctx context.Context, model *entity.PrinterModel) error {
	return r.db.WithContext(ctx).Create(model).Error
}

func (r *PrinterRepository) SaveModel(ctx context.Context, model *entity.PrinterModel) error {
	return r.db.WithContext(ctx).Save(model).Error
}

func (r *PrinterRepository) DeleteModel(ctx context.Context, code string) error {
	return r.db.WithContext(ctx).Where("code = ?", code).Delete(&entity.PrinterModel{}).Error
}

// === 实体 ===

func (r *PrinterRepository) FindInstance(ctx context.Context, id string) (*entity.PrinterInstance, error) {
	var inst entity.PrinterInstance
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&inst).Error; err != nil {
		return nil, err
	}
	return &inst, nil
}

func (r *PrinterRepository) CreateInstance(ctx context.Context, inst *entity.PrinterInstance) error {
	return r.db.WithContext(ctx).Create(inst).Error
}

// UpdateInstance 按字段更新，返回是否命中
func (r *PrinterRepository) UpdateInstance(ctx context.Context, id string, fields map[string]interface{}) (bool, error) {
	result := r.db.WithContext(ctx).Model(&entity.PrinterInstance{}).Where("id = ?", id).Updates(fields)
	return result.RowsAffected > 0, result.Error
}

type PrinterInstanceListParams struct {
	ListParams
	Status    string
	ModelCode string
}

func (r *PrinterRepository) ListInstances(ctx context.Context, params PrinterInstanceListParams) ([]entity.PrinterInstance, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.PrinterInstance{})
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	if params.ModelCode != "" {
		query = query.Where("model_code = ?", params.ModelCode)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset, limit := params.normalize()
	var items []entity.PrinterInstance
	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&items).Error
	return items, total, err
}
