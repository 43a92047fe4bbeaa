package repository

import (
	"context"
	"time"

	"github.com/bitfantasy/mojing/internal/fleet/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

func (r *InventoryRepository) WithTx(tx *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: tx}
}

// EnsureDefaults 初始化元数据行与固定的墨水/配件库存行
func (r *InventoryRepository) EnsureDefaults(ctx context.Context) error {
	db := r.db.WithContext(ctx)
	meta := entity.InventoryMeta{ID: entity.InventoryMetaID, LastUpdated: time.Now().Format("2006-01-02")}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&meta).Error; err != nil {
		return err
	}

	var rows []entity.StockItem
	for _, c := range entity.InkColors {
		rows = append(rows, entity.StockItem{ID: uuid.New().String(), Category: entity.CategoryInk, ItemKey: c})
	}
	for _, k := range entity.EquipmentKeys {
		rows = append(rows, entity.StockItem{ID: uuid.New().String(), Category: entity.CategoryEquipment, ItemKey: k})
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func (r *InventoryRepository) ListItems(ctx context.Context) ([]entity.StockItem, error) {
	var items []entity.StockItem
	err := r.db.WithContext(ctx).Order("category ASC, item_key ASC, variant ASC").Find(&items).Error
	return items, err
}

func (r *InventoryRepository) GetMeta(ctx context.Context) (*entity.InventoryMeta, error) {
	var meta entity.InventoryMeta
	if err := r.db.WithContext(ctx).Where("id = ?", entity.InventoryMetaID).First(&meta).Error; err != nil {
		return nil, err
	}
	return &meta, nil
}

// Load 组装库存聚合
func (r *InventoryRepository) Load(ctx context.Context) (*entity.Inventory, error) {
	items, err := r.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	inv := entity.NewInventory()
	for _, item := range items {
		inv.Set(entity.StockLine{Category: item.Category, Key: item.ItemKey, Variant: item.Variant}, item.Quantity)
	}

	meta, err := r.GetMeta(ctx)
	if err != nil && !IsNotFound(err) {
		return nil, err
	}
	if meta != nil {
		inv.Version = meta.Version
		inv.LastUpdated = meta.LastUpdated
	}
	return inv, nil
}

// FindItem 查询单条库存行
func (r *InventoryRepository) FindItem(ctx context.Context, category, key, variant string) (*entity.StockItem, error) {
	var item entity.StockItem
	err := r.db.WithContext(ctx).
		Where("category = ? AND item_key = ? AND variant = ?", category, key, variant).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Decrement 条件扣减，库存不足时返回 false 且不修改
func (r *InventoryRepository) Decrement(ctx context.Context, line entity.StockLine) (bool, error) {
	result := r.db.WithContext(ctx).Model(&entity.StockItem{}).
		Where("category = ? AND item_key = ? AND variant = ? AND quantity >= ?", line.Category, line.Key, line.Variant, line.Quantity).
		Updates(map[string]interface{}{
			"quantity":   gorm.Expr("quantity - ?", line.Quantity),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Increment 增加库存，行不存在时创建
func (r *InventoryRepository) Increment(ctx context.Context, line entity.StockLine) error {
	db := r.db.WithContext(ctx)
	result := db.Model(&entity.StockItem{}).
		Where("category = ? AND item_key = ? AND variant = ?", line.Category, line.Key, line.Variant).
		Updates(map[string]interface{}{
			"quantity":   gorm.Expr("quantity + ?", line.Quantity),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	return db.Create(&entity.StockItem{
		ID:       uuid.New().String(),
		Category: line.Category,
		ItemKey:  line.Key,
		Variant:  line.Variant,
		Quantity: line.Quantity,
	}).Error
}

// SetQuantity 直接写入数量，返回旧值
func (r *InventoryRepository) SetQuantity(ctx context.Context, line entity.StockLine) (int, error) {
	existing, err := r.FindItem(ctx, line.Category, line.Key, line.Variant)
	if err != nil && !IsNotFound(err) {
		return 0, err
	}
	if existing == nil {
		return 0, r.db.WithContext(ctx).Create(&entity.StockItem{
			ID:       uuid.New().String(),
			Category: line.Category,
			ItemKey:  line.Key,
			Variant:  line.Variant,
			Quantity: line.Quantity,
		}).Error
	}
	err = r.db.WithContext(ctx).Model(&entity.StockItem{}).
		Where("id = ?", existing.ID).
		Updates(map[string]interface{}{"quantity": line.Quantity, "updated_at": time.Now()}).Error
	return existing.Quantity, err
}

// CompareAndSwapQuantity 仅当数量仍为 old 时写入 new
func (r *InventoryRepository) CompareAndSwapQuantity(ctx context.Context, id string, old, new int) (bool, error) {
	result := r.db.WithContext(ctx).Model(&entity.StockItem{}).
		Where("id = ? AND quantity = ?", id, old).
		Updates(map[string]interface{}{"quantity": new, "updated_at": time.Now()})
	return result.RowsAffected == 1, result.Error
}

// SetSafetyStock 设置安全库存，行不存在时创建
func (r *InventoryRepository) SetSafetyStock(ctx context.Context, category, key, variant string, safety int) error {
	item := entity.StockItem{
		ID:          uuid.New().String(),
		Category:    category,
		ItemKey:     key,
		Variant:     variant,
		SafetyStock: safety,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "category"}, {Name: "item_key"}, {Name: "variant"}},
		DoUpdates: clause.AssignmentColumns([]string{"safety_stock", "updated_at"}),
	}).Create(&item).Error
}

// CompareAndBumpVersion 乐观锁：version 匹配时 +1 并刷新日期
func (r *InventoryRepository) CompareAndBumpVersion(ctx context.Context, expected int64, date string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&entity.InventoryMeta{}).
		Where("id = ? AND version = ?", entity.InventoryMetaID, expected).
		Updates(map[string]interface{}{
			"version":      gorm.Expr("version + 1"),
			"last_updated": date,
		})
	return result.RowsAffected == 1, result.Error
}

// BumpVersion 账本路径无条件 +1
func (r *InventoryRepository) BumpVersion(ctx context.Context, date string) error {
	return r.db.WithContext(ctx).Model(&entity.InventoryMeta{}).
		Where("id = ?", entity.InventoryMetaID).
		Updates(map[string]interface{}{
			"version":      gorm.Expr("version + 1"),
			"last_updated": date,
		}).Error
}

func (r *InventoryRepository) CreateTransactions(ctx context.Context, txs []entity.InventoryTransaction) error {
	if len(txs) == 0 {
		return nil
	}
	for i := range txs {
		if txs[i].ID == "" {
			txs[i].ID = uuid.New().String()
		}
	}
	return r.db.WithContext(ctx).Create(&txs).Error
}

type TransactionListParams struct {
	ListParams
	TransactionType string
	ReferenceID     string
	Category        string
}

func (r *InventoryRepository) ListTransactions(ctx context.Context, params TransactionListParams) ([]entity.InventoryTransaction, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.InventoryTransaction{})
	if params.TransactionType != "" {
		query = query.Where("transaction_type = ?", params.TransactionType)
	}
	if params.ReferenceID != "" {
		query = query.Where("reference_id = ?", params.ReferenceID)
	}
	if params.Category != "" {
		query = query.Where("category = ?", params.Category)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset, limit := params.normalize()
	var txs []entity.InventoryTransaction
	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&txs).Error
	return txs, total, err
}

// GetAlerts 获取库存预警列表
func (r *InventoryRepository) GetAlerts(ctx context.Context) ([]entity.StockItem, error) {
	var alerts []entity.StockItem
	err := r.db.WithContext(ctx).
		Where("quantity < safety_stock AND safety_stock > 0").
		Order("category ASC, item_key ASC").
		Find(&alerts).Error
	return alerts, err
}

// CountPaperStock 某型号的纸张库存行数量
func (r *InventoryRepository) CountPaperStock(ctx context.Context, modelCode string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.StockItem{}).
		Where("category = ? AND item_key = ? AND quantity > 0", entity.CategoryPaper, modelCode).
		Count(&count).Error
	return count, err
}
