package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/bitfantasy/mojing/internal/fleet/entity"
	"github.com/bitfantasy/mojing/internal/fleet/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// InventoryService 库存服务
type InventoryService struct {
	repos  *repository.Repositories
	logger *zap.Logger
	events EventPublisher
}

func NewInventoryService(repos *repository.Repositories, logger *zap.Logger) *InventoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryService{repos: repos, logger: logger, events: noopPublisher{}}
}

func (s *InventoryService) SetEventPublisher(p EventPublisher) {
	s.events = p
}

// UpdateInventoryRequest 整体更新库存（只修改提交的键）
type UpdateInventoryRequest struct {
	Version        int64                     `json:"version"`
	PaperStock     map[string]map[string]int `json:"paper_stock"`
	EpsonInkStock  map[string]int            `json:"epson_ink_stock"`
	EquipmentStock map[string]int            `json:"equipment_stock"`
	Notes          string                    `json:"notes"`
}

// AdjustStockRequest 单项增减
type AdjustStockRequest struct {
	Category string `json:"category" binding:"required"`
	ItemKey  string `json:"item_key" binding:"required"`
	Variant  string `json:"variant"`
	Delta    int    `json:"delta"`
	Notes    string `json:"notes"`
}

// SafetyStockRequest 设置安全库存
type SafetyStockRequest struct {
	Category    string `json:"category" binding:"required"`
	ItemKey     string `json:"item_key" binding:"required"`
	Variant     string `json:"variant"`
	SafetyStock int    `json:"safety_stock"`
}

// StockAlert 低库存预警
type StockAlert struct {
	entity.StockItem
	Label    string `json:"label"`
	Shortage int    `json:"shortage"`
}

// GetInventory 获取库存快照
func (s *InventoryService) GetInventory(ctx context.Context) (*entity.Inventory, error) {
	inv, err := s.repos.Inventory.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取库存失败: %w", err)
	}
	return inv, nil
}

// UpdateInventory 按版本号更新库存，版本不一致返回 ErrInventoryConflict
func (s *InventoryService) UpdateInventory(ctx context.Context, req *UpdateInventoryRequest, operator string) (*entity.Inventory, error) {
	models, err := s.repos.Printer.ModelIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取打印机型号失败: %w", err)
	}
	lines, err := requestLines(req)
	if err != nil {
		return nil, err
	}
	for _, line := range lines {
		if err := validateStockLine(line, models); err != nil {
			return nil, err
		}
		if line.Quantity < 0 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidQuantity, line.Label())
		}
	}

	date := today()
	changes := make([]map[string]interface{}, 0, len(lines))
	err = s.repos.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepos := s.repos.WithTx(tx)
		ok, err := txRepos.Inventory.CompareAndBumpVersion(ctx, req.Version, date)
		if err != nil {
			return fmt.Errorf("更新库存版本失败: %w", err)
		}
		if !ok {
			return ErrInventoryConflict
		}

		var ledger []entity.InventoryTransaction
		for _, line := range lines {
			old, err := txRepos.Inventory.SetQuantity(ctx, line)
			if err != nil {
				return fmt.Errorf("更新库存失败: %w", err)
			}
			delta := line.Quantity - old
			if delta == 0 {
				continue
			}
			ledger = append(ledger, entity.InventoryTransaction{
				TransactionType: entity.TxTypeAdjust,
				Category:        line.Category,
				ItemKey:         line.Key,
				Variant:         line.Variant,
				Quantity:        delta,
				ReferenceType:   entity.EntityInventory,
				Operator:        operator,
				Notes:           req.Notes,
			})
			changes = append(changes, map[string]interface{}{
				"item": line.Label(),
				"from": old,
				"to":   line.Quantity,
			})
		}
		return txRepos.Inventory.CreateTransactions(ctx, ledger)
	})
	if err != nil {
		return nil, err
	}

	s.repos.AuditLog.LogActivity(ctx, entity.ActionInventoryUpdate, entity.EntityInventory, "inventory", operator, map[string]interface{}{
		"version": req.Version + 1,
		"changes": changes,
		"notes":   req.Notes,
	})
	s.events.PublishInventoryUpdate("update")
	return s.GetInventory(ctx)
}

// AdjustStock 单项增减，结果不低于0
func (s *InventoryService) AdjustStock(ctx context.Context, req *AdjustStockRequest, operator string) (*entity.StockItem, error) {
	line := entity.StockLine{Category: req.Category, Key: req.ItemKey, Variant: req.Variant}
	models, err := s.repos.Printer.ModelIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取打印机型号失败: %w", err)
	}
	if err := validateStockLine(line, models); err != nil {
		return nil, err
	}

	const maxAttempts = 3
	var applied int
	for attempt := 0; attempt < maxAttempts; attempt++ {
		var swapped bool
		err := s.repos.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			txRepos := s.repos.WithTx(tx)
			current := 0
			item, err := txRepos.Inventory.FindItem(ctx, line.Category, line.Key, line.Variant)
			if err != nil && !repository.IsNotFound(err) {
				return err
			}
			if item != nil {
				current = item.Quantity
			}
			target := current + req.Delta
			if target < 0 {
				target = 0
			}
			applied = target - current
			if applied == 0 {
				swapped = true
				return nil
			}

			if item == nil {
				if err := txRepos.Inventory.Increment(ctx, entity.StockLine{Category: line.Category, Key: line.Key, Variant: line.Variant, Quantity: target}); err != nil {
					return err
				}
			} else {
				ok, err := txRepos.Inventory.CompareAndSwapQuantity(ctx, item.ID, current, target)
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
			}
			swapped = true

			if err := txRepos.Inventory.BumpVersion(ctx, today()); err != nil {
				return err
			}
			return txRepos.Inventory.CreateTransactions(ctx, []entity.InventoryTransaction{{
				TransactionType: entity.TxTypeAdjust,
				Category:        line.Category,
				ItemKey:         line.Key,
				Variant:         line.Variant,
				Quantity:        applied,
				ReferenceType:   entity.EntityInventory,
				Operator:        operator,
				Notes:           req.Notes,
			}})
		})
		if err != nil {
			return nil, fmt.Errorf("调整库存失败: %w", err)
		}
		if swapped {
			break
		}
		s.logger.Debug("adjust stock retry", zap.String("item", line.Label()), zap.Int("attempt", attempt+1))
		if attempt == maxAttempts-1 {
			return nil, ErrInventoryConflict
		}
	}

	if applied != 0 {
		s.repos.AuditLog.LogActivity(ctx, entity.ActionInventoryAdjust, entity.EntityInventory, "inventory", operator, map[string]interface{}{
			"item":  line.Label(),
			"delta": applied,
			"notes": req.Notes,
		})
		s.events.PublishInventoryUpdate("adjust")
	}
	item, err := s.repos.Inventory.FindItem(ctx, line.Category, line.Key, line.Variant)
	if repository.IsNotFound(err) {
		return &entity.StockItem{Category: line.Category, ItemKey: line.Key, Variant: line.Variant}, nil
	}
	return item, err
}

// SetSafetyStock 设置安全库存
func (s *InventoryService) SetSafetyStock(ctx context.Context, req *SafetyStockRequest) error {
	if req.SafetyStock < 0 {
		return ErrInvalidQuantity
	}
	models, err := s.repos.Printer.ModelIndex(ctx)
	if err != nil {
		return fmt.Errorf("读取打印机型号失败: %w", err)
	}
	line := entity.StockLine{Category: req.Category, Key: req.ItemKey, Variant: req.Variant}
	if err := validateStockLine(line, models); err != nil {
		return err
	}
	return s.repos.Inventory.SetSafetyStock(ctx, req.Category, req.ItemKey, req.Variant, req.SafetyStock)
}

// GetAlerts 低于安全库存的库存行
func (s *InventoryService) GetAlerts(ctx context.Context) ([]StockAlert, error) {
	items, err := s.repos.Inventory.GetAlerts(ctx)
	if err != nil {
		return nil, err
	}
	alerts := make([]StockAlert, 0, len(items))
	for _, item := range items {
		alerts = append(alerts, StockAlert{
			StockItem: item,
			Label:     item.Label(),
			Shortage:  item.SafetyStock - item.Quantity,
		})
	}
	return alerts, nil
}

// ListTransactions 库存流水
func (s *InventoryService) ListTransactions(ctx context.Context, params repository.TransactionListParams) ([]entity.InventoryTransaction, int64, error) {
	return s.repos.Inventory.ListTransactions(ctx, params)
}

// Check 只读的库存校验
func (s *InventoryService) Check(ctx context.Context, items entity.OutboundItems) (StockCheckResult, error) {
	if err := validateOutboundItems(items); err != nil {
		return StockCheckResult{}, err
	}
	inv, err := s.GetInventory(ctx)
	if err != nil {
		return StockCheckResult{}, err
	}
	return CheckStock(inv, items), nil
}

// requestLines 展开请求中的库存行，顺序固定
func requestLines(req *UpdateInventoryRequest) ([]entity.StockLine, error) {
	var lines []entity.StockLine

	modelCodes := make([]string, 0, len(req.PaperStock))
	for code := range req.PaperStock {
		modelCodes = append(modelCodes, code)
	}
	sort.Strings(modelCodes)
	for _, code := range modelCodes {
		types := make([]string, 0, len(req.PaperStock[code]))
		for t := range req.PaperStock[code] {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			lines = append(lines, entity.StockLine{Category: entity.CategoryPaper, Key: code, Variant: t, Quantity: req.PaperStock[code][t]})
		}
	}

	for color := range req.EpsonInkStock {
		if !entity.IsInkColor(color) {
			return nil, fmt.Errorf("%w: 墨水颜色 %s", ErrInvalidStockKey, color)
		}
	}
	for _, color := range entity.InkColors {
		if qty, ok := req.EpsonInkStock[color]; ok {
			lines = append(lines, entity.StockLine{Category: entity.CategoryInk, Key: color, Quantity: qty})
		}
	}

	for key := range req.EquipmentStock {
		if !entity.IsEquipmentKey(key) {
			return nil, fmt.Errorf("%w: 配件 %s", ErrInvalidStockKey, key)
		}
	}
	for _, key := range entity.EquipmentKeys {
		if qty, ok := req.EquipmentStock[key]; ok {
			lines = append(lines, entity.StockLine{Category: entity.CategoryEquipment, Key: key, Quantity: qty})
		}
	}
	return lines, nil
}

// validateStockLine 纸张键必须在型号登记表中，墨水/配件键必须在固定集合中
func validateStockLine(line entity.StockLine, models map[string]*entity.PrinterModel) error {
	switch line.Category {
	case entity.CategoryPaper:
		model, ok := models[line.Key]
		if !ok {
			return fmt.Errorf("%w: 打印机型号 %s 未登记", ErrInvalidStockKey, line.Key)
		}
		if !model.SupportsPaper(line.Variant) {
			return fmt.Errorf("%w: 型号 %s 不支持纸张类型 %s", ErrInvalidStockKey, line.Key, line.Variant)
		}
	case entity.CategoryInk:
		if !entity.IsInkColor(line.Key) {
			return fmt.Errorf("%w: 墨水颜色 %s", ErrInvalidStockKey, line.Key)
		}
	case entity.CategoryEquipment:
		if !entity.IsEquipmentKey(line.Key) {
			return fmt.Errorf("%w: 配件 %s", ErrInvalidStockKey, line.Key)
		}
	default:
		return fmt.Errorf("%w: 类别 %s", ErrInvalidStockKey, line.Category)
	}
	return nil
}

// validateOutboundItems 出库/归还清单的键与数量校验
func validateOutboundItems(items entity.OutboundItems) error {
	if items.PaperQuantity < 0 {
		return fmt.Errorf("%w: 纸张", ErrInvalidQuantity)
	}
	if items.PaperQuantity > 0 && (items.PrinterModel == "" || items.PaperType == "") {
		return fmt.Errorf("%w: 纸张需指定打印机型号和纸张类型", ErrInvalidStockKey)
	}
	for color, qty := range items.EpsonInk {
		if !entity.IsInkColor(color) {
			return fmt.Errorf("%w: 墨水颜色 %s", ErrInvalidStockKey, color)
		}
		if qty < 0 {
			return fmt.Errorf("%w: %s色墨水", ErrInvalidQuantity, color)
		}
	}
	for key, qty := range items.Equipment {
		if !entity.IsEquipmentKey(key) {
			return fmt.Errorf("%w: 配件 %s", ErrInvalidStockKey, key)
		}
		if qty < 0 {
			return fmt.Errorf("%w: %s", ErrInvalidQuantity, key)
		}
	}
	return nil
}
