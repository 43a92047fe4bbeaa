package entity

import "time"

// 库存类别
const (
	CategoryPaper     = "paper"
	CategoryInk       = "ink"
	CategoryEquipment = "equipment"
)

// EPSON墨水颜色
const (
	InkCyan    = "C"
	InkMagenta = "M"
	InkYellow  = "Y"
	InkBlack   = "K"
)

// InkColors 固定顺序，库存校验按此顺序短路
var InkColors = []string{InkCyan, InkMagenta, InkYellow, InkBlack}

// 配件类型
const (
	EquipRouters       = "routers"
	EquipPowerStrips   = "power_strips"
	EquipUSBCables     = "usb_cables"
	EquipNetworkCables = "network_cables"
	EquipAdapters      = "adapters"
)

// EquipmentKeys 固定顺序
var EquipmentKeys = []string{EquipRouters, EquipPowerStrips, EquipUSBCables, EquipNetworkCables, EquipAdapters}

var equipmentLabels = map[string]string{
	EquipRouters:       "路由器",
	EquipPowerStrips:   "插排",
	EquipUSBCables:     "USB线",
	EquipNetworkCables: "网线",
	EquipAdapters:      "电源适配器",
}

// IsInkColor 是否为合法墨水颜色
func IsInkColor(key string) bool {
	for _, c := range InkColors {
		if c == key {
			return true
		}
	}
	return false
}

// IsEquipmentKey 是否为合法配件类型
func IsEquipmentKey(key string) bool {
	_, ok := equipmentLabels[key]
	return ok
}

// 库存交易类型
const (
	TxTypeOutbound  = "OUTBOUND"  // 出库
	TxTypeReturnIn  = "RETURN_IN" // 归还入库
	TxTypeShrinkage = "SHRINKAGE" // 损耗（未归还部分）
	TxTypeAdjust    = "ADJUST"    // 库存调整
	TxTypeReconcile = "RECONCILE" // 删除出库单时回补
)

// StockItem 单条库存行
// paper: item_key=打印机型号, variant=纸张类型
// ink: item_key=颜色
// equipment: item_key=配件类型
type StockItem struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	Category    string    `json:"category" gorm:"size:16;not null;uniqueIndex:idx_stock_line"`
	ItemKey     string    `json:"item_key" gorm:"size:64;not null;uniqueIndex:idx_stock_line"`
	Variant     string    `json:"variant" gorm:"size:64;not null;default:'';uniqueIndex:idx_stock_line"`
	Quantity    int       `json:"quantity" gorm:"not null;default:0"`
	SafetyStock int       `json:"safety_stock" gorm:"not null;default:0"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (StockItem) TableName() string {
	return "fleet_stock_items"
}

// Label 便于提示的中文名称
func (s StockItem) Label() string {
	return StockLine{Category: s.Category, Key: s.ItemKey, Variant: s.Variant}.Label()
}

// InventoryMeta 库存单例元数据，version 用于乐观锁
type InventoryMeta struct {
	ID          int       `json:"id" gorm:"primaryKey"`
	Version     int64     `json:"version" gorm:"not null;default:0"`
	LastUpdated string    `json:"last_updated" gorm:"size:10"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (InventoryMeta) TableName() string {
	return "fleet_inventory_meta"
}

// InventoryMetaID 单例行主键
const InventoryMetaID = 1

// Inventory 库存聚合视图
type Inventory struct {
	PaperStock     map[string]map[string]int `json:"paper_stock"`
	EpsonInkStock  map[string]int            `json:"epson_ink_stock"`
	EquipmentStock map[string]int            `json:"equipment_stock"`
	LastUpdated    string                    `json:"last_updated"`
	Version        int64                     `json:"version"`
}

// NewInventory 创建空库存，固定键全部置0
func NewInventory() *Inventory {
	inv := &Inventory{
		PaperStock:     make(map[string]map[string]int),
		EpsonInkStock:  make(map[string]int),
		EquipmentStock: make(map[string]int),
	}
	for _, c := range InkColors {
		inv.EpsonInkStock[c] = 0
	}
	for _, k := range EquipmentKeys {
		inv.EquipmentStock[k] = 0
	}
	return inv
}

// Quantity 读取某库存行数量，不存在的键视为0
func (inv *Inventory) Quantity(line StockLine) int {
	if inv == nil {
		return 0
	}
	switch line.Category {
	case CategoryPaper:
		return inv.PaperStock[line.Key][line.Variant]
	case CategoryInk:
		return inv.EpsonInkStock[line.Key]
	case CategoryEquipment:
		return inv.EquipmentStock[line.Key]
	}
	return 0
}

// Set 写入某库存行数量
func (inv *Inventory) Set(line StockLine, qty int) {
	switch line.Category {
	case CategoryPaper:
		if inv.PaperStock[line.Key] == nil {
			inv.PaperStock[line.Key] = make(map[string]int)
		}
		inv.PaperStock[line.Key][line.Variant] = qty
	case CategoryInk:
		inv.EpsonInkStock[line.Key] = qty
	case CategoryEquipment:
		inv.EquipmentStock[line.Key] = qty
	}
}

// InventoryTransaction 库存流水
type InventoryTransaction struct {
	ID              string    `json:"id" gorm:"primaryKey;size:36"`
	TransactionType string    `json:"transaction_type" gorm:"size:20;not null;index"`
	Category        string    `json:"category" gorm:"size:16;not null"`
	ItemKey         string    `json:"item_key" gorm:"size:64;not null"`
	Variant         string    `json:"variant" gorm:"size:64"`
	Quantity        int       `json:"quantity" gorm:"not null"` // 正=入，负=出；SHRINKAGE 为损耗数量，不影响库存
	ReferenceType   string    `json:"reference_type" gorm:"size:32"`
	ReferenceID     string    `json:"reference_id" gorm:"size:64;index"`
	Operator        string    `json:"operator" gorm:"size:64"`
	Notes           string    `json:"notes" gorm:"type:text"`
	CreatedAt       time.Time `json:"created_at"`
}

func (InventoryTransaction) TableName() string {
	return "fleet_inventory_transactions"
}

// StockLine 一条库存行及数量
type StockLine struct {
	Category string `json:"category"`
	Key      string `json:"key"`
	Variant  string `json:"variant,omitempty"`
	Quantity int    `json:"quantity"`
}

// Label 中文描述，用于错误提示
func (l StockLine) Label() string {
	switch l.Category {
	case CategoryPaper:
		return "纸张 " + l.Key + " " + l.Variant
	case CategoryInk:
		return l.Key + "色墨水"
	case CategoryEquipment:
		if label, ok := equipmentLabels[l.Key]; ok {
			return label
		}
	}
	return l.Key
}
