package entity

import (
	"time"

	"gorm.io/datatypes"
)

// 出库单状态
const (
	OutboundStatusOutbound = "outbound"
	OutboundStatusReturned = "returned"
)

// OutboundItems 出库/归还物品清单（稀疏）
type OutboundItems struct {
	PrinterModel  string         `json:"printer_model,omitempty"`
	PaperType     string         `json:"paper_type,omitempty"`
	PaperQuantity int            `json:"paper_quantity,omitempty"`
	EpsonInk      map[string]int `json:"epson_ink,omitempty"`
	Equipment     map[string]int `json:"equipment,omitempty"`
}

// Lines 按 纸张 -> 墨水(C,M,Y,K) -> 配件 的固定顺序展开，忽略为0的项
func (it OutboundItems) Lines() []StockLine {
	var lines []StockLine
	if it.PaperQuantity != 0 {
		lines = append(lines, StockLine{Category: CategoryPaper, Key: it.PrinterModel, Variant: it.PaperType, Quantity: it.PaperQuantity})
	}
	for _, c := range InkColors {
		if q := it.EpsonInk[c]; q != 0 {
			lines = append(lines, StockLine{Category: CategoryInk, Key: c, Quantity: q})
		}
	}
	for _, k := range EquipmentKeys {
		if q := it.Equipment[k]; q != 0 {
			lines = append(lines, StockLine{Category: CategoryEquipment, Key: k, Quantity: q})
		}
	}
	return lines
}

// IsEmpty 没有任何物品
func (it OutboundItems) IsEmpty() bool {
	return len(it.Lines()) == 0
}

// Quantity 某库存行在清单中的数量
func (it OutboundItems) Quantity(line StockLine) int {
	switch line.Category {
	case CategoryPaper:
		if line.Key == it.PrinterModel && line.Variant == it.PaperType {
			return it.PaperQuantity
		}
	case CategoryInk:
		return it.EpsonInk[line.Key]
	case CategoryEquipment:
		return it.Equipment[line.Key]
	}
	return 0
}

// ItemsFromLines 由库存行还原清单
func ItemsFromLines(lines []StockLine) OutboundItems {
	var it OutboundItems
	for _, l := range lines {
		switch l.Category {
		case CategoryPaper:
			it.PrinterModel = l.Key
			it.PaperType = l.Variant
			it.PaperQuantity = l.Quantity
		case CategoryInk:
			if it.EpsonInk == nil {
				it.EpsonInk = make(map[string]int)
			}
			it.EpsonInk[l.Key] = l.Quantity
		case CategoryEquipment:
			if it.Equipment == nil {
				it.Equipment = make(map[string]int)
			}
			it.Equipment[l.Key] = l.Quantity
		}
	}
	return it
}

// OutboundRecord 出库单
type OutboundRecord struct {
	ID               string                           `json:"id" gorm:"primaryKey;size:36"`
	Date             time.Time                        `json:"date" gorm:"not null;index"`
	DeviceID         string                           `json:"device_id" gorm:"size:64;not null;index"`
	DeviceName       string                           `json:"device_name" gorm:"size:128"`
	Destination      string                           `json:"destination" gorm:"size:255;not null"`
	Operator         string                           `json:"operator" gorm:"size:64;not null"`
	Items            datatypes.JSONType[OutboundItems] `json:"items"`
	Status           string                           `json:"status" gorm:"size:16;not null;index"`
	OriginalLocation string                           `json:"original_location" gorm:"size:255"`
	OriginalOwner    string                           `json:"original_owner" gorm:"size:64"`
	DeviceInstanceID string                           `json:"device_instance_id" gorm:"size:64"`
	Notes            string                           `json:"notes" gorm:"type:text"`

	// 归还信息
	ReturnDate      *time.Time                        `json:"return_date"`
	ReturnOperator  string                            `json:"return_operator" gorm:"size:64"`
	ReturnedItems   *datatypes.JSONType[OutboundItems] `json:"returned_items"`
	LossItems       *datatypes.JSONType[OutboundItems] `json:"loss_items"`
	EquipmentDamage string                            `json:"equipment_damage" gorm:"type:text"`
	ReturnNotes     string                            `json:"return_notes" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (OutboundRecord) TableName() string {
	return "fleet_outbound_records"
}

// IsOpen 是否未归还
func (r *OutboundRecord) IsOpen() bool {
	return r.Status == OutboundStatusOutbound
}
