package service

import (
	"fmt"

	"github.com/bitfantasy/mojing/internal/fleet/entity"
)

// StockCheckResult 库存校验结果
type StockCheckResult struct {
	Sufficient bool   `json:"sufficient"`
	Message    string `json:"message,omitempty"`
}

// CheckStock 按 纸张 -> 墨水 -> 配件 顺序校验，遇到第一项不足即返回
// 不存在的型号/纸型按0库存处理
func CheckStock(inv *entity.Inventory, items entity.OutboundItems) StockCheckResult {
	for _, line := range items.Lines() {
		if available := inv.Quantity(line); available < line.Quantity {
			return StockCheckResult{Sufficient: false, Message: shortageMessage(line, available)}
		}
	}
	return StockCheckResult{Sufficient: true}
}

func shortageMessage(line entity.StockLine, available int) string {
	return fmt.Sprintf("%s库存不足: 需要%d, 库存%d", line.Label(), line.Quantity, available)
}
