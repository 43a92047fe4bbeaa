package entity

import "gorm.io/gorm"

// AutoMigrate 自动迁移所有设备/库存表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		// 设备
		&Device{},
		&PrinterModel{},
		&PrinterInstance{},

		// 库存
		&StockItem{},
		&InventoryMeta{},
		&InventoryTransaction{},

		// 出库
		&OutboundRecord{},

		// 审计与副作用
		&AuditLog{},
		&OutboxTask{},
	)
}

// IndexSQL 需要手写的索引，postgres 与 sqlite 均支持部分索引
var IndexSQL = []string{
	// 每台设备最多一张未归还出库单
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_outbound_open_device ON fleet_outbound_records(device_id) WHERE status = 'outbound'`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_pending ON fleet_outbox_tasks(status, created_at)`,
}

// EnsureIndexes 创建手写索引
func EnsureIndexes(db *gorm.DB) error {
	for _, stmt := range IndexSQL {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
