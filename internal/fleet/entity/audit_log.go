package entity

import (
	"time"

	"gorm.io/datatypes"
)

// 操作类型
const (
	ActionOutboundCreate    = "outbound_create"
	ActionOutboundReturn    = "outbound_return"
	ActionOutboundDelete    = "outbound_delete"
	ActionOutboundReconcile = "outbound_reconcile"
	ActionInventoryUpdate   = "inventory_update"
	ActionInventoryAdjust   = "inventory_adjust"
	ActionDeviceCreate      = "device_create"
	ActionDeviceUpdate      = "device_update"
	ActionDeviceDelete      = "device_delete"
)

// 实体类型
const (
	EntityOutboundRecord = "outbound_record"
	EntityInventory      = "inventory"
	EntityDevice         = "device"
)

// AuditLog 审计日志（只追加）
type AuditLog struct {
	ID         string            `json:"id" gorm:"primaryKey;size:36"`
	ActionType string            `json:"action_type" gorm:"size:50;not null;index"`
	EntityType string            `json:"entity_type" gorm:"size:50;not null;index:idx_audit_entity"`
	EntityID   string            `json:"entity_id" gorm:"size:64;not null;index:idx_audit_entity"`
	Operator   string            `json:"operator" gorm:"size:64"`
	Details    datatypes.JSONMap `json:"details"`
	CreatedAt  time.Time         `json:"created_at"`
}

func (AuditLog) TableName() string {
	return "fleet_audit_logs"
}
