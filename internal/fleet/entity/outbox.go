package entity

import (
	"time"

	"gorm.io/datatypes"
)

// 副作用任务类型
const (
	OutboxKindDeviceCustody   = "device_custody"
	OutboxKindPrinterInstance = "printer_instance"
	OutboxKindAuditLog        = "audit_log"
	OutboxKindNotify          = "notify"
)

// 任务状态
const (
	OutboxStatusPending = "pending"
	OutboxStatusDone    = "done"
	OutboxStatusDead    = "dead"
)

// OutboxTask 与主账本同事务写入的副作用任务
type OutboxTask struct {
	ID          string         `json:"id" gorm:"primaryKey;size:36"`
	Kind        string         `json:"kind" gorm:"size:32;not null"`
	AggregateID string         `json:"aggregate_id" gorm:"size:64;index"` // 设备ID，同一设备的任务按顺序执行
	Payload     datatypes.JSON `json:"payload"`
	Status      string         `json:"status" gorm:"size:16;not null;index"`
	Attempts    int            `json:"attempts" gorm:"not null;default:0"`
	LastError   string         `json:"last_error" gorm:"type:text"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (OutboxTask) TableName() string {
	return "fleet_outbox_tasks"
}

// DeviceCustodyPayload 设备位置/负责人变更；nil 字段表示不修改
type DeviceCustodyPayload struct {
	DeviceID string  `json:"device_id"`
	Location *string `json:"location,omitempty"`
	Owner    *string `json:"owner,omitempty"`
}

// PrinterInstancePayload 打印机实体状态同步
type PrinterInstancePayload struct {
	InstanceID   string  `json:"instance_id"`
	Status       string  `json:"status"`
	Location     *string `json:"location,omitempty"`
	DeployedDate *string `json:"deployed_date"` // nil 表示清空
}

// AuditLogPayload 审计日志
type AuditLogPayload struct {
	ActionType string                 `json:"action_type"`
	EntityType string                 `json:"entity_type"`
	EntityID   string                 `json:"entity_id"`
	Operator   string                 `json:"operator"`
	Details    map[string]interface{} `json:"details"`
}

// NotifyPayload 飞书群通知
type NotifyPayload struct {
	Event       string `json:"event"` // create / return / delete
	RecordID    string `json:"record_id"`
	DeviceName  string `json:"device_name"`
	Destination string `json:"destination"`
	Operator    string `json:"operator"`
	Summary     string `json:"summary"`
}
