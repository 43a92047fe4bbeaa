package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Repositories 设备/库存仓库集合
type Repositories struct {
	Device    *DeviceRepository
	Printer   *PrinterRepository
	Inventory *InventoryRepository
	Outbound  *OutboundRepository
	AuditLog  *AuditLogRepository
	Outbox    *OutboxRepository
	db        *gorm.DB
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Device:    NewDeviceRepository(db),
		Printer:   NewPrinterRepository(db),
		Inventory: NewInventoryRepository(db),
		Outbound:  NewOutboundRepository(db),
		AuditLog:  NewAuditLogRepository(db),
		Outbox:    NewOutboxRepository(db),
		db:        db,
	}
}

// WithTx 返回绑定到事务的仓库集合
func (r *Repositories) WithTx(tx *gorm.DB) *Repositories {
	return NewRepositories(tx)
}

// DB 返回底层db用于事务
func (r *Repositories) DB() *gorm.DB {
	return r.db
}

// IsNotFound 记录不存在
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsUniqueViolation 唯一约束冲突（postgres / sqlite）
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "SQLSTATE 23505")
}

// ListParams 通用分页参数
type ListParams struct {
	Page     int
	PageSize int
}

func (p ListParams) normalize() (offset, limit int) {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = 20
	}
	return (p.Page - 1) * p.PageSize, p.PageSize
}
