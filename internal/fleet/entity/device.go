package entity

import "time"

// 设备运行状态
const (
	DeviceStatusRunning     = "运行中"
	DeviceStatusOffline     = "离线"
	DeviceStatusMaintenance = "维护"
)

// DefaultOwner 没有原始负责人时归还到公司
const DefaultOwner = "公司"

// Device 魔镜设备
type Device struct {
	ID        string    `json:"id" gorm:"primaryKey;size:64"`
	Name      string    `json:"name" gorm:"size:128;not null"`
	Serial    string    `json:"serial" gorm:"size:128;index"`
	Location  string    `json:"location" gorm:"size:255"`
	Owner     string    `json:"owner" gorm:"size:64"`
	Status    string    `json:"status" gorm:"size:16;not null;default:运行中"`
	ModelCode string    `json:"model_code" gorm:"size:64"`
	Notes     string    `json:"notes" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Device) TableName() string {
	return "fleet_devices"
}

// IsValidDeviceStatus 校验设备状态
func IsValidDeviceStatus(status string) bool {
	switch status {
	case DeviceStatusRunning, DeviceStatusOffline, DeviceStatusMaintenance:
		return true
	}
	return false
}
