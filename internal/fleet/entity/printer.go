package entity

import (
	"time"

	"gorm.io/datatypes"
)

// PrinterModel 打印机型号登记表，纸张库存的型号/纸型必须在此登记
type PrinterModel struct {
	Code       string                      `json:"code" gorm:"primaryKey;size:64"`
	Brand      string                      `json:"brand" gorm:"size:64"`
	Name       string                      `json:"name" gorm:"size:128"`
	PaperTypes datatypes.JSONSlice[string] `json:"paper_types"`
	CreatedAt  time.Time                   `json:"created_at"`
	UpdatedAt  time.Time                   `json:"updated_at"`
}

func (PrinterModel) TableName() string {
	return "fleet_printer_models"
}

// SupportsPaper 型号是否支持该纸张类型
func (m *PrinterModel) SupportsPaper(paperType string) bool {
	for _, p := range m.PaperTypes {
		if p == paperType {
			return true
		}
	}
	return false
}

// 打印机实体状态
const (
	PrinterStatusInHouse  = "in-house"
	PrinterStatusDeployed = "deployed"
	PrinterStatusIdle     = "idle"
)

// PrinterInstance 具体的一台打印机
type PrinterInstance struct {
	ID           string    `json:"id" gorm:"primaryKey;size:64"`
	ModelCode    string    `json:"model_code" gorm:"size:64;index"`
	SerialNumber string    `json:"serial_number" gorm:"size:128"`
	Status       string    `json:"status" gorm:"size:16;not null;default:in-house"`
	Location     string    `json:"location" gorm:"size:255"`
	DeviceID     string    `json:"device_id" gorm:"size:64;index"`
	DeployedDate *string   `json:"deployed_date" gorm:"size:10"`
	Notes        string    `json:"notes" gorm:"type:text"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (PrinterInstance) TableName() string {
	return "fleet_printer_instances"
}

// IsValidPrinterStatus 校验打印机状态
func IsValidPrinterStatus(status string) bool {
	switch status {
	case PrinterStatusInHouse, PrinterStatusDeployed, PrinterStatusIdle:
		return true
	}
	return false
}
