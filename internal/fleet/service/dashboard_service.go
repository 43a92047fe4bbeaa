package service

import (
	"context"

	"github.com/bitfantasy/mojing/internal/fleet/repository"
)

// DashboardService 看板
type DashboardService struct {
	repos *repository.Repositories
}

func NewDashboardService(repos *repository.Repositories) *DashboardService {
	return &DashboardService{repos: repos}
}

// DashboardSummary 看板汇总
type DashboardSummary struct {
	DevicesByStatus    map[string]int64 `json:"devices_by_status"`
	TotalDevices       int64            `json:"total_devices"`
	OpenOutbound       int64            `json:"open_outbound"`
	LowStockAlerts     int              `json:"low_stock_alerts"`
	PendingOutboxTasks int64            `json:"pending_outbox_tasks"`
	InventoryVersion   int64            `json:"inventory_version"`
	LastUpdated        string           `json:"last_updated"`
}

// GetSummary 获取看板汇总
func (s *DashboardService) GetSummary(ctx context.Context) (*DashboardSummary, error) {
	byStatus, err := s.repos.Device.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	summary := &DashboardSummary{DevicesByStatus: byStatus}
	for _, n := range byStatus {
		summary.TotalDevices += n
	}

	if summary.OpenOutbound, err = s.repos.Outbound.CountOpen(ctx); err != nil {
		return nil, err
	}
	alerts, err := s.repos.Inventory.GetAlerts(ctx)
	if err != nil {
		return nil, err
	}
	summary.LowStockAlerts = len(alerts)

	if summary.PendingOutboxTasks, err = s.repos.Outbox.CountPending(ctx); err != nil {
		return nil, err
	}

	// 元数据行缺失时保持零值
	if meta, err := s.repos.Inventory.GetMeta(ctx); err == nil {
		summary.InventoryVersion = meta.Version
		summary.LastUpdated = meta.LastUpdated
	}
	return summary, nil
}
