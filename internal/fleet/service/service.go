package service

import (
	"strconv"
	"strings"
	"time"

	"github.com/bitfantasy/mojing/internal/fleet/entity"
	"github.com/bitfantasy/mojing/internal/fleet/repository"
	"go.uber.org/zap"
)

// Services 设备/库存服务集合
type Services struct {
	Inventory *InventoryService
	Device    *DeviceService
	Printer   *PrinterService
	Outbound  *OutboundService
	Outbox    *OutboxDispatcher
	Audit     *AuditService
	Dashboard *DashboardService
	Export    *ExportService
}

// Options 可选依赖
type Options struct {
	Logger            *zap.Logger
	Locker            Locker
	Events            EventPublisher
	CardSender        CardSender
	NotifyChatID      string
	OutboxMaxAttempts int
	OutboxBatchSize   int
}

// NewServices 创建服务集合
func NewServices(repos *repository.Repositories, opts Options) *Services {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	dispatcher := NewOutboxDispatcher(repos, logger, opts.OutboxMaxAttempts, opts.OutboxBatchSize)
	if opts.CardSender != nil && opts.NotifyChatID != "" {
		dispatcher.SetCardSender(opts.CardSender, opts.NotifyChatID)
	}

	inventorySvc := NewInventoryService(repos, logger)
	deviceSvc := NewDeviceService(repos, logger)
	printerSvc := NewPrinterService(repos)
	outboundSvc := NewOutboundService(repos, dispatcher, logger)

	if opts.Locker != nil {
		outboundSvc.SetLocker(opts.Locker)
	}
	if opts.Events != nil {
		inventorySvc.SetEventPublisher(opts.Events)
		deviceSvc.SetEventPublisher(opts.Events)
		outboundSvc.SetEventPublisher(opts.Events)
	}

	return &Services{
		Inventory: inventorySvc,
		Device:    deviceSvc,
		Printer:   printerSvc,
		Outbound:  outboundSvc,
		Outbox:    dispatcher,
		Audit:     NewAuditService(repos),
		Dashboard: NewDashboardService(repos),
		Export:    NewExportService(repos),
	}
}

// EventPublisher 实时推送（SSE hub 实现）
type EventPublisher interface {
	PublishInventoryUpdate(action string)
	PublishOutboundUpdate(recordID, deviceID, action string)
	PublishDeviceUpdate(deviceID, action string)
}

type noopPublisher struct{}

func (noopPublisher) PublishInventoryUpdate(string)                {}
func (noopPublisher) PublishOutboundUpdate(string, string, string) {}
func (noopPublisher) PublishDeviceUpdate(string, string)           {}

func today() string {
	return time.Now().Format("2006-01-02")
}

// itemsSummary 物品清单的简短描述，用于通知
func itemsSummary(items entity.OutboundItems) string {
	lines := items.Lines()
	if len(lines) == 0 {
		return "仅设备"
	}
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, l.Label()+" x"+strconv.Itoa(l.Quantity))
	}
	return strings.Join(parts, "，")
}
