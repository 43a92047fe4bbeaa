package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bitfantasy/mojing/internal/fleet/entity"
	"github.com/bitfantasy/mojing/internal/fleet/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 删除模式
const (
	DeleteModeNone      = ""
	DeleteModeForce     = "force"     // 仅删除记录，不恢复库存和设备
	DeleteModeReconcile = "reconcile" // 删除并恢复库存、设备位置和打印机状态
)

// errOpenRecordExists 插入时命中部分唯一索引
var errOpenRecordExists = errors.New("open outbound record exists")

// OutboundService 出库/归还流程
type OutboundService struct {
	repos      *repository.Repositories
	dispatcher *OutboxDispatcher
	locker     Locker
	events     EventPublisher
	logger     *zap.Logger
}

func NewOutboundService(repos *repository.Repositories, dispatcher *OutboxDispatcher, logger *zap.Logger) *OutboundService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutboundService{
		repos:      repos,
		dispatcher: dispatcher,
		locker:     NoopLocker{},
		events:     noopPublisher{},
		logger:     logger,
	}
}

func (s *OutboundService) SetLocker(l Locker) {
	s.locker = l
}

func (s *OutboundService) SetEventPublisher(p EventPublisher) {
	s.events = p
}

// CreateOutboundRequest 创建出库单
type CreateOutboundRequest struct {
	DeviceID         string               `json:"device_id" binding:"required"`
	Destination      string               `json:"destination"`
	Operator         string               `json:"operator"`
	Items            entity.OutboundItems `json:"items"`
	DeviceInstanceID string               `json:"device_instance_id"`
	Notes            string               `json:"notes"`
}

// ReturnOutboundRequest 归还
type ReturnOutboundRequest struct {
	ReturnOperator  string               `json:"return_operator"`
	ReturnedItems   entity.OutboundItems `json:"returned_items"`
	EquipmentDamage string               `json:"equipment_damage"`
	ReturnNotes     string               `json:"return_notes"`
}

// GetOutboundRecord 查询出库单
func (s *OutboundService) GetOutboundRecord(ctx context.Context, id string) (*entity.OutboundRecord, error) {
	record, err := s.repos.Outbound.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("查询出库记录失败: %w", err)
	}
	return record, nil
}

// ListOutboundRecords 出库单列表
func (s *OutboundService) ListOutboundRecords(ctx context.Context, params repository.OutboundListParams) ([]entity.OutboundRecord, int64, error) {
	return s.repos.Outbound.List(ctx, params)
}

// CreateOutboundRecord 创建出库单
// 校验失败（设备不存在、已有未归还记录、库存不足）时不做任何修改；
// 出库单、库存扣减、流水和副作用任务在同一事务中写入
func (s *OutboundService) CreateOutboundRecord(ctx context.Context, req *CreateOutboundRequest) (*entity.OutboundRecord, error) {
	req.Destination = strings.TrimSpace(req.Destination)
	req.Operator = strings.TrimSpace(req.Operator)
	if req.Destination == "" {
		return nil, ErrDestinationRequired
	}
	if req.Operator == "" {
		return nil, ErrOperatorRequired
	}
	if err := validateOutboundItems(req.Items); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, "device:"+req.DeviceID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	device, err := s.repos.Device.FindByID(ctx, req.DeviceID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("查询设备失败: %w", err)
	}

	existing, err := s.repos.Outbound.FindOpenByDevice(ctx, device.ID)
	if err != nil {
		return nil, fmt.Errorf("查询出库记录失败: %w", err)
	}
	if existing != nil {
		return nil, duplicateError(existing)
	}

	inv, err := s.repos.Inventory.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取库存失败: %w", err)
	}
	if check := CheckStock(inv, req.Items); !check.Sufficient {
		return nil, &StockShortageError{Message: check.Message}
	}

	if req.DeviceInstanceID != "" {
		if _, err := s.repos.Printer.FindInstance(ctx, req.DeviceInstanceID); err != nil {
			if repository.IsNotFound(err) {
				return nil, ErrPrinterNotFound
			}
			return nil, err
		}
	}

	record := &entity.OutboundRecord{
		ID:               uuid.New().String(),
		Date:             time.Now(),
		DeviceID:         device.ID,
		DeviceName:       device.Name,
		Destination:      req.Destination,
		Operator:         req.Operator,
		Items:            datatypes.NewJSONType(req.Items),
		Status:           entity.OutboundStatusOutbound,
		OriginalLocation: device.Location,
		OriginalOwner:    device.Owner,
		DeviceInstanceID: req.DeviceInstanceID,
		Notes:            req.Notes,
	}

	err = s.repos.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepos := s.repos.WithTx(tx)
		if err := txRepos.Outbound.Create(ctx, record); err != nil {
			if repository.IsUniqueViolation(err) {
				return errOpenRecordExists
			}
			return fmt.Errorf("创建出库记录失败: %w", err)
		}

		lines := req.Items.Lines()
		ledger := make([]entity.InventoryTransaction, 0, len(lines))
		for _, line := range lines {
			ok, err := txRepos.Inventory.Decrement(ctx, line)
			if err != nil {
				return fmt.Errorf("扣减库存失败: %w", err)
			}
			if !ok {
				available := 0
				if item, err := txRepos.Inventory.FindItem(ctx, line.Category, line.Key, line.Variant); err == nil {
					available = item.Quantity
				}
				return &StockShortageError{Message: shortageMessage(line, available)}
			}
			ledger = append(ledger, s.ledgerRow(entity.TxTypeOutbound, line, -line.Quantity, record.ID, req.Operator))
		}
		if err := txRepos.Inventory.CreateTransactions(ctx, ledger); err != nil {
			return fmt.Errorf("写入库存流水失败: %w", err)
		}
		if len(lines) > 0 {
			if err := txRepos.Inventory.BumpVersion(ctx, today()); err != nil {
				return fmt.Errorf("更新库存版本失败: %w", err)
			}
		}
		return s.enqueueCreateTasks(ctx, txRepos.Outbox, record)
	})
	if errors.Is(err, errOpenRecordExists) {
		// 并发创建，以已存在的记录生成提示
		existing, qerr := s.repos.Outbound.FindOpenByDevice(ctx, device.ID)
		if qerr == nil && existing != nil {
			return nil, duplicateError(existing)
		}
		return nil, ErrDuplicateOutbound
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("outbound record created",
		zap.String("record_id", record.ID),
		zap.String("device_id", device.ID),
		zap.String("destination", record.Destination),
		zap.String("operator", record.Operator),
	)
	s.afterCommit(ctx, record, "create", len(req.Items.Lines()) > 0)
	return s.GetOutboundRecord(ctx, record.ID)
}

// ReturnOutboundItems 归还出库单
// 库存只按实际归还数量增加，未归还部分记为损耗
func (s *OutboundService) ReturnOutboundItems(ctx context.Context, id string, req *ReturnOutboundRequest) (*entity.OutboundRecord, error) {
	req.ReturnOperator = strings.TrimSpace(req.ReturnOperator)
	if req.ReturnOperator == "" {
		return nil, ErrOperatorRequired
	}

	record, err := s.GetOutboundRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	unlock, err := s.locker.Lock(ctx, "device:"+record.DeviceID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if !record.IsOpen() {
		return nil, ErrAlreadyReturned
	}

	outbound := record.Items.Data()
	returned := req.ReturnedItems
	if returned.PaperQuantity > 0 {
		if returned.PrinterModel == "" {
			returned.PrinterModel = outbound.PrinterModel
		}
		if returned.PaperType == "" {
			returned.PaperType = outbound.PaperType
		}
	}
	// 型号和纸张类型缺省取出库单上的值，补齐后再校验
	if err := validateOutboundItems(returned); err != nil {
		return nil, err
	}
	for _, line := range returned.Lines() {
		if sent := outbound.Quantity(line); line.Quantity > sent {
			return nil, fmt.Errorf("%w: %s 归还%d, 出库%d", ErrReturnExceedsOutbound, line.Label(), line.Quantity, sent)
		}
	}
	loss := lossItems(outbound, returned)

	now := time.Now()
	err = s.repos.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepos := s.repos.WithTx(tx)
		ok, err := txRepos.Outbound.MarkReturned(ctx, record.ID, map[string]interface{}{
			"return_date":      now,
			"return_operator":  req.ReturnOperator,
			"returned_items":   datatypes.NewJSONType(returned),
			"loss_items":       datatypes.NewJSONType(loss),
			"equipment_damage": req.EquipmentDamage,
			"return_notes":     req.ReturnNotes,
		})
		if err != nil {
			return fmt.Errorf("更新出库记录失败: %w", err)
		}
		if !ok {
			return ErrAlreadyReturned
		}

		var ledger []entity.InventoryTransaction
		for _, line := range returned.Lines() {
			if err := txRepos.Inventory.Increment(ctx, line); err != nil {
				return fmt.Errorf("归还入库失败: %w", err)
			}
			ledger = append(ledger, s.ledgerRow(entity.TxTypeReturnIn, line, line.Quantity, record.ID, req.ReturnOperator))
		}
		for _, line := range loss.Lines() {
			ledger = append(ledger, s.ledgerRow(entity.TxTypeShrinkage, line, line.Quantity, record.ID, req.ReturnOperator))
		}
		if err := txRepos.Inventory.CreateTransactions(ctx, ledger); err != nil {
			return fmt.Errorf("写入库存流水失败: %w", err)
		}
		if !returned.IsEmpty() {
			if err := txRepos.Inventory.BumpVersion(ctx, today()); err != nil {
				return fmt.Errorf("更新库存版本失败: %w", err)
			}
		}

		if err := s.enqueueAudit(ctx, txRepos.Outbox, record, entity.ActionOutboundReturn, req.ReturnOperator, map[string]interface{}{
			"returned_items":   returned,
			"loss_items":       loss,
			"equipment_damage": req.EquipmentDamage,
			"return_notes":     req.ReturnNotes,
		}); err != nil {
			return err
		}
		return s.enqueueRestoreTasks(ctx, txRepos.Outbox, record, "return", req.ReturnOperator, itemsSummary(returned))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("outbound record returned",
		zap.String("record_id", record.ID),
		zap.String("device_id", record.DeviceID),
		zap.String("operator", req.ReturnOperator),
		zap.Int("loss_lines", len(loss.Lines())),
	)
	s.afterCommit(ctx, record, "return", !returned.IsEmpty())
	return s.GetOutboundRecord(ctx, record.ID)
}

// DeleteOutboundRecord 删除出库单
// 已归还的记录直接删除；未归还的记录必须指定 force 或 reconcile
func (s *OutboundService) DeleteOutboundRecord(ctx context.Context, id, mode, operator string) error {
	switch mode {
	case DeleteModeNone, DeleteModeForce, DeleteModeReconcile:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidDeleteMode, mode)
	}

	record, err := s.GetOutboundRecord(ctx, id)
	if err != nil {
		return err
	}
	unlock, err := s.locker.Lock(ctx, "device:"+record.DeviceID)
	if err != nil {
		return err
	}
	defer unlock()

	if record.IsOpen() && mode == DeleteModeNone {
		return ErrConfirmationRequired
	}

	stockChanged := false
	err = s.repos.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepos := s.repos.WithTx(tx)
		ok, err := txRepos.Outbound.DeleteWithStatus(ctx, record.ID, record.Status)
		if err != nil {
			return fmt.Errorf("删除出库记录失败: %w", err)
		}
		if !ok {
			// 状态在读取后发生了变化
			return ErrRecordNotFound
		}

		details := map[string]interface{}{
			"status":      record.Status,
			"mode":        mode,
			"destination": record.Destination,
			"items":       record.Items.Data(),
		}

		if !record.IsOpen() || mode == DeleteModeForce {
			if err := s.enqueueAudit(ctx, txRepos.Outbox, record, entity.ActionOutboundDelete, operator, details); err != nil {
				return err
			}
			return s.enqueueNotify(ctx, txRepos.Outbox, record, "delete", operator, "记录已删除（未恢复库存）")
		}

		// reconcile：全部物品回库，设备与打印机按归还恢复
		items := record.Items.Data()
		var ledger []entity.InventoryTransaction
		for _, line := range items.Lines() {
			if err := txRepos.Inventory.Increment(ctx, line); err != nil {
				return fmt.Errorf("回补库存失败: %w", err)
			}
			ledger = append(ledger, s.ledgerRow(entity.TxTypeReconcile, line, line.Quantity, record.ID, operator))
		}
		if err := txRepos.Inventory.CreateTransactions(ctx, ledger); err != nil {
			return fmt.Errorf("写入库存流水失败: %w", err)
		}
		if len(ledger) > 0 {
			stockChanged = true
			if err := txRepos.Inventory.BumpVersion(ctx, today()); err != nil {
				return fmt.Errorf("更新库存版本失败: %w", err)
			}
		}
		if err := s.enqueueAudit(ctx, txRepos.Outbox, record, entity.ActionOutboundReconcile, operator, details); err != nil {
			return err
		}
		return s.enqueueRestoreTasks(ctx, txRepos.Outbox, record, "delete", operator, "记录已删除，库存与设备已恢复")
	})
	if err != nil {
		return err
	}

	s.logger.Info("outbound record deleted",
		zap.String("record_id", record.ID),
		zap.String("status", record.Status),
		zap.String("mode", mode),
		zap.String("operator", operator),
	)
	s.afterCommit(ctx, record, "delete", stockChanged)
	return nil
}

// afterCommit 执行副作用任务并推送
func (s *OutboundService) afterCommit(ctx context.Context, record *entity.OutboundRecord, action string, stockChanged bool) {
	if s.dispatcher != nil {
		// 请求结束后任务仍需完成
		s.dispatcher.Dispatch(context.WithoutCancel(ctx), record.DeviceID)
	}
	s.events.PublishOutboundUpdate(record.ID, record.DeviceID, action)
	s.events.PublishDeviceUpdate(record.DeviceID, "outbound_"+action)
	if stockChanged {
		s.events.PublishInventoryUpdate("outbound_" + action)
	}
}

func (s *OutboundService) ledgerRow(txType string, line entity.StockLine, qty int, recordID, operator string) entity.InventoryTransaction {
	return entity.InventoryTransaction{
		TransactionType: txType,
		Category:        line.Category,
		ItemKey:         line.Key,
		Variant:         line.Variant,
		Quantity:        qty,
		ReferenceType:   entity.EntityOutboundRecord,
		ReferenceID:     recordID,
		Operator:        operator,
	}
}

// enqueueCreateTasks 出库后的副作用：打印机部署、审计、设备转移、通知
func (s *OutboundService) enqueueCreateTasks(ctx context.Context, outbox *repository.OutboxRepository, record *entity.OutboundRecord) error {
	if record.DeviceInstanceID != "" {
		deployed := today()
		destination := record.Destination
		if _, err := outbox.Enqueue(ctx, entity.OutboxKindPrinterInstance, record.DeviceID, entity.PrinterInstancePayload{
			InstanceID:   record.DeviceInstanceID,
			Status:       entity.PrinterStatusDeployed,
			Location:     &destination,
			DeployedDate: &deployed,
		}); err != nil {
			return fmt.Errorf("写入副作用任务失败: %w", err)
		}
	}

	if err := s.enqueueAudit(ctx, outbox, record, entity.ActionOutboundCreate, record.Operator, map[string]interface{}{
		"device_name":       record.DeviceName,
		"destination":       record.Destination,
		"items":             record.Items.Data(),
		"original_location": record.OriginalLocation,
		"original_owner":    record.OriginalOwner,
	}); err != nil {
		return err
	}

	location := record.Destination
	owner := record.Operator
	if _, err := outbox.Enqueue(ctx, entity.OutboxKindDeviceCustody, record.DeviceID, entity.DeviceCustodyPayload{
		DeviceID: record.DeviceID,
		Location: &location,
		Owner:    &owner,
	}); err != nil {
		return fmt.Errorf("写入副作用任务失败: %w", err)
	}

	return s.enqueueNotify(ctx, outbox, record, "create", record.Operator, itemsSummary(record.Items.Data()))
}

// enqueueRestoreTasks 归还/回补后的副作用：设备位置与负责人恢复、打印机回库、通知
func (s *OutboundService) enqueueRestoreTasks(ctx context.Context, outbox *repository.OutboxRepository, record *entity.OutboundRecord, event, operator, summary string) error {
	custody := entity.DeviceCustodyPayload{DeviceID: record.DeviceID}
	if record.OriginalLocation != "" {
		location := record.OriginalLocation
		custody.Location = &location
	}
	owner := record.OriginalOwner
	if owner == "" {
		owner = entity.DefaultOwner
	}
	custody.Owner = &owner
	if _, err := outbox.Enqueue(ctx, entity.OutboxKindDeviceCustody, record.DeviceID, custody); err != nil {
		return fmt.Errorf("写入副作用任务失败: %w", err)
	}

	if record.DeviceInstanceID != "" {
		if _, err := outbox.Enqueue(ctx, entity.OutboxKindPrinterInstance, record.DeviceID, entity.PrinterInstancePayload{
			InstanceID: record.DeviceInstanceID,
			Status:     entity.PrinterStatusInHouse,
		}); err != nil {
			return fmt.Errorf("写入副作用任务失败: %w", err)
		}
	}

	return s.enqueueNotify(ctx, outbox, record, event, operator, summary)
}

func (s *OutboundService) enqueueAudit(ctx context.Context, outbox *repository.OutboxRepository, record *entity.OutboundRecord, action, operator string, details map[string]interface{}) error {
	if _, err := outbox.Enqueue(ctx, entity.OutboxKindAuditLog, record.DeviceID, entity.AuditLogPayload{
		ActionType: action,
		EntityType: entity.EntityOutboundRecord,
		EntityID:   record.ID,
		Operator:   operator,
		Details:    details,
	}); err != nil {
		return fmt.Errorf("写入审计任务失败: %w", err)
	}
	return nil
}

func (s *OutboundService) enqueueNotify(ctx context.Context, outbox *repository.OutboxRepository, record *entity.OutboundRecord, event, operator, summary string) error {
	if s.dispatcher == nil || !s.dispatcher.NotifyEnabled() {
		return nil
	}
	if _, err := outbox.Enqueue(ctx, entity.OutboxKindNotify, record.DeviceID, entity.NotifyPayload{
		Event:       event,
		RecordID:    record.ID,
		DeviceName:  record.DeviceName,
		Destination: record.Destination,
		Operator:    operator,
		Summary:     summary,
	}); err != nil {
		return fmt.Errorf("写入通知任务失败: %w", err)
	}
	return nil
}

// duplicateError 已有未归还出库单时的提示，包含目的地和出库日期
func duplicateError(existing *entity.OutboundRecord) error {
	return fmt.Errorf("%w（目的地: %s, 出库日期: %s）", ErrDuplicateOutbound, existing.Destination, existing.Date.Format("2006-01-02"))
}

// lossItems 出库但未归还的部分
func lossItems(outbound, returned entity.OutboundItems) entity.OutboundItems {
	var lines []entity.StockLine
	for _, line := range outbound.Lines() {
		if missing := line.Quantity - returned.Quantity(line); missing > 0 {
			line.Quantity = missing
			lines = append(lines, line)
		}
	}
	return entity.ItemsFromLines(lines)
}
