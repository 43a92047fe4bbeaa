package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/bitfantasy/mojing/internal/fleet/entity"
	"github.com/bitfantasy/mojing/internal/fleet/repository"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// DeviceService 设备目录
type DeviceService struct {
	repos  *repository.Repositories
	logger *zap.Logger
	events EventPublisher
}

func NewDeviceService(repos *repository.Repositories, logger *zap.Logger) *DeviceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeviceService{repos: repos, logger: logger, events: noopPublisher{}}
}

func (s *DeviceService) SetEventPublisher(p EventPublisher) {
	s.events = p
}

// CreateDeviceRequest 创建设备请求
type CreateDeviceRequest struct {
	ID        string `json:"id"`
	Name      string `json:"name" binding:"required"`
	Serial    string `json:"serial"`
	Location  string `json:"location"`
	Owner     string `json:"owner"`
	Status    string `json:"status"`
	ModelCode string `json:"model_code"`
	Notes     string `json:"notes"`
}

// UpdateDeviceRequest 更新设备请求，nil 字段不修改
type UpdateDeviceRequest struct {
	Name      *string `json:"name"`
	Serial    *string `json:"serial"`
	Location  *string `json:"location"`
	Owner     *string `json:"owner"`
	Status    *string `json:"status"`
	ModelCode *string `json:"model_code"`
	Notes     *string `json:"notes"`
}

// ImportResult 导入结果
type ImportResult struct {
	Success int      `json:"created"`
	Failed  int      `json:"errors"`
	Details []string `json:"details,omitempty"`
}

// GetDevice 查询设备
func (s *DeviceService) GetDevice(ctx context.Context, id string) (*entity.Device, error) {
	device, err := s.repos.Device.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("查询设备失败: %w", err)
	}
	return device, nil
}

// ListDevices 设备列表
func (s *DeviceService) ListDevices(ctx context.Context, params repository.DeviceListParams) ([]entity.Device, int64, error) {
	return s.repos.Device.List(ctx, params)
}

// CreateDevice 创建设备
func (s *DeviceService) CreateDevice(ctx context.Context, req *CreateDeviceRequest, operator string) (*entity.Device, error) {
	device := &entity.Device{
		ID:        strings.TrimSpace(req.ID),
		Name:      req.Name,
		Serial:    req.Serial,
		Location:  req.Location,
		Owner:     req.Owner,
		Status:    req.Status,
		ModelCode: req.ModelCode,
		Notes:     req.Notes,
	}
	if device.ID == "" {
		device.ID = "dev-" + uuid.New().String()[:8]
	}
	if device.Status == "" {
		device.Status = entity.DeviceStatusRunning
	}
	if !entity.IsValidDeviceStatus(device.Status) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, device.Status)
	}
	if err := s.checkModel(ctx, device.ModelCode); err != nil {
		return nil, err
	}

	if err := s.repos.Device.Create(ctx, device); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, device.ID)
		}
		return nil, fmt.Errorf("创建设备失败: %w", err)
	}

	s.repos.AuditLog.LogActivity(ctx, entity.ActionDeviceCreate, entity.EntityDevice, device.ID, operator, map[string]interface{}{
		"name":     device.Name,
		"location": device.Location,
		"owner":    device.Owner,
	})
	s.events.PublishDeviceUpdate(device.ID, "create")
	return device, nil
}

// UpdateDevice 更新设备字段
func (s *DeviceService) UpdateDevice(ctx context.Context, id string, req *UpdateDeviceRequest, operator string) (*entity.Device, error) {
	fields := make(map[string]interface{})
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Serial != nil {
		fields["serial"] = *req.Serial
	}
	if req.Location != nil {
		fields["location"] = *req.Location
	}
	if req.Owner != nil {
		fields["owner"] = *req.Owner
	}
	if req.Status != nil {
		if !entity.IsValidDeviceStatus(*req.Status) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, *req.Status)
		}
		fields["status"] = *req.Status
	}
	if req.ModelCode != nil {
		if err := s.checkModel(ctx, *req.ModelCode); err != nil {
			return nil, err
		}
		fields["model_code"] = *req.ModelCode
	}
	if req.Notes != nil {
		fields["notes"] = *req.Notes
	}

	if len(fields) > 0 {
		ok, err := s.repos.Device.Update(ctx, id, fields)
		if err != nil {
			return nil, fmt.Errorf("更新设备失败: %w", err)
		}
		if !ok {
			return nil, ErrDeviceNotFound
		}
		s.repos.AuditLog.LogActivity(ctx, entity.ActionDeviceUpdate, entity.EntityDevice, id, operator, fields)
		s.events.PublishDeviceUpdate(id, "update")
	}
	return s.GetDevice(ctx, id)
}

// DeleteDevice 删除设备，有未归还出库单时拒绝
func (s *DeviceService) DeleteDevice(ctx context.Context, id, operator string) error {
	device, err := s.GetDevice(ctx, id)
	if err != nil {
		return err
	}
	open, err := s.repos.Outbound.FindOpenByDevice(ctx, id)
	if err != nil {
		return fmt.Errorf("查询出库记录失败: %w", err)
	}
	if open != nil {
		return ErrDeviceHasOpenOutbound
	}
	if err := s.repos.Device.Delete(ctx, id); err != nil {
		return fmt.Errorf("删除设备失败: %w", err)
	}
	s.repos.AuditLog.LogActivity(ctx, entity.ActionDeviceDelete, entity.EntityDevice, id, operator, map[string]interface{}{
		"name": device.Name,
	})
	s.events.PublishDeviceUpdate(id, "delete")
	return nil
}

func (s *DeviceService) checkModel(ctx context.Context, code string) error {
	if code == "" {
		return nil
	}
	if _, err := s.repos.Printer.FindModel(ctx, code); err != nil {
		if repository.IsNotFound(err) {
			return ErrPrinterModelNotFound
		}
		return err
	}
	return nil
}

// 导入表头，中英文均可
var deviceColumns = map[string]string{
	"id": "id", "设备id": "id", "设备编号": "id", "编号": "id",
	"name": "name", "名称": "name", "设备名称": "name",
	"serial": "serial", "序列号": "serial",
	"location": "location", "位置": "location", "当前位置": "location",
	"owner": "owner", "负责人": "owner",
	"status": "status", "状态": "status",
	"model_code": "model_code", "型号": "model_code", "打印机型号": "model_code",
	"notes": "notes", "备注": "notes",
}

// ImportDevicesCSV 从CSV导入设备（UTF-8 或 GBK）
func (s *DeviceService) ImportDevicesCSV(ctx context.Context, reader io.Reader, operator string) (*ImportResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("读取文件失败: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var src io.Reader = bytes.NewReader(data)
	if !utf8.Valid(data) {
		// Excel 在中文 Windows 下默认导出 GBK
		src = transform.NewReader(src, simplifiedchinese.GBK.NewDecoder())
	}

	r := csv.NewReader(src)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: 解析CSV失败: %v", ErrInvalidInput, err)
	}
	return s.importRows(ctx, rows, operator)
}

// ImportDevicesExcel 从Excel导入设备，读取第一个工作表
func (s *DeviceService) ImportDevicesExcel(ctx context.Context, f *excelize.File, operator string) (*ImportResult, error) {
	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: 读取Excel失败: %v", ErrInvalidInput, err)
	}
	return s.importRows(ctx, rows, operator)
}

func (s *DeviceService) importRows(ctx context.Context, rows [][]string, operator string) (*ImportResult, error) {
	result := &ImportResult{}
	if len(rows) < 2 {
		return result, nil
	}

	header := make(map[int]string)
	for i, col := range rows[0] {
		if field, ok := deviceColumns[strings.ToLower(strings.TrimSpace(col))]; ok {
			header[i] = field
		}
	}
	hasName := false
	for _, field := range header {
		if field == "name" {
			hasName = true
		}
	}
	if !hasName {
		return nil, fmt.Errorf("%w: 缺少名称列", ErrInvalidInput)
	}

	models, err := s.repos.Printer.ModelIndex(ctx)
	if err != nil {
		return nil, err
	}

	var devices []entity.Device
	seen := make(map[string]int)
	for i, row := range rows[1:] {
		lineNo := i + 2
		values := make(map[string]string)
		for idx, cell := range row {
			if field, ok := header[idx]; ok {
				values[field] = strings.TrimSpace(cell)
			}
		}
		if values["name"] == "" {
			result.Failed++
			result.Details = append(result.Details, fmt.Sprintf("第%d行: 名称为空", lineNo))
			continue
		}

		device := entity.Device{
			ID:        values["id"],
			Name:      values["name"],
			Serial:    values["serial"],
			Location:  values["location"],
			Owner:     values["owner"],
			Status:    values["status"],
			ModelCode: values["model_code"],
			Notes:     values["notes"],
		}
		if device.ID == "" {
			device.ID = "dev-" + uuid.New().String()[:8]
		}
		if device.Status == "" {
			device.Status = entity.DeviceStatusRunning
		}
		if !entity.IsValidDeviceStatus(device.Status) {
			result.Failed++
			result.Details = append(result.Details, fmt.Sprintf("第%d行: 无效的设备状态 %s", lineNo, device.Status))
			continue
		}
		if device.ModelCode != "" {
			if _, ok := models[device.ModelCode]; !ok {
				result.Failed++
				result.Details = append(result.Details, fmt.Sprintf("第%d行: 打印机型号 %s 未登记", lineNo, device.ModelCode))
				continue
			}
		}
		// 同一文件中重复的ID以最后一行为准
		if pos, ok := seen[device.ID]; ok {
			devices[pos] = device
			continue
		}
		seen[device.ID] = len(devices)
		devices = append(devices, device)
		result.Success++
	}

	if err := s.repos.Device.Upsert(ctx, devices); err != nil {
		return nil, fmt.Errorf("导入设备失败: %w", err)
	}
	if len(devices) > 0 {
		s.logger.Info("devices imported", zap.Int("count", len(devices)), zap.String("operator", operator))
		s.events.PublishDeviceUpdate("", "import")
	}
	return result, nil
}
