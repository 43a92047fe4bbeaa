package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bitfantasy/mojing/internal/fleet/entity"
	"github.com/bitfantasy/mojing/internal/fleet/repository"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// PrinterService 打印机型号登记表与打印机实体
type PrinterService struct {
	repos *repository.Repositories
}

func NewPrinterService(repos *repository.Repositories) *PrinterService {
	return &PrinterService{repos: repos}
}

// PrinterModelRequest 型号请求
type PrinterModelRequest struct {
	Code       string   `json:"code"`
	Brand      string   `json:"brand"`
	Name       string   `json:"name"`
	PaperTypes []string `json:"paper_types"`
}

// CreateInstanceRequest 创建打印机实体
type CreateInstanceRequest struct {
	ID           string `json:"id"`
	ModelCode    string `json:"model_code" binding:"required"`
	SerialNumber string `json:"serial_number"`
	Status       string `json:"status"`
	Location     string `json:"location"`
	DeviceID     string `json:"device_id"`
	Notes        string `json:"notes"`
}

// UpdateInstanceRequest 更新打印机实体
type UpdateInstanceRequest struct {
	SerialNumber *string `json:"serial_number"`
	Status       *string `json:"status"`
	Location     *string `json:"location"`
	DeviceID     *string `json:"device_id"`
	Notes        *string `json:"notes"`
}

func (s *PrinterService) ListModels(ctx context.Context) ([]entity.PrinterModel, error) {
	return s.repos.Printer.ListModels(ctx)
}

// CreateModel 登记型号
func (s *PrinterService) CreateModel(ctx context.Context, req *PrinterModelRequest) (*entity.PrinterModel, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, fmt.Errorf("%w: 型号编码不能为空", ErrInvalidInput)
	}
	model := &entity.PrinterModel{
		Code:       code,
		Brand:      req.Brand,
		Name:       req.Name,
		PaperTypes: datatypes.JSONSlice[string](cleanPaperTypes(req.PaperTypes)),
	}
	if err := s.repos.Printer.CreateModel(ctx, model); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, code)
		}
		return nil, fmt.Errorf("创建型号失败: %w", err)
	}
	return model, nil
}

// UpdateModel 更新型号，移除的纸张类型不能仍有库存
func (s *PrinterService) UpdateModel(ctx context.Context, code string, req *PrinterModelRequest) (*entity.PrinterModel, error) {
	model, err := s.repos.Printer.FindModel(ctx, code)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrPrinterModelNotFound
		}
		return nil, err
	}
	if req.Brand != "" {
		model.Brand = req.Brand
	}
	if req.Name != "" {
		model.Name = req.Name
	}
	if req.PaperTypes != nil {
		next := cleanPaperTypes(req.PaperTypes)
		inv, err := s.repos.Inventory.Load(ctx)
		if err != nil {
			return nil, err
		}
		for paperType, qty := range inv.PaperStock[code] {
			if qty > 0 && !contains(next, paperType) {
				return nil, fmt.Errorf("%w: 纸张类型 %s 仍有库存 %d", ErrPrinterModelInUse, paperType, qty)
			}
		}
		model.PaperTypes = datatypes.JSONSlice[string](next)
	}
	if err := s.repos.Printer.SaveModel(ctx, model); err != nil {
		return nil, fmt.Errorf("更新型号失败: %w", err)
	}
	return model, nil
}

// DeleteModel 删除型号，仍有纸张库存时拒绝
func (s *PrinterService) DeleteModel(ctx context.Context, code string) error {
	if _, err := s.repos.Printer.FindModel(ctx, code); err != nil {
		if repository.IsNotFound(err) {
			return ErrPrinterModelNotFound
		}
		return err
	}
	count, err := s.repos.Inventory.CountPaperStock(ctx, code)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrPrinterModelInUse
	}
	return s.repos.Printer.DeleteModel(ctx, code)
}

func (s *PrinterService) ListInstances(ctx context.Context, params repository.PrinterInstanceListParams) ([]entity.PrinterInstance, int64, error) {
	return s.repos.Printer.ListInstances(ctx, params)
}

// CreateInstance 登记打印机实体
func (s *PrinterService) CreateInstance(ctx context.Context, req *CreateInstanceRequest) (*entity.PrinterInstance, error) {
	if _, err := s.repos.Printer.FindModel(ctx, req.ModelCode); err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrPrinterModelNotFound
		}
		return nil, err
	}
	inst := &entity.PrinterInstance{
		ID:           strings.TrimSpace(req.ID),
		ModelCode:    req.ModelCode,
		SerialNumber: req.SerialNumber,
		Status:       req.Status,
		Location:     req.Location,
		DeviceID:     req.DeviceID,
		Notes:        req.Notes,
	}
	if inst.ID == "" {
		inst.ID = "prt-" + uuid.New().String()[:8]
	}
	if inst.Status == "" {
		inst.Status = entity.PrinterStatusInHouse
	}
	if !entity.IsValidPrinterStatus(inst.Status) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, inst.Status)
	}
	if inst.Status == entity.PrinterStatusDeployed {
		d := today()
		inst.DeployedDate = &d
	}
	if err := s.repos.Printer.CreateInstance(ctx, inst); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, inst.ID)
		}
		return nil, fmt.Errorf("创建打印机失败: %w", err)
	}
	return inst, nil
}

// UpdateInstance 更新打印机实体，切换为 deployed 时记录部署日期，离开 deployed 时清空
func (s *PrinterService) UpdateInstance(ctx context.Context, id string, req *UpdateInstanceRequest) (*entity.PrinterInstance, error) {
	current, err := s.repos.Printer.FindInstance(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrPrinterNotFound
		}
		return nil, err
	}

	fields := make(map[string]interface{})
	if req.SerialNumber != nil {
		fields["serial_number"] = *req.SerialNumber
	}
	if req.Location != nil {
		fields["location"] = *req.Location
	}
	if req.DeviceID != nil {
		fields["device_id"] = *req.DeviceID
	}
	if req.Notes != nil {
		fields["notes"] = *req.Notes
	}
	if req.Status != nil && *req.Status != current.Status {
		if !entity.IsValidPrinterStatus(*req.Status) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, *req.Status)
		}
		fields["status"] = *req.Status
		if *req.Status == entity.PrinterStatusDeployed {
			fields["deployed_date"] = today()
		} else {
			fields["deployed_date"] = nil
		}
	}

	if len(fields) > 0 {
		if _, err := s.repos.Printer.UpdateInstance(ctx, id, fields); err != nil {
			return nil, fmt.Errorf("更新打印机失败: %w", err)
		}
	}
	return s.repos.Printer.FindInstance(ctx, id)
}

func cleanPaperTypes(types []string) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		t = strings.TrimSpace(t)
		if t != "" && !contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
