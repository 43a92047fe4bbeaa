package handler

import (
	"path/filepath"
	"strings"

	"github.com/bitfantasy/mojing/internal/fleet/repository"
	"github.com/bitfantasy/mojing/internal/fleet/service"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// DeviceHandler 设备处理器
type DeviceHandler struct {
	svc *service.DeviceService
}

func NewDeviceHandler(svc *service.DeviceService) *DeviceHandler {
	return &DeviceHandler{svc: svc}
}

// ListDevices GET /devices
func (h *DeviceHandler) ListDevices(c *gin.Context) {
	params := repository.DeviceListParams{
		ListParams: listParams(c),
		Keyword:    c.Query("keyword"),
		Status:     c.Query("status"),
	}
	items, total, err := h.svc.ListDevices(c.Request.Context(), params)
	if err != nil {
		InternalError(c, "获取设备列表失败: "+err.Error())
		return
	}
	Paged(c, items, total, params.Page, params.PageSize)
}

// GetDevice GET /devices/:id
func (h *DeviceHandler) GetDevice(c *gin.Context) {
	device, err := h.svc.GetDevice(c.Request.Context(), c.Param("id"))
	if err != nil {
		ServiceError(c, err, "获取设备失败")
		return
	}
	Success(c, device)
}

// CreateDevice POST /devices
func (h *DeviceHandler) CreateDevice(c *gin.Context) {
	var req service.CreateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	device, err := h.svc.CreateDevice(c.Request.Context(), &req, GetOperator(c, ""))
	if err != nil {
		ServiceError(c, err, "创建设备失败")
		return
	}
	Created(c, device)
}

// UpdateDevice PUT /devices/:id
func (h *DeviceHandler) UpdateDevice(c *gin.Context) {
	var req service.UpdateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	device, err := h.svc.UpdateDevice(c.Request.Context(), c.Param("id"), &req, GetOperator(c, ""))
	if err != nil {
		ServiceError(c, err, "更新设备失败")
		return
	}
	Success(c, device)
}

// DeleteDevice DELETE /devices/:id
func (h *DeviceHandler) DeleteDevice(c *gin.Context) {
	if err := h.svc.DeleteDevice(c.Request.Context(), c.Param("id"), GetOperator(c, "")); err != nil {
		ServiceError(c, err, "删除设备失败")
		return
	}
	Success(c, nil)
}

// ImportDevices POST /devices/import，支持 .csv（UTF-8/GBK）和 .xlsx
func (h *DeviceHandler) ImportDevices(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		BadRequest(c, "请上传CSV或Excel文件")
		return
	}
	defer file.Close()

	operator := GetOperator(c, "")
	var result *service.ImportResult
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".xlsx":
		f, err := excelize.OpenReader(file)
		if err != nil {
			BadRequest(c, "无法解析Excel文件: "+err.Error())
			return
		}
		defer f.Close()
		result, err = h.svc.ImportDevicesExcel(c.Request.Context(), f, operator)
		if err != nil {
			ServiceError(c, err, "导入设备失败")
			return
		}
	default:
		result, err = h.svc.ImportDevicesCSV(c.Request.Context(), file, operator)
		if err != nil {
			ServiceError(c, err, "导入设备失败")
			return
		}
	}
	Success(c, result)
}
