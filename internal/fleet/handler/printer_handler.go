package handler

import (
	"github.com/bitfantasy/mojing/internal/fleet/repository"
	"github.com/bitfantasy/mojing/internal/fleet/service"
	"github.com/gin-gonic/gin"
)

// PrinterHandler 打印机型号与实体
type PrinterHandler struct {
	svc *service.PrinterService
}

func NewPrinterHandler(svc *service.PrinterService) *PrinterHandler {
	return &PrinterHandler{svc: svc}
}

// ListModels GET /printer-models
func (h *PrinterHandler) ListModels(c *gin.Context) {
	models, err := h.svc.ListModels(c.Request.Context())
	if err != nil {
		InternalError(c, "获取打印机型号失败: "+err.Error())
		return
	}
	Success(c, models)
}

// CreateModel POST /printer-models
func (h *PrinterHandler) CreateModel(c *gin.Context) {
	var req service.PrinterModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	model, err := h.svc.CreateModel(c.Request.Context(), &req)
	if err != nil {
		ServiceError(c, err, "创建打印机型号失败")
		return
	}
	Created(c, model)
}

// UpdateModel PUT /printer-models/:code
func (h *PrinterHandler) UpdateModel(c *gin.Context) {
	var req service.PrinterModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	model, err := h.svc.UpdateModel(c.Request.Context(), c.Param("code"), &req)
	if err != nil {
		ServiceError(c, err, "更新打印机型号失败")
		return
	}
	Success(c, model)
}

// DeleteModel DELETE /printer-models/:code
func (h *PrinterHandler) DeleteModel(c *gin.Context) {
	if err := h.svc.DeleteModel(c.Request.Context(), c.Param("code")); err != nil {
		ServiceError(c, err, "删除打印机型号失败")
		return
	}
	Success(c, nil)
}

// ListInstances GET /printer-instances
func (h *PrinterHandler) ListInstances(c *gin.Context) {
	params := repository.PrinterInstanceListParams{
		ListParams: listParams(c),
		Status:     c.Query("status"),
		ModelCode:  c.Query("model_code"),
	}
	items, total, err := h.svc.ListInstances(c.Request.Context(), params)
	if err != nil {
		InternalError(c, "获取打印机列表失败: "+err.Error())
		return
	}
	Paged(c, items, total, params.Page, params.PageSize)
}

// CreateInstance POST /printer-instances
func (h *PrinterHandler) CreateInstance(c *gin.Context) {
	var req service.CreateInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	inst, err := h.svc.CreateInstance(c.Request.Context(), &req)
	if err != nil {
		ServiceError(c, err, "创建打印机失败")
		return
	}
	Created(c, inst)
}

// UpdateInstance PUT /printer-instances/:id
func (h *PrinterHandler) UpdateInstance(c *gin.Context) {
	var req service.UpdateInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	inst, err := h.svc.UpdateInstance(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		ServiceError(c, err, "更新打印机失败")
		return
	}
	Success(c, inst)
}
