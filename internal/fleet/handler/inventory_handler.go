package handler

import (
	"github.com/bitfantasy/mojing/internal/fleet/entity"
	"github.com/bitfantasy/mojing/internal/fleet/repository"
	"github.com/bitfantasy/mojing/internal/fleet/service"
	"github.com/gin-gonic/gin"
)

// InventoryHandler 库存处理器
type InventoryHandler struct {
	svc *service.InventoryService
}

func NewInventoryHandler(svc *service.InventoryService) *InventoryHandler {
	return &InventoryHandler{svc: svc}
}

// GetInventory GET /inventory
func (h *InventoryHandler) GetInventory(c *gin.Context) {
	inv, err := h.svc.GetInventory(c.Request.Context())
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, inv)
}

// UpdateInventory PUT /inventory
func (h *InventoryHandler) UpdateInventory(c *gin.Context) {
	var req service.UpdateInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	inv, err := h.svc.UpdateInventory(c.Request.Context(), &req, GetOperator(c, ""))
	if err != nil {
		ServiceError(c, err, "更新库存失败")
		return
	}
	Success(c, inv)
}

// AdjustStock POST /inventory/adjust
func (h *InventoryHandler) AdjustStock(c *gin.Context) {
	var req service.AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	item, err := h.svc.AdjustStock(c.Request.Context(), &req, GetOperator(c, ""))
	if err != nil {
		ServiceError(c, err, "调整库存失败")
		return
	}
	Success(c, item)
}

// SetSafetyStock PUT /inventory/safety-stock
func (h *InventoryHandler) SetSafetyStock(c *gin.Context) {
	var req service.SafetyStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if err := h.svc.SetSafetyStock(c.Request.Context(), &req); err != nil {
		ServiceError(c, err, "设置安全库存失败")
		return
	}
	Success(c, nil)
}

// GetAlerts GET /inventory/alerts
func (h *InventoryHandler) GetAlerts(c *gin.Context) {
	alerts, err := h.svc.GetAlerts(c.Request.Context())
	if err != nil {
		InternalError(c, "获取库存预警失败: "+err.Error())
		return
	}
	Success(c, alerts)
}

// ListTransactions GET /inventory/transactions
func (h *InventoryHandler) ListTransactions(c *gin.Context) {
	params := repository.TransactionListParams{
		ListParams:      listParams(c),
		TransactionType: c.Query("type"),
		ReferenceID:     c.Query("reference_id"),
		Category:        c.Query("category"),
	}
	items, total, err := h.svc.ListTransactions(c.Request.Context(), params)
	if err != nil {
		InternalError(c, "获取库存流水失败: "+err.Error())
		return
	}
	Paged(c, items, total, params.Page, params.PageSize)
}

// CheckStock POST /inventory/check
func (h *InventoryHandler) CheckStock(c *gin.Context) {
	var items entity.OutboundItems
	if err := c.ShouldBindJSON(&items); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	result, err := h.svc.Check(c.Request.Context(), items)
	if err != nil {
		ServiceError(c, err, "库存校验失败")
		return
	}
	Success(c, result)
}
