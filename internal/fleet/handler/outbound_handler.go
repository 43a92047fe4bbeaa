package handler

import (
	"net/url"
	"time"

	"github.com/bitfantasy/mojing/internal/fleet/repository"
	"github.com/bitfantasy/mojing/internal/fleet/service"
	"github.com/bitfantasy/mojing/internal/middleware"
	"github.com/gin-gonic/gin"
)

// PermOutboundDelete 删除未归还出库单（force/reconcile）所需权限
const PermOutboundDelete = "outbound:delete"

// OutboundHandler 出库单处理器
type OutboundHandler struct {
	svc    *service.OutboundService
	export *service.ExportService
}

func NewOutboundHandler(svc *service.OutboundService, export *service.ExportService) *OutboundHandler {
	return &OutboundHandler{svc: svc, export: export}
}

// filterParams 列表与导出共用的过滤条件，日期格式 YYYY-MM-DD，to 含当天
func filterParams(c *gin.Context) (repository.OutboundListParams, bool) {
	params := repository.OutboundListParams{
		ListParams: listParams(c),
		DeviceID:   c.Query("device_id"),
		Status:     c.Query("status"),
		Keyword:    c.Query("keyword"),
	}
	if from := c.Query("from"); from != "" {
		t, err := time.ParseInLocation("2006-01-02", from, time.Local)
		if err != nil {
			BadRequest(c, "无效的开始日期")
			return params, false
		}
		params.From = &t
	}
	if to := c.Query("to"); to != "" {
		t, err := time.ParseInLocation("2006-01-02", to, time.Local)
		if err != nil {
			BadRequest(c, "无效的结束日期")
			return params, false
		}
		end := t.AddDate(0, 0, 1)
		params.To = &end
	}
	return params, true
}

// ListOutboundRecords GET /outbound-records
func (h *OutboundHandler) ListOutboundRecords(c *gin.Context) {
	params, ok := filterParams(c)
	if !ok {
		return
	}
	items, total, err := h.svc.ListOutboundRecords(c.Request.Context(), params)
	if err != nil {
		InternalError(c, "获取出库记录失败: "+err.Error())
		return
	}
	Paged(c, items, total, params.Page, params.PageSize)
}

// GetOutboundRecord GET /outbound-records/:id
func (h *OutboundHandler) GetOutboundRecord(c *gin.Context) {
	record, err := h.svc.GetOutboundRecord(c.Request.Context(), c.Param("id"))
	if err != nil {
		ServiceError(c, err, "获取出库记录失败")
		return
	}
	Success(c, record)
}

// CreateOutboundRecord POST /outbound-records
func (h *OutboundHandler) CreateOutboundRecord(c *gin.Context) {
	var req service.CreateOutboundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	req.Operator = GetOperator(c, req.Operator)

	record, err := h.svc.CreateOutboundRecord(c.Request.Context(), &req)
	if err != nil {
		ServiceError(c, err, "创建出库记录失败")
		return
	}
	Created(c, record)
}

// ReturnOutboundItems POST /outbound-records/:id/return
func (h *OutboundHandler) ReturnOutboundItems(c *gin.Context) {
	var req service.ReturnOutboundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	req.ReturnOperator = GetOperator(c, req.ReturnOperator)

	record, err := h.svc.ReturnOutboundItems(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		ServiceError(c, err, "归还失败")
		return
	}
	Success(c, record)
}

// DeleteOutboundRecord DELETE /outbound-records/:id?mode=force|reconcile
func (h *OutboundHandler) DeleteOutboundRecord(c *gin.Context) {
	mode := c.Query("mode")
	if mode != service.DeleteModeNone && !middleware.HasPermission(GetPermissions(c), PermOutboundDelete) {
		Forbidden(c, "Permission denied: "+PermOutboundDelete)
		return
	}
	if err := h.svc.DeleteOutboundRecord(c.Request.Context(), c.Param("id"), mode, GetOperator(c, "")); err != nil {
		ServiceError(c, err, "删除出库记录失败")
		return
	}
	Success(c, nil)
}

// ExportOutboundRecords GET /outbound-records/export?format=xlsx|csv
func (h *OutboundHandler) ExportOutboundRecords(c *gin.Context) {
	params, ok := filterParams(c)
	if !ok {
		return
	}
	file, err := h.export.ExportOutboundRecords(c.Request.Context(), params, c.DefaultQuery("format", service.ExportFormatXLSX))
	if err != nil {
		ServiceError(c, err, "导出失败")
		return
	}

	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(file.Filename))
	c.Header("Content-Transfer-Encoding", "binary")
	c.Data(200, file.ContentType, file.Data)
}
