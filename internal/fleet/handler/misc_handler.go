package handler

import (
	"github.com/bitfantasy/mojing/internal/fleet/repository"
	"github.com/bitfantasy/mojing/internal/fleet/service"
	"github.com/gin-gonic/gin"
)

// AuditHandler 审计日志
type AuditHandler struct {
	svc *service.AuditService
}

func NewAuditHandler(svc *service.AuditService) *AuditHandler {
	return &AuditHandler{svc: svc}
}

// ListAuditLogs GET /audit-logs
func (h *AuditHandler) ListAuditLogs(c *gin.Context) {
	params := repository.AuditLogListParams{
		ListParams: listParams(c),
		EntityType: c.Query("entity_type"),
		EntityID:   c.Query("entity_id"),
		ActionType: c.Query("action_type"),
	}
	items, total, err := h.svc.List(c.Request.Context(), params)
	if err != nil {
		InternalError(c, "获取审计日志失败: "+err.Error())
		return
	}
	Paged(c, items, total, params.Page, params.PageSize)
}

// OutboxHandler 副作用任务
type OutboxHandler struct {
	dispatcher *service.OutboxDispatcher
}

func NewOutboxHandler(dispatcher *service.OutboxDispatcher) *OutboxHandler {
	return &OutboxHandler{dispatcher: dispatcher}
}

// ListTasks GET /outbox
func (h *OutboxHandler) ListTasks(c *gin.Context) {
	params := repository.OutboxListParams{
		ListParams: listParams(c),
		Status:     c.Query("status"),
		Kind:       c.Query("kind"),
	}
	items, total, err := h.dispatcher.ListTasks(c.Request.Context(), params)
	if err != nil {
		InternalError(c, "获取任务列表失败: "+err.Error())
		return
	}
	Paged(c, items, total, params.Page, params.PageSize)
}

// Retry POST /outbox/retry
func (h *OutboxHandler) Retry(c *gin.Context) {
	result, err := h.dispatcher.RetryPending(c.Request.Context())
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, result)
}

// DashboardHandler 看板
type DashboardHandler struct {
	svc *service.DashboardService
}

func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{svc: svc}
}

// GetSummary GET /dashboard/summary
func (h *DashboardHandler) GetSummary(c *gin.Context) {
	summary, err := h.svc.GetSummary(c.Request.Context())
	if err != nil {
		InternalError(c, "获取看板数据失败: "+err.Error())
		return
	}
	Success(c, summary)
}
