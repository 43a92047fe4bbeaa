package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/bitfantasy/mojing/internal/fleet/repository"
	"github.com/bitfantasy/mojing/internal/fleet/service"
	"github.com/bitfantasy/mojing/internal/fleet/sse"
	"github.com/gin-gonic/gin"
)

// Handlers 设备/库存处理器集合
type Handlers struct {
	Device    *DeviceHandler
	Printer   *PrinterHandler
	Inventory *InventoryHandler
	Outbound  *OutboundHandler
	Audit     *AuditHandler
	Outbox    *OutboxHandler
	Dashboard *DashboardHandler
	SSE       *SSEHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services, hub *sse.Hub) *Handlers {
	return &Handlers{
		Device:    NewDeviceHandler(svc.Device),
		Printer:   NewPrinterHandler(svc.Printer),
		Inventory: NewInventoryHandler(svc.Inventory),
		Outbound:  NewOutboundHandler(svc.Outbound, svc.Export),
		Audit:     NewAuditHandler(svc.Audit),
		Outbox:    NewOutboxHandler(svc.Outbox),
		Dashboard: NewDashboardHandler(svc.Dashboard),
		SSE:       NewSSEHandler(hub),
	}
}

// 业务错误码，HTTP状态码 = code / 100
const (
	CodeBadRequest           = 40000
	CodeInsufficientStock    = 40010
	CodeReturnExceeds        = 40011
	CodeNotFound             = 40400
	CodeConflict             = 40900
	CodeDuplicateOutbound    = 40910
	CodeConfirmationRequired = 40920
	CodeInventoryConflict    = 40930
	CodeDeviceBusy           = 40940
	CodeInternal             = 50000
)

// === 响应辅助函数 ===

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, CodeBadRequest, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, CodeNotFound, message)
}

func Conflict(c *gin.Context, message string) {
	Error(c, CodeConflict, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, CodeInternal, message)
}

// Paged 分页列表响应
func Paged(c *gin.Context, items interface{}, total int64, page, pageSize int) {
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	Success(c, ListResponse{
		Items: items,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages,
		},
	})
}

// ServiceError 将业务错误映射为响应，未知错误带上前缀返回500
func ServiceError(c *gin.Context, err error, prefix string) {
	switch {
	case errors.Is(err, service.ErrDeviceNotFound),
		errors.Is(err, service.ErrRecordNotFound),
		errors.Is(err, service.ErrPrinterModelNotFound),
		errors.Is(err, service.ErrPrinterNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, service.ErrDuplicateOutbound):
		Error(c, CodeDuplicateOutbound, err.Error())
	case errors.Is(err, service.ErrConfirmationRequired):
		Error(c, CodeConfirmationRequired, err.Error())
	case errors.Is(err, service.ErrInventoryConflict):
		Error(c, CodeInventoryConflict, err.Error())
	case errors.Is(err, service.ErrDeviceBusy):
		Error(c, CodeDeviceBusy, err.Error())
	case errors.Is(err, service.ErrAlreadyReturned),
		errors.Is(err, service.ErrDeviceHasOpenOutbound),
		errors.Is(err, service.ErrPrinterModelInUse),
		errors.Is(err, service.ErrDuplicateID):
		Conflict(c, err.Error())
	case errors.Is(err, service.ErrInsufficientStock):
		Error(c, CodeInsufficientStock, err.Error())
	case errors.Is(err, service.ErrReturnExceedsOutbound):
		Error(c, CodeReturnExceeds, err.Error())
	case errors.Is(err, service.ErrInvalidStockKey),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrOperatorRequired),
		errors.Is(err, service.ErrDestinationRequired),
		errors.Is(err, service.ErrInvalidDeleteMode),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidInput):
		BadRequest(c, err.Error())
	default:
		InternalError(c, prefix+": "+err.Error())
	}
}

func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// GetOperator 请求中未填写经办人时使用登录用户名
func GetOperator(c *gin.Context, requested string) string {
	if op := strings.TrimSpace(requested); op != "" {
		return op
	}
	if name, ok := c.Get("user_name"); ok {
		if s, ok := name.(string); ok && s != "" {
			return s
		}
	}
	return GetUserID(c)
}

// GetPermissions 当前用户权限
func GetPermissions(c *gin.Context) []string {
	perms, _ := c.Get("permissions")
	if p, ok := perms.([]string); ok {
		return p
	}
	return nil
}

func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}

func listParams(c *gin.Context) repository.ListParams {
	page, pageSize := GetPagination(c)
	return repository.ListParams{Page: page, PageSize: pageSize}
}
