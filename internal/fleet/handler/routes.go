package handler

import (
	"github.com/bitfantasy/mojing/internal/middleware"
	"github.com/gin-gonic/gin"
)

// 权限
const (
	PermInventoryWrite = "inventory:write"
	PermDeviceWrite    = "device:write"
)

// RegisterRoutes 注册 /api/v1 路由，调用方负责 JWT 认证
func RegisterRoutes(authorized *gin.RouterGroup, h *Handlers) {
	devices := authorized.Group("/devices")
	{
		devices.GET("", h.Device.ListDevices)
		devices.POST("", middleware.RequirePermission(PermDeviceWrite), h.Device.CreateDevice)
		devices.POST("/import", middleware.RequirePermission(PermDeviceWrite), h.Device.ImportDevices)
		devices.GET("/:id", h.Device.GetDevice)
		devices.PUT("/:id", middleware.RequirePermission(PermDeviceWrite), h.Device.UpdateDevice)
		devices.DELETE("/:id", middleware.RequirePermission(PermDeviceWrite), h.Device.DeleteDevice)
	}

	models := authorized.Group("/printer-models")
	{
		models.GET("", h.Printer.ListModels)
		models.POST("", middleware.RequirePermission(PermDeviceWrite), h.Printer.CreateModel)
		models.PUT("/:code", middleware.RequirePermission(PermDeviceWrite), h.Printer.UpdateModel)
		models.DELETE("/:code", middleware.RequirePermission(PermDeviceWrite), h.Printer.DeleteModel)
	}

	printers := authorized.Group("/printer-instances")
	{
		printers.GET("", h.Printer.ListInstances)
		printers.POST("", middleware.RequirePermission(PermDeviceWrite), h.Printer.CreateInstance)
		printers.PUT("/:id", middleware.RequirePermission(PermDeviceWrite), h.Printer.UpdateInstance)
	}

	inventory := authorized.Group("/inventory")
	{
		inventory.GET("", h.Inventory.GetInventory)
		inventory.PUT("", middleware.RequirePermission(PermInventoryWrite), h.Inventory.UpdateInventory)
		inventory.POST("/adjust", middleware.RequirePermission(PermInventoryWrite), h.Inventory.AdjustStock)
		inventory.PUT("/safety-stock", middleware.RequirePermission(PermInventoryWrite), h.Inventory.SetSafetyStock)
		inventory.GET("/alerts", h.Inventory.GetAlerts)
		inventory.GET("/transactions", h.Inventory.ListTransactions)
		inventory.POST("/check", h.Inventory.CheckStock)
	}

	outbound := authorized.Group("/outbound-records")
	{
		outbound.GET("", h.Outbound.ListOutboundRecords)
		outbound.POST("", h.Outbound.CreateOutboundRecord)
		outbound.GET("/export", h.Outbound.ExportOutboundRecords)
		outbound.GET("/:id", h.Outbound.GetOutboundRecord)
		outbound.POST("/:id/return", h.Outbound.ReturnOutboundItems)
		outbound.DELETE("/:id", h.Outbound.DeleteOutboundRecord)
	}

	authorized.GET("/audit-logs", h.Audit.ListAuditLogs)

	outbox := authorized.Group("/outbox")
	{
		outbox.GET("", h.Outbox.ListTasks)
		outbox.POST("/retry", middleware.RequireRole("admin"), h.Outbox.Retry)
	}

	authorized.GET("/dashboard/summary", h.Dashboard.GetSummary)
	authorized.GET("/events", h.SSE.Stream)
}
