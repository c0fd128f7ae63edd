package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"labkeeper/internal/dto"
	"labkeeper/internal/service"
	"labkeeper/pkg/response"
)

// MaintenanceHandler 维护计划 HTTP 处理器
type MaintenanceHandler struct {
	maintenanceSvc service.MaintenanceService
}

// NewMaintenanceHandler 创建 MaintenanceHandler
func NewMaintenanceHandler(maintenanceSvc service.MaintenanceService) *MaintenanceHandler {
	return &MaintenanceHandler{maintenanceSvc: maintenanceSvc}
}

// CreateMaintenance 创建维护计划（staff/admin）
// POST /api/v1/maintenance
func (h *MaintenanceHandler) CreateMaintenance(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.CreateMaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.maintenanceSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEquipmentNotFound):
			response.NotFound(c, 31001, "设备不存在")
		case errors.Is(err, service.ErrMaintenanceConflict):
			response.Error(c, http.StatusConflict, 43002, "维护窗口与既有预约冲突")
		default:
			response.InternalError(c)
		}
		return
	}
	response.Created(c, result)
}

// GetMaintenance 维护计划详情
// GET /api/v1/maintenance/:id
func (h *MaintenanceHandler) GetMaintenance(c *gin.Context) {
	result, err := h.maintenanceSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrMaintenanceNotFound) {
			response.NotFound(c, 43001, "维护计划不存在")
			return
		}
		response.InternalError(c)
		return
	}
	response.OK(c, result)
}

// ListMaintenance 维护计划列表
// GET /api/v1/maintenance
func (h *MaintenanceHandler) ListMaintenance(c *gin.Context) {
	var req dto.MaintenanceListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	items, total, err := h.maintenanceSvc.List(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OKPage(c, items, total, req.GetPage(), req.GetPageSize())
}

// UpdateMaintenanceStatus 流转维护状态（staff/admin）
// PUT /api/v1/maintenance/:id/status
func (h *MaintenanceHandler) UpdateMaintenanceStatus(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status" binding:"required,oneof=in_progress completed cancelled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.maintenanceSvc.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, callerID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMaintenanceNotFound):
			response.NotFound(c, 43001, "维护计划不存在")
		case errors.Is(err, service.ErrInvalidTransition):
			response.Error(c, http.StatusConflict, 40003, "维护状态不允许该流转")
		default:
			response.InternalError(c)
		}
		return
	}
	response.OK(c, result)
}
