package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"labkeeper/internal/dto"
	"labkeeper/internal/service"
	"labkeeper/pkg/response"
)

// WaitlistHandler 候补模块 HTTP 处理器
type WaitlistHandler struct {
	waitlistSvc service.WaitlistService
}

// NewWaitlistHandler 创建 WaitlistHandler
func NewWaitlistHandler(waitlistSvc service.WaitlistService) *WaitlistHandler {
	return &WaitlistHandler{waitlistSvc: waitlistSvc}
}

// Enqueue 加入候补队列
// POST /api/v1/waitlist
func (h *WaitlistHandler) Enqueue(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.EnqueueWaitlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.waitlistSvc.Enqueue(c.Request.Context(), &req, callerID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWaitlistDuplicate):
			response.Error(c, http.StatusConflict, 42002, "相同设备与时段的候补已存在")
		case errors.Is(err, service.ErrEquipmentNotFound):
			response.NotFound(c, 31001, "设备不存在")
		case errors.Is(err, service.ErrInvalidInterval):
			response.BadRequest(c, 40005, "开始时间必须早于结束时间")
		default:
			response.InternalError(c)
		}
		return
	}
	response.Created(c, result)
}

// List 候补列表
// GET /api/v1/waitlist
func (h *WaitlistHandler) List(c *gin.Context) {
	var req dto.WaitlistListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.waitlistSvc.List(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, result)
}

// Remove 退出候补队列（本人或 staff/admin）
// DELETE /api/v1/waitlist/:id
func (h *WaitlistHandler) Remove(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	role, ok := MustGetRole(c)
	if !ok {
		return
	}

	if err := h.waitlistSvc.Remove(c.Request.Context(), c.Param("id"), callerID, role); err != nil {
		switch {
		case errors.Is(err, service.ErrWaitlistNotFound):
			response.NotFound(c, 42001, "候补条目不存在")
		case errors.Is(err, service.ErrNotWaitlistOwner):
			response.Forbidden(c, 42003, "只能操作自己的候补条目")
		default:
			response.InternalError(c)
		}
		return
	}
	response.OK(c, nil)
}

// RemoveByQuery 按 (设备, 用户) 批量退出候补
// DELETE /api/v1/waitlist?equipment_id=&user_id=
func (h *WaitlistHandler) RemoveByQuery(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	role, ok := MustGetRole(c)
	if !ok {
		return
	}

	var req dto.RemoveWaitlistRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	if req.UserID == "" {
		req.UserID = callerID
	}

	err := h.waitlistSvc.RemoveByEquipmentUser(c.Request.Context(), req.EquipmentID, req.UserID, callerID, role)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWaitlistNotFound):
			response.NotFound(c, 42001, "候补条目不存在")
		case errors.Is(err, service.ErrNotWaitlistOwner):
			response.Forbidden(c, 42003, "只能操作自己的候补条目")
		default:
			response.InternalError(c)
		}
		return
	}
	response.OK(c, nil)
}
