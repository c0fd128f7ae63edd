package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"labkeeper/internal/dto"
	"labkeeper/internal/service"
	"labkeeper/pkg/response"
)

// BorrowingHandler 借用模块 HTTP 处理器
type BorrowingHandler struct {
	borrowingSvc service.BorrowingService
}

// NewBorrowingHandler 创建 BorrowingHandler
func NewBorrowingHandler(borrowingSvc service.BorrowingService) *BorrowingHandler {
	return &BorrowingHandler{borrowingSvc: borrowingSvc}
}

// respondBorrowingError 借用模块统一错误映射
func respondBorrowingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrBorrowingNotFound):
		response.NotFound(c, 41001, "借用流水不存在")
	case errors.Is(err, service.ErrBorrowLimitExceeded):
		response.Error(c, http.StatusConflict, 41002, "超出同时在借数量上限")
	case errors.Is(err, service.ErrLoanTooLong):
		response.BadRequest(c, 41003, "借用时长超出角色上限")
	case errors.Is(err, service.ErrExtensionLimit):
		response.Error(c, http.StatusConflict, 41004, "续借次数已达上限")
	case errors.Is(err, service.ErrBorrowingOverdue):
		response.Error(c, http.StatusConflict, 41005, "流水已逾期，请先归还")
	case errors.Is(err, service.ErrNotBorrowingOwner):
		response.Forbidden(c, 41006, "只能操作自己的借用流水")
	case errors.Is(err, service.ErrEquipmentUnavailable):
		response.Error(c, http.StatusConflict, 31003, "设备当前不可借用")
	case errors.Is(err, service.ErrEquipmentNotFound):
		response.NotFound(c, 31001, "设备不存在")
	case errors.Is(err, service.ErrInvalidTransition):
		response.Error(c, http.StatusConflict, 40003, "流水状态不允许该操作")
	case errors.Is(err, service.ErrInvalidInterval):
		response.BadRequest(c, 40005, "归还时间必须晚于当前时间")
	default:
		response.InternalError(c)
	}
}

// CreateBorrowing 发起借用申请
// POST /api/v1/borrowings
func (h *BorrowingHandler) CreateBorrowing(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	role, ok := MustGetRole(c)
	if !ok {
		return
	}

	var req dto.CreateBorrowingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.borrowingSvc.Create(c.Request.Context(), &req, callerID, role)
	if err != nil {
		respondBorrowingError(c, err)
		return
	}
	response.Created(c, result)
}

// GetBorrowing 借用流水详情
// GET /api/v1/borrowings/:id
func (h *BorrowingHandler) GetBorrowing(c *gin.Context) {
	result, err := h.borrowingSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondBorrowingError(c, err)
		return
	}
	response.OK(c, result)
}

// ListBorrowings 借用流水列表
// GET /api/v1/borrowings
func (h *BorrowingHandler) ListBorrowings(c *gin.Context) {
	var req dto.BorrowingListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	items, total, err := h.borrowingSvc.List(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OKPage(c, items, total, req.GetPage(), req.GetPageSize())
}

// ApproveBorrowing 审批通过借用（staff/admin）
// POST /api/v1/borrowings/:id/approve
func (h *BorrowingHandler) ApproveBorrowing(c *gin.Context) {
	approverID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.borrowingSvc.Approve(c.Request.Context(), c.Param("id"), approverID)
	if err != nil {
		respondBorrowingError(c, err)
		return
	}
	response.OK(c, result)
}

// RejectBorrowing 驳回借用申请（staff/admin）
// POST /api/v1/borrowings/:id/reject
func (h *BorrowingHandler) RejectBorrowing(c *gin.Context) {
	approverID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.RejectReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.borrowingSvc.Reject(c.Request.Context(), c.Param("id"), approverID, req.Reason)
	if err != nil {
		respondBorrowingError(c, err)
		return
	}
	response.OK(c, result)
}

// CancelBorrowing 取消借用申请（本人，仅 pending）
// POST /api/v1/borrowings/:id/cancel
func (h *BorrowingHandler) CancelBorrowing(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.borrowingSvc.Cancel(c.Request.Context(), c.Param("id"), callerID)
	if err != nil {
		respondBorrowingError(c, err)
		return
	}
	response.OK(c, result)
}

// ReturnBorrowing 归还设备（staff/admin 在柜台操作）
// POST /api/v1/borrowings/:id/return
func (h *BorrowingHandler) ReturnBorrowing(c *gin.Context) {
	result, err := h.borrowingSvc.Return(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondBorrowingError(c, err)
		return
	}
	response.OK(c, result)
}

// ExtendBorrowing 续借
// POST /api/v1/borrowings/:id/extend
func (h *BorrowingHandler) ExtendBorrowing(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	role, ok := MustGetRole(c)
	if !ok {
		return
	}

	var req dto.ExtendBorrowingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.borrowingSvc.Extend(c.Request.Context(), c.Param("id"), callerID, role, req.ExtraDays)
	if err != nil {
		respondBorrowingError(c, err)
		return
	}
	response.OK(c, result)
}
