package dto

import "time"

// ── 候补模块 DTO ──

// EnqueueWaitlistRequest 加入候补队列请求
type EnqueueWaitlistRequest struct {
	EquipmentID string    `json:"equipment_id" binding:"required,uuid"`
	StartTime   time.Time `json:"start_time"   binding:"required"`
	EndTime     time.Time `json:"end_time"     binding:"required"`
	Priority    string    `json:"priority"     binding:"omitempty,oneof=low normal high urgent"`
}

// WaitlistListRequest 候补列表查询参数
type WaitlistListRequest struct {
	EquipmentID string `form:"equipment_id" binding:"omitempty,uuid"`
	UserID      string `form:"user_id"      binding:"omitempty,uuid"`
}

// RemoveWaitlistRequest 按 (设备, 用户) 退出候补的查询参数；
// user_id 省略时默认为调用者本人
type RemoveWaitlistRequest struct {
	EquipmentID string `form:"equipment_id" binding:"required,uuid"`
	UserID      string `form:"user_id"      binding:"omitempty,uuid"`
}

// WaitlistEntryResponse 候补条目响应
type WaitlistEntryResponse struct {
	ID          string     `json:"id"`
	EquipmentID string     `json:"equipment_id"`
	UserID      string     `json:"user_id"`
	StartTime   time.Time  `json:"requested_start_time"`
	EndTime     time.Time  `json:"requested_end_time"`
	Priority    string     `json:"priority"`
	NotifiedAt  *time.Time `json:"notified_at,omitempty"`
	// HoldActive 已通知条目的宽限期倒计时是否仍然有效
	HoldActive bool      `json:"hold_active"`
	CreatedAt  time.Time `json:"created_at"`
}

// ── 维护模块 DTO ──

// CreateMaintenanceRequest 创建维护计划请求
type CreateMaintenanceRequest struct {
	EquipmentID   string    `json:"equipment_id"   binding:"required,uuid"`
	ScheduledAt   time.Time `json:"scheduled_at"   binding:"required"`
	DurationHours int       `json:"duration_hours" binding:"required,min=1,max=720"`
	Description   string    `json:"description"    binding:"omitempty,max=500"`
}

// MaintenanceListRequest 维护计划查询参数
type MaintenanceListRequest struct {
	PaginationRequest
	EquipmentID string `form:"equipment_id" binding:"omitempty,uuid"`
	Status      string `form:"status"       binding:"omitempty,oneof=scheduled in_progress completed cancelled"`
}

// MaintenanceResponse 维护计划响应
type MaintenanceResponse struct {
	ID            string    `json:"id"`
	EquipmentID   string    `json:"equipment_id"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	DurationHours int       `json:"duration_hours"`
	EndTime       time.Time `json:"end_time"`
	Status        string    `json:"status"`
	Description   string    `json:"description,omitempty"`
}

// ── 通知模块 DTO ──

// NotificationListRequest 通知列表查询参数
type NotificationListRequest struct {
	PaginationRequest
	UnreadOnly bool `form:"unread_only"`
}

// NotificationResponse 通知响应
type NotificationResponse struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Title       string  `json:"title"`
	Content     string  `json:"content"`
	IsRead      bool    `json:"is_read"`
	RelatedType *string `json:"related_type,omitempty"`
	RelatedID   *string `json:"related_id,omitempty"`
	CreatedAt   string  `json:"created_at"`
}
