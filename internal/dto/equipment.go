package dto

import "time"

// ── 设备模块 DTO ──

// CreateEquipmentRequest 创建设备请求
type CreateEquipmentRequest struct {
	Name             string  `json:"name"              binding:"required,min=2,max=200"`
	SerialNumber     string  `json:"serial_number"     binding:"required,max=120"`
	CategoryID       *string `json:"category_id"       binding:"omitempty,uuid"`
	ConditionGrade   string  `json:"condition_grade"   binding:"omitempty,oneof=excellent good fair poor"`
	RequiresApproval bool    `json:"requires_approval"`
}

// UpdateEquipmentRequest 更新设备请求
type UpdateEquipmentRequest struct {
	Name             *string `json:"name"              binding:"omitempty,min=2,max=200"`
	CategoryID       *string `json:"category_id"       binding:"omitempty,uuid"`
	ConditionGrade   *string `json:"condition_grade"   binding:"omitempty,oneof=excellent good fair poor"`
	RequiresApproval *bool   `json:"requires_approval"`
	IsLost           *bool   `json:"is_lost"`
}

// EquipmentListRequest 设备列表查询参数
type EquipmentListRequest struct {
	PaginationRequest
	CategoryID string `form:"category_id" binding:"omitempty,uuid"`
	Keyword    string `form:"keyword"     binding:"omitempty,max=100"`
}

// EquipmentResponse 设备信息响应；Status 为读取时推导的派生状态
type EquipmentResponse struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	SerialNumber     string         `json:"serial_number"`
	Category         *CategoryBrief `json:"category,omitempty"`
	ConditionGrade   string         `json:"condition_grade"`
	RequiresApproval bool           `json:"requires_approval"`
	Status           string         `json:"status"`
	CreatedAt        string         `json:"created_at"`
	UpdatedAt        string         `json:"updated_at"`
}

// EquipmentStatusResponse 设备派生状态响应
type EquipmentStatusResponse struct {
	EquipmentID string `json:"equipment_id"`
	Status      string `json:"status"`
}

// CategoryBrief 分类简要信息（嵌入设备响应）
type CategoryBrief struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ── 分类模块 DTO ──

// CreateCategoryRequest 创建分类请求
type CreateCategoryRequest struct {
	Name        string `json:"name"        binding:"required,min=2,max=100"`
	Description string `json:"description" binding:"omitempty,max=500"`
}

// UpdateCategoryRequest 更新分类请求
type UpdateCategoryRequest struct {
	Name        *string `json:"name"        binding:"omitempty,min=2,max=100"`
	Description *string `json:"description" binding:"omitempty,max=500"`
}

// CategoryResponse 分类信息响应
type CategoryResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// ── 可用性查询 DTO ──

// AvailabilityRequest 可用性查询参数
// 两种用法：start_time+end_time 查询区间是否可用；date(+slot_minutes) 生成当日时段表
type AvailabilityRequest struct {
	StartTime   string `form:"start_time"   binding:"omitempty"` // RFC3339
	EndTime     string `form:"end_time"     binding:"omitempty"` // RFC3339
	Date        string `form:"date"         binding:"omitempty,datetime=2006-01-02"`
	SlotMinutes int    `form:"slot_minutes" binding:"omitempty,min=1,max=1440"`
}

// IntervalResponse 占用区间
type IntervalResponse struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Source string    `json:"source"` // reservation | maintenance
}

// AvailabilityResponse 区间可用性响应
type AvailabilityResponse struct {
	Available bool               `json:"available"`
	Blocking  []IntervalResponse `json:"blocking,omitempty"`
}

// SlotResponse 单个时段
type SlotResponse struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
}

// SlotListResponse 当日时段表响应
type SlotListResponse struct {
	Date  string         `json:"date"`
	Slots []SlotResponse `json:"slots"`
}
