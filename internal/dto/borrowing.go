package dto

import "time"

// ── 借用模块 DTO ──

// CreateBorrowingRequest 发起借用申请
type CreateBorrowingRequest struct {
	EquipmentID        string     `json:"equipment_id"         binding:"required,uuid"`
	ExpectedReturnDate *time.Time `json:"expected_return_date"` // 为空时按配置的默认借期计算
	Note               string     `json:"note"                 binding:"omitempty,max=500"`
}

// BorrowingListRequest 借用流水查询参数
type BorrowingListRequest struct {
	PaginationRequest
	EquipmentID string `form:"equipment_id" binding:"omitempty,uuid"`
	UserID      string `form:"user_id"      binding:"omitempty,uuid"`
	Status      string `form:"status"       binding:"omitempty,oneof=pending active returned overdue rejected cancelled"`
}

// BorrowingResponse 借用流水响应
// RunningPenalty 为实时罚金：未归还时按当前时刻重算，已归还时等于落库罚金
type BorrowingResponse struct {
	ID                 string          `json:"id"`
	EquipmentID        string          `json:"equipment_id"`
	Equipment          *EquipmentBrief `json:"equipment,omitempty"`
	UserID             string          `json:"user_id"`
	BorrowDate         time.Time       `json:"borrow_date"`
	ExpectedReturnDate time.Time       `json:"expected_return_date"`
	ActualReturnDate   *time.Time      `json:"actual_return_date,omitempty"`
	Status             string          `json:"status"`
	ExtensionCount     int             `json:"extension_count"`
	PenaltyAmount      int64           `json:"penalty_amount"`
	RunningPenalty     int64           `json:"running_penalty"`
	PenaltyPaid        bool            `json:"penalty_paid"`
	Note               string          `json:"note,omitempty"`
}

// ExtendBorrowingRequest 续借请求
type ExtendBorrowingRequest struct {
	ExtraDays int `json:"extra_days" binding:"required,min=1,max=60"`
}
