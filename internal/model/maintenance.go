package model

import "time"

// 维护计划状态
const (
	MaintenanceScheduled  = "scheduled"
	MaintenanceInProgress = "in_progress"
	MaintenanceCompleted  = "completed"
	MaintenanceCancelled  = "cancelled"
)

// MaintenanceSchedule 维护计划表 — 对应 maintenance_schedules
// 维护窗口 [scheduled_at, scheduled_at + duration_hours) 与预约共用
// 同一条可用性时间线；状态不为 completed/cancelled 时设备不可预约
type MaintenanceSchedule struct {
	MaintenanceID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"maintenance_id"`
	EquipmentID   string    `gorm:"type:uuid;not null"                             json:"equipment_id"`
	ScheduledAt   time.Time `gorm:"not null"                                       json:"scheduled_at"`
	DurationHours int       `gorm:"not null"                                       json:"duration_hours"`
	Status        string    `gorm:"type:varchar(20);not null;default:'scheduled'"  json:"status"`
	Description   string    `gorm:"type:varchar(500)"                              json:"description,omitempty"`
	AuditedModel

	// 关联
	Equipment *Equipment `gorm:"foreignKey:EquipmentID;references:EquipmentID" json:"equipment,omitempty"`
}

// TableName 指定表名
func (MaintenanceSchedule) TableName() string { return "maintenance_schedules" }

// EndTime 维护窗口结束时间（半开区间右端点）
func (m *MaintenanceSchedule) EndTime() time.Time {
	return m.ScheduledAt.Add(time.Duration(m.DurationHours) * time.Hour)
}

// Blocking 该维护计划是否占用可用性时间线
func (m *MaintenanceSchedule) Blocking() bool {
	return m.Status != MaintenanceCompleted && m.Status != MaintenanceCancelled
}
