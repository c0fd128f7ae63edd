package model

import "time"

// 候补优先级（数值越大越优先，排序键为 priority DESC, created_at ASC）
const (
	PriorityLow    = 0
	PriorityNormal = 1
	PriorityHigh   = 2
	PriorityUrgent = 3
)

// priorityNames 优先级与外部字符串表示的映射
var priorityNames = map[int]string{
	PriorityLow:    "low",
	PriorityNormal: "normal",
	PriorityHigh:   "high",
	PriorityUrgent: "urgent",
}

// PriorityName 优先级数值转字符串；未知值回落到 normal
func PriorityName(p int) string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return "normal"
}

// ParsePriority 字符串转优先级数值；未知值回落到 normal
func ParsePriority(name string) int {
	for p, n := range priorityNames {
		if n == name {
			return p
		}
	}
	return PriorityNormal
}

// WaitlistEntry 候补队列表 — 对应 waitlist_entries
// 通知仅为提示：用户须在宽限期内重新发起预约，候补不会自动转为预约
type WaitlistEntry struct {
	EntryID            string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"entry_id"`
	EquipmentID        string     `gorm:"type:uuid;not null"                             json:"equipment_id"`
	UserID             string     `gorm:"type:uuid;not null"                             json:"user_id"`
	RequestedStartTime time.Time  `gorm:"not null"                                       json:"requested_start_time"`
	RequestedEndTime   time.Time  `gorm:"not null"                                       json:"requested_end_time"`
	Priority           int        `gorm:"type:smallint;not null;default:1"               json:"priority"`
	NotifiedAt         *time.Time `json:"notified_at,omitempty"`
	CreatedAt          time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`

	// 关联
	Equipment *Equipment `gorm:"foreignKey:EquipmentID;references:EquipmentID" json:"equipment,omitempty"`
	User      *User      `gorm:"foreignKey:UserID;references:UserID"           json:"user,omitempty"`
}

// TableName 指定表名
func (WaitlistEntry) TableName() string { return "waitlist_entries" }
