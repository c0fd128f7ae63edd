package model

// 设备派生状态
// 注意：status 不落库，由 EquipmentService 根据丢失标记、在借流水和
// 维护窗口在读取时推导，避免多处写入导致状态漂移
const (
	EquipmentAvailable   = "available"
	EquipmentBorrowed    = "borrowed"
	EquipmentMaintenance = "maintenance"
	EquipmentLost        = "lost"
)

// 设备成色等级
const (
	ConditionExcellent = "excellent"
	ConditionGood      = "good"
	ConditionFair      = "fair"
	ConditionPoor      = "poor"
)

// Category 设备分类表 — 对应 categories
type Category struct {
	CategoryID  string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"category_id"`
	Name        string `gorm:"type:varchar(100);not null;uniqueIndex"         json:"name"`
	Description string `gorm:"type:varchar(500)"                              json:"description,omitempty"`
	VersionedModel
}

// TableName 指定表名
func (Category) TableName() string { return "categories" }

// Equipment 设备表 — 对应 equipment
type Equipment struct {
	EquipmentID      string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"equipment_id"`
	Name             string  `gorm:"type:varchar(200);not null"                     json:"name"`
	SerialNumber     string  `gorm:"type:varchar(120);not null;uniqueIndex"         json:"serial_number"`
	CategoryID       *string `gorm:"type:uuid"                                      json:"category_id,omitempty"`
	ConditionGrade   string  `gorm:"type:varchar(20);not null;default:'good'"       json:"condition_grade"`
	RequiresApproval bool    `gorm:"not null;default:false"                         json:"requires_approval"`
	IsLost           bool    `gorm:"not null;default:false"                         json:"is_lost"`
	VersionedModel

	// 关联
	Category *Category `gorm:"foreignKey:CategoryID;references:CategoryID" json:"category,omitempty"`
}

// TableName 指定表名
func (Equipment) TableName() string { return "equipment" }
