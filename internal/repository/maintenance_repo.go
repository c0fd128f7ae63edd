package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"labkeeper/internal/model"
)

// MaintenanceRepository 维护计划数据访问接口
type MaintenanceRepository interface {
	// CreateIfFree 原子化创建维护窗口：与预约写入共用设备行锁，
	// 窗口压在占用预约之上时返回撞期预约与 ErrTimeConflict
	CreateIfFree(ctx context.Context, m *model.MaintenanceSchedule) (*model.Reservation, error)
	GetByID(ctx context.Context, id string) (*model.MaintenanceSchedule, error)
	List(ctx context.Context, equipmentID, status string, offset, limit int) ([]model.MaintenanceSchedule, int64, error)
	FindBlocking(ctx context.Context, equipmentID string) ([]model.MaintenanceSchedule, error)
	Update(ctx context.Context, m *model.MaintenanceSchedule) error
}

type maintenanceRepo struct {
	db *gorm.DB
}

// NewMaintenanceRepo 创建 MaintenanceRepository 实例
func NewMaintenanceRepo(db *gorm.DB) MaintenanceRepository {
	return &maintenanceRepo{db: db}
}

// CreateIfFree 锁设备行 → 复查预约重叠 → 插入维护窗口。
// 维护表没有排他约束兜底，行锁串行化是唯一防线，
// 检查与插入必须同处一个事务
func (r *maintenanceRepo) CreateIfFree(ctx context.Context, m *model.MaintenanceSchedule) (*model.Reservation, error) {
	var conflicting *model.Reservation

	end := m.EndTime()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 与 CreateIfFree/ApproveIfFree 预约路径使用同一串行化点
		var eq model.Equipment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("equipment_id = ?", m.EquipmentID).
			First(&eq).Error; err != nil {
			return err
		}

		hit, err := findOverlap(tx, m.EquipmentID, m.ScheduledAt, end, "")
		if err != nil {
			return err
		}
		if hit != nil {
			conflicting = hit
			return ErrTimeConflict
		}

		return tx.Create(m).Error
	})
	if err != nil {
		return conflicting, err
	}
	return nil, nil
}

func (r *maintenanceRepo) GetByID(ctx context.Context, id string) (*model.MaintenanceSchedule, error) {
	var m model.MaintenanceSchedule
	if err := r.db.WithContext(ctx).Where("maintenance_id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *maintenanceRepo) List(ctx context.Context, equipmentID, status string, offset, limit int) ([]model.MaintenanceSchedule, int64, error) {
	db := r.db.WithContext(ctx).Model(&model.MaintenanceSchedule{})

	if equipmentID != "" {
		db = db.Where("equipment_id = ?", equipmentID)
	}
	if status != "" {
		db = db.Where("status = ?", status)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []model.MaintenanceSchedule
	err := db.Order("scheduled_at DESC").Offset(offset).Limit(limit).Find(&items).Error
	return items, total, err
}

// FindBlocking 查询设备的全部占用维护窗口（状态非 completed/cancelled）
func (r *maintenanceRepo) FindBlocking(ctx context.Context, equipmentID string) ([]model.MaintenanceSchedule, error) {
	var items []model.MaintenanceSchedule
	err := r.db.WithContext(ctx).
		Where("equipment_id = ? AND status NOT IN ?", equipmentID,
			[]string{model.MaintenanceCompleted, model.MaintenanceCancelled}).
		Order("scheduled_at ASC").
		Find(&items).Error
	return items, err
}

func (r *maintenanceRepo) Update(ctx context.Context, m *model.MaintenanceSchedule) error {
	return r.db.WithContext(ctx).Save(m).Error
}
