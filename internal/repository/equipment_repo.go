package repository

import (
	"context"

	"gorm.io/gorm"

	"labkeeper/internal/model"
	pkgerrors "labkeeper/pkg/errors"
)

// EquipmentRepository 设备数据访问接口
type EquipmentRepository interface {
	Create(ctx context.Context, equipment *model.Equipment) error
	GetByID(ctx context.Context, id string) (*model.Equipment, error)
	GetBySerial(ctx context.Context, serial string) (*model.Equipment, error)
	List(ctx context.Context, categoryID, keyword string, offset, limit int) ([]model.Equipment, int64, error)
	Update(ctx context.Context, equipment *model.Equipment) error
	Delete(ctx context.Context, id string, deletedBy string) error
}

type equipmentRepo struct {
	db *gorm.DB
}

// NewEquipmentRepo 创建 EquipmentRepository 实例
func NewEquipmentRepo(db *gorm.DB) EquipmentRepository {
	return &equipmentRepo{db: db}
}

func (r *equipmentRepo) Create(ctx context.Context, equipment *model.Equipment) error {
	return r.db.WithContext(ctx).Create(equipment).Error
}

func (r *equipmentRepo) GetByID(ctx context.Context, id string) (*model.Equipment, error) {
	var eq model.Equipment
	err := r.db.WithContext(ctx).
		Preload("Category").
		Where("equipment_id = ?", id).
		First(&eq).Error
	if err != nil {
		return nil, err
	}
	return &eq, nil
}

func (r *equipmentRepo) GetBySerial(ctx context.Context, serial string) (*model.Equipment, error) {
	var eq model.Equipment
	if err := r.db.WithContext(ctx).Where("serial_number = ?", serial).First(&eq).Error; err != nil {
		return nil, err
	}
	return &eq, nil
}

func (r *equipmentRepo) List(ctx context.Context, categoryID, keyword string, offset, limit int) ([]model.Equipment, int64, error) {
	db := r.db.WithContext(ctx).Model(&model.Equipment{})

	if categoryID != "" {
		db = db.Where("category_id = ?", categoryID)
	}
	if keyword != "" {
		like := "%" + keyword + "%"
		db = db.Where("name ILIKE ? OR serial_number ILIKE ?", like, like)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []model.Equipment
	err := db.Preload("Category").
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&items).Error
	return items, total, err
}

// Update 乐观锁更新：version 不匹配时记录已被其他操作修改
func (r *equipmentRepo) Update(ctx context.Context, equipment *model.Equipment) error {
	oldVersion := equipment.Version
	result := r.db.WithContext(ctx).
		Model(equipment).
		Where("equipment_id = ? AND version = ?", equipment.EquipmentID, oldVersion).
		Updates(map[string]interface{}{
			"name":              equipment.Name,
			"category_id":       equipment.CategoryID,
			"condition_grade":   equipment.ConditionGrade,
			"requires_approval": equipment.RequiresApproval,
			"is_lost":           equipment.IsLost,
			"updated_by":        equipment.UpdatedBy,
			"version":           oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	equipment.Version = oldVersion + 1
	return nil
}

func (r *equipmentRepo) Delete(ctx context.Context, id string, deletedBy string) error {
	return r.db.WithContext(ctx).
		Model(&model.Equipment{}).
		Where("equipment_id = ?", id).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": gorm.Expr("NOW()"),
		}).Error
}
