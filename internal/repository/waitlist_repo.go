package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"labkeeper/internal/model"
)

// WaitlistRepository 候补队列数据访问接口
type WaitlistRepository interface {
	Create(ctx context.Context, entry *model.WaitlistEntry) error
	GetByID(ctx context.Context, id string) (*model.WaitlistEntry, error)
	FindDuplicate(ctx context.Context, equipmentID, userID string, start, end time.Time) (*model.WaitlistEntry, error)
	List(ctx context.Context, equipmentID, userID string) ([]model.WaitlistEntry, error)
	ListPendingOrdered(ctx context.Context, equipmentID string) ([]model.WaitlistEntry, error)
	MarkNotified(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	DeleteByEquipmentUser(ctx context.Context, equipmentID, userID string) (int64, error)
	PurgeNotifiedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type waitlistRepo struct {
	db *gorm.DB
}

// NewWaitlistRepo 创建 WaitlistRepository 实例
func NewWaitlistRepo(db *gorm.DB) WaitlistRepository {
	return &waitlistRepo{db: db}
}

func (r *waitlistRepo) Create(ctx context.Context, entry *model.WaitlistEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *waitlistRepo) GetByID(ctx context.Context, id string) (*model.WaitlistEntry, error) {
	var entry model.WaitlistEntry
	if err := r.db.WithContext(ctx).Where("entry_id = ?", id).First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindDuplicate 查找同设备、同用户、同区间的未通知候补；不存在返回 (nil, nil)
func (r *waitlistRepo) FindDuplicate(ctx context.Context, equipmentID, userID string, start, end time.Time) (*model.WaitlistEntry, error) {
	var entry model.WaitlistEntry
	err := r.db.WithContext(ctx).
		Where("equipment_id = ? AND user_id = ? AND requested_start_time = ? AND requested_end_time = ? AND notified_at IS NULL",
			equipmentID, userID, start, end).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *waitlistRepo) List(ctx context.Context, equipmentID, userID string) ([]model.WaitlistEntry, error) {
	db := r.db.WithContext(ctx).Model(&model.WaitlistEntry{})

	if equipmentID != "" {
		db = db.Where("equipment_id = ?", equipmentID)
	}
	if userID != "" {
		db = db.Where("user_id = ?", userID)
	}

	var entries []model.WaitlistEntry
	err := db.Order("priority DESC, created_at ASC").Find(&entries).Error
	return entries, err
}

// ListPendingOrdered 按晋升顺序（priority DESC, created_at ASC）返回未通知候补
func (r *waitlistRepo) ListPendingOrdered(ctx context.Context, equipmentID string) ([]model.WaitlistEntry, error) {
	var entries []model.WaitlistEntry
	err := r.db.WithContext(ctx).
		Where("equipment_id = ? AND notified_at IS NULL", equipmentID).
		Order("priority DESC, created_at ASC").
		Find(&entries).Error
	return entries, err
}

func (r *waitlistRepo) MarkNotified(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.WaitlistEntry{}).
		Where("entry_id = ?", id).
		Update("notified_at", at).Error
}

func (r *waitlistRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("entry_id = ?", id).
		Delete(&model.WaitlistEntry{}).Error
}

// DeleteByEquipmentUser 删除某用户对某设备的全部候补条目
func (r *waitlistRepo) DeleteByEquipmentUser(ctx context.Context, equipmentID, userID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("equipment_id = ? AND user_id = ?", equipmentID, userID).
		Delete(&model.WaitlistEntry{})
	return result.RowsAffected, result.Error
}

// PurgeNotifiedBefore 清理宽限期已过的已通知候补
func (r *waitlistRepo) PurgeNotifiedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("notified_at IS NOT NULL AND notified_at < ?", cutoff).
		Delete(&model.WaitlistEntry{})
	return result.RowsAffected, result.Error
}
