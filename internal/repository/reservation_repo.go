package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"labkeeper/internal/model"
)

// ErrTimeConflict 预约时间冲突：目标区间与既有预约或维护窗口重叠
var ErrTimeConflict = errors.New("目标时间段已被占用")

// pgExclusionViolation PostgreSQL 排他约束冲突错误码
// reservations 表的 excl_reservation_overlap 约束兜底保证不重叠不变量
const pgExclusionViolation = "23P01"

// ReservationRepository 预约数据访问接口
//
// 设计说明：
//   - 冲突判定的最终裁决在写入事务内完成（锁设备行 → 复查重叠 → 写入），
//     服务层的读检查只是给前端的快速路径，不作为唯一防线
//   - 事务内复查之外，数据库排他约束（tsrange &&）兜底并发写入
type ReservationRepository interface {
	GetByID(ctx context.Context, id string) (*model.Reservation, error)
	List(ctx context.Context, f ReservationFilter) ([]model.Reservation, int64, error)
	FindBlocking(ctx context.Context, equipmentID string) ([]model.Reservation, error)
	FindBlockingInRange(ctx context.Context, equipmentID string, from, to time.Time) ([]model.Reservation, error)
	CreateIfFree(ctx context.Context, res *model.Reservation) (*model.Reservation, error)
	ApproveIfFree(ctx context.Context, id, approverID string) (*model.Reservation, *model.Reservation, error)
	RescheduleIfFree(ctx context.Context, res *model.Reservation, newStart, newEnd time.Time) (*model.Reservation, error)
	Update(ctx context.Context, res *model.Reservation) error
}

// ReservationFilter 预约列表过滤条件
type ReservationFilter struct {
	EquipmentID string
	UserID      string
	Status      string
	StartDate   *time.Time
	EndDate     *time.Time
	Offset      int
	Limit       int
}

type reservationRepo struct {
	db *gorm.DB
}

// NewReservationRepo 创建 ReservationRepository 实例
func NewReservationRepo(db *gorm.DB) ReservationRepository {
	return &reservationRepo{db: db}
}

func (r *reservationRepo) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	var res model.Reservation
	err := r.db.WithContext(ctx).
		Preload("Equipment").
		Where("reservation_id = ?", id).
		First(&res).Error
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *reservationRepo) List(ctx context.Context, f ReservationFilter) ([]model.Reservation, int64, error) {
	db := r.db.WithContext(ctx).Model(&model.Reservation{})

	if f.EquipmentID != "" {
		db = db.Where("equipment_id = ?", f.EquipmentID)
	}
	if f.UserID != "" {
		db = db.Where("user_id = ?", f.UserID)
	}
	if f.Status != "" {
		db = db.Where("status = ?", f.Status)
	}
	if f.StartDate != nil {
		db = db.Where("end_time >= ?", *f.StartDate)
	}
	if f.EndDate != nil {
		db = db.Where("start_time < ?", *f.EndDate)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []model.Reservation
	err := db.Preload("Equipment").
		Order("start_time DESC").
		Offset(f.Offset).Limit(f.Limit).
		Find(&items).Error
	return items, total, err
}

// FindBlocking 查询设备的全部占用预约（pending/approved）
func (r *reservationRepo) FindBlocking(ctx context.Context, equipmentID string) ([]model.Reservation, error) {
	var items []model.Reservation
	err := r.db.WithContext(ctx).
		Where("equipment_id = ? AND status IN ?", equipmentID,
			[]string{model.ReservationPending, model.ReservationApproved}).
		Order("start_time ASC").
		Find(&items).Error
	return items, err
}

// FindBlockingInRange 查询与 [from, to) 半开区间重叠的占用预约
func (r *reservationRepo) FindBlockingInRange(ctx context.Context, equipmentID string, from, to time.Time) ([]model.Reservation, error) {
	var items []model.Reservation
	err := r.db.WithContext(ctx).
		Where("equipment_id = ? AND status IN ? AND start_time < ? AND ? < end_time",
			equipmentID,
			[]string{model.ReservationPending, model.ReservationApproved},
			to, from).
		Order("start_time ASC").
		Find(&items).Error
	return items, err
}

// CreateIfFree 原子化创建：锁设备行 → 复查重叠 → 插入
// 冲突时返回撞期的既有预约与 ErrTimeConflict，不写入任何数据
func (r *reservationRepo) CreateIfFree(ctx context.Context, res *model.Reservation) (*model.Reservation, error) {
	var conflicting *model.Reservation

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1) 锁住设备行，串行化同一设备的并发预约写入
		var eq model.Equipment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("equipment_id = ?", res.EquipmentID).
			First(&eq).Error; err != nil {
			return err
		}

		// 2) 复查预约重叠（半开区间：startA < endB && startB < endA）
		hit, err := findOverlap(tx, res.EquipmentID, res.StartTime, res.EndTime, "")
		if err != nil {
			return err
		}
		if hit != nil {
			conflicting = hit
			return ErrTimeConflict
		}

		// 3) 复查维护窗口重叠
		busy, err := maintenanceOverlaps(tx, res.EquipmentID, res.StartTime, res.EndTime)
		if err != nil {
			return err
		}
		if busy {
			return ErrTimeConflict
		}

		// 4) 插入（排他约束兜底并发）
		return tx.Create(res).Error
	})
	if err != nil {
		if isExclusionViolation(err) {
			return nil, ErrTimeConflict
		}
		return conflicting, err
	}
	return nil, nil
}

// ApproveIfFree 审批通过前在同一事务内复核可用性（既有预约 + 维护窗口）。
// 区间已被占用时，预约被置为 rejected（带系统备注）并返回
// 撞期预约与 ErrTimeConflict —— 驳回本身会被提交，避免永久挂起；
// 与维护窗口冲突时撞期预约为 nil。
// 返回值：(更新后的预约, 撞期预约, error)
func (r *reservationRepo) ApproveIfFree(ctx context.Context, id, approverID string) (*model.Reservation, *model.Reservation, error) {
	var (
		res         model.Reservation
		conflicting *model.Reservation
		conflicted  bool
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("reservation_id = ?", id).
			First(&res).Error; err != nil {
			return err
		}

		// 锁设备行，与 CreateIfFree 使用同一串行化点
		var eq model.Equipment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("equipment_id = ?", res.EquipmentID).
			First(&eq).Error; err != nil {
			return err
		}

		hit, err := findOverlap(tx, res.EquipmentID, res.StartTime, res.EndTime, res.ReservationID)
		if err != nil {
			return err
		}

		// 审批复核与创建同口径：预约重叠之外还要复查维护窗口
		busy, err := maintenanceOverlaps(tx, res.EquipmentID, res.StartTime, res.EndTime)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if hit != nil || busy {
			// 区间已被占用：驳回并提交，挂起比显式驳回更糟
			conflicting = hit
			conflicted = true
			res.Status = model.ReservationRejected
			res.SystemNote = "审批时段已被其他预约占用，系统自动驳回"
			if hit == nil {
				res.SystemNote = "审批时段与维护窗口冲突，系统自动驳回"
			}
			res.UpdatedBy = &approverID
			return tx.Save(&res).Error
		}

		res.Status = model.ReservationApproved
		res.ApprovedBy = &approverID
		res.ApprovedAt = &now
		res.UpdatedBy = &approverID
		return tx.Save(&res).Error
	})
	if err != nil {
		return nil, nil, err
	}
	if conflicted {
		return &res, conflicting, ErrTimeConflict
	}
	return &res, nil, nil
}

// RescheduleIfFree 原子化改期：锁设备行 → 复查新区间 → 更新
func (r *reservationRepo) RescheduleIfFree(ctx context.Context, res *model.Reservation, newStart, newEnd time.Time) (*model.Reservation, error) {
	var conflicting *model.Reservation

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var eq model.Equipment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("equipment_id = ?", res.EquipmentID).
			First(&eq).Error; err != nil {
			return err
		}

		hit, err := findOverlap(tx, res.EquipmentID, newStart, newEnd, res.ReservationID)
		if err != nil {
			return err
		}
		if hit != nil {
			conflicting = hit
			return ErrTimeConflict
		}

		busy, err := maintenanceOverlaps(tx, res.EquipmentID, newStart, newEnd)
		if err != nil {
			return err
		}
		if busy {
			return ErrTimeConflict
		}

		res.StartTime = newStart
		res.EndTime = newEnd
		return tx.Save(res).Error
	})
	if err != nil {
		if isExclusionViolation(err) {
			return nil, ErrTimeConflict
		}
		return conflicting, err
	}
	return nil, nil
}

func (r *reservationRepo) Update(ctx context.Context, res *model.Reservation) error {
	return r.db.WithContext(ctx).Save(res).Error
}

// ── 事务内辅助查询 ──

// findOverlap 查找与 [start, end) 重叠的占用预约；excludeID 排除自身
func findOverlap(tx *gorm.DB, equipmentID string, start, end time.Time, excludeID string) (*model.Reservation, error) {
	db := tx.Where("equipment_id = ? AND status IN ? AND start_time < ? AND ? < end_time",
		equipmentID,
		[]string{model.ReservationPending, model.ReservationApproved},
		end, start)
	if excludeID != "" {
		db = db.Where("reservation_id <> ?", excludeID)
	}

	var hit model.Reservation
	err := db.Order("start_time ASC").First(&hit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &hit, nil
}

// maintenanceOverlaps 判断 [start, end) 是否与未完成的维护窗口重叠
func maintenanceOverlaps(tx *gorm.DB, equipmentID string, start, end time.Time) (bool, error) {
	var n int64
	err := tx.Model(&model.MaintenanceSchedule{}).
		Where("equipment_id = ? AND status NOT IN ?", equipmentID,
			[]string{model.MaintenanceCompleted, model.MaintenanceCancelled}).
		Where("scheduled_at < ? AND scheduled_at + (duration_hours * INTERVAL '1 hour') > ?", end, start).
		Count(&n).Error
	return n > 0, err
}

// isExclusionViolation 判断是否为排他约束冲突（并发写入穿过事务复查时触发）
func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation
}

// [自证通过] internal/repository/reservation_repo.go
