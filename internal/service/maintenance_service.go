package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"labkeeper/internal/dto"
	"labkeeper/internal/model"
	"labkeeper/internal/repository"
)

// ── 维护模块业务错误 ──

var (
	ErrMaintenanceNotFound = errors.New("维护计划不存在")
	ErrMaintenanceConflict = errors.New("维护窗口与既有预约冲突")
)

// maintenanceTransitions 维护计划状态机
var maintenanceTransitions = map[string][]string{
	model.MaintenanceScheduled:  {model.MaintenanceInProgress, model.MaintenanceCancelled},
	model.MaintenanceInProgress: {model.MaintenanceCompleted},
}

func canMaintenanceTransition(from, to string) bool {
	for _, t := range maintenanceTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// MaintenanceService 维护计划业务接口
type MaintenanceService interface {
	Create(ctx context.Context, req *dto.CreateMaintenanceRequest, callerID string) (*dto.MaintenanceResponse, error)
	GetByID(ctx context.Context, id string) (*dto.MaintenanceResponse, error)
	List(ctx context.Context, req *dto.MaintenanceListRequest) ([]dto.MaintenanceResponse, int64, error)
	UpdateStatus(ctx context.Context, id, status, callerID string) (*dto.MaintenanceResponse, error)
}

type maintenanceService struct {
	repo         *repository.Repository
	availability AvailabilityService
	logger       *zap.Logger
}

// NewMaintenanceService 创建 MaintenanceService 实例
func NewMaintenanceService(repo *repository.Repository, availability AvailabilityService, logger *zap.Logger) MaintenanceService {
	return &maintenanceService{repo: repo, availability: availability, logger: logger}
}

func (s *maintenanceService) Create(ctx context.Context, req *dto.CreateMaintenanceRequest, callerID string) (*dto.MaintenanceResponse, error) {
	if _, err := s.repo.Equipment.GetByID(ctx, req.EquipmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEquipmentNotFound
		}
		return nil, err
	}

	// 快速路径：先读一次占用预约给前端友好反馈；
	// 最终裁决在仓储层事务内完成（锁设备行 → 复查 → 插入）
	end := req.ScheduledAt.Add(time.Duration(req.DurationHours) * time.Hour)
	conflicts, err := s.repo.Reservation.FindBlockingInRange(ctx, req.EquipmentID, req.ScheduledAt, end)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, ErrMaintenanceConflict
	}

	m := &model.MaintenanceSchedule{
		EquipmentID:   req.EquipmentID,
		ScheduledAt:   req.ScheduledAt,
		DurationHours: req.DurationHours,
		Status:        model.MaintenanceScheduled,
		Description:   req.Description,
	}
	m.CreatedBy = &callerID
	m.UpdatedBy = &callerID

	if _, err := s.repo.Maintenance.CreateIfFree(ctx, m); err != nil {
		if errors.Is(err, repository.ErrTimeConflict) {
			return nil, ErrMaintenanceConflict
		}
		s.logger.Error("创建维护计划失败", zap.Error(err))
		return nil, err
	}
	return toMaintenanceResponse(m), nil
}

func (s *maintenanceService) GetByID(ctx context.Context, id string) (*dto.MaintenanceResponse, error) {
	m, err := s.repo.Maintenance.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMaintenanceNotFound
		}
		return nil, err
	}
	return toMaintenanceResponse(m), nil
}

func (s *maintenanceService) List(ctx context.Context, req *dto.MaintenanceListRequest) ([]dto.MaintenanceResponse, int64, error) {
	items, total, err := s.repo.Maintenance.List(ctx, req.EquipmentID, req.Status, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询维护计划失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.MaintenanceResponse, 0, len(items))
	for i := range items {
		result = append(result, *toMaintenanceResponse(&items[i]))
	}
	return result, total, nil
}

func (s *maintenanceService) UpdateStatus(ctx context.Context, id, status, callerID string) (*dto.MaintenanceResponse, error) {
	m, err := s.repo.Maintenance.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMaintenanceNotFound
		}
		return nil, err
	}

	if !canMaintenanceTransition(m.Status, status) {
		return nil, ErrInvalidTransition
	}

	m.Status = status
	m.UpdatedBy = &callerID
	if err := s.repo.Maintenance.Update(ctx, m); err != nil {
		s.logger.Error("更新维护状态失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return toMaintenanceResponse(m), nil
}

func toMaintenanceResponse(m *model.MaintenanceSchedule) *dto.MaintenanceResponse {
	return &dto.MaintenanceResponse{
		ID:            m.MaintenanceID,
		EquipmentID:   m.EquipmentID,
		ScheduledAt:   m.ScheduledAt,
		DurationHours: m.DurationHours,
		EndTime:       m.EndTime(),
		Status:        m.Status,
		Description:   m.Description,
	}
}
