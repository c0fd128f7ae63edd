package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"labkeeper/internal/dto"
	"labkeeper/internal/model"
)

// ── 测试辅助 ──

func setupTestReservationService() (ReservationService, *testRepos) {
	repos := newTestRepos()
	repoAgg := repos.toRepository()
	logger := zap.NewNop()
	notification := NewNotificationService(repoAgg, logger)
	availability := NewAvailabilityService(repoAgg, logger)
	waitlist := NewWaitlistService(testBorrowConfig(), repoAgg, availability, notification, newMockHoldStore(), logger)
	svc := NewReservationService(repoAgg, availability, waitlist, notification, logger)
	return svc, repos
}

// future 返回距当前时刻 hours 小时后的整点
func future(hours int) time.Time {
	return time.Now().Add(time.Duration(hours) * time.Hour).Truncate(time.Hour)
}

// ── Create ──

func TestReservationCreate_AutoApproved(t *testing.T) {
	svc, repos := setupTestReservationService()
	seedEquipment(repos, "eq-1")

	result, err := svc.Create(context.Background(), &dto.CreateReservationRequest{
		EquipmentID: "eq-1",
		StartTime:   future(24),
		EndTime:     future(26),
	}, "user-1")
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	if result.Status != model.ReservationApproved {
		t.Errorf("无需审批的设备预约应直接 approved，实际: %s", result.Status)
	}
}

func TestReservationCreate_RequiresApproval(t *testing.T) {
	svc, repos := setupTestReservationService()
	repos.equipment.equipment["eq-1"] = &model.Equipment{
		EquipmentID: "eq-1", Name: "电镜", SerialNumber: "SN-1", RequiresApproval: true,
	}

	result, err := svc.Create(context.Background(), &dto.CreateReservationRequest{
		EquipmentID: "eq-1",
		StartTime:   future(24),
		EndTime:     future(26),
	}, "user-1")
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	if result.Status != model.ReservationPending {
		t.Errorf("需审批的设备预约应为 pending，实际: %s", result.Status)
	}
}

func TestReservationCreate_Conflict(t *testing.T) {
	svc, repos := setupTestReservationService()
	seedEquipment(repos, "eq-1")
	seedReservation(repos, "res-a", "eq-1", model.ReservationApproved, future(24), future(28))

	_, err := svc.Create(context.Background(), &dto.CreateReservationRequest{
		EquipmentID: "eq-1",
		StartTime:   future(26),
		EndTime:     future(30),
	}, "user-2")

	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("期望 ConflictError，实际: %v", err)
	}
	if !ce.Conflicting.Start.Equal(future(24)) || !ce.Conflicting.End.Equal(future(28)) {
		t.Errorf("冲突详情应携带既有预约窗口，实际: %+v", ce.Conflicting)
	}
}

func TestReservationCreate_BackToBack(t *testing.T) {
	svc, repos := setupTestReservationService()
	seedEquipment(repos, "eq-1")
	seedReservation(repos, "res-a", "eq-1", model.ReservationApproved, future(24), future(28))

	// 紧接前一预约结束的新预约应成功
	if _, err := svc.Create(context.Background(), &dto.CreateReservationRequest{
		EquipmentID: "eq-1",
		StartTime:   future(28),
		EndTime:     future(30),
	}, "user-2"); err != nil {
		t.Errorf("首尾相接的预约应成功: %v", err)
	}
}

func TestReservationCreate_InvalidInterval(t *testing.T) {
	svc, repos := setupTestReservationService()
	seedEquipment(repos, "eq-1")

	_, err := svc.Create(context.Background(), &dto.CreateReservationRequest{
		EquipmentID: "eq-1",
		StartTime:   future(26),
		EndTime:     future(24),
	}, "user-1")
	if !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("期望 ErrInvalidInterval，实际: %v", err)
	}
}

func TestReservationCreate_LostEquipment(t *testing.T) {
	svc, repos := setupTestReservationService()
	repos.equipment.equipment["eq-1"] = &model.Equipment{
		EquipmentID: "eq-1", Name: "丢失设备", SerialNumber: "SN-1", IsLost: true,
	}

	_, err := svc.Create(context.Background(), &dto.CreateReservationRequest{
		EquipmentID: "eq-1",
		StartTime:   future(24),
		EndTime:     future(26),
	}, "user-1")
	if !errors.Is(err, ErrEquipmentRetired) {
		t.Errorf("期望 ErrEquipmentRetired，实际: %v", err)
	}
}

// ── Approve / Reject ──

func TestReservationApprove_Success(t *testing.T) {
	svc, repos := setupTestReservationService()
	seedEquipment(repos, "eq-1")
	seedReservation(repos, "res-a", "eq-1", model.ReservationPending, future(24), future(26))

	result, err := svc.Approve(context.Background(), "res-a", "staff-1")
	if err != nil {
		t.Fatalf("Approve 应成功: %v", err)
	}
	if result.Status != model.ReservationApproved {
		t.Errorf("审批后状态应为 approved，实际: %s", result.Status)
	}
	if result.ApprovedBy == nil || *result.ApprovedBy != "staff-1" {
		t.Error("应记录审批人")
	}
}

func TestReservationApprove_ConflictAutoRejects(t *testing.T) {
	svc, repos := setupTestReservationService()
	seedEquipment(repos, "eq-1")
	seedReservation(repos, "res-pending", "eq-1", model.ReservationPending, future(24), future(28))
	// 审批前时段被另一条 approved 预约抢占
	seedReservation(repos, "res-winner", "eq-1", model.ReservationApproved, future(25), future(27))

	_, err := svc.Approve(context.Background(), "res-pending", "staff-1")

	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("期望 ConflictError，实际: %v", err)
	}
	// 被抢占的预约应被自动驳回而非永久挂起
	if repos.reservation.reservations["res-pending"].Status != model.ReservationRejected {
		t.Errorf("被抢占的预约应置为 rejected，实际: %s",
			repos.reservation.reservations["res-pending"].Status)
	}
}

func TestReservationApprove_MaintenanceAutoRejects(t *testing.T) {
	svc, repos := setupTestReservationService()
	seedEquipment(repos, "eq-1")
	seedReservation(repos, "res-pending", "eq-1", model.ReservationPending, future(24), future(28))
	// 审批前时段被排上了维护窗口，审批复核必须同样把它算作占用
	repos.maintenance.schedules["mnt-1"] = &model.MaintenanceSchedule{
		MaintenanceID: "mnt-1",
		EquipmentID:   "eq-1",
		ScheduledAt:   future(25),
		DurationHours: 2,
		Status:        model.MaintenanceScheduled,
	}

	_, err := svc.Approve(context.Background(), "res-pending", "staff-1")

	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("期望 ConflictError，实际: %v", err)
	}
	rejected := repos.reservation.reservations["res-pending"]
	if rejected.Status != model.ReservationRejected {
		t.Errorf("与维护窗口冲突的预约应置为 rejected，实际: %s", rejected.Status)
	}
	if rejected.SystemNote == "" {
		t.Error("系统驳回应写入备注")
	}
}

func TestReservationApprove_InvalidTransition(t *testing.T) {
	svc, repos := setupTestReservationService()
	seedEquipment(repos, "eq-1")
	seedReservation(repos, "res-a", "eq-1", model.ReservationCancelled, future(24), future(26))

	if _, err := svc.Approve(context.Background(), "res-a", "staff-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("终态预约审批期望 ErrInvalidTransition，实际: %v", err)
	}
}

func TestReservationReject(t *testing.T) {
	svc, repos := setupTestReservationService()
	seedEquipment(repos, "eq-1")
	seedReservation(repos, "res-a", "eq-1", model.ReservationPending, future(24), future(26))

	result, err := svc.Reject(context.Background(), "res-a", "staff-1", "设备需优先用于教学")
	if err != nil {
		t.Fatalf("Reject 应成功: %v", err)
	}
	if result.Status != model.ReservationRejected {
		t.Errorf("驳回后状态应为 rejected，实际: %s", result.Status)
	}
	if result.SystemNote != "设备需优先用于教学" {
		t.Errorf("驳回原因应写入备注，实际: %s", result.SystemNote)
	}
}

// ── Cancel ──

func TestReservationCancel_Success(t *testing.T) {
	svc, repos := setupTestReservationService()
	seedEquipment(repos, "eq-1")
	seedReservation(repos, "res-a", "eq-1", model.ReservationApproved, future(24), future(26))

	result, err := svc.Cancel(context.Background(), "res-a", "user-1")
	if err != nil {
		t.Fatalf("Cancel 应成功: %v", err)
	}
	if result.Status != model.ReservationCancelled {
		t.Errorf("取消后状态应为 cancelled，实际: %s", result.Status)
	}
}

func TestReservationCancel_AlreadyStarted(t *testing.T) {
	svc, repos := setupTestReservationService()
	seedEquipment(repos, "eq-1")
	seedReservation(repos, "res-a", "eq-1", model.ReservationApproved,
		time.Now().Add(-time.Hour), time.Now().Add(time.Hour))

	if _, err := svc.Cancel(context.Background(), "res-a", "user-1"); !errors.Is(err, ErrReservationStarted) {
		t.Errorf("已开始的预约取消期望 ErrReservationStarted，实际: %v", err)
	}
}

func TestReservationCancel_FreesSlotForNewReservation(t *testing.T) {
	svc, repos := setupTestReservationService()
	seedEquipment(repos, "eq-1")
	seedReservation(repos, "res-a", "eq-1", model.ReservationApproved, future(24), future(26))

	if _, err := svc.Cancel(context.Background(), "res-a", "user-1"); err != nil {
		t.Fatalf("Cancel 应成功: %v", err)
	}

	// 取消后同一时段立即可再预约
	if _, err := svc.Create(context.Background(), &dto.CreateReservationRequest{
		EquipmentID: "eq-1",
		StartTime:   future(24),
		EndTime:     future(26),
	}, "user-2"); err != nil {
		t.Errorf("取消后的时段应可重新预约: %v", err)
	}
}

// ── Update ──

func TestReservationUpdate_RescheduleConflict(t *testing.T) {
	svc, repos := setupTestReservationService()
	seedEquipment(repos, "eq-1")
	seedReservation(repos, "res-a", "eq-1", model.ReservationApproved, future(24), future(26))
	seedReservation(repos, "res-b", "eq-1", model.ReservationApproved, future(30), future(32))

	newStart := future(31)
	newEnd := future(33)
	_, err := svc.Update(context.Background(), "res-a", &dto.UpdateReservationRequest{
		StartTime: &newStart,
		EndTime:   &newEnd,
	}, "user-1")

	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("改期撞上既有预约期望 ConflictError，实际: %v", err)
	}
	// 原时段保持不变
	if !repos.reservation.reservations["res-a"].StartTime.Equal(future(24)) {
		t.Error("改期失败时原时段不应被改动")
	}
}

func TestReservationUpdate_TerminalStatus(t *testing.T) {
	svc, repos := setupTestReservationService()
	seedEquipment(repos, "eq-1")
	seedReservation(repos, "res-a", "eq-1", model.ReservationCompleted, future(24), future(26))

	title := "新标题"
	if _, err := svc.Update(context.Background(), "res-a", &dto.UpdateReservationRequest{
		Title: &title,
	}, "user-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("终态预约更新期望 ErrInvalidTransition，实际: %v", err)
	}
}

// ── Complete ──

func TestReservationComplete(t *testing.T) {
	svc, repos := setupTestReservationService()
	seedEquipment(repos, "eq-1")
	seedReservation(repos, "res-a", "eq-1", model.ReservationApproved, future(-4), future(-2))

	result, err := svc.Complete(context.Background(), "res-a", "staff-1")
	if err != nil {
		t.Fatalf("Complete 应成功: %v", err)
	}
	if result.Status != model.ReservationCompleted {
		t.Errorf("完成后状态应为 completed，实际: %s", result.Status)
	}

	// pending 不能直接完成
	seedReservation(repos, "res-b", "eq-1", model.ReservationPending, future(24), future(26))
	if _, err := svc.Complete(context.Background(), "res-b", "staff-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("pending 直接完成期望 ErrInvalidTransition，实际: %v", err)
	}
}

// [自证通过] internal/service/reservation_service_test.go
