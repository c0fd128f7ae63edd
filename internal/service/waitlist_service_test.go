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

func setupTestWaitlistService() (WaitlistService, *testRepos, *mockHoldStore) {
	repos := newTestRepos()
	repoAgg := repos.toRepository()
	logger := zap.NewNop()
	notification := NewNotificationService(repoAgg, logger)
	availability := NewAvailabilityService(repoAgg, logger)
	holds := newMockHoldStore()
	svc := NewWaitlistService(testBorrowConfig(), repoAgg, availability, notification, holds, logger)
	return svc, repos, holds
}

func seedWaitlistEntry(repos *testRepos, id, equipmentID, userID string, priority int, start, end, createdAt time.Time) *model.WaitlistEntry {
	entry := &model.WaitlistEntry{
		EntryID:            id,
		EquipmentID:        equipmentID,
		UserID:             userID,
		RequestedStartTime: start,
		RequestedEndTime:   end,
		Priority:           priority,
		CreatedAt:          createdAt,
	}
	repos.waitlist.entries[id] = entry
	return entry
}

// ── Enqueue ──

func TestWaitlistEnqueue_Success(t *testing.T) {
	svc, repos, _ := setupTestWaitlistService()
	seedEquipment(repos, "eq-1")

	result, err := svc.Enqueue(context.Background(), &dto.EnqueueWaitlistRequest{
		EquipmentID: "eq-1",
		StartTime:   day(10, 0),
		EndTime:     day(12, 0),
		Priority:    "high",
	}, "user-1")
	if err != nil {
		t.Fatalf("Enqueue 应成功: %v", err)
	}
	if result.Priority != "high" {
		t.Errorf("优先级应为 high，实际: %s", result.Priority)
	}
}

func TestWaitlistEnqueue_Duplicate(t *testing.T) {
	svc, repos, _ := setupTestWaitlistService()
	seedEquipment(repos, "eq-1")

	req := &dto.EnqueueWaitlistRequest{
		EquipmentID: "eq-1",
		StartTime:   day(10, 0),
		EndTime:     day(12, 0),
	}
	if _, err := svc.Enqueue(context.Background(), req, "user-1"); err != nil {
		t.Fatalf("首次 Enqueue 应成功: %v", err)
	}
	if _, err := svc.Enqueue(context.Background(), req, "user-1"); !errors.Is(err, ErrWaitlistDuplicate) {
		t.Errorf("重复候补期望 ErrWaitlistDuplicate，实际: %v", err)
	}

	// 不同用户候补同一时段不算重复
	if _, err := svc.Enqueue(context.Background(), req, "user-2"); err != nil {
		t.Errorf("其他用户候补同时段应成功: %v", err)
	}
}

func TestWaitlistEnqueue_DefaultPriority(t *testing.T) {
	svc, repos, _ := setupTestWaitlistService()
	seedEquipment(repos, "eq-1")

	result, err := svc.Enqueue(context.Background(), &dto.EnqueueWaitlistRequest{
		EquipmentID: "eq-1",
		StartTime:   day(10, 0),
		EndTime:     day(12, 0),
	}, "user-1")
	if err != nil {
		t.Fatalf("Enqueue 应成功: %v", err)
	}
	if result.Priority != "normal" {
		t.Errorf("未指定优先级应回落到 normal，实际: %s", result.Priority)
	}
}

// ── PromoteNext ──

func TestPromoteNext_PriorityOrder(t *testing.T) {
	svc, repos, holds := setupTestWaitlistService()
	seedEquipment(repos, "eq-1")

	base := time.Now()
	// normal 先入队，urgent 后入队 → urgent 应先被晋升
	seedWaitlistEntry(repos, "wl-normal", "eq-1", "user-1", model.PriorityNormal,
		day(10, 0), day(12, 0), base.Add(-2*time.Hour))
	seedWaitlistEntry(repos, "wl-urgent", "eq-1", "user-2", model.PriorityUrgent,
		day(10, 0), day(12, 0), base.Add(-time.Hour))

	promoted, err := svc.PromoteNext(context.Background(), "eq-1", day(10, 0), day(12, 0))
	if err != nil {
		t.Fatalf("PromoteNext 应成功: %v", err)
	}
	if promoted == nil || promoted.ID != "wl-urgent" {
		t.Fatalf("应优先晋升 urgent 条目，实际: %+v", promoted)
	}
	if promoted.NotifiedAt == nil {
		t.Error("晋升后应写入通知时间")
	}
	if ok, _ := holds.HasWaitlistHold(context.Background(), "wl-urgent"); !ok {
		t.Error("晋升后应写入占位标记")
	}

	// 站内通知已发给候补用户
	notes, _, _ := repos.notification.ListByUser(context.Background(), "user-2", false, 0, 10)
	if len(notes) != 1 || notes[0].Type != model.NotifyWaitlistSlotFreed {
		t.Errorf("期望 1 条候补通知，实际: %+v", notes)
	}
}

func TestPromoteNext_FIFOWithinSamePriority(t *testing.T) {
	svc, repos, _ := setupTestWaitlistService()
	seedEquipment(repos, "eq-1")

	base := time.Now()
	seedWaitlistEntry(repos, "wl-late", "eq-1", "user-2", model.PriorityNormal,
		day(10, 0), day(12, 0), base.Add(-time.Hour))
	seedWaitlistEntry(repos, "wl-early", "eq-1", "user-1", model.PriorityNormal,
		day(10, 0), day(12, 0), base.Add(-3*time.Hour))

	promoted, err := svc.PromoteNext(context.Background(), "eq-1", day(10, 0), day(12, 0))
	if err != nil {
		t.Fatalf("PromoteNext 应成功: %v", err)
	}
	if promoted == nil || promoted.ID != "wl-early" {
		t.Errorf("同优先级应先到先得，实际: %+v", promoted)
	}
}

func TestPromoteNext_SkipsNonFittingEntry(t *testing.T) {
	svc, repos, _ := setupTestWaitlistService()
	seedEquipment(repos, "eq-1")

	base := time.Now()
	// 高优先级条目的期望时段仍被另一预约占用 → 跳过，晋升低优先级但时段可用的条目
	seedReservation(repos, "res-other", "eq-1", model.ReservationApproved, day(14, 0), day(16, 0))
	seedWaitlistEntry(repos, "wl-blocked", "eq-1", "user-1", model.PriorityHigh,
		day(14, 0), day(16, 0), base.Add(-2*time.Hour))
	seedWaitlistEntry(repos, "wl-fits", "eq-1", "user-2", model.PriorityNormal,
		day(10, 0), day(12, 0), base.Add(-time.Hour))

	promoted, err := svc.PromoteNext(context.Background(), "eq-1", day(9, 0), day(17, 0))
	if err != nil {
		t.Fatalf("PromoteNext 应成功: %v", err)
	}
	if promoted == nil || promoted.ID != "wl-fits" {
		t.Errorf("应跳过时段冲突的条目晋升下一个，实际: %+v", promoted)
	}
	// 被跳过的条目保持未通知
	if repos.waitlist.entries["wl-blocked"].NotifiedAt != nil {
		t.Error("被跳过的条目不应被标记为已通知")
	}
}

func TestPromoteNext_IgnoresUnrelatedWindow(t *testing.T) {
	svc, repos, _ := setupTestWaitlistService()
	seedEquipment(repos, "eq-1")

	// 候补期望的时段与释放的窗口无交集 → 不晋升
	seedWaitlistEntry(repos, "wl-1", "eq-1", "user-1", model.PriorityNormal,
		day(18, 0), day(20, 0), time.Now().Add(-time.Hour))

	promoted, err := svc.PromoteNext(context.Background(), "eq-1", day(10, 0), day(12, 0))
	if err != nil {
		t.Fatalf("PromoteNext 应成功: %v", err)
	}
	if promoted != nil {
		t.Errorf("释放窗口与候补时段无交集时不应晋升，实际: %+v", promoted)
	}
}

func TestPromoteNext_EmptyQueue(t *testing.T) {
	svc, repos, _ := setupTestWaitlistService()
	seedEquipment(repos, "eq-1")

	promoted, err := svc.PromoteNext(context.Background(), "eq-1", day(10, 0), day(12, 0))
	if err != nil {
		t.Fatalf("空队列 PromoteNext 应成功: %v", err)
	}
	if promoted != nil {
		t.Errorf("空队列不应晋升任何条目，实际: %+v", promoted)
	}
}

func TestPromoteNext_PurgesExpiredNotified(t *testing.T) {
	svc, repos, _ := setupTestWaitlistService()
	seedEquipment(repos, "eq-1")

	// 宽限期 24h，此条目 48h 前已通知 → 应在晋升前被清理
	stale := seedWaitlistEntry(repos, "wl-stale", "eq-1", "user-1", model.PriorityNormal,
		day(10, 0), day(12, 0), time.Now().Add(-72*time.Hour))
	notifiedAt := time.Now().Add(-48 * time.Hour)
	stale.NotifiedAt = &notifiedAt

	if _, err := svc.PromoteNext(context.Background(), "eq-1", day(10, 0), day(12, 0)); err != nil {
		t.Fatalf("PromoteNext 应成功: %v", err)
	}
	if _, ok := repos.waitlist.entries["wl-stale"]; ok {
		t.Error("宽限期已过的已通知条目应被清理")
	}
}

// ── Remove ──

// ── List ──

func TestWaitlistList_HoldState(t *testing.T) {
	svc, repos, holds := setupTestWaitlistService()
	seedEquipment(repos, "eq-1")

	notified := seedWaitlistEntry(repos, "w-notified", "eq-1", "user-1", 1,
		day(10, 0), day(12, 0), day(8, 0))
	now := day(9, 0)
	notified.NotifiedAt = &now
	holds.holds["w-notified"] = true

	stale := seedWaitlistEntry(repos, "w-stale", "eq-1", "user-2", 1,
		day(10, 0), day(12, 0), day(8, 30))
	stale.NotifiedAt = &now
	// 宽限期标记已过期：通知仍在，倒计时不再有效

	seedWaitlistEntry(repos, "w-pending", "eq-1", "user-3", 1,
		day(14, 0), day(16, 0), day(9, 0))

	result, err := svc.List(context.Background(), &dto.WaitlistListRequest{EquipmentID: "eq-1"})
	if err != nil {
		t.Fatalf("List 应成功: %v", err)
	}

	byID := make(map[string]dto.WaitlistEntryResponse, len(result))
	for _, e := range result {
		byID[e.ID] = e
	}
	if !byID["w-notified"].HoldActive {
		t.Error("宽限期内的已通知条目 HoldActive 应为 true")
	}
	if byID["w-stale"].HoldActive {
		t.Error("标记已过期的条目 HoldActive 应为 false")
	}
	if byID["w-pending"].HoldActive {
		t.Error("未通知条目 HoldActive 应为 false")
	}
}

func TestPromoteNext_MarksHold(t *testing.T) {
	svc, repos, holds := setupTestWaitlistService()
	seedEquipment(repos, "eq-1")
	seedWaitlistEntry(repos, "w-1", "eq-1", "user-1", 1, day(10, 0), day(12, 0), day(8, 0))

	result, err := svc.PromoteNext(context.Background(), "eq-1", day(10, 0), day(12, 0))
	if err != nil {
		t.Fatalf("PromoteNext 应成功: %v", err)
	}
	if result == nil {
		t.Fatal("应晋升唯一的候补条目")
	}
	if !holds.holds["w-1"] {
		t.Error("晋升应写入宽限期标记")
	}
	if !result.HoldActive {
		t.Error("晋升响应的 HoldActive 应为 true")
	}
}

// ── Remove ──

func TestWaitlistRemove_OwnerAndStaff(t *testing.T) {
	svc, repos, _ := setupTestWaitlistService()
	seedEquipment(repos, "eq-1")
	seedWaitlistEntry(repos, "wl-1", "eq-1", "user-1", model.PriorityNormal,
		day(10, 0), day(12, 0), time.Now())
	seedWaitlistEntry(repos, "wl-2", "eq-1", "user-1", model.PriorityNormal,
		day(14, 0), day(16, 0), time.Now())

	// 非本人且非管理角色 → 拒绝
	if err := svc.Remove(context.Background(), "wl-1", "user-2", model.RoleMember); !errors.Is(err, ErrNotWaitlistOwner) {
		t.Errorf("期望 ErrNotWaitlistOwner，实际: %v", err)
	}
	// 本人可删
	if err := svc.Remove(context.Background(), "wl-1", "user-1", model.RoleMember); err != nil {
		t.Errorf("本人删除应成功: %v", err)
	}
	// staff 可代删
	if err := svc.Remove(context.Background(), "wl-2", "staff-1", model.RoleStaff); err != nil {
		t.Errorf("staff 删除应成功: %v", err)
	}
}

func TestWaitlistRemoveByEquipmentUser(t *testing.T) {
	svc, repos, _ := setupTestWaitlistService()
	seedEquipment(repos, "eq-1")
	seedWaitlistEntry(repos, "wl-1", "eq-1", "user-1", model.PriorityNormal,
		day(10, 0), day(12, 0), time.Now())
	seedWaitlistEntry(repos, "wl-2", "eq-1", "user-1", model.PriorityNormal,
		day(14, 0), day(16, 0), time.Now())
	seedWaitlistEntry(repos, "wl-other", "eq-1", "user-2", model.PriorityNormal,
		day(10, 0), day(12, 0), time.Now())

	// 非本人且非管理角色 → 拒绝
	err := svc.RemoveByEquipmentUser(context.Background(), "eq-1", "user-1", "user-2", model.RoleMember)
	if !errors.Is(err, ErrNotWaitlistOwner) {
		t.Errorf("期望 ErrNotWaitlistOwner，实际: %v", err)
	}

	// 本人批量退出：同设备的全部条目一起删，别人的不动
	if err := svc.RemoveByEquipmentUser(context.Background(), "eq-1", "user-1", "user-1", model.RoleMember); err != nil {
		t.Fatalf("本人批量退出应成功: %v", err)
	}
	if _, ok := repos.waitlist.entries["wl-1"]; ok {
		t.Error("wl-1 应被删除")
	}
	if _, ok := repos.waitlist.entries["wl-2"]; ok {
		t.Error("wl-2 应被删除")
	}
	if _, ok := repos.waitlist.entries["wl-other"]; !ok {
		t.Error("其他用户的候补不应被删除")
	}

	// 没有可删条目 → 未找到
	err = svc.RemoveByEquipmentUser(context.Background(), "eq-1", "user-1", "user-1", model.RoleMember)
	if !errors.Is(err, ErrWaitlistNotFound) {
		t.Errorf("期望 ErrWaitlistNotFound，实际: %v", err)
	}
}
