package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"labkeeper/internal/model"
	"labkeeper/internal/repository"
)

// ── Mock UserRepository ──

type mockUserRepo struct {
	users map[string]*model.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	if user.UserID == "" {
		user.UserID = "user-" + user.Email
	}
	m.users[user.UserID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) List(_ context.Context, role, _ string, _, _ int) ([]model.User, int64, error) {
	var result []model.User
	for _, u := range m.users {
		if role != "" && u.Role != role {
			continue
		}
		result = append(result, *u)
	}
	return result, int64(len(result)), nil
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	m.users[user.UserID] = user
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id string, _ string) error {
	delete(m.users, id)
	return nil
}

// ── Mock CategoryRepository ──

type mockCategoryRepo struct {
	categories map[string]*model.Category
}

func newMockCategoryRepo() *mockCategoryRepo {
	return &mockCategoryRepo{categories: make(map[string]*model.Category)}
}

func (m *mockCategoryRepo) Create(_ context.Context, category *model.Category) error {
	if category.CategoryID == "" {
		category.CategoryID = "cat-" + category.Name
	}
	m.categories[category.CategoryID] = category
	return nil
}

func (m *mockCategoryRepo) GetByID(_ context.Context, id string) (*model.Category, error) {
	if c, ok := m.categories[id]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCategoryRepo) List(_ context.Context) ([]model.Category, error) {
	var result []model.Category
	for _, c := range m.categories {
		result = append(result, *c)
	}
	return result, nil
}

func (m *mockCategoryRepo) Update(_ context.Context, category *model.Category) error {
	m.categories[category.CategoryID] = category
	return nil
}

func (m *mockCategoryRepo) Delete(_ context.Context, id string, _ string) error {
	delete(m.categories, id)
	return nil
}

// ── Mock EquipmentRepository ──

type mockEquipmentRepo struct {
	equipment map[string]*model.Equipment
}

func newMockEquipmentRepo() *mockEquipmentRepo {
	return &mockEquipmentRepo{equipment: make(map[string]*model.Equipment)}
}

func (m *mockEquipmentRepo) Create(_ context.Context, eq *model.Equipment) error {
	if eq.EquipmentID == "" {
		eq.EquipmentID = "eq-" + eq.SerialNumber
	}
	m.equipment[eq.EquipmentID] = eq
	return nil
}

func (m *mockEquipmentRepo) GetByID(_ context.Context, id string) (*model.Equipment, error) {
	if eq, ok := m.equipment[id]; ok {
		return eq, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockEquipmentRepo) GetBySerial(_ context.Context, serial string) (*model.Equipment, error) {
	for _, eq := range m.equipment {
		if eq.SerialNumber == serial {
			return eq, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockEquipmentRepo) List(_ context.Context, categoryID, _ string, _, _ int) ([]model.Equipment, int64, error) {
	var result []model.Equipment
	for _, eq := range m.equipment {
		if categoryID != "" && (eq.CategoryID == nil || *eq.CategoryID != categoryID) {
			continue
		}
		result = append(result, *eq)
	}
	return result, int64(len(result)), nil
}

func (m *mockEquipmentRepo) Update(_ context.Context, eq *model.Equipment) error {
	m.equipment[eq.EquipmentID] = eq
	return nil
}

func (m *mockEquipmentRepo) Delete(_ context.Context, id string, _ string) error {
	delete(m.equipment, id)
	return nil
}

// ── Mock ReservationRepository ──
// 内存版复刻仓储语义：半开区间重叠判定 + 写前复查

type mockReservationRepo struct {
	reservations map[string]*model.Reservation
	maintenance  *mockMaintenanceRepo // 共用维护窗口做冲突判定
	seq          int
}

func newMockReservationRepo(maintenance *mockMaintenanceRepo) *mockReservationRepo {
	return &mockReservationRepo{
		reservations: make(map[string]*model.Reservation),
		maintenance:  maintenance,
	}
}

func (m *mockReservationRepo) findOverlap(equipmentID string, start, end time.Time, excludeID string) *model.Reservation {
	for _, r := range m.reservations {
		if r.EquipmentID != equipmentID || r.ReservationID == excludeID || !r.Blocking() {
			continue
		}
		if start.Before(r.EndTime) && r.StartTime.Before(end) {
			return r
		}
	}
	return nil
}

func (m *mockReservationRepo) maintenanceBusy(equipmentID string, start, end time.Time) bool {
	if m.maintenance == nil {
		return false
	}
	for _, ms := range m.maintenance.schedules {
		if ms.EquipmentID != equipmentID || !ms.Blocking() {
			continue
		}
		if start.Before(ms.EndTime()) && ms.ScheduledAt.Before(end) {
			return true
		}
	}
	return false
}

func (m *mockReservationRepo) GetByID(_ context.Context, id string) (*model.Reservation, error) {
	if r, ok := m.reservations[id]; ok {
		return r, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockReservationRepo) List(_ context.Context, f repository.ReservationFilter) ([]model.Reservation, int64, error) {
	var result []model.Reservation
	for _, r := range m.reservations {
		if f.EquipmentID != "" && r.EquipmentID != f.EquipmentID {
			continue
		}
		if f.UserID != "" && r.UserID != f.UserID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		result = append(result, *r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime.Before(result[j].StartTime) })
	return result, int64(len(result)), nil
}

func (m *mockReservationRepo) FindBlocking(_ context.Context, equipmentID string) ([]model.Reservation, error) {
	var result []model.Reservation
	for _, r := range m.reservations {
		if r.EquipmentID == equipmentID && r.Blocking() {
			result = append(result, *r)
		}
	}
	return result, nil
}

func (m *mockReservationRepo) FindBlockingInRange(_ context.Context, equipmentID string, from, to time.Time) ([]model.Reservation, error) {
	var result []model.Reservation
	for _, r := range m.reservations {
		if r.EquipmentID != equipmentID || !r.Blocking() {
			continue
		}
		if from.Before(r.EndTime) && r.StartTime.Before(to) {
			result = append(result, *r)
		}
	}
	return result, nil
}

func (m *mockReservationRepo) CreateIfFree(_ context.Context, res *model.Reservation) (*model.Reservation, error) {
	if hit := m.findOverlap(res.EquipmentID, res.StartTime, res.EndTime, ""); hit != nil {
		return hit, repository.ErrTimeConflict
	}
	if m.maintenanceBusy(res.EquipmentID, res.StartTime, res.EndTime) {
		return nil, repository.ErrTimeConflict
	}
	if res.ReservationID == "" {
		m.seq++
		res.ReservationID = fmt.Sprintf("res-%d", m.seq)
	}
	m.reservations[res.ReservationID] = res
	return nil, nil
}

func (m *mockReservationRepo) ApproveIfFree(_ context.Context, id, approverID string) (*model.Reservation, *model.Reservation, error) {
	res, ok := m.reservations[id]
	if !ok {
		return nil, nil, gorm.ErrRecordNotFound
	}

	if hit := m.findOverlap(res.EquipmentID, res.StartTime, res.EndTime, res.ReservationID); hit != nil {
		res.Status = model.ReservationRejected
		res.SystemNote = "审批时段已被其他预约占用，系统自动驳回"
		return res, hit, repository.ErrTimeConflict
	}
	if m.maintenanceBusy(res.EquipmentID, res.StartTime, res.EndTime) {
		res.Status = model.ReservationRejected
		res.SystemNote = "审批时段与维护窗口冲突，系统自动驳回"
		return res, nil, repository.ErrTimeConflict
	}

	now := time.Now()
	res.Status = model.ReservationApproved
	res.ApprovedBy = &approverID
	res.ApprovedAt = &now
	return res, nil, nil
}

func (m *mockReservationRepo) RescheduleIfFree(_ context.Context, res *model.Reservation, newStart, newEnd time.Time) (*model.Reservation, error) {
	if hit := m.findOverlap(res.EquipmentID, newStart, newEnd, res.ReservationID); hit != nil {
		return hit, repository.ErrTimeConflict
	}
	if m.maintenanceBusy(res.EquipmentID, newStart, newEnd) {
		return nil, repository.ErrTimeConflict
	}
	res.StartTime = newStart
	res.EndTime = newEnd
	m.reservations[res.ReservationID] = res
	return nil, nil
}

func (m *mockReservationRepo) Update(_ context.Context, res *model.Reservation) error {
	m.reservations[res.ReservationID] = res
	return nil
}

// ── Mock BorrowingRepository ──

type mockBorrowingRepo struct {
	transactions map[string]*model.BorrowingTransaction
	seq          int
}

func newMockBorrowingRepo() *mockBorrowingRepo {
	return &mockBorrowingRepo{transactions: make(map[string]*model.BorrowingTransaction)}
}

func (m *mockBorrowingRepo) Create(_ context.Context, txn *model.BorrowingTransaction) error {
	if txn.TransactionID == "" {
		m.seq++
		txn.TransactionID = fmt.Sprintf("txn-%d", m.seq)
	}
	m.transactions[txn.TransactionID] = txn
	return nil
}

func (m *mockBorrowingRepo) GetByID(_ context.Context, id string) (*model.BorrowingTransaction, error) {
	if t, ok := m.transactions[id]; ok {
		return t, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockBorrowingRepo) List(_ context.Context, f repository.BorrowingFilter) ([]model.BorrowingTransaction, int64, error) {
	var result []model.BorrowingTransaction
	for _, t := range m.transactions {
		if f.EquipmentID != "" && t.EquipmentID != f.EquipmentID {
			continue
		}
		if f.UserID != "" && t.UserID != f.UserID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		result = append(result, *t)
	}
	return result, int64(len(result)), nil
}

func (m *mockBorrowingRepo) CountOutstandingByUser(_ context.Context, userID string) (int64, error) {
	var n int64
	for _, t := range m.transactions {
		if t.UserID == userID && t.Outstanding() {
			n++
		}
	}
	return n, nil
}

func (m *mockBorrowingRepo) FindOutstandingByEquipment(_ context.Context, equipmentID string) (*model.BorrowingTransaction, error) {
	for _, t := range m.transactions {
		if t.EquipmentID == equipmentID && t.Outstanding() {
			return t, nil
		}
	}
	return nil, nil
}

func (m *mockBorrowingRepo) Activate(_ context.Context, id, approverID string) (*model.BorrowingTransaction, error) {
	txn, ok := m.transactions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	for _, t := range m.transactions {
		if t.EquipmentID == txn.EquipmentID && t.Outstanding() {
			return nil, repository.ErrEquipmentBusy
		}
	}
	txn.Status = model.BorrowingActive
	txn.UpdatedBy = &approverID
	return txn, nil
}

func (m *mockBorrowingRepo) Return(_ context.Context, id string, returnedAt time.Time, penalty int64) (*model.BorrowingTransaction, error) {
	txn, ok := m.transactions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if txn.ActualReturnDate != nil {
		return nil, repository.ErrAlreadyReturned
	}
	txn.ActualReturnDate = &returnedAt
	txn.Status = model.BorrowingReturned
	txn.PenaltyAmount = penalty
	return txn, nil
}

func (m *mockBorrowingRepo) Update(_ context.Context, txn *model.BorrowingTransaction) error {
	m.transactions[txn.TransactionID] = txn
	return nil
}

func (m *mockBorrowingRepo) MarkOverdue(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for _, t := range m.transactions {
		if t.Status == model.BorrowingActive && t.ActualReturnDate == nil && t.ExpectedReturnDate.Before(now) {
			t.Status = model.BorrowingOverdue
			n++
		}
	}
	return n, nil
}

// ── Mock MaintenanceRepository ──

type mockMaintenanceRepo struct {
	schedules    map[string]*model.MaintenanceSchedule
	reservations *mockReservationRepo // 共用预约做冲突判定
	seq          int
}

func newMockMaintenanceRepo() *mockMaintenanceRepo {
	return &mockMaintenanceRepo{schedules: make(map[string]*model.MaintenanceSchedule)}
}

func (m *mockMaintenanceRepo) CreateIfFree(_ context.Context, ms *model.MaintenanceSchedule) (*model.Reservation, error) {
	if m.reservations != nil {
		if hit := m.reservations.findOverlap(ms.EquipmentID, ms.ScheduledAt, ms.EndTime(), ""); hit != nil {
			return hit, repository.ErrTimeConflict
		}
	}
	if ms.MaintenanceID == "" {
		m.seq++
		ms.MaintenanceID = fmt.Sprintf("mnt-%d", m.seq)
	}
	m.schedules[ms.MaintenanceID] = ms
	return nil, nil
}

func (m *mockMaintenanceRepo) GetByID(_ context.Context, id string) (*model.MaintenanceSchedule, error) {
	if ms, ok := m.schedules[id]; ok {
		return ms, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockMaintenanceRepo) List(_ context.Context, equipmentID, status string, _, _ int) ([]model.MaintenanceSchedule, int64, error) {
	var result []model.MaintenanceSchedule
	for _, ms := range m.schedules {
		if equipmentID != "" && ms.EquipmentID != equipmentID {
			continue
		}
		if status != "" && ms.Status != status {
			continue
		}
		result = append(result, *ms)
	}
	return result, int64(len(result)), nil
}

func (m *mockMaintenanceRepo) FindBlocking(_ context.Context, equipmentID string) ([]model.MaintenanceSchedule, error) {
	var result []model.MaintenanceSchedule
	for _, ms := range m.schedules {
		if ms.EquipmentID == equipmentID && ms.Blocking() {
			result = append(result, *ms)
		}
	}
	return result, nil
}

func (m *mockMaintenanceRepo) Update(_ context.Context, ms *model.MaintenanceSchedule) error {
	m.schedules[ms.MaintenanceID] = ms
	return nil
}

// ── Mock WaitlistRepository ──

type mockWaitlistRepo struct {
	entries map[string]*model.WaitlistEntry
	seq     int
}

func newMockWaitlistRepo() *mockWaitlistRepo {
	return &mockWaitlistRepo{entries: make(map[string]*model.WaitlistEntry)}
}

func (m *mockWaitlistRepo) Create(_ context.Context, entry *model.WaitlistEntry) error {
	if entry.EntryID == "" {
		m.seq++
		entry.EntryID = fmt.Sprintf("wl-%d", m.seq)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	m.entries[entry.EntryID] = entry
	return nil
}

func (m *mockWaitlistRepo) GetByID(_ context.Context, id string) (*model.WaitlistEntry, error) {
	if e, ok := m.entries[id]; ok {
		return e, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockWaitlistRepo) FindDuplicate(_ context.Context, equipmentID, userID string, start, end time.Time) (*model.WaitlistEntry, error) {
	for _, e := range m.entries {
		if e.EquipmentID == equipmentID && e.UserID == userID &&
			e.RequestedStartTime.Equal(start) && e.RequestedEndTime.Equal(end) &&
			e.NotifiedAt == nil {
			return e, nil
		}
	}
	return nil, nil
}

func (m *mockWaitlistRepo) List(_ context.Context, equipmentID, userID string) ([]model.WaitlistEntry, error) {
	var result []model.WaitlistEntry
	for _, e := range m.entries {
		if equipmentID != "" && e.EquipmentID != equipmentID {
			continue
		}
		if userID != "" && e.UserID != userID {
			continue
		}
		result = append(result, *e)
	}
	sortWaitlist(result)
	return result, nil
}

func (m *mockWaitlistRepo) ListPendingOrdered(_ context.Context, equipmentID string) ([]model.WaitlistEntry, error) {
	var result []model.WaitlistEntry
	for _, e := range m.entries {
		if e.EquipmentID == equipmentID && e.NotifiedAt == nil {
			result = append(result, *e)
		}
	}
	sortWaitlist(result)
	return result, nil
}

// sortWaitlist 按晋升顺序排序：priority DESC, created_at ASC
func sortWaitlist(entries []model.WaitlistEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority > entries[j].Priority
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}

func (m *mockWaitlistRepo) MarkNotified(_ context.Context, id string, at time.Time) error {
	if e, ok := m.entries[id]; ok {
		e.NotifiedAt = &at
		return nil
	}
	return gorm.ErrRecordNotFound
}

func (m *mockWaitlistRepo) Delete(_ context.Context, id string) error {
	delete(m.entries, id)
	return nil
}

func (m *mockWaitlistRepo) DeleteByEquipmentUser(_ context.Context, equipmentID, userID string) (int64, error) {
	var n int64
	for id, e := range m.entries {
		if e.EquipmentID == equipmentID && e.UserID == userID {
			delete(m.entries, id)
			n++
		}
	}
	return n, nil
}

func (m *mockWaitlistRepo) PurgeNotifiedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var n int64
	for id, e := range m.entries {
		if e.NotifiedAt != nil && e.NotifiedAt.Before(cutoff) {
			delete(m.entries, id)
			n++
		}
	}
	return n, nil
}

// ── Mock NotificationRepository ──

type mockNotificationRepo struct {
	notifications []*model.Notification
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{}
}

func (m *mockNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	if n.NotificationID == "" {
		n.NotificationID = fmt.Sprintf("ntf-%d", len(m.notifications)+1)
	}
	m.notifications = append(m.notifications, n)
	return nil
}

func (m *mockNotificationRepo) ListByUser(_ context.Context, userID string, unreadOnly bool, _, _ int) ([]model.Notification, int64, error) {
	var result []model.Notification
	for _, n := range m.notifications {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		result = append(result, *n)
	}
	return result, int64(len(result)), nil
}

func (m *mockNotificationRepo) MarkRead(_ context.Context, id, userID string) error {
	for _, n := range m.notifications {
		if n.NotificationID == id && n.UserID == userID {
			n.IsRead = true
		}
	}
	return nil
}

// ── Mock WaitlistHoldStore ──

type mockHoldStore struct {
	holds map[string]bool
}

func newMockHoldStore() *mockHoldStore {
	return &mockHoldStore{holds: make(map[string]bool)}
}

func (m *mockHoldStore) MarkWaitlistHold(_ context.Context, entryID string, _ time.Duration) error {
	m.holds[entryID] = true
	return nil
}

func (m *mockHoldStore) HasWaitlistHold(_ context.Context, entryID string) (bool, error) {
	return m.holds[entryID], nil
}

// ── 测试用聚合 ──

type testRepos struct {
	user         *mockUserRepo
	category     *mockCategoryRepo
	equipment    *mockEquipmentRepo
	reservation  *mockReservationRepo
	borrowing    *mockBorrowingRepo
	maintenance  *mockMaintenanceRepo
	waitlist     *mockWaitlistRepo
	notification *mockNotificationRepo
}

func newTestRepos() *testRepos {
	maintenance := newMockMaintenanceRepo()
	reservation := newMockReservationRepo(maintenance)
	maintenance.reservations = reservation
	return &testRepos{
		user:         newMockUserRepo(),
		category:     newMockCategoryRepo(),
		equipment:    newMockEquipmentRepo(),
		reservation:  reservation,
		borrowing:    newMockBorrowingRepo(),
		maintenance:  maintenance,
		waitlist:     newMockWaitlistRepo(),
		notification: newMockNotificationRepo(),
	}
}

func (r *testRepos) toRepository() *repository.Repository {
	return &repository.Repository{
		User:         r.user,
		Category:     r.category,
		Equipment:    r.equipment,
		Reservation:  r.reservation,
		Borrowing:    r.borrowing,
		Maintenance:  r.maintenance,
		Waitlist:     r.waitlist,
		Notification: r.notification,
	}
}
