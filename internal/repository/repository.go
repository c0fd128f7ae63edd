package repository

import "gorm.io/gorm"

// Repository 所有 Repository 的聚合入口
type Repository struct {
	User         UserRepository
	Category     CategoryRepository
	Equipment    EquipmentRepository
	Reservation  ReservationRepository
	Borrowing    BorrowingRepository
	Maintenance  MaintenanceRepository
	Waitlist     WaitlistRepository
	Notification NotificationRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		User:         NewUserRepo(db),
		Category:     NewCategoryRepo(db),
		Equipment:    NewEquipmentRepo(db),
		Reservation:  NewReservationRepo(db),
		Borrowing:    NewBorrowingRepo(db),
		Maintenance:  NewMaintenanceRepo(db),
		Waitlist:     NewWaitlistRepo(db),
		Notification: NewNotificationRepo(db),
	}
}
