package service

import (
	"go.uber.org/zap"

	"labkeeper/config"
	"labkeeper/internal/repository"
	"labkeeper/pkg/jwt"
	"labkeeper/pkg/redis"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth         AuthService
	User         UserService
	Category     CategoryService
	Equipment    EquipmentService
	Availability AvailabilityService
	Reservation  ReservationService
	Borrowing    BorrowingService
	Waitlist     WaitlistService
	Maintenance  MaintenanceService
	Notification NotificationService
	Export       ExportService
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	rdb *redis.Client,
	logger *zap.Logger,
) *Service {
	notification := NewNotificationService(repo, logger)
	availability := NewAvailabilityService(repo, logger)
	waitlist := NewWaitlistService(&cfg.Borrow, repo, availability, notification, rdb, logger)

	return &Service{
		Auth:         NewAuthService(cfg, repo, jwtMgr, rdb, logger),
		User:         NewUserService(repo, logger),
		Category:     NewCategoryService(repo, logger),
		Equipment:    NewEquipmentService(cfg, repo, logger),
		Availability: availability,
		Reservation:  NewReservationService(repo, availability, waitlist, notification, logger),
		Borrowing:    NewBorrowingService(&cfg.Borrow, repo, notification, logger),
		Waitlist:     waitlist,
		Maintenance:  NewMaintenanceService(repo, availability, logger),
		Notification: notification,
		Export:       NewExportService(&cfg.Borrow, repo, logger),
	}
}
