package handler

import "labkeeper/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth         *AuthHandler
	User         *UserHandler
	Category     *CategoryHandler
	Equipment    *EquipmentHandler
	Reservation  *ReservationHandler
	Borrowing    *BorrowingHandler
	Waitlist     *WaitlistHandler
	Maintenance  *MaintenanceHandler
	Notification *NotificationHandler
	Export       *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:         NewAuthHandler(svc.Auth),
		User:         NewUserHandler(svc.User),
		Category:     NewCategoryHandler(svc.Category),
		Equipment:    NewEquipmentHandler(svc.Equipment, svc.Availability),
		Reservation:  NewReservationHandler(svc.Reservation),
		Borrowing:    NewBorrowingHandler(svc.Borrowing),
		Waitlist:     NewWaitlistHandler(svc.Waitlist),
		Maintenance:  NewMaintenanceHandler(svc.Maintenance),
		Notification: NewNotificationHandler(svc.Notification),
		Export:       NewExportHandler(svc.Export),
	}
}
