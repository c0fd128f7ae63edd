package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"labkeeper/config"
	"labkeeper/internal/api/handler"
	"labkeeper/internal/api/middleware"
	"labkeeper/pkg/jwt"
	"labkeeper/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(1 << 20))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证，登录与注册带限流）
		auth := v1.Group("/auth")
		{
			auth.POST("/login", middleware.RateLimit(rdb, 10, time.Minute), h.Auth.Login)
			auth.POST("/register", middleware.RateLimit(rdb, 5, time.Minute), h.Auth.Register)
			auth.POST("/refresh", h.Auth.RefreshToken)
		}

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, rdb))
		{
			// 认证模块（需要认证）
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.PUT("/auth/password", h.Auth.ChangePassword)

			// 用户模块
			users := authorized.Group("/users")
			{
				users.GET("/me", h.User.GetCurrentUser)
				users.GET("", middleware.RoleAuth("admin"), h.User.ListUsers)
				users.PUT("/:id", h.User.UpdateUser) // admin 或本人（Service 层鉴权）
				users.PUT("/:id/role", middleware.RoleAuth("admin"), h.User.AssignRole)
				users.DELETE("/:id", middleware.RoleAuth("admin"), h.User.DeleteUser)
			}

			// 器材分类模块
			categories := authorized.Group("/categories")
			{
				categories.GET("", h.Category.ListCategories)
				categories.POST("", middleware.RoleAuth("staff", "admin"), h.Category.CreateCategory)
				categories.PUT("/:id", middleware.RoleAuth("staff", "admin"), h.Category.UpdateCategory)
				categories.DELETE("/:id", middleware.RoleAuth("staff", "admin"), h.Category.DeleteCategory)
			}

			// 设备模块
			equipment := authorized.Group("/equipment")
			{
				equipment.GET("", h.Equipment.ListEquipment)
				equipment.GET("/:id", h.Equipment.GetEquipment)
				equipment.GET("/:id/availability", h.Equipment.GetAvailability)
				equipment.GET("/:id/status", h.Equipment.GetStatus)
				equipment.GET("/:id/qrcode", h.Equipment.GetQRCode)
				equipment.POST("", middleware.RoleAuth("staff", "admin"), h.Equipment.CreateEquipment)
				equipment.PUT("/:id", middleware.RoleAuth("staff", "admin"), h.Equipment.UpdateEquipment)
				equipment.DELETE("/:id", middleware.RoleAuth("staff", "admin"), h.Equipment.DeleteEquipment)
			}

			// 预约模块
			reservations := authorized.Group("/reservations")
			{
				reservations.POST("", h.Reservation.CreateReservation)
				reservations.GET("", h.Reservation.ListReservations)
				reservations.GET("/:id", h.Reservation.GetReservation)
				reservations.PUT("/:id", h.Reservation.UpdateReservation)
				reservations.POST("/:id/cancel", h.Reservation.CancelReservation)
				reservations.POST("/:id/approve", middleware.RoleAuth("staff", "admin"), h.Reservation.ApproveReservation)
				reservations.POST("/:id/reject", middleware.RoleAuth("staff", "admin"), h.Reservation.RejectReservation)
				reservations.POST("/:id/complete", middleware.RoleAuth("staff", "admin"), h.Reservation.CompleteReservation)
			}

			// 借用模块
			borrowings := authorized.Group("/borrowings")
			{
				borrowings.POST("", h.Borrowing.CreateBorrowing)
				borrowings.GET("", h.Borrowing.ListBorrowings)
				borrowings.GET("/:id", h.Borrowing.GetBorrowing)
				borrowings.POST("/:id/extend", h.Borrowing.ExtendBorrowing)
				borrowings.POST("/:id/cancel", h.Borrowing.CancelBorrowing)
				borrowings.POST("/:id/approve", middleware.RoleAuth("staff", "admin"), h.Borrowing.ApproveBorrowing)
				borrowings.POST("/:id/reject", middleware.RoleAuth("staff", "admin"), h.Borrowing.RejectBorrowing)
				borrowings.POST("/:id/return", middleware.RoleAuth("staff", "admin"), h.Borrowing.ReturnBorrowing)
			}

			// 候补模块
			waitlist := authorized.Group("/waitlist")
			{
				waitlist.POST("", h.Waitlist.Enqueue)
				waitlist.GET("", h.Waitlist.List)
				waitlist.DELETE("", h.Waitlist.RemoveByQuery)
				waitlist.DELETE("/:id", h.Waitlist.Remove)
			}

			// 维护计划模块
			maintenance := authorized.Group("/maintenance")
			{
				maintenance.GET("", h.Maintenance.ListMaintenance)
				maintenance.GET("/:id", h.Maintenance.GetMaintenance)
				maintenance.POST("", middleware.RoleAuth("staff", "admin"), h.Maintenance.CreateMaintenance)
				maintenance.PUT("/:id/status", middleware.RoleAuth("staff", "admin"), h.Maintenance.UpdateMaintenanceStatus)
			}

			// 通知模块
			notifications := authorized.Group("/notifications")
			{
				notifications.GET("", h.Notification.ListNotifications)
				notifications.PUT("/:id/read", h.Notification.MarkNotificationRead)
			}

			// 导出模块
			exports := authorized.Group("/exports")
			{
				exports.GET("/borrowings", middleware.RoleAuth("staff", "admin"), h.Export.ExportBorrowings)
			}
		}
	}

	return r
}
