package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/mantay/busbooking/config/db"
	"github.com/mantay/busbooking/controllers/admin_controller"
	middleware "github.com/mantay/busbooking/middlewares"
	"github.com/mantay/busbooking/middlewares/auth"
)

// RegisterAdminRoutes registers the back-office dashboard, listings and
// analytics.
func RegisterAdminRoutes(router *gin.Engine) {
	ac := admin_controller.NewAdminController(db.DB)

	admin := router.Group("/api/admin")
	admin.Use(auth.AuthMiddleware(), auth.RequireAdmin())
	{
		admin.GET("/dashboard",
			middleware.NewRateLimiter("30-1m", "admin-dashboard"),
			ac.GetDashboard)

		admin.GET("/bookings",
			middleware.NewRateLimiter("30-1m", "admin-bookings"),
			ac.ListBookings)
		admin.PATCH("/bookings/:booking_id/status",
			middleware.NewRateLimiter("20-1m", "admin-booking-status"),
			ac.UpdateBookingStatus)
		admin.GET("/bookings/stats",
			middleware.NewRateLimiter("20-1m", "admin-booking-stats"),
			ac.GetBookingStats)

		admin.GET("/analytics/bookings",
			middleware.NewRateLimiter("10-1m", "admin-booking-analytics"),
			ac.GetBookingAnalytics)
		admin.GET("/analytics/revenue",
			middleware.NewRateLimiter("10-1m", "admin-revenue-analytics"),
			ac.GetRevenueAnalytics)
		admin.GET("/analytics/buses",
			middleware.NewRateLimiter("10-1m", "admin-bus-analytics"),
			ac.GetBusAnalytics)
		admin.GET("/analytics/users",
			middleware.NewRateLimiter("10-1m", "admin-user-analytics"),
			ac.GetUserAnalytics)

		admin.GET("/users",
			middleware.NewRateLimiter("20-1m", "admin-users"),
			ac.ListUsers)
		admin.PATCH("/users/:user_id/role",
			middleware.NewRateLimiter("10-1m", "admin-user-role"),
			ac.UpdateUserRole)
		admin.PATCH("/users/:user_id/status",
			middleware.NewRateLimiter("10-1m", "admin-user-status"),
			ac.UpdateUserStatus)
	}
}
