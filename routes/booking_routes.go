package routes

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/mantay/busbooking/config/db"
	"github.com/mantay/busbooking/config/redis"
	"github.com/mantay/busbooking/controllers/booking_controller"
	"github.com/mantay/busbooking/logger"
	middleware "github.com/mantay/busbooking/middlewares"
	"github.com/mantay/busbooking/middlewares/auth"
)

// RegisterBookingRoutes registers the booking lifecycle routes.
func RegisterBookingRoutes(router *gin.Engine) {
	redisClient, err := redis.GetRedisClient(context.Background())
	if err != nil {
		logger.ErrorLogger.Errorf("Redis unavailable for booking routes: %v", err)
	}

	bookingService := booking_controller.NewBookingService(db.DB, redisClient)
	bc := &booking_controller.BookingController{Service: bookingService}

	protected := router.Group("/api/bookings")
	protected.Use(auth.AuthMiddleware())
	{
		protected.POST("",
			middleware.CombinedRateLimiter("booking-direct", "5-1m", "20-10m"),
			bc.CreateBooking)

		protected.POST("/temporary",
			middleware.CombinedRateLimiter("booking-create", "5-1m", "20-10m"),
			bc.CreateTemporaryBooking)
		protected.GET("/temporary/:booking_id",
			middleware.NewRateLimiter("30-1m", "get-temporary-booking"),
			bc.GetTemporaryBooking)

		protected.POST("/:booking_id/confirm",
			middleware.CombinedRateLimiter("confirm-booking", "5-1m", "20-10m"),
			bc.ConfirmBooking)

		protected.PUT("/:booking_id/payment",
			middleware.NewRateLimiter("10-1m", "booking-payment"),
			bc.UpdatePaymentStatus)

		protected.GET("/my-bookings",
			middleware.NewRateLimiter("20-1m", "my-bookings"),
			bc.GetMyBookings)

		protected.GET("/:booking_id",
			middleware.NewRateLimiter("30-1m", "get-booking"),
			bc.GetBooking)

		protected.PATCH("/:booking_id/cancel",
			middleware.CombinedRateLimiter("cancel-booking", "3-1m", "10-10m"),
			bc.CancelBooking)

		protected.DELETE("/:booking_id",
			middleware.NewRateLimiter("10-1m", "delete-booking"),
			bc.DeleteBooking)
	}
}
