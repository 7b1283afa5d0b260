package routes

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/mantay/busbooking/clients"
	"github.com/mantay/busbooking/config/db"
	"github.com/mantay/busbooking/config/redis"
	"github.com/mantay/busbooking/controllers/booking_controller"
	"github.com/mantay/busbooking/controllers/payment_controller"
	"github.com/mantay/busbooking/logger"
	middleware "github.com/mantay/busbooking/middlewares"
	"github.com/mantay/busbooking/middlewares/auth"
)

// RegisterPaymentRoutes registers the payment flow and the gateway webhook.
func RegisterPaymentRoutes(router *gin.Engine) {
	waafiClient := clients.NewWaafiClient(
		os.Getenv("WAAFI_MERCHANT_UID"),
		os.Getenv("WAAFI_API_USER_ID"),
		os.Getenv("WAAFI_API_KEY"),
		os.Getenv("WAAFI_WEBHOOK_SECRET"),
		os.Getenv("WAAFI_API_URL"),
	)

	redisClient, err := redis.GetRedisClient(context.Background())
	if err != nil {
		logger.ErrorLogger.Errorf("Redis unavailable for payment routes: %v", err)
	}

	bookingService := booking_controller.NewBookingService(db.DB, redisClient)
	paymentService := payment_controller.NewPaymentService(db.DB, redisClient, waafiClient, bookingService)
	pc := &payment_controller.PaymentController{Service: paymentService}

	// Webhook is authenticated by its HMAC signature, not a bearer token.
	router.POST("/api/payments/webhook", pc.HandleWaafiWebhook)

	protected := router.Group("/api/payments")
	protected.Use(auth.AuthMiddleware())
	{
		protected.POST("/process",
			middleware.CombinedRateLimiter("payment-process", "3-1m", "15-10m"),
			pc.ProcessPayment)

		protected.GET("/bookings/:booking_id/transactions",
			middleware.NewRateLimiter("20-1m", "payment-transactions"),
			pc.GetBookingTransactions)
	}
}
