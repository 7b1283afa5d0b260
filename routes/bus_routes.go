package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/mantay/busbooking/config/db"
	"github.com/mantay/busbooking/controllers/bus_controller"
	middleware "github.com/mantay/busbooking/middlewares"
	"github.com/mantay/busbooking/middlewares/auth"
)

// RegisterBusRoutes registers public route search and admin fleet management.
func RegisterBusRoutes(router *gin.Engine) {
	bc := bus_controller.NewBusController(db.DB)

	public := router.Group("/api/buses")
	{
		public.GET("/search",
			middleware.NewRateLimiter("30-1m", "bus-search"),
			bc.SearchBuses)
		public.GET("/popular-routes",
			middleware.NewRateLimiter("30-1m", "popular-routes"),
			bc.GetPopularRoutes)
		public.GET("/:bus_id",
			middleware.NewRateLimiter("60-1m", "bus-detail"),
			bc.GetBus)
	}

	admin := router.Group("/api/admin/buses")
	admin.Use(auth.AuthMiddleware(), auth.RequireAdmin())
	{
		admin.POST("",
			middleware.NewRateLimiter("20-1m", "bus-create"),
			bc.CreateBus)
		admin.PUT("/:bus_id",
			middleware.NewRateLimiter("20-1m", "bus-update"),
			bc.UpdateBus)
		admin.DELETE("/:bus_id",
			middleware.NewRateLimiter("10-1m", "bus-delete"),
			bc.DeleteBus)
	}
}
