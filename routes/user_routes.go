package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/mantay/busbooking/config/db"
	"github.com/mantay/busbooking/controllers/user_controller"
	middleware "github.com/mantay/busbooking/middlewares"
	"github.com/mantay/busbooking/middlewares/auth"
)

// RegisterUserRoutes registers registration, login and profile routes.
func RegisterUserRoutes(router *gin.Engine) {
	uc := user_controller.NewUserController(db.DB)

	api := router.Group("/api/auth")
	{
		api.POST("/register",
			middleware.NewRateLimiter("5-1m", "register"),
			uc.Register)
		api.POST("/login",
			middleware.NewRateLimiter("10-1m", "login"),
			uc.Login)
	}

	protected := router.Group("/api/users")
	protected.Use(auth.AuthMiddleware())
	{
		protected.GET("/me",
			middleware.NewRateLimiter("30-1m", "profile"),
			uc.GetProfile)
	}
}
