package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/tonauth/service"
)

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, logger *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))

	// Create handlers
	handlers := NewAuthHandlers(authService, logger)

	router.GET("/healthz", handlers.Health)

	api := router.Group("/api")
	{
		api.POST("/generate_payload", handlers.GeneratePayload)
		api.POST("/check_proof", handlers.CheckProof)
		api.POST("/check_sign_data", handlers.CheckSignData)
	}

	// Protected API routes
	protected := api.Group("")
	protected.Use(AuthMiddleware(authService))
	{
		protected.GET("/get_account_info", handlers.AccountInfo)
		protected.POST("/logout", handlers.Logout)
	}

	return router
}
