package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/pollpass/vigil/service"
)

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, logger *slog.Logger, opts ...HandlerOption) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger))

	guardCfg := DefaultGuardConfig()
	handlers := NewAuthHandlers(authService, logger, guardCfg.SignInPath, opts...)

	router.Use(RouteGuard(authService, guardCfg, logger))

	router.GET("/healthz", handlers.Healthz)

	// Auth routes (public, rate limited)
	auth := router.Group("/auth")
	auth.Use(RateLimit(AuthRateLimit))
	{
		auth.GET("/nonce", handlers.Nonce)
		auth.POST("/complete-siwe", handlers.CompleteSIWE)
		auth.GET("/session", handlers.SessionStatus)
		auth.POST("/session", handlers.CreateSession)
		auth.POST("/verify", handlers.VerifyProof)
		auth.GET("/logout", handlers.Logout)
		auth.POST("/logout", handlers.Logout)
	}

	// Protected API routes; the route guard injects identity headers
	api := router.Group("/api")
	{
		api.GET("/me", handlers.Me)
	}

	return router
}
