package api

import (
	"joborchestrator/internal/auth"
	"joborchestrator/pkg/logger"
	"joborchestrator/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin.Engine exposing spec.md §6.1's endpoint surface
// plus SPEC_FULL.md §7's additive auth/profile/health routes. Grounded on
// the teacher's internal/api/router.go: same middleware order (recovery,
// structured logger, compression, CORS), same dev-mode origin-echo CORS
// policy, same split between JWT-only account routes and either-credential
// everything-else routes — generalized from the teacher's /api/v1
// versioned tree to the version-less paths spec.md §6.1 names literally.
func NewRouter(h *Handler, authService *auth.Service) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	logger.SetGinOutput()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinLogger())
	router.Use(middleware.CompressionMiddleware())
	router.Use(corsMiddleware())

	router.GET("/health", h.HealthCheck)

	authRoutes := router.Group("/api/auth")
	{
		authRoutes.POST("/login", h.Login)
	}

	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(authService, h.authStore))
	{
		api.POST("/upload", h.Upload)
		api.POST("/create-job", h.CreateJob)
		api.POST("/start", h.Start)
		api.POST("/cancel/:id", h.Cancel)
		api.POST("/pause/:id", h.Pause)
		api.POST("/resume/:id", h.Resume)
		api.POST("/prioritize/:id", h.Prioritize)
		api.POST("/reorder-queue", h.ReorderQueue)

		api.GET("/status/:id", h.Status)
		api.GET("/queue-status", h.QueueStatus)
		api.GET("/sync-tasks", h.SyncTasks)

		api.GET("/stream/:id", h.StreamJob)
		api.GET("/events/global", h.StreamGlobal)

		api.GET("/media/:id/video", h.MediaVideo)
		api.GET("/media/:id/audio", h.MediaAudio)
		api.GET("/media/:id/thumbnail", h.MediaThumbnail)
		api.GET("/media/:id/peaks", h.MediaPeaks)
		api.GET("/media/:id/srt", h.GetSRT)
		api.POST("/media/:id/srt", h.PutSRT)
		api.POST("/copy-result/:id", h.CopyResult)

		api.PUT("/jobs/:id/title", h.UpdateJobTitle)

		api.GET("/profiles", h.ListProfiles)
		api.POST("/profiles", h.SaveProfile)
	}

	apiKeyRoutes := router.Group("/api/api-keys")
	apiKeyRoutes.Use(middleware.JWTOnlyMiddleware(authService))
	{
		apiKeyRoutes.GET("", h.ListAPIKeys)
		apiKeyRoutes.POST("", h.CreateAPIKey)
		apiKeyRoutes.DELETE("/:id", h.DeleteAPIKey)
	}

	return router
}

// corsMiddleware mirrors the teacher's dev-mode origin-echo CORS policy:
// this orchestrator has no notion of a configured production origin
// allowlist, so it always echoes the requesting Origin back (required for
// credentialed requests) rather than a bare "*".
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
