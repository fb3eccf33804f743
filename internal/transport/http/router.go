package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"warp-quiz-server/internal/app"
)

// NewRouter assembles the LAN-facing HTTP surface: login, the admin
// dashboard API, the participant status view, and the quiz websocket.
func NewRouter(svc *app.QuizService, tokens *TokenService, creds RoleCredentials, archive BankArchiver, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.String(200, "ok")
	})
	router.POST("/api/login", loginHandler(tokens, creds))

	adminHandler := NewAdminHandler(svc, archive, logger)
	wsHandler := NewWSHandler(svc, tokens, logger)

	router.GET("/api/quiz", requireRole(tokens, RoleAdmin, RoleParticipant), adminHandler.Status)
	router.GET("/ws", wsHandler.ServeWS)

	admin := router.Group("/api/admin", requireRole(tokens, RoleAdmin))
	{
		admin.POST("/bank", adminHandler.UploadBank)
		admin.GET("/bank", adminHandler.Bank)
		admin.DELETE("/bank", adminHandler.RemoveBank)
		admin.PUT("/config", adminHandler.UpdateConfig)
		admin.POST("/start", adminHandler.Start)
		admin.POST("/reset", adminHandler.Reset)
		admin.GET("/leaderboard", adminHandler.Leaderboard)
		admin.GET("/leaderboard/export", adminHandler.ExportLeaderboard)
	}

	return router
}

// requestLogger is a zap-based request logging middleware.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		logger.Info("request",
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("method", method),
			zap.String("path", path),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
