package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/monocle-dev/keywatch/internal/handlers"
	"github.com/monocle-dev/keywatch/internal/middleware"
	"github.com/monocle-dev/keywatch/internal/repository"
	"github.com/monocle-dev/keywatch/internal/types"
)

type Config struct {
	AllowedOrigins []string
	JWTSecret      string
}

func NewRouter(config Config, h *handlers.Handler, users repository.UserRepository) *gin.Engine {
	r := gin.Default()

	origins := config.AllowedOrigins
	if len(origins) == 0 {
		origins = types.BuildAllowedOrigins("", "")
	}

	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	requireUser := middleware.AuthMiddleware(config.JWTSecret, users)

	api := r.Group("/api")
	{
		api.GET("/health", h.HealthCheck)
		api.GET("/ws", requireUser, h.WebSocket)
		api.GET("/notifications", requireUser, h.GetNotifications)

		monitors := api.Group("/monitors", requireUser)
		{
			monitors.GET("", h.GetMonitors)
			monitors.GET("/:monitor_id/checks", h.GetMonitorChecks)
			monitors.POST("/:monitor_id/check", h.RunMonitorCheck)
		}
	}

	return r
}
