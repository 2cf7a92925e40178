package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"habittracker/internal/handler"
	"habittracker/pkg/trace"
)

// Pinger 就绪检查依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps 路由依赖
type Deps struct {
	AuthHandler    *handler.AuthHandler
	HabitHandler   *handler.HabitHandler
	Authenticator  Authenticator
	Storage        Pinger
	Broker         interface{ IsConnected() bool } // 可为 nil
	AllowedOrigins []string
	Logger         *zap.Logger
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(TraceMiddleware())
	r.Use(RequestLogMiddleware(deps.Logger))
	r.Use(cors.New(corsConfig(deps.AllowedOrigins)))

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		if err := deps.Storage.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}

		if deps.Broker != nil && !deps.Broker.IsConnected() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "mq_not_ready"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public
	r.POST("/users/register", deps.AuthHandler.Register)
	r.POST("/users/login", deps.AuthHandler.Login)
	r.GET("/habits/public", deps.HabitHandler.ListPublic)

	// 以下路由解析 Actor，是否允许由访问策略决定
	api := r.Group("/")
	api.Use(AuthMiddleware(deps.Authenticator))
	{
		api.GET("/users/me", deps.AuthHandler.Me)

		api.GET("/habits", deps.HabitHandler.List)
		api.POST("/habits", deps.HabitHandler.Create)
		api.GET("/habits/:id", deps.HabitHandler.Retrieve)
		api.PUT("/habits/:id", deps.HabitHandler.Update)
		api.PATCH("/habits/:id", deps.HabitHandler.PartialUpdate)
		api.DELETE("/habits/:id", deps.HabitHandler.Destroy)
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", handler.IdempotencyHeader, trace.HeaderName},
		ExposeHeaders:    []string{trace.HeaderName},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
