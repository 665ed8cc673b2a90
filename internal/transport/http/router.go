package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/blessen010/EmailThing/internal/auth"
	jwtpkg "github.com/blessen010/EmailThing/internal/auth/jwt"
	"github.com/blessen010/EmailThing/internal/config"
	"github.com/blessen010/EmailThing/internal/health"
	"github.com/blessen010/EmailThing/internal/middleware"
	"github.com/blessen010/EmailThing/internal/monitoring"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config      *config.Config
	AuthService *auth.Service
	JWTManager  *jwtpkg.Manager
	Health      *health.Checker
	Metrics     *monitoring.Metrics
	Logger      *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	router := gin.New()

	// 使用自定义中间件替代默认中间件
	router.Use(middleware.RecoveryHandler(deps.Logger, deps.Metrics))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))

	if deps.Metrics != nil {
		router.Use(middleware.HTTPMetrics(deps.Metrics))
	}

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Referer"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	authHandler := NewAuthHandler(deps.AuthService, deps.JWTManager, deps.Logger)

	// 健康检查
	if deps.Health != nil {
		router.GET("/healthz/live", gin.WrapF(deps.Health.LiveHandler()))
		router.GET("/healthz/ready", gin.WrapF(deps.Health.ReadyHandler()))
	}

	// Prometheus 指标
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	// 注册表单的提交端点，路径与前端页面保持一致
	router.POST("/register", authHandler.Signup)

	// V1 API
	v1 := router.Group("/v1")
	{
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/signup", authHandler.Signup)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.GET("/me", AuthMiddleware(deps.JWTManager), authHandler.Me)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, Response{
			Code: http.StatusNotFound,
			Msg:  "not found",
		})
	})

	return router
}
