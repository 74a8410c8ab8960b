package server

import (
	"context"
	"net/http"

	"vidrelay/app/config"
	"vidrelay/app/handler"
	"vidrelay/app/logger"
	"vidrelay/app/middleware"
	"vidrelay/app/service"
	"vidrelay/app/task"

	"github.com/gin-gonic/gin"
)

// Deps 管理接口依赖的服务
type Deps struct {
	Registry     *task.Registry
	Gate         *task.Gate
	Canceller    *service.Canceller
	SystemConfig *service.SystemConfigService
	Stats        *service.StatsService
	Users        *service.UserService
}

// Server 表示 HTTP 服务器
type Server struct {
	Config *config.Config
	Logger *logger.Logger
	deps   Deps
	gin    *gin.Engine
	http   *http.Server
}

// New 创建一个新的 Server 实例
func New(cfg *config.Config, deps Deps, log *logger.Logger) *Server {
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		gin: router,
		http: &http.Server{
			Addr:    ":" + cfg.Server.Port,
			Handler: router,
		},
		Config: cfg,
		Logger: log,
		deps:   deps,
	}

	// 设置路由
	s.setupRoutes()

	return s
}

// Handler 返回路由，便于测试
func (s *Server) Handler() http.Handler {
	return s.gin
}

// Start 启动服务器
func (s *Server) Start() error {
	s.Logger.Infof("在端口 %s 启动服务器", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown 关闭服务器
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// setupRoutes 设置API路由
func (s *Server) setupRoutes() {
	authHandler := handler.NewAuthHandler(s.Config)
	taskHandler := handler.NewTaskHandler(s.deps.Registry, s.deps.Gate, s.deps.Canceller)
	systemConfigHandler := handler.NewSystemConfigHandler(s.deps.SystemConfig, s.deps.Stats, s.deps.Users, s.deps.Gate)

	// API路由组
	api := s.gin.Group("/api")

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 刷新接口自行校验令牌
	api.POST("/auth/refresh", authHandler.RefreshToken)

	// 需要JWT验证的路由
	protected := api.Group("/")
	protected.Use(middleware.JWTAuth(s.Config))
	{
		protected.GET("/me", authHandler.Me)

		// 任务相关
		tasks := protected.Group("/tasks")
		{
			tasks.GET("", taskHandler.ListTasks)
			tasks.POST("/:token/cancel", taskHandler.CancelTask)
		}

		protected.GET("/stats", systemConfigHandler.GetStats)
		protected.GET("/concurrency", systemConfigHandler.GetConcurrency)
		protected.PUT("/concurrency", systemConfigHandler.SetConcurrency)
	}
}
