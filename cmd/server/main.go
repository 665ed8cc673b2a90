package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/blessen010/EmailThing/internal/auth"
	jwtpkg "github.com/blessen010/EmailThing/internal/auth/jwt"
	"github.com/blessen010/EmailThing/internal/config"
	"github.com/blessen010/EmailThing/internal/health"
	"github.com/blessen010/EmailThing/internal/logger"
	"github.com/blessen010/EmailThing/internal/mail"
	"github.com/blessen010/EmailThing/internal/monitoring"
	"github.com/blessen010/EmailThing/internal/outbox"
	"github.com/blessen010/EmailThing/internal/storage"
	"github.com/blessen010/EmailThing/internal/storage/memory"
	sqlstore "github.com/blessen010/EmailThing/internal/storage/sql"
	httptransport "github.com/blessen010/EmailThing/internal/transport/http"
)

// main 启动注册服务：HTTP API 加上发件箱分发器。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     cfg.Log.File,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting emailthing server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 初始化存储层
	var store storage.Store
	if cfg.Database.Type != "" {
		store, err = sqlstore.NewStore(
			cfg.Database.Type,
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime,
		)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize database storage: %v", err))
		}
		log.Info("using database storage", zap.String("type", cfg.Database.Type))
	} else {
		store = memory.NewStore()
		log.Info("using memory storage (development mode)")
	}
	defer store.Close()

	// 初始化监控与健康检查
	metrics := monitoring.NewMetrics()
	healthChecker := health.NewChecker(store, log)

	// 初始化服务层
	authService := auth.NewService(store, cfg.Mail.PrimaryDomain, log, metrics)
	jwtManager := jwtpkg.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.SessionExpiry)

	log.Info("JWT configuration",
		zap.String("issuer", cfg.JWT.Issuer),
		zap.Duration("session_expiry", cfg.JWT.SessionExpiry),
	)

	// 初始化邮件投递通道：未配置网关令牌时降级为日志输出
	var sender mail.Sender
	if cfg.Mail.AuthToken != "" {
		sender, err = mail.NewMailgunSender(cfg.Mail.SenderDomain, cfg.Mail.AuthToken)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize mail sender: %v", err))
		}
		log.Info("mail delivery enabled", zap.String("domain", cfg.Mail.SenderDomain))
	} else {
		sender = mail.NewLogSender(log)
		log.Warn("mail auth token not configured, welcome emails will not be delivered")
	}

	systemFrom := fmt.Sprintf("system@%s", cfg.Mail.SenderDomain)
	dispatcher := outbox.NewDispatcher(store, sender, systemFrom, log, metrics)

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:      cfg,
		AuthService: authService,
		JWTManager:  jwtManager,
		Health:      healthChecker,
		Metrics:     metrics,
		Logger:      log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 发件箱分发器 goroutine
	group.Go(func() error {
		log.Info("starting outbox dispatcher", zap.String("from", systemFrom))
		return dispatcher.Run(groupCtx)
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
			return err
		}
		return nil
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Error("server exited with error", zap.Error(err))
	}
	log.Info("server stopped")
	_ = log.Sync()
}
