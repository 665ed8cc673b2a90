package health

import (
	"net/http"
	"runtime"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"github.com/blessen010/EmailThing/internal/storage"
)

// Checker 健康检查器。
// 存活检查覆盖协程数量，就绪检查覆盖存储层连通性。
type Checker struct {
	handler healthcheck.Handler
	store   storage.Store
	log     *zap.Logger
}

// NewChecker 创建健康检查器
func NewChecker(store storage.Store, log *zap.Logger) *Checker {
	c := &Checker{
		handler: healthcheck.NewHandler(),
		store:   store,
		log:     log,
	}

	// 协程泄漏检查
	c.handler.AddLivenessCheck("goroutine-count", healthcheck.GoroutineCountCheck(500))

	// 存储层连通性检查
	c.handler.AddReadinessCheck("storage", func() error {
		start := time.Now()
		err := c.store.Health()
		if err != nil {
			c.log.Warn("storage health check failed",
				zap.Error(err),
				zap.Duration("elapsed", time.Since(start)),
			)
		}
		return err
	})

	return c
}

// LiveHandler 返回存活检查的 HTTP 处理器
func (c *Checker) LiveHandler() http.HandlerFunc {
	return c.handler.LiveEndpoint
}

// ReadyHandler 返回就绪检查的 HTTP 处理器
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return c.handler.ReadyEndpoint
}

// Snapshot 返回当前运行状态概要（调试接口使用）
func (c *Checker) Snapshot() map[string]interface{} {
	status := "ok"
	if err := c.store.Health(); err != nil {
		status = "degraded"
	}

	return map[string]interface{}{
		"status":     status,
		"goroutines": runtime.NumGoroutine(),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
}
