package outbox

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/blessen010/EmailThing/internal/domain"
	"github.com/blessen010/EmailThing/internal/mail"
	"github.com/blessen010/EmailThing/internal/monitoring"
	"github.com/blessen010/EmailThing/internal/pool"
	"github.com/blessen010/EmailThing/internal/storage"
)

const (
	// DefaultPollInterval 默认轮询间隔
	DefaultPollInterval = 15 * time.Second
	// DefaultBatchSize 单次轮询最多处理的条目数
	DefaultBatchSize = 20
	// DefaultMaxAttempts 单条邮件的最大投递次数，超过后永久失败
	DefaultMaxAttempts = 5
	// DefaultConcurrency 并发投递的协程数
	DefaultConcurrency = 4
)

// Dispatcher 发件箱分发器。
// 周期性读取待投递条目并交给外部邮件通道，投递失败只做记录和重试，
// 不影响已提交的账户数据。
type Dispatcher struct {
	repo         storage.OutboxRepository
	sender       mail.Sender
	log          *zap.Logger
	metrics      *monitoring.Metrics
	from         string
	pollInterval time.Duration
	batchSize    int
	maxAttempts  int
	concurrency  int
	workers      *pool.WorkerPool
}

// Option 配置分发器的可选参数
type Option func(*Dispatcher)

// WithPollInterval 设置轮询间隔
func WithPollInterval(d time.Duration) Option {
	return func(dp *Dispatcher) { dp.pollInterval = d }
}

// WithBatchSize 设置单次处理条数
func WithBatchSize(n int) Option {
	return func(dp *Dispatcher) { dp.batchSize = n }
}

// WithMaxAttempts 设置最大投递次数
func WithMaxAttempts(n int) Option {
	return func(dp *Dispatcher) { dp.maxAttempts = n }
}

// WithConcurrency 设置并发投递的协程数
func WithConcurrency(n int) Option {
	return func(dp *Dispatcher) { dp.concurrency = n }
}

// NewDispatcher 创建发件箱分发器。
// from 为信封发件人地址（如 system@emailthing.dev）。
func NewDispatcher(repo storage.OutboxRepository, sender mail.Sender, from string, log *zap.Logger, metrics *monitoring.Metrics, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		repo:         repo,
		sender:       sender,
		log:          log,
		metrics:      metrics,
		from:         from,
		pollInterval: DefaultPollInterval,
		batchSize:    DefaultBatchSize,
		maxAttempts:  DefaultMaxAttempts,
		concurrency:  DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run 循环处理发件箱直到 ctx 取消。
func (d *Dispatcher) Run(ctx context.Context) error {
	workers := pool.NewWorkerPool(d.concurrency, d.batchSize, d.log)
	workers.Start()
	d.workers = workers
	defer func() {
		d.workers = nil
		workers.Stop()
	}()

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	// 启动时先处理一轮积压
	d.DispatchOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.DispatchOnce(ctx)
		}
	}
}

// DispatchOnce 处理一批待投递条目，返回成功投递的数量。
// Run 之外直接调用时串行投递。
func (d *Dispatcher) DispatchOnce(ctx context.Context) int {
	entries, err := d.repo.ListPendingOutbox(d.batchSize)
	if err != nil {
		d.log.Error("failed to list pending outbox entries", zap.Error(err))
		return 0
	}

	var sent atomic.Int64
	var wg sync.WaitGroup
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}

		entry := entry
		if d.workers != nil {
			wg.Add(1)
			d.workers.Submit(func() {
				defer wg.Done()
				if d.dispatch(ctx, entry) {
					sent.Add(1)
				}
			})
		} else if d.dispatch(ctx, entry) {
			sent.Add(1)
		}
	}
	wg.Wait()

	return int(sent.Load())
}

// dispatch 投递单条发件箱条目并落账结果
func (d *Dispatcher) dispatch(ctx context.Context, entry *domain.OutboxEmail) bool {
	if ctx.Err() != nil {
		return false
	}

	err := d.sender.Send(ctx, d.from, []string{entry.Recipient}, entry.Raw)
	if err != nil {
		final := entry.Attempts+1 >= d.maxAttempts
		d.log.Warn("welcome email delivery failed",
			zap.String("outbox_id", entry.ID),
			zap.String("recipient", entry.Recipient),
			zap.Int("attempts", entry.Attempts+1),
			zap.Bool("final", final),
			zap.Error(err),
		)
		if d.metrics != nil {
			d.metrics.WelcomeEmailsFailed.Inc()
		}
		if markErr := d.repo.MarkOutboxFailed(entry.ID, err.Error(), final); markErr != nil {
			d.log.Error("failed to record outbox failure", zap.String("outbox_id", entry.ID), zap.Error(markErr))
		}
		return false
	}

	if err := d.repo.MarkOutboxSent(entry.ID, time.Now()); err != nil {
		d.log.Error("failed to mark outbox entry sent", zap.String("outbox_id", entry.ID), zap.Error(err))
		return false
	}

	if d.metrics != nil {
		d.metrics.WelcomeEmailsSent.Inc()
	}
	d.log.Info("welcome email delivered",
		zap.String("outbox_id", entry.ID),
		zap.String("recipient", entry.Recipient),
	)
	return true
}
