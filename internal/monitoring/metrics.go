package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 注册流程指标
	RegistrationsAttempted prometheus.Counter
	RegistrationsRejected  *prometheus.CounterVec
	RegistrationsSucceeded prometheus.Counter

	// 欢迎邮件指标
	WelcomeEmailsSent   prometheus.Counter
	WelcomeEmailsFailed prometheus.Counter

	// 错误指标
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emailthing_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "emailthing_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		RegistrationsAttempted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "emailthing_registrations_attempted_total",
				Help: "Total number of signup attempts",
			},
		),
		RegistrationsRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emailthing_registrations_rejected_total",
				Help: "Signup attempts rejected before provisioning",
			},
			[]string{"reason"},
		),
		RegistrationsSucceeded: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "emailthing_registrations_succeeded_total",
				Help: "Accounts provisioned successfully",
			},
		),
		WelcomeEmailsSent: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "emailthing_welcome_emails_sent_total",
				Help: "Welcome emails delivered by the outbox dispatcher",
			},
		),
		WelcomeEmailsFailed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "emailthing_welcome_emails_failed_total",
				Help: "Welcome email delivery attempts that failed",
			},
		),
		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "emailthing_panics_total",
				Help: "Total number of recovered panics",
			},
		),
	}
}

// Handler 返回 Prometheus 指标的 HTTP 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
