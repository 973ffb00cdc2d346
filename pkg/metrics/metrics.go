// Package metrics 提供 Prometheus helper，包含常用 counter/gauge/histogram 模板
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wyfcoding/microfinance/pkg/logger"
)

// Metrics 指标集合
type Metrics struct {
	// HTTP 请求计数
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration prometheus.Histogram

	// 业务指标
	LoansCreatedTotal prometheus.Counter
	// 审批通过的贷款数
	LoansApprovedTotal prometheus.Counter
	// 已结清的贷款数
	LoansClosedTotal prometheus.Counter
	// 收到的还款笔数
	PaymentsTotal prometheus.Counter
	// 收到的还款金额（分摊前）
	PaymentAmountTotal prometheus.Counter
	// 发送的告警邮件数
	AlertsSentTotal *prometheus.CounterVec
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "microfin",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "microfin",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		LoansCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "microfin",
			Subsystem: serviceName,
			Name:      "loans_created_total",
			Help:      "Total loan applications created",
		}),
		LoansApprovedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "microfin",
			Subsystem: serviceName,
			Name:      "loans_approved_total",
			Help:      "Total loans approved or activated",
		}),
		LoansClosedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "microfin",
			Subsystem: serviceName,
			Name:      "loans_closed_total",
			Help:      "Total loans fully repaid and closed",
		}),
		PaymentsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "microfin",
			Subsystem: serviceName,
			Name:      "payments_total",
			Help:      "Total payments recorded",
		}),
		PaymentAmountTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "microfin",
			Subsystem: serviceName,
			Name:      "payment_amount_total",
			Help:      "Total payment amount recorded",
		}),
		AlertsSentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "microfin",
			Subsystem: serviceName,
			Name:      "alerts_sent_total",
			Help:      "Total alert emails, by type and outcome",
		}, []string{"type", "status"}),
	}
}

// Register 注册所有指标
func (m *Metrics) Register() error {
	collectors := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.LoansCreatedTotal,
		m.LoansApprovedTotal,
		m.LoansClosedTotal,
		m.PaymentsTotal,
		m.PaymentAmountTotal,
		m.AlertsSentTotal,
	}

	for _, c := range collectors {
		if err := prometheus.DefaultRegisterer.Register(c); err != nil {
			logger.Error(context.Background(), "Failed to register metric", "error", err)
			return err
		}
	}

	logger.Info(context.Background(), "Metrics registered successfully")
	return nil
}

// StartHTTPServer 启动 Prometheus HTTP 服务器
func StartHTTPServer(port int, path string) error {
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info(context.Background(), "Starting Prometheus HTTP server", "addr", addr, "path", path)
	return http.ListenAndServe(addr, mux)
}
