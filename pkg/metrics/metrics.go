// Package metrics 提供 Prometheus helper，包含服务的 counter/gauge/histogram 模板
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wyfcoding/metaltrading/pkg/logger"
)

// Metrics 指标集合
type Metrics struct {
	// HTTP 请求计数
	HTTPRequestsTotal prometheus.Counter
	// HTTP 请求耗时
	HTTPRequestDuration prometheus.Histogram

	// 报价指标
	QuotesIssuedTotal     prometheus.Counter
	QuotesExpiredTotal    prometheus.Counter
	QuotesSupersededTotal prometheus.Counter
	QuotesCancelledTotal  prometheus.Counter
	QuotesActive          prometheus.Gauge

	// 成交指标
	TradesExecutedTotal prometheus.Counter
	TradesFailedTotal   prometheus.Counter
	LimitOrdersTotal    prometheus.Counter
	LedgerLatency       prometheus.Histogram

	// 行情源指标
	FeedRefreshTotal prometheus.Counter
	FeedErrorsTotal  prometheus.Counter
	FeedPriceAge     prometheus.Gauge
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "metaltrading",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}),
		HTTPRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "metaltrading",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		QuotesIssuedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "metaltrading",
			Subsystem: serviceName,
			Name:      "quotes_issued_total",
			Help:      "Total price quotes issued",
		}),
		QuotesExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "metaltrading",
			Subsystem: serviceName,
			Name:      "quotes_expired_total",
			Help:      "Total quotes expired by the sweep",
		}),
		QuotesSupersededTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "metaltrading",
			Subsystem: serviceName,
			Name:      "quotes_superseded_total",
			Help:      "Total quotes superseded by a newer request",
		}),
		QuotesCancelledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "metaltrading",
			Subsystem: serviceName,
			Name:      "quotes_cancelled_total",
			Help:      "Total quotes cancelled by the user",
		}),
		QuotesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "metaltrading",
			Subsystem: serviceName,
			Name:      "quotes_active",
			Help:      "Number of currently active quotes",
		}),

		TradesExecutedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "metaltrading",
			Subsystem: serviceName,
			Name:      "trades_executed_total",
			Help:      "Total trades executed against the ledger",
		}),
		TradesFailedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "metaltrading",
			Subsystem: serviceName,
			Name:      "trades_failed_total",
			Help:      "Total trade executions rejected or failed",
		}),
		LimitOrdersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "metaltrading",
			Subsystem: serviceName,
			Name:      "limit_orders_total",
			Help:      "Total limit orders placed",
		}),
		LedgerLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "metaltrading",
			Subsystem: serviceName,
			Name:      "ledger_request_duration_seconds",
			Help:      "Ledger execution request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		FeedRefreshTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "metaltrading",
			Subsystem: serviceName,
			Name:      "feed_refresh_total",
			Help:      "Total price feed snapshot refreshes",
		}),
		FeedErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "metaltrading",
			Subsystem: serviceName,
			Name:      "feed_errors_total",
			Help:      "Total price feed refresh failures",
		}),
		FeedPriceAge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "metaltrading",
			Subsystem: serviceName,
			Name:      "feed_price_age_seconds",
			Help:      "Age of the newest price snapshot in seconds",
		}),
	}
}

// Register 注册所有指标
func (m *Metrics) Register() error {
	collectors := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.QuotesIssuedTotal,
		m.QuotesExpiredTotal,
		m.QuotesSupersededTotal,
		m.QuotesCancelledTotal,
		m.QuotesActive,
		m.TradesExecutedTotal,
		m.TradesFailedTotal,
		m.LimitOrdersTotal,
		m.LedgerLatency,
		m.FeedRefreshTotal,
		m.FeedErrorsTotal,
		m.FeedPriceAge,
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

	http.Handle(path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info(context.Background(), "Starting Prometheus HTTP server", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.Error(context.Background(), "Failed to start Prometheus HTTP server", "error", err)
		}
	}()

	return nil
}
