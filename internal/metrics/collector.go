// internal/metrics/collector.go
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "solana_fanout"

// Collector владеет метриками движка отправки. Все методы безопасны
// для nil-получателя, чтобы компоненты работали без метрик.
type Collector struct {
	submissions        *prometheus.CounterVec
	submissionDuration *prometheus.HistogramVec
	confirmations      *prometheus.CounterVec
	nonceConsume       *prometheus.CounterVec
	trades             *prometheus.CounterVec
	tradeDuration      prometheus.Histogram
	rpcLatency         *prometheus.HistogramVec
}

// NewCollector создаёт метрики и регистрирует их в reg.
// Для тестов передаётся prometheus.NewRegistry().
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submissions_total",
				Help:      "Total number of channel submissions by result",
			},
			[]string{"channel", "result"},
		),
		submissionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "submission_duration_seconds",
				Help:      "Time until the channel accepted or rejected a transaction",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"channel"},
		),
		confirmations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "confirmations_total",
				Help:      "Confirmation polling results per channel",
			},
			[]string{"channel", "status"},
		),
		nonceConsume: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nonce_consume_total",
				Help:      "Durable nonce consume attempts by result",
			},
			[]string{"result"},
		),
		trades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trades_total",
				Help:      "Total number of dispatched trades by result",
			},
			[]string{"result"},
		),
		tradeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "trade_duration_seconds",
				Help:      "Trade call duration from build to join",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		rpcLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rpc_latency_seconds",
				Help:      "RPC request latency in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
			},
			[]string{"method", "endpoint", "status"},
		),
	}

	for _, m := range []prometheus.Collector{
		c.submissions,
		c.submissionDuration,
		c.confirmations,
		c.nonceConsume,
		c.trades,
		c.tradeDuration,
		c.rpcLatency,
	} {
		if err := reg.Register(m); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return c, nil
}

// RecordSubmission записывает результат отправки через канал
func (c *Collector) RecordSubmission(channel, result string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.submissions.WithLabelValues(channel, result).Inc()
	c.submissionDuration.WithLabelValues(channel).Observe(elapsed.Seconds())
}

// RecordConfirmation записывает итог ожидания подтверждения
func (c *Collector) RecordConfirmation(channel, status string) {
	if c == nil {
		return
	}
	c.confirmations.WithLabelValues(channel, status).Inc()
}

// RecordNonce записывает попытку занять nonce
func (c *Collector) RecordNonce(result string) {
	if c == nil {
		return
	}
	c.nonceConsume.WithLabelValues(result).Inc()
}

// RecordTrade записывает итог торгового вызова
func (c *Collector) RecordTrade(result string, duration time.Duration) {
	if c == nil {
		return
	}
	c.trades.WithLabelValues(result).Inc()
	c.tradeDuration.Observe(duration.Seconds())
}

// RecordRPCLatency записывает метрики RPC-запроса
func (c *Collector) RecordRPCLatency(method, endpoint string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.rpcLatency.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}
