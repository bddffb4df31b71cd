package seckill

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 秒杀管线指标
type Metrics struct {
	// 提交指标
	submitTotal    *prometheus.CounterVec
	submitDuration prometheus.Histogram

	// 落库指标
	persistTotal    *prometheus.CounterVec
	persistDuration prometheus.Histogram

	// 恢复与死信指标
	pendingRecovered prometheus.Counter
	dlqTotal         prometheus.Counter
}

// NewMetrics 创建秒杀指标，注册到给定 Registerer
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		submitTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "seckill",
				Name:      "submit_total",
				Help:      "Total number of seckill submissions",
			},
			[]string{"result"},
		),
		submitDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "seckill",
				Name:      "submit_duration_seconds",
				Help:      "Seckill submission duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		persistTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "seckill",
				Name:      "persist_total",
				Help:      "Total number of order persistence attempts",
			},
			[]string{"status"},
		),
		persistDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "seckill",
				Name:      "persist_duration_seconds",
				Help:      "Order persistence duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		pendingRecovered: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "seckill",
				Name:      "pending_recovered_total",
				Help:      "Total number of messages recovered from pending list",
			},
		),
		dlqTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "seckill",
				Name:      "dlq_total",
				Help:      "Total number of messages moved to DLQ",
			},
		),
	}
}
