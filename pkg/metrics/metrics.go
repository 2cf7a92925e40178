package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 访问策略的判定结果
	AccessDecisionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "habit_access_decision_total",
			Help: "Total number of habit access policy decisions",
		},
		[]string{"action", "decision"}, // decision: allow, unauthenticated, forbidden
	)

	// 习惯操作计数
	HabitOperationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "habit_operation_total",
			Help: "Total number of habit operations",
		},
		[]string{"operation", "status"}, // status: success, failed, denied
	)

	// 慢查询计数
	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Total number of slow database queries",
		},
		[]string{"sql"},
	)

	// 慢查询耗时（秒）
	SlowQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "db_slow_query_duration_seconds",
			Help:    "Duration of slow database queries in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 8), // 100ms to ~12.8s
		},
	)

	// Outbox 发布计数
	OutboxPublishCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_publish_total",
			Help: "Total number of outbox events published",
		},
		[]string{"routing_key", "status"}, // status: sent, retry, failed, deferred
	)
)

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordAccessDecision 记录一次策略判定
func RecordAccessDecision(action, decision string) {
	AccessDecisionCount.WithLabelValues(action, decision).Inc()
}

// IncrementHabitOperation 增加习惯操作计数
func IncrementHabitOperation(operation, status string) {
	HabitOperationCount.WithLabelValues(operation, status).Inc()
}

// IncrementSlowQuery 记录慢查询
func IncrementSlowQuery(sql string, duration time.Duration) {
	SlowQueryCount.WithLabelValues(sql).Inc()
	SlowQueryDuration.Observe(duration.Seconds())
}

// IncrementOutboxPublish 记录 outbox 发布结果
func IncrementOutboxPublish(routingKey, status string) {
	OutboxPublishCount.WithLabelValues(routingKey, status).Inc()
}
