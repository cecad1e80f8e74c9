// Package metrics 汇总缓存服务的 Prometheus 指标，使用独立 Registry，便于测试隔离。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "simtool_cache"

// Metrics 持有全部采集器。方法允许在 nil 接收者上调用，未启用指标时直接忽略。
type Metrics struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	storedFiles    prometheus.Counter
	storedBytes    prometheus.Counter
	servedBytes    prometheus.Counter
	entriesCreated prometheus.Counter
	accessDenied   prometheus.Counter
}

// New 创建并注册全部指标，同时附带 Go 运行时与进程采集器。
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		storedFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stored_files_total",
			Help:      "Files written into cache entries.",
		}),
		storedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stored_bytes_total",
			Help:      "Bytes written into cache entries.",
		}),
		servedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "served_bytes_total",
			Help:      "Bytes streamed back to clients.",
		}),
		entriesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_created_total",
			Help:      "Cache entries that became visible for the first time.",
		}),
		accessDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "access_denied_total",
			Help:      "File reads rejected by the containment check.",
		}),
	}

	m.registry.MustRegister(
		m.requests,
		m.duration,
		m.storedFiles,
		m.storedBytes,
		m.servedBytes,
		m.entriesCreated,
		m.accessDenied,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry 暴露底层 Registry，供测试读取指标。
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回 Prometheus 文本格式的 http.Handler。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest 记录一次 HTTP 请求。route 应为路由模板而非原始路径，避免标签膨胀。
func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// AddStored 记录一次批量写入。
func (m *Metrics) AddStored(files int, bytes int64, created bool) {
	if m == nil {
		return
	}
	m.storedFiles.Add(float64(files))
	m.storedBytes.Add(float64(bytes))
	if created {
		m.entriesCreated.Inc()
	}
}

// AddServed 记录下载字节数。
func (m *Metrics) AddServed(bytes int64) {
	if m == nil {
		return
	}
	m.servedBytes.Add(float64(bytes))
}

// IncAccessDenied 记录一次越界访问。
func (m *Metrics) IncAccessDenied() {
	if m == nil {
		return
	}
	m.accessDenied.Inc()
}
