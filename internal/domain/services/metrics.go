package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 进程内的 prometheus 指标
type Metrics struct {
	DispatchTotal    *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec
	AdminRequests    *prometheus.CounterVec
	LivenessFailures prometheus.Counter
	DroppedLogs      prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fake_api_dispatch_total",
			Help: "Mock requests served, by method and status code.",
		}, []string{"method", "status"}),
		DispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fake_api_dispatch_duration_seconds",
			Help:    "Time spent serving mock requests, including configured delays.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		AdminRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fake_api_admin_requests_total",
			Help: "Management API requests, by method and route pattern.",
		}, []string{"method", "route"}),
		LivenessFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fake_api_liveness_failures_total",
			Help: "Liveness probes that found a rule not serving its declared response.",
		}),
		DroppedLogs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fake_api_request_logs_dropped_total",
			Help: "Request log entries dropped because the recorder pool was saturated.",
		}),
	}
	reg.MustRegister(m.DispatchTotal, m.DispatchDuration, m.AdminRequests, m.LivenessFailures, m.DroppedLogs)
	return m
}
