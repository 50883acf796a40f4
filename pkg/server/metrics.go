package server

import "github.com/prometheus/client_golang/prometheus"

// serverMetrics mirrors getServerStats() as Prometheus collectors for
// scrape-based monitoring. This is additive instrumentation alongside
// the Unix socket, not part of the dispatch path itself.
type serverMetrics struct {
	activeHandlers prometheus.Gauge
	activeClients  prometheus.Gauge
	totalRequests  prometheus.Counter
	totalErrors    prometheus.Counter
	rejectedOverCap prometheus.Counter
}

func newServerMetrics(namespace string) *serverMetrics {
	m := &serverMetrics{
		activeHandlers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "active_handlers", Help: "Number of handlers currently executing.",
		}),
		activeClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "active_clients", Help: "Number of distinct client addresses seen recently.",
		}),
		totalRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "requests_total", Help: "Total requests dispatched.",
		}),
		totalErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "errors_total", Help: "Total error responses sent.",
		}),
		rejectedOverCap: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "rejected_over_cap_total", Help: "Total requests rejected for exceeding maxConcurrentHandlers.",
		}),
	}
	return m
}

// Register adds every collector to reg. Safe to call once per Server.
func (m *serverMetrics) Register(reg *prometheus.Registry) {
	reg.MustRegister(m.activeHandlers, m.activeClients, m.totalRequests, m.totalErrors, m.rejectedOverCap)
}
