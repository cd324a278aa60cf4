package monitoring

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5},
		},
		[]string{"method", "path"},
	)
)

var (
	DatabaseQueries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total database queries",
		},
	)

	RegistryOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medicos_registry_operations_total",
			Help: "Registry operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	ListCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medicos_list_cache_total",
			Help: "List cache lookups by result",
		},
		[]string{"result"},
	)
)

func ObserveOperation(operation, outcome string) {
	RegistryOperations.WithLabelValues(operation, outcome).Inc()
}

var initOnce sync.Once

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(RequestsTotal)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(DatabaseQueries)
		prometheus.MustRegister(RegistryOperations)
		prometheus.MustRegister(ListCache)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

