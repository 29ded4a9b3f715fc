// Package metrics — счётчики Prometheus для /metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics — набор счётчиков; nil-значение ничего не считает.
type Metrics struct {
	requests    *prometheus.CounterVec
	transitions *prometheus.CounterVec
	uploaded    *prometheus.CounterVec
	gatherer    prometheus.Gatherer
}

// New регистрирует счётчики в reg. Тесты передают свой prometheus.NewRegistry().
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "workplatform_http_requests_total",
			Help: "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "workplatform_project_transitions_total",
			Help: "Successful project status transitions by event",
		}, []string{"event"}),
		uploaded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "workplatform_uploaded_bytes_total",
			Help: "Bytes written to upload storage by category",
		}, []string{"category"}),
		gatherer: reg,
	}
}

func (m *Metrics) Transition(event string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(event).Inc()
}

func (m *Metrics) Uploaded(category string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.uploaded.WithLabelValues(category).Add(float64(n))
}

// Middleware считает запросы по шаблону маршрута, а не по сырому пути.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
