package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	RequestCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	LoginAttempts   *prometheus.CounterVec
	ImportedRows    *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. A *prometheus.Registry is both a
// Registerer and a Gatherer and is what tests pass in.
func New(namespace string, reg interface {
	prometheus.Registerer
	prometheus.Gatherer
}) *Metrics {
	m := &Metrics{
		RequestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		LoginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "login_attempts_total",
				Help:      "Login attempts by outcome",
			},
			[]string{"outcome"},
		),
		ImportedRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "catalog",
				Name:      "import_rows_total",
				Help:      "Rows processed by bulk import by result",
			},
			[]string{"result"},
		),
		gatherer: reg,
	}

	reg.MustRegister(m.RequestCount, m.RequestDuration, m.LoginAttempts, m.ImportedRows)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		status := c.Response().Status
		if err != nil {
			var he *echo.HTTPError
			if errors.As(err, &he) {
				status = he.Code
			} else if !c.Response().Committed {
				status = http.StatusInternalServerError
			}
		}

		endpoint := c.Path()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		m.RequestCount.WithLabelValues(c.Request().Method, endpoint, strconv.Itoa(status)).Inc()
		m.RequestDuration.WithLabelValues(c.Request().Method, endpoint).Observe(time.Since(start).Seconds())
		return err
	}
}

func (m *Metrics) ObserveLogin(outcome string) {
	m.LoginAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveImport(success, failed int) {
	m.ImportedRows.WithLabelValues("success").Add(float64(success))
	m.ImportedRows.WithLabelValues("failed").Add(float64(failed))
}
