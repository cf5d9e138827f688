package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type Prom struct {
	RequestsTotal    *prometheus.CounterVec
	RequestsDuration *prometheus.HistogramVec
	InFlight         *prometheus.GaugeVec
	// DB
	DbQueryDuration *prometheus.HistogramVec
	DbErrorsTotal   *prometheus.CounterVec

	// Mail delivery
	MailSendDuration *prometheus.HistogramVec
	MailResults      *prometheus.CounterVec
}

func NewProm(reg prometheus.Registerer) *Prom {
	p := &Prom{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "schoolhub",
				Name:      "http_requests_total",
				Help:      "Total HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "schoolhub",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency distributions.",
				// Sane initial defaults
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route", "status"},
		),
		InFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "schoolhub",
				Name:      "http_in_flight_requests",
				Help:      "Current number of in-flight HTTP requests.",
			},
			[]string{"method", "route"},
		),
		DbQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "schoolhub",
				Subsystem: "db",
				Name:      "query_duration_seconds",
				Help:      "DB operation latency (logical op, not raw SQL)",
				Buckets:   []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.35, 0.5, 1, 2, 5},
			},
			[]string{"op", "status"},
		),
		DbErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "schoolhub",
				Subsystem: "db",
				Name:      "errors_total",
				Help:      "DB operation errors by classified cause.",
			},
			[]string{"op", "cause"},
		),
		MailSendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "schoolhub",
				Subsystem: "mail",
				Name:      "send_duration_seconds",
				Help:      "Mail delivery latency.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"status"},
		),
		MailResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "schoolhub",
				Subsystem: "mail",
				Name:      "results_total",
				Help:      "Mail delivery outcomes.",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(
		p.RequestsTotal,
		p.RequestsDuration,
		p.InFlight,
		p.DbQueryDuration,
		p.DbErrorsTotal,
		p.MailSendDuration,
		p.MailResults,
	)

	return p
}

// HTTPMetrics records request counts, latency and in-flight gauge per route.
func (p *Prom) HTTPMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		method := c.Request.Method

		p.InFlight.WithLabelValues(method, route).Inc()
		start := time.Now()

		c.Next()

		p.InFlight.WithLabelValues(method, route).Dec()

		status := strconv.Itoa(c.Writer.Status())

		p.RequestsTotal.WithLabelValues(method, route, status).Inc()
		p.RequestsDuration.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
	}
}

// ObserveMail wraps one delivery attempt.
func (p *Prom) ObserveMail(fn func() error) error {
	start := time.Now()
	err := fn()

	status := "ok"
	result := "sent"

	if err != nil {
		status = "error"
		result = "failed"
	}

	p.MailSendDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	p.MailResults.WithLabelValues(result).Inc()

	return err
}
