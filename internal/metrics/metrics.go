// Package metrics owns the Prometheus collectors of the service.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/verdant/internal/apperror"
)

// Outcome labels shared by the domain counters.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Options configures the collectors.
type Options struct {
	Registerer prometheus.Registerer
	Namespace  string
	Buckets    []float64
}

// Metrics groups the HTTP and domain collectors.
type Metrics struct {
	Requests  *prometheus.CounterVec
	Duration  *prometheus.HistogramVec
	InFlight  prometheus.Gauge
	Checkouts *prometheus.CounterVec
	OTP       *prometheus.CounterVec
}

// New creates the collectors and registers them. Collectors that are already
// registered with the same name are reused.
func New(opts Options) (*Metrics, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "verdant"
	}

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	buckets := opts.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	requests, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests partitioned by method, route, and status code.",
	}, []string{"method", "route", "status"}))
	if err != nil {
		return nil, err
	}

	duration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latencies in seconds partitioned by method, route, and status code.",
		Buckets:   buckets,
	}, []string{"method", "route", "status"}))
	if err != nil {
		return nil, err
	}

	inFlight, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "in_flight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	}))
	if err != nil {
		return nil, err
	}

	checkouts, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkouts_total",
		Help:      "Checkout attempts partitioned by outcome.",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}

	otp, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "otp_events_total",
		Help:      "OTP requests and verifications partitioned by stage and outcome.",
	}, []string{"stage", "outcome"}))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		Requests:  requests,
		Duration:  duration,
		InFlight:  inFlight,
		Checkouts: checkouts,
		OTP:       otp,
	}, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return c, fmt.Errorf("register collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(T)
		if !ok {
			return c, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return existing, nil
	}
	return c, nil
}

// Middleware records request count, latency and in-flight requests.
func (m *Metrics) Middleware() fiber.Handler {
	if m == nil {
		return func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	return func(c *fiber.Ctx) error {
		start := time.Now()
		m.InFlight.Inc()
		defer m.InFlight.Dec()

		err := c.Next()

		// Errors are rendered later by the app error handler, so the
		// response status is not final yet.
		status := c.Response().StatusCode()
		if err != nil {
			status = apperror.StatusCode(err)
		}

		labels := prometheus.Labels{
			"method": c.Method(),
			"route":  c.Route().Path,
			"status": strconv.Itoa(status),
		}
		m.Requests.With(labels).Inc()
		m.Duration.With(labels).Observe(time.Since(start).Seconds())

		return err
	}
}

// CheckoutOutcome increments the checkout counter.
func (m *Metrics) CheckoutOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(outcome).Inc()
}

// OTPEvent increments the OTP counter for a stage such as "request" or "verify".
func (m *Metrics) OTPEvent(stage, outcome string) {
	if m == nil {
		return
	}
	m.OTP.WithLabelValues(stage, outcome).Inc()
}

// OutcomeOf classifies err: nil is a success, 4xx a rejection, anything else an error.
func OutcomeOf(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	if status := apperror.StatusCode(err); status >= 400 && status < 500 {
		return OutcomeRejected
	}
	return OutcomeError
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}
