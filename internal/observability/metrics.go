// Package observability holds the service-wide Prometheus collectors.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	calculationsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "footprint",
		Subsystem: "calculator",
		Name:      "calculations_total",
		Help:      "Number of persisted calculations, labeled by recommendation tier.",
	}, []string{"tier"})

	emissionHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "footprint",
		Subsystem: "calculator",
		Name:      "total_emission_kg",
		Help:      "Distribution of calculated total emissions in kg CO2.",
		Buckets:   []float64{10, 25, 50, 75, 100, 150, 250, 500, 1000},
	})

	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "footprint",
		Subsystem: "persistence",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity record persisted.",
	})

	registrationsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "footprint",
		Subsystem: "auth",
		Name:      "registrations_total",
		Help:      "Registration attempts by outcome.",
	}, []string{"outcome"})

	loginsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "footprint",
		Subsystem: "auth",
		Name:      "logins_total",
		Help:      "Login attempts by outcome.",
	}, []string{"outcome"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "footprint",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route and status code.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "code"})
)

func init() {
	prometheus.MustRegister(calculationsCounter, emissionHistogram, activityPersistGauge, registrationsCounter, loginsCounter, httpDuration)
}

// RecordCalculation counts a persisted calculation and observes its total.
func RecordCalculation(tier string, total float64) {
	calculationsCounter.WithLabelValues(tier).Inc()
	emissionHistogram.Observe(total)
}

// RecordActivityPersisted updates the persistence watermark gauge.
func RecordActivityPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}

// RecordRegistration counts a registration attempt. outcome is e.g. "ok", "duplicate", "error".
func RecordRegistration(outcome string) {
	registrationsCounter.WithLabelValues(outcome).Inc()
}

// RecordLogin counts a login attempt.
func RecordLogin(outcome string) {
	loginsCounter.WithLabelValues(outcome).Inc()
}

// ObserveRequest records the latency of one HTTP request.
func ObserveRequest(route string, code int, elapsed time.Duration) {
	httpDuration.WithLabelValues(route, statusLabel(code)).Observe(elapsed.Seconds())
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
