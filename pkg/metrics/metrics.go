// Package metrics exposes Prometheus counters for secure channel
// handshakes and logon validations.
//
// Methods handle a nil receiver, so a nil *ValidationMetrics is a no-op
// when metrics are disabled.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Handshake results
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// ValidationMetrics tracks secure channel and SamLogon activity
type ValidationMetrics struct {
	// Handshakes counts secure channel setups.
	// Labels: result=[success, failure]
	Handshakes *prometheus.CounterVec

	// Validations counts SamLogon results by mapped outcome.
	// Labels: outcome=[Success, AccountNotFound, InvalidCredentials, UnmappedRpcError, error]
	Validations *prometheus.CounterVec

	// ValidationDuration tracks SamLogon round-trip time.
	ValidationDuration prometheus.Histogram
}

// NewValidationMetrics creates the metrics and registers them with reg.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewValidationMetrics(reg prometheus.Registerer) (*ValidationMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &ValidationMetrics{
		Handshakes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nlgooser_handshakes_total",
				Help: "Total secure channel handshakes by result",
			},
			[]string{"result"},
		),
		Validations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nlgooser_validations_total",
				Help: "Total SamLogon validations by outcome",
			},
			[]string{"outcome"},
		),
		ValidationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "nlgooser_validation_duration_seconds",
				Help:    "SamLogon round-trip duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	for _, c := range []prometheus.Collector{m.Handshakes, m.Validations, m.ValidationDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordHandshake records the result of a secure channel setup
func (m *ValidationMetrics) RecordHandshake(success bool) {
	if m == nil {
		return
	}
	if success {
		m.Handshakes.WithLabelValues(ResultSuccess).Inc()
	} else {
		m.Handshakes.WithLabelValues(ResultFailure).Inc()
	}
}

// RecordValidation records one SamLogon call and its duration
func (m *ValidationMetrics) RecordValidation(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Validations.WithLabelValues(outcome).Inc()
	m.ValidationDuration.Observe(duration.Seconds())
}
