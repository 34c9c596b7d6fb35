package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestRecordHandshake(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewValidationMetrics(reg)
	if err != nil {
		t.Fatalf("NewValidationMetrics: %v", err)
	}

	m.RecordHandshake(true)
	m.RecordHandshake(true)
	m.RecordHandshake(false)

	if got := counterValue(t, reg, "nlgooser_handshakes_total", "result", ResultSuccess); got != 2 {
		t.Errorf("success = %v, want 2", got)
	}
	if got := counterValue(t, reg, "nlgooser_handshakes_total", "result", ResultFailure); got != 1 {
		t.Errorf("failure = %v, want 1", got)
	}
}

func TestRecordValidation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewValidationMetrics(reg)
	if err != nil {
		t.Fatalf("NewValidationMetrics: %v", err)
	}

	m.RecordValidation("InvalidCredentials", 20*time.Millisecond)

	if got := counterValue(t, reg, "nlgooser_validations_total", "outcome", "InvalidCredentials"); got != 1 {
		t.Errorf("InvalidCredentials = %v, want 1", got)
	}

	families, _ := reg.Gather()
	for _, f := range families {
		if f.GetName() == "nlgooser_validation_duration_seconds" {
			if n := f.GetMetric()[0].GetHistogram().GetSampleCount(); n != 1 {
				t.Errorf("sample count = %d, want 1", n)
			}
			return
		}
	}
	t.Error("duration histogram not registered")
}

func TestDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewValidationMetrics(reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewValidationMetrics(reg); err == nil {
		t.Error("second registration on the same registry should fail")
	}
}

func TestNilMetricsNoop(t *testing.T) {
	var m *ValidationMetrics
	m.RecordHandshake(true)
	m.RecordValidation("Success", time.Second)
}
