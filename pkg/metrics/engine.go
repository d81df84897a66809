// Package metrics exports engine metrics to Prometheus and queries usage back.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ntclick/ai-research-roma/pkg/roma"
)

const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

// EngineRecorder implements roma.Observer with Prometheus metrics.
type EngineRecorder struct {
	resolutions     *prometheus.CounterVec
	capabilityCalls *prometheus.CounterVec
	resolveDuration *prometheus.HistogramVec
}

var _ roma.Observer = (*EngineRecorder)(nil)

// NewEngineRecorder registers the engine metrics with reg under namespace.
func NewEngineRecorder(reg prometheus.Registerer, namespace string) *EngineRecorder {
	factory := promauto.With(reg)
	return &EngineRecorder{
		resolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolutions_total",
				Help:      "Top-level resolutions by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		capabilityCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "capability_calls_total",
				Help:      "Capability invocations by capability and status",
			},
			[]string{"capability", "status"},
		),
		resolveDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "resolve_duration_seconds",
				Help:      "Duration of top-level resolutions in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
			},
			[]string{"mode"},
		),
	}
}

// ObserveResolution implements roma.Observer.
func (r *EngineRecorder) ObserveResolution(mode roma.ResolutionMode, ok bool, seconds float64) {
	r.resolutions.WithLabelValues(string(mode), outcome(ok)).Inc()
	r.resolveDuration.WithLabelValues(string(mode)).Observe(seconds)
}

// ObserveCapabilityCall implements roma.Observer.
func (r *EngineRecorder) ObserveCapabilityCall(c roma.Capability, ok bool) {
	r.capabilityCalls.WithLabelValues(string(c), outcome(ok)).Inc()
}

func outcome(ok bool) string {
	if ok {
		return outcomeOK
	}
	return outcomeError
}
