package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AdmissionDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codehaven_admission_decisions_total",
			Help: "Admission decisions by check, outcome and denial reason",
		},
		[]string{"check", "outcome", "reason"},
	)

	SandboxTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codehaven_sandbox_transitions_total",
			Help: "Sandbox lifecycle transitions recorded by the registry",
		},
		[]string{"from", "to"},
	)

	SlugProbeAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "codehaven_slug_probe_attempts",
			Help:    "Candidates probed before a free sandbox slug was found",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		},
	)
)
