// Package metrics defines the Prometheus instrumentation for the task runner.
// Counters are registered on the default registry and exposed by the status
// server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PhaseTransitions counts task state machine transitions by target status.
	PhaseTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aicoder_task_phase_transitions_total",
		Help: "Number of task phase transitions, labelled by target status.",
	}, []string{"status"})

	// WebhookAttempts counts webhook delivery attempts by outcome.
	WebhookAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aicoder_webhook_attempts_total",
		Help: "Number of webhook delivery attempts, labelled by outcome.",
	}, []string{"outcome"})

	// CloneAttempts counts repository clone attempts by outcome.
	CloneAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aicoder_clone_attempts_total",
		Help: "Number of repository clone attempts, labelled by outcome.",
	}, []string{"outcome"})
)
