package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SubmissionAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "relay",
		Name:      "submission_attempts_total",
		Help:      "Counts anchor proof submission attempts per target chain and result.",
	}, []string{"target_chain", "result"})
	ConfirmationPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "relay",
		Name:      "confirmation_polls_total",
		Help:      "Counts confirmation poll ticks per target chain and result.",
	}, []string{"target_chain", "result"})
	JobsInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bridge",
		Subsystem: "relay",
		Name:      "jobs_in_flight",
		Help:      "Shows the number of bridge jobs with a running relay-and-monitor pipeline.",
	}, []string{"target_chain"})
	TerminalJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "relay",
		Name:      "terminal_jobs_total",
		Help:      "Counts bridge jobs that reached a terminal status.",
	}, []string{"target_chain", "status"})
)
