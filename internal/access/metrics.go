package access

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gateOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devbot_gate_outcomes_total",
			Help: "Gated events by required level and outcome (invoked, denied, error).",
		},
		[]string{"level", "outcome"},
	)

	usersRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "devbot_users_registered_total",
			Help: "Users registered on first contact.",
		},
	)
)
