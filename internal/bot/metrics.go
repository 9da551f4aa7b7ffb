package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var updatesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "devbot_updates_total",
		Help: "Inbound updates by kind and result (handled, unmatched, failed).",
	},
	[]string{"kind", "result"},
)
