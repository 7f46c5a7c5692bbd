package analysis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var analysisTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "trust_analysis_total",
		Help: "Trust analyses by subject and outcome",
	},
	[]string{"subject", "outcome"},
)
