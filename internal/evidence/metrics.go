package evidence

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var evidenceLookups = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "trust_evidence_lookups_total",
		Help: "Evidence lookups by source and outcome",
	},
	[]string{"source", "outcome"},
)
