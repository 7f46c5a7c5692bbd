package llm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	modelCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trust_model_calls_total",
			Help: "Generative model calls by mode and outcome",
		},
		[]string{"outcome"},
	)

	modelDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trust_model_duration_seconds",
			Help:    "Latency of generative model calls",
			Buckets: []float64{.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"mode"},
	)
)
