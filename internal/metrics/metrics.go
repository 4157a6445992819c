// Package metrics provides Prometheus metrics for the connector pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DetectTotal counts schema detection attempts by schema and result.
	DetectTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "connector",
			Name:      "detect_total",
			Help:      "Total number of dataset detections by schema and result",
		},
		[]string{"schema", "result"},
	)

	// WaterfallStepsTotal counts contact waterfall steps by step and outcome.
	WaterfallStepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "connector",
			Name:      "waterfall_steps_total",
			Help:      "Total number of contact waterfall steps by step and outcome",
		},
		[]string{"step", "outcome"},
	)

	// ChargeGuardTotal counts charge-guard decisions.
	ChargeGuardTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "connector",
			Name:      "charge_guard_total",
			Help:      "Total number of charge guard decisions by result",
		},
		[]string{"result"},
	)

	// ResolveDuration tracks contact resolution time per entity.
	ResolveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "connector",
			Name:      "resolve_duration_seconds",
			Help:      "Duration of contact resolution per entity in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"outcome"},
	)

	// ProviderRequestsTotal counts outbound provider HTTP requests.
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "connector",
			Subsystem: "http_client",
			Name:      "requests_total",
			Help:      "Total number of outbound provider requests",
		},
		[]string{"provider", "status_code"},
	)

	// HTTPRequestsTotal counts inbound API requests.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "connector",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of API requests by route and status",
		},
		[]string{"route", "status_code"},
	)

	// RateLimitHits counts requests rejected by the API rate limiter.
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "connector",
			Subsystem: "ratelimit",
			Name:      "hits_total",
			Help:      "Total number of rate limited API requests",
		},
		[]string{"tier"},
	)
)
