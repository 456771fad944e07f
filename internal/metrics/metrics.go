package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookfinder_http_requests_total",
		Help: "Total number of HTTP requests served",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bookfinder_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	UpstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookfinder_upstream_requests_total",
		Help: "Calls to the catalog API by endpoint and outcome",
	}, []string{"endpoint", "outcome"})

	UpstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bookfinder_upstream_request_duration_seconds",
		Help:    "Duration of catalog API calls in seconds",
		Buckets: []float64{.05, .1, .25, .5, 1, 2, 4, 6, 10},
	}, []string{"endpoint"})

	SearchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookfinder_searches_total",
		Help: "Search requests by outcome",
	}, []string{"outcome"})

	TitlesResolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookfinder_titles_resolved_total",
		Help: "Titles resolved by the strategy that produced the match (miss when none did)",
	}, []string{"strategy"})

	RateLimitDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookfinder_rate_limit_decisions_total",
		Help: "Daily quota decisions (allowed, rejected, store_error)",
	}, []string{"decision"})
)

// Outcome labels shared by upstream calls
const (
	OutcomeOK        = "ok"
	OutcomeEmpty     = "empty"
	OutcomeMarkup    = "markup"
	OutcomeMalformed = "malformed"
	OutcomeError     = "error"
	OutcomeOpen      = "breaker_open"
)
