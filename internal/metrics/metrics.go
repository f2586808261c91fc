// Package metrics defines Prometheus metrics for the feed engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Post lifecycle metrics
var (
	PostsSubmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kapitbahay_posts_submitted_total",
		Help: "Total number of post submissions by outcome",
	}, []string{"category", "outcome"})

	PostsExpiredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kapitbahay_posts_expired_total",
		Help: "Total number of posts expired by the sweeper",
	}, []string{"category"})

	PostsAutoRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kapitbahay_posts_auto_removed_total",
		Help: "Total number of posts removed by community signal thresholds",
	})

	PostsArchivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kapitbahay_posts_archived_total",
		Help: "Total number of posts moved to cold storage",
	})

	ExtensionsGrantedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kapitbahay_extensions_granted_total",
		Help: "Total number of TTL extensions granted",
	}, []string{"kind"})
)

// Submission pipeline metrics
var (
	DuplicatesDetectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kapitbahay_duplicates_detected_total",
		Help: "Total number of duplicate detections by action taken",
	}, []string{"action"})

	RateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kapitbahay_rate_limited_total",
		Help: "Total number of submissions rejected by the rate limiter",
	})

	FuzzRadiusMeters = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kapitbahay_fuzz_radius_meters",
		Help:    "Distribution of applied location fuzz radii",
		Buckets: []float64{0, 10, 25, 50, 75, 100, 150, 200},
	})
)

// Moderation metrics
var (
	ModerationQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "kapitbahay_moderation_queue_depth",
		Help: "Open moderation queue items by status",
	}, []string{"status"})

	ModerationActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kapitbahay_moderation_actions_total",
		Help: "Total number of moderation actions taken",
	}, []string{"action"})

	ReportsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kapitbahay_reports_total",
		Help: "Total number of post reports accepted",
	})
)

// Reaction metrics
var (
	ReactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kapitbahay_reactions_total",
		Help: "Total number of reactions applied",
	}, []string{"type"})
)

// Proximity index metrics
var (
	IndexedPostsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kapitbahay_indexed_posts_total",
		Help: "Number of posts currently in the proximity index",
	})

	ProximityQueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kapitbahay_proximity_query_duration_seconds",
		Help:    "Proximity search duration in seconds",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	})
)

// Event fan-out metrics
var (
	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kapitbahay_events_published_total",
		Help: "Total number of feed events published",
	}, []string{"type"})

	EventSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kapitbahay_event_subscribers",
		Help: "Number of connected event stream subscribers",
	})
)

// Sweeper metrics
var (
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kapitbahay_sweep_duration_seconds",
		Help:    "Expiry sweep duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	SweepErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kapitbahay_sweep_errors_total",
		Help: "Total number of failed expiry sweeps",
	})
)
