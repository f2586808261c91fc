package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kapitbahay_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kapitbahay_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "path"})
)

// NormalizePath collapses per-resource path segments so metric cardinality
// stays bounded. /api/posts/<uuid>/reactions becomes /api/posts/{id}/reactions.
func NormalizePath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if i == 0 || p == "" {
			continue
		}
		// Anything after a collection segment that is not a known verb is a
		// resource ID.
		switch parts[i-1] {
		case "posts", "modqueue", "vendors":
			switch p {
			case "reactions", "report", "extend", "view", "resolve", "location":
			default:
				parts[i] = "{id}"
			}
		}
	}
	return strings.Join(parts, "/")
}
