// Package telemetry provides application-level observability for ProjectHub.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// served by the side-channel HTTP server started by cmd/server:
//
//	GET http://<host>:<PH_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint is not served by the Gin router.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Email delivery outcomes, by template kind
//   - Team invitation lifecycle: created, redeemed, purged
//   - Team membership mutations
//   - Requests rejected by the rate limiter
//   - Database connection pool gauges (polled every 15 s)
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /api/teams/:id/members/:userId)
// rather than the raw request URL so team, user and token path segments never
// become label values.
package telemetry

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, route template, and status code.
//
// Example PromQL queries:
//   - Error rate (%):        sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - p99 latency per route: histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// EmailsSentTotal counts outbound email attempts by template kind
// (welcome, team_added, team_invitation, task_assigned, project_invitation,
// password_reset) and result (sent, failed). Delivery is fire-and-forget, so
// this counter is the only place send failures surface besides the logs.
//
// Example PromQL queries:
//   - Failure ratio:  sum(rate(projecthub_emails_sent_total{result="failed"}[1h])) / sum(rate(projecthub_emails_sent_total[1h]))
var EmailsSentTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "projecthub_emails_sent_total",
		Help: "Total number of outbound emails attempted, by kind and result.",
	},
	[]string{"kind", "result"},
)

// Invitation lifecycle counters.
var (
	InvitationsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "projecthub_invitations_created_total",
			Help: "Total number of team invitations created or refreshed.",
		},
	)

	InvitationsRedeemedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "projecthub_invitations_redeemed_total",
			Help: "Total number of team invitations redeemed into memberships.",
		},
	)

	InvitationsPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "projecthub_invitations_purged_total",
			Help: "Total number of expired team invitations deleted by the purge job.",
		},
	)
)

// TeamMembershipChangesTotal counts membership mutations by operation
// (added, removed, role_changed).
var TeamMembershipChangesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "projecthub_team_membership_changes_total",
		Help: "Total number of team membership mutations, by operation.",
	},
	[]string{"op"},
)

// RateLimitedRequestsTotal counts requests rejected with 429, by limiter tier
// (general, auth).
var RateLimitedRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "projecthub_rate_limited_requests_total",
		Help: "Total number of requests rejected by the rate limiter, by tier.",
	},
	[]string{"tier"},
)

// Database connection pool gauges, sampled by StartDBStatsCollector.
var (
	DBOpenConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_open_connections",
			Help: "Current number of open database connections in the pool.",
		},
	)

	DBInUseConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_in_use_connections",
			Help: "Current number of database connections in use.",
		},
	)
)

// DBStatsInterval is how often StartDBStatsCollector samples the pool.
const DBStatsInterval = 15 * time.Second

// StartDBStatsCollector samples sql.DB pool statistics every DBStatsInterval
// until ctx is cancelled or the database stops answering pings.
func StartDBStatsCollector(ctx context.Context, db *sql.DB) {
	go func() {
		ticker := time.NewTicker(DBStatsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := db.PingContext(ctx); err != nil {
					if ctx.Err() == nil {
						slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
					}
					return
				}
				recordDBStats(db.Stats())
			}
		}
	}()
}

func recordDBStats(s sql.DBStats) {
	DBOpenConnections.Set(float64(s.OpenConnections))
	DBInUseConnections.Set(float64(s.InUse))
}
