// Package metrics defines and registers the custom Prometheus metrics of the
// gadgetcloud backend. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default registry at package init through
// promauto; HTTP request metrics come from the echoprometheus middleware.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gadgetcloud"

// ── Authentication ────────────────────────────────────────────────────────────

// LoginAttemptsTotal counts login attempts by outcome.
// Label:
//   - result: "success", "invalid_credentials", "inactive", "throttled"
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// SignupsTotal counts accounts created through self-registration.
var SignupsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "signups_total",
		Help:      "Total number of successful self-registrations.",
	},
)

// AuthorizationDenialsTotal counts requests rejected by the auth middleware.
// Label:
//   - reason: "unauthenticated", "account_inactive", "forbidden"
var AuthorizationDenialsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "authorization_denials_total",
		Help:      "Total number of requests denied by authentication or role checks.",
	},
	[]string{"reason"},
)

// AdminActionsTotal counts successful administrative mutations.
// Label:
//   - action: "create", "update", "role_change", "deactivate", "reactivate"
var AdminActionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "admin_actions_total",
		Help:      "Total number of administrative user mutations, by action.",
	},
	[]string{"action"},
)

// ── Audit ─────────────────────────────────────────────────────────────────────

// AuditEventsTotal counts audit entries handed to the dispatcher.
// Label:
//   - event_type: the recorded event type (e.g. "role_change")
var AuditEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_events_total",
		Help:      "Total number of audit events recorded, by event type.",
	},
	[]string{"event_type"},
)

// AuditWritesTotal counts final outcomes of audit persistence.
// Label:
//   - result: "ok", "retried_ok", "failed", "dropped"
var AuditWritesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_writes_total",
		Help:      "Total number of audit write outcomes.",
	},
	[]string{"result"},
)

// AuditQueueDepth tracks the entries waiting in each dispatcher worker channel.
// Label:
//   - worker_id: numeric worker index
var AuditQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audit_queue_depth",
		Help:      "Current number of audit entries pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// AuditWriteDuration measures a single append attempt against the store.
var AuditWriteDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "audit_write_duration_seconds",
		Help:      "Duration of individual audit append attempts.",
		Buckets:   prometheus.DefBuckets,
	},
)
