// Package metrics defines and registers all custom Prometheus metrics for the
// user service. It is the single source of truth for metric names, labels and
// help strings. Metrics register with the default registry on package init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "accounts"

// ── Account metrics ───────────────────────────────────────────────────────────

// RegistrationsTotal counts registration attempts.
// Label:
//   - result: "created", "duplicate", "invalid" or "error"
var RegistrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of registration attempts, by result.",
	},
	[]string{"result"},
)

// LoginsTotal counts login attempts.
// Label:
//   - result: "success", "invalid_credentials", "throttled" or "error"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// ── Progression metrics ───────────────────────────────────────────────────────

// ExperienceGrantedTotal sums experience points granted.
var ExperienceGrantedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "experience_granted_total",
		Help:      "Total experience points granted across all accounts.",
	},
)

// LevelUpsTotal counts grants that raised an account's level.
var LevelUpsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "level_ups_total",
		Help:      "Total number of experience grants that caused a level-up.",
	},
)

// CoinGrantsTotal counts coin grants.
// Label:
//   - direction: "credit" for amounts >= 0, "debit" otherwise
var CoinGrantsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "coin_grants_total",
		Help:      "Total number of coin grants, by direction.",
	},
	[]string{"direction"},
)

// GrantOutcomesTotal counts grant requests that did not apply normally.
// Labels:
//   - kind: "experience" or "coins"
//   - outcome: "replayed" or "conflict"
var GrantOutcomesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "grant_outcomes_total",
		Help:      "Grant requests that were replayed or exhausted their optimistic-lock retries.",
	},
	[]string{"kind", "outcome"},
)

// ── Event metrics ─────────────────────────────────────────────────────────────

// EventsPublishedTotal counts account events delivered downstream.
// Label:
//   - type: the account event type (e.g. "account.registered")
var EventsPublishedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Total number of account events published.",
	},
	[]string{"type"},
)

// EventsFailedTotal counts account events that could not be delivered.
// Label:
//   - reason: "queue_full" or "publish_failed"
var EventsFailedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_failed_total",
		Help:      "Total number of account events dropped or failed to publish.",
	},
	[]string{"reason"},
)

// EventsQueueDepth tracks the current number of events waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var EventsQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "events_queue_depth",
		Help:      "Current number of events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// EventPublishDuration measures how long a single downstream publish takes.
var EventPublishDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "event_publish_duration_seconds",
		Help:      "Duration of publishing one account event to the broker.",
		Buckets:   prometheus.DefBuckets,
	},
)
