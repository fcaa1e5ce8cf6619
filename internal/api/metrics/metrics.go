// Package metrics defines and registers all custom Prometheus metrics for the
// Protomind user service. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry at package
// initialisation through promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "protomind"

// ── User metrics ──────────────────────────────────────────────────────────────

// UsersCreatedTotal counts accounts created through the API.
// Label:
//   - role: role assigned to the new account (e.g. "secretary", "external")
var UsersCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "users_created_total",
		Help:      "Total number of user accounts created, by assigned role.",
	},
	[]string{"role"},
)

// UserCreateErrorsTotal counts rejected or failed account creations.
// Label:
//   - reason: "unexpected_role", "duplicate", "invalid_payload" or "internal"
var UserCreateErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "user_create_errors_total",
		Help:      "Total number of user creations that failed, by reason.",
	},
	[]string{"reason"},
)

// EmailConfirmationsTotal counts confirm-email redemptions.
// Label:
//   - result: "confirmed", "rejected" or "error"
var EmailConfirmationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "email_confirmations_total",
		Help:      "Total number of confirmation code redemptions, by result.",
	},
	[]string{"result"},
)

// ── Mail metrics ──────────────────────────────────────────────────────────────

// MailsSentTotal counts delivery attempts made by the mail dispatcher.
// Labels:
//   - view: template rendered for the mail (e.g. "email.confirm_email")
//   - result: "sent" or "failed"
var MailsSentTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mails_sent_total",
		Help:      "Total number of mail delivery attempts, by view and result.",
	},
	[]string{"view", "result"},
)

// MailQueueDepth tracks the number of mails waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var MailQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "mail_queue_depth",
		Help:      "Current number of mails pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// MailDeliveryDuration measures how long a single delivery takes, render included.
var MailDeliveryDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "mail_delivery_duration_seconds",
		Help:      "Duration of a mail delivery from dequeue to relay acknowledgement.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"result"},
)
