package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SagasTotal counts finished workflow runs by flow and outcome
	SagasTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_node_sagas_total",
			Help: "Total number of finished issuance and move workflows",
		},
		[]string{"flow", "outcome"},
	)

	// SagaDuration tracks workflow run time
	SagaDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "token_node_saga_duration_seconds",
			Help:    "Workflow duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		},
		[]string{"flow"},
	)

	// SagaFailures counts aborted workflows by the stage that failed and the error kind
	SagaFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_node_saga_failures_total",
			Help: "Total number of aborted workflows",
		},
		[]string{"flow", "stage", "kind"},
	)

	// ActiveSagas tracks workflows currently in flight
	ActiveSagas = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "token_node_active_sagas",
			Help: "Number of workflows currently running",
		},
		[]string{"flow"},
	)

	// SessionsOpened counts peer sessions by direction (initiated, accepted) and flow
	SessionsOpened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_node_sessions_opened_total",
			Help: "Total number of peer sessions opened",
		},
		[]string{"direction", "flow"},
	)

	// SessionsRejected counts inbound sessions refused before a responder ran
	SessionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_node_sessions_rejected_total",
			Help: "Total number of inbound sessions rejected",
		},
		[]string{"reason"},
	)

	// SessionMessages counts protocol messages by direction and kind
	SessionMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_node_session_messages_total",
			Help: "Total number of session messages",
		},
		[]string{"direction", "kind"},
	)

	// ResponderFailures counts responder flows that returned an error
	ResponderFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_node_responder_failures_total",
			Help: "Total number of failed responder flows",
		},
		[]string{"flow"},
	)

	// RecipientsAdded counts distribution records inserted by operation (add, update)
	RecipientsAdded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_node_distribution_recipients_added_total",
			Help: "Total number of distribution records inserted",
		},
		[]string{"operation"},
	)

	// AnonymousIdentities counts confidential identities minted or received
	AnonymousIdentities = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_node_anonymous_identities_total",
			Help: "Total number of anonymous identities exchanged",
		},
		[]string{"role"},
	)

	// TransactionsRecorded counts committed transactions stored in the vault by visibility
	TransactionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_node_transactions_recorded_total",
			Help: "Total number of committed transactions recorded",
		},
		[]string{"visibility"},
	)

	// FinalityDeliveryFailures counts committed transactions a counterparty did not acknowledge
	FinalityDeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_node_finality_delivery_failures_total",
			Help: "Total number of committed transactions not acknowledged by a counterparty",
		},
		[]string{"role"},
	)
)
