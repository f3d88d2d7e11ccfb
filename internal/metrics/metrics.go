// Package metrics exposes the gateway's Prometheus counters. These
// restore, as proper metrics, the in-process stats the original
// implementation only ever printed to its own console.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_messages_received_total",
			Help: "Total number of device messages received on the ingress topic",
		},
	)

	MessagesAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_messages_accepted_total",
			Help: "Total number of device messages that passed all five validation checks",
		},
	)

	MessagesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_messages_rejected_total",
			Help: "Total number of device messages rejected, by reason",
		},
		[]string{"reason"},
	)

	MessagesForwarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_messages_forwarded_total",
			Help: "Total number of accepted messages successfully POSTed to the backend",
		},
	)

	BackendCallDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gateway_backend_call_duration_seconds",
			Help:    "Duration of egress HTTP calls to the backend",
			Buckets: prometheus.DefBuckets,
		},
	)

	BackendCallErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_backend_call_errors_total",
			Help: "Total number of egress HTTP calls that failed, by kind",
		},
		[]string{"kind"},
	)

	CommandsAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_commands_accepted_total",
			Help: "Total number of backend-initiated commands published to a device",
		},
	)

	CommandsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_commands_rejected_total",
			Help: "Total number of backend-initiated commands rejected, by reason",
		},
		[]string{"reason"},
	)
)
