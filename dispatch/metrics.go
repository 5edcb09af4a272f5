package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeTestEvent  = "test_event"
	outcomeDispatched = "dispatched"
	outcomeSkipped    = "skipped"
	outcomeFailed     = "failed"
)

var (
	messagesReceivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatcher_messages_received_total",
			Help: "Count of queue messages received",
		},
	)

	messagesProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_messages_processed_total",
			Help: "Count of queue messages by processing outcome",
		},
		[]string{"outcome", "stage"},
	)

	jobsDispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_jobs_dispatched_total",
			Help: "Count of transcoding job submissions",
		},
		[]string{"status"},
	)

	messagesAcknowledgedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_messages_acknowledged_total",
			Help: "Count of queue message deletions",
		},
		[]string{"status"},
	)

	receiveErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatcher_receive_errors_total",
			Help: "Count of failed queue receive calls",
		},
	)
)

func InitMetrics() {
	prometheus.MustRegister(messagesReceivedTotal)
	prometheus.MustRegister(messagesProcessedTotal)
	prometheus.MustRegister(jobsDispatchedTotal)
	prometheus.MustRegister(messagesAcknowledgedTotal)
	prometheus.MustRegister(receiveErrorsTotal)
}
