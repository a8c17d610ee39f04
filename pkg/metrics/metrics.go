// Package metrics exposes the poll-loop counters scraped at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	PollsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leadsync_polls_total",
		Help: "Reconciliation attempts, successful or not.",
	})
	PollNoChange = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leadsync_polls_nochange_total",
		Help: "Polls answered with the no-change sentinel.",
	})
	PollFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leadsync_poll_failures_total",
		Help: "Polls aborted by a transport failure.",
	})
	TicksDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leadsync_ticks_dropped_total",
		Help: "Poll ticks dropped because a refresh was already in flight.",
	})
	NotificationsFired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "leadsync_notifications_total",
		Help: "Inbound-message notifications fired.",
	})
	MessagesCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "leadsync_messages_current",
		Help: "Messages in the published snapshot.",
	})
	ChatsCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "leadsync_chats_current",
		Help: "Distinct chats in the published snapshot.",
	})
	RefreshSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "leadsync_refresh_seconds",
		Help:    "Wall time of one reconciliation cycle.",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(
		PollsTotal, PollNoChange, PollFailures, TicksDropped,
		NotificationsFired, MessagesCurrent, ChatsCurrent, RefreshSeconds,
	)
}
