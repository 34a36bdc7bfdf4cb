// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "status"},
	)

	// ReplyDuration tracks reply round-trips as seen by a view.
	ReplyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "view_reply_duration_seconds",
			Help:    "Time from sending a turn to observing the reply",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"mode", "outcome"},
	)

	// RepliesTotal counts reply exchanges by mode and outcome.
	RepliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "view_replies_total",
			Help: "Reply exchanges issued by views",
		},
		[]string{"mode", "kind", "outcome"},
	)

	// ReconcileTotal counts reconciliation reloads.
	ReconcileTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "view_reconcile_total",
			Help: "Reconciliation reloads after a reply",
		},
		[]string{"outcome"},
	)

	// ViewsActive tracks mounted views.
	ViewsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "views_active",
			Help: "Number of mounted conversation views",
		},
	)

	// SidebarAutoOpens counts automatic sidebar opens.
	SidebarAutoOpens = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sidebar_auto_opens_total",
			Help: "Sidebar opens triggered by a document mention",
		},
	)

	// UploadsTotal counts document uploads by outcome.
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "document_uploads_total",
			Help: "Document uploads against checklist slots",
		},
		[]string{"outcome"},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// LLMDuration tracks LLM completion latency.
	LLMDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_completion_duration_seconds",
			Help:    "LLM completion duration",
			Buckets: []float64{.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"provider", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"provider", "direction"},
	)

	// ConversationsTotal tracks conversations created.
	ConversationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conversations_total",
			Help: "Total conversations created",
		},
	)

	// MessagesTotal tracks messages appended to conversations.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages appended",
		},
		[]string{"role"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, status string, duration float64) {
	RequestDuration.WithLabelValues(method, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, status).Inc()
}

// RecordReply records one reply exchange issued by a view.
func RecordReply(mode, kind, outcome string, duration float64) {
	RepliesTotal.WithLabelValues(mode, kind, outcome).Inc()
	ReplyDuration.WithLabelValues(mode, outcome).Observe(duration)
}

// RecordLLM records metrics for an LLM completion.
func RecordLLM(provider, status string, duration float64, tokensIn, tokensOut int) {
	LLMDuration.WithLabelValues(provider, status).Observe(duration)
	LLMTokensTotal.WithLabelValues(provider, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(provider, "out").Add(float64(tokensOut))
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
