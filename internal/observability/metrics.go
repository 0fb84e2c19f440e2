// Package observability exposes Prometheus metrics for the message flow and
// the background pipeline.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	messagesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitness_pal",
		Subsystem: "chat",
		Name:      "messages_total",
		Help:      "Inbound webhook messages handled, labelled by the onboarding state that received them.",
	}, []string{"state"})

	quotaRefusalsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fitness_pal",
		Subsystem: "chat",
		Name:      "quota_refusals_total",
		Help:      "Messages refused because the daily free-tier ceiling was reached.",
	})

	sessionsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitness_pal",
		Subsystem: "pipeline",
		Name:      "sessions_processed_total",
		Help:      "Extraction pass session outcomes.",
	}, []string{"result"})

	extractionPassGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fitness_pal",
		Subsystem: "pipeline",
		Name:      "last_extraction_pass_timestamp_seconds",
		Help:      "Unix timestamp of the most recent completed extraction pass.",
	})

	staleSessionsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fitness_pal",
		Subsystem: "pipeline",
		Name:      "stale_sessions_deleted_total",
		Help:      "Incomplete sessions purged by the retention job.",
	})

	rollupUsersGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fitness_pal",
		Subsystem: "dashboard",
		Name:      "last_rollup_users",
		Help:      "Users written by the most recent dashboard rollup pass.",
	})

	summariesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitness_pal",
		Subsystem: "chat",
		Name:      "recaps_sent_total",
		Help:      "Workout recap messages delivered, labelled by period.",
	}, []string{"period"})
)

func init() {
	prometheus.MustRegister(
		messagesCounter,
		quotaRefusalsCounter,
		sessionsCounter,
		extractionPassGauge,
		staleSessionsCounter,
		rollupUsersGauge,
		summariesCounter,
	)
}

// RecordMessage counts one handled webhook message for a state label.
func RecordMessage(state string) {
	messagesCounter.WithLabelValues(state).Inc()
}

// RecordQuotaRefusal counts one quota refusal.
func RecordQuotaRefusal() {
	quotaRefusalsCounter.Inc()
}

// RecordExtractionPass records the outcome counts of one extraction pass.
func RecordExtractionPass(succeeded, failed, skipped int, finished time.Time) {
	sessionsCounter.WithLabelValues("success").Add(float64(succeeded))
	sessionsCounter.WithLabelValues("failed").Add(float64(failed))
	sessionsCounter.WithLabelValues("skipped").Add(float64(skipped))
	if !finished.IsZero() {
		extractionPassGauge.Set(float64(finished.Unix()))
	}
}

// RecordStaleSessionsDeleted counts sessions purged by the retention job.
func RecordStaleSessionsDeleted(n int64) {
	if n > 0 {
		staleSessionsCounter.Add(float64(n))
	}
}

// RecordRollup records the size of the most recent dashboard rollup.
func RecordRollup(users int) {
	rollupUsersGauge.Set(float64(users))
}

// RecordRecapsSent counts recap deliveries for a period ("daily" or
// "weekly").
func RecordRecapsSent(period string, n int) {
	if n > 0 {
		summariesCounter.WithLabelValues(period).Add(float64(n))
	}
}
