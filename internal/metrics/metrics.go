// Package metrics exposes Prometheus counters for the reminder engine.
// Everything is labeled by phase so T42/T14/T3 can be graphed independently.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Collector struct {
	Attempts        *prometheus.CounterVec
	EmailsSent      *prometheus.CounterVec
	EmailErrors     *prometheus.CounterVec
	Resets          *prometheus.CounterVec
	Escalations     *prometheus.CounterVec
	EscalationFails *prometheus.CounterVec
	Closed          *prometheus.CounterVec
	Skipped         *prometheus.CounterVec

	PassDuration *prometheus.HistogramVec
}

func NewCollector() *Collector {
	c := &Collector{
		Attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_attempts_total",
			Help: "Reminder attempt slots consumed",
		}, []string{"phase"}),
		EmailsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_emails_sent_total",
			Help: "Reminder emails handed to the mail channel",
		}, []string{"phase"}),
		EmailErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_email_errors_total",
			Help: "Reminder emails that failed to send; the attempt still counts",
		}, []string{"phase"}),
		Resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_job_resets_total",
			Help: "Jobs reset after the delivery date moved back out",
		}, []string{"phase"}),
		Escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_escalations_total",
			Help: "Escalation claims won",
		}, []string{"phase"}),
		EscalationFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_escalation_post_failures_total",
			Help: "ERP escalation writes that failed after a won claim",
		}, []string{"phase"}),
		Closed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_jobs_closed_total",
			Help: "Jobs closed because the customer confirmed",
		}, []string{"phase"}),
		Skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_orders_skipped_total",
			Help: "Candidate orders that needed no action this pass",
		}, []string{"phase"}),
		PassDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notify_pass_duration_seconds",
			Help:    "Wall time of one phase pass",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"phase"}),
	}
	return c
}

// Register hooks every collector into the given registry.
func (c *Collector) Register(reg prometheus.Registerer) {
	reg.MustRegister(
		c.Attempts,
		c.EmailsSent,
		c.EmailErrors,
		c.Resets,
		c.Escalations,
		c.EscalationFails,
		c.Closed,
		c.Skipped,
		c.PassDuration,
	)
}
