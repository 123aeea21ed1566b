// Package metrics exposes Prometheus counters for job polling, quiz submissions and live sessions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"studynotes-client/internal/jobs"
)

type Metrics struct {
	registry    *prometheus.Registry
	polls       *prometheus.CounterVec
	outcomes    *prometheus.CounterVec
	submissions *prometheus.CounterVec
	sessions    *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		polls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studynotes_job_polls_total",
				Help: "Total number of job status checks",
			},
			[]string{"policy"},
		),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studynotes_job_outcomes_total",
				Help: "Tracked jobs by final state",
			},
			[]string{"policy", "state"},
		),
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "studynotes_quiz_submissions_total",
				Help: "Total number of quiz submissions",
			},
			[]string{"outcome"},
		),
		sessions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "studynotes_live_sessions_current",
				Help: "Current number of open quiz and summary sessions",
			},
			[]string{"kind"},
		),
	}
	m.registry.MustRegister(m.polls, m.outcomes, m.submissions, m.sessions)
	return m
}

func (m *Metrics) ObservePoll(policy string) {
	m.polls.WithLabelValues(policy).Inc()
}

func (m *Metrics) ObserveOutcome(policy string, state jobs.State) {
	m.outcomes.WithLabelValues(policy, state.String()).Inc()
}

func (m *Metrics) ObserveSubmission(ok bool) {
	outcome := "failed"
	if ok {
		outcome = "graded"
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SessionOpened(kind string) {
	m.sessions.WithLabelValues(kind).Inc()
}

func (m *Metrics) SessionClosed(kind string) {
	m.sessions.WithLabelValues(kind).Dec()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
