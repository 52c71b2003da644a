package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tabledisco"

// Metrics — счётчики конвейера. Методы безопасно вызывать на nil.
type Metrics struct {
	submissions   *prometheus.CounterVec
	unitsSkipped  prometheus.Counter
	statusQueries *prometheus.CounterVec
	jobsExecuted  *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	joins         *prometheus.CounterVec
}

// NewMetrics регистрирует метрики в registerer.
// Повторная регистрация в одном registerer паникует.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Submitted topologies by submission type.",
		}, []string{"type"}),
		unitsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_skipped_total",
			Help:      "Units dropped by the idempotency gate.",
		}),
		statusQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_queries_total",
			Help:      "Status reconstructions by outcome.",
		}, []string{"outcome"}),
		jobsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "jobs_total",
			Help:      "Jobs finished by stage and final state.",
		}, []string{"stage", "state"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "job_duration_seconds",
			Help:      "Duration of the last job attempt.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		joins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatcher",
			Name:      "joins_total",
			Help:      "Finalize jobs settled by the dispatcher, by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.submissions,
		m.unitsSkipped,
		m.statusQueries,
		m.jobsExecuted,
		m.jobDuration,
		m.joins,
	)
	return m
}

// Submission считает принятую отправку по типу.
func (m *Metrics) Submission(kind string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(kind).Inc()
}

// UnitsSkipped считает таблицы, пропущенные как уже принятые.
func (m *Metrics) UnitsSkipped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.unitsSkipped.Add(float64(n))
}

// StatusQuery считает запрос статуса по исходу.
func (m *Metrics) StatusQuery(outcome string) {
	if m == nil {
		return
	}
	m.statusQueries.WithLabelValues(outcome).Inc()
}

// JobFinished фиксирует итог и длительность job.
func (m *Metrics) JobFinished(stage, state string, seconds float64) {
	if m == nil {
		return
	}
	m.jobsExecuted.WithLabelValues(stage, state).Inc()
	m.jobDuration.WithLabelValues(stage).Observe(seconds)
}

// JoinSettled считает решение по finalize job: released или failed.
func (m *Metrics) JoinSettled(outcome string) {
	if m == nil {
		return
	}
	m.joins.WithLabelValues(outcome).Inc()
}
