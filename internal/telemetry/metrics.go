package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Metrics — внутренние счётчики и gauge'и планировщика, TTL-менеджера и
// подписок. Регистрация в prometheus.Registerer — на усмотрение
// встраивающего приложения; пакет не поднимает /metrics сам.
type Metrics struct {
	JobsInstalledTotal       *prometheus.CounterVec
	JobsInstallFailedTotal   *prometheus.CounterVec
	TTLDeletesTotal          *prometheus.CounterVec
	SubscriptionBatchesTotal *prometheus.CounterVec
	SubscriptionResumeOrder  *prometheus.GaugeVec
	LeadershipHeld           *prometheus.GaugeVec
}

// NewMetrics builds a Metrics bundle and, if reg is non-nil, registers
// every collector with it. Passing a nil Registerer is valid: the caller
// gets working, incrementable metrics that are simply never scraped.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsInstalledTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduler",
			Name:      "jobs_installed_total",
			Help:      "Number of jobs successfully installed, by kind (pgcron|executor).",
		}, []string{"kind"}),
		JobsInstallFailedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduler",
			Name:      "jobs_install_failed_total",
			Help:      "Number of job install attempts that failed, by kind.",
		}, []string{"kind"}),
		TTLDeletesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scheduler",
			Name:      "ttl_deletes_total",
			Help:      "Number of TTL delete jobs executed, by table name.",
		}, []string{"table"}),
		SubscriptionBatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "subscription",
			Name:      "batches_delivered_total",
			Help:      "Number of event batches delivered to a subscription handler.",
		}, []string{"subscriber_id"}),
		SubscriptionResumeOrder: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "subscription",
			Name:      "resume_order",
			Help:      "resumeFromAndIncluding global order after the latest delivered batch, by subscriber.",
		}, []string{"subscriber_id"}),
		LeadershipHeld: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "scheduler",
			Name:      "leadership_held",
			Help:      "1 if this instance currently holds the named lock, else 0.",
		}, []string{"lock_name"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.JobsInstalledTotal,
			m.JobsInstallFailedTotal,
			m.TTLDeletesTotal,
			m.SubscriptionBatchesTotal,
			m.SubscriptionResumeOrder,
			m.LeadershipHeld,
		)
	}
	return m
}

// JobInstalled increments the install counter for kind ("pgcron" or
// "executor"). Satisfies scheduler.MetricsSink.
func (m *Metrics) JobInstalled(kind string) {
	m.JobsInstalledTotal.WithLabelValues(kind).Inc()
}

// JobInstallFailed increments the install-failure counter for kind.
func (m *Metrics) JobInstallFailed(kind string) {
	m.JobsInstallFailedTotal.WithLabelValues(kind).Inc()
}

// LeadershipChanged sets the leadership_held gauge for lockName.
func (m *Metrics) LeadershipChanged(lockName string, held bool) {
	value := 0.0
	if held {
		value = 1.0
	}
	m.LeadershipHeld.WithLabelValues(lockName).Set(value)
}

// TTLDeleteRan increments the TTL delete counter for table.
func (m *Metrics) TTLDeleteRan(table string) {
	m.TTLDeletesTotal.WithLabelValues(table).Inc()
}

// SubscriptionBatchDelivered increments the batch counter and records the
// new resume order for subscriberID.
func (m *Metrics) SubscriptionBatchDelivered(subscriberID string, resumeOrder int64) {
	m.SubscriptionBatchesTotal.WithLabelValues(subscriberID).Inc()
	m.SubscriptionResumeOrder.WithLabelValues(subscriberID).Set(float64(resumeOrder))
}
