package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shaiso/mediacorr/internal/domain"
)

// Metrics — Prometheus метрики runner'а.
//
// Metrics реализует runner.Observer: достаточно добавить его в
// Config.Observers.
type Metrics struct {
	runsTotal    *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	runActive    *prometheus.GaugeVec
	jobsTotal    *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	jobLastSucc  *prometheus.GaugeVec
	triggersSkip prometheus.Counter
}

// jobBuckets — от 10 секунд до 2 часов: jobs пайплайна долгие.
var jobBuckets = []float64{10, 30, 60, 120, 300, 600, 1200, 1800, 3600, 7200}

// NewMetrics создаёт метрики и регистрирует их в reg.
// reg == nil → prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mediacorr_runs_total",
			Help: "Finished pipeline runs by final status",
		}, []string{"pipeline", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mediacorr_run_duration_seconds",
			Help:    "Pipeline run duration",
			Buckets: jobBuckets,
		}, []string{"pipeline"}),
		runActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mediacorr_run_active",
			Help: "1 while a pipeline run is in progress",
		}, []string{"pipeline"}),
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mediacorr_jobs_total",
			Help: "Finished jobs by final status",
		}, []string{"job", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mediacorr_job_duration_seconds",
			Help:    "Job duration from submission to terminal condition",
			Buckets: jobBuckets,
		}, []string{"job"}),
		jobLastSucc: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mediacorr_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful job completion",
		}, []string{"job"}),
		triggersSkip: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediacorr_trigger_skipped_total",
			Help: "Triggers skipped because a run was already in progress",
		}),
	}

	reg.MustRegister(
		m.runsTotal,
		m.runDuration,
		m.runActive,
		m.jobsTotal,
		m.jobDuration,
		m.jobLastSucc,
		m.triggersSkip,
	)
	return m
}

// TriggerSkipped учитывает пропущенный запуск (cron или очередь).
func (m *Metrics) TriggerSkipped() {
	m.triggersSkip.Inc()
}

func (m *Metrics) OnRunStarted(_ context.Context, run *domain.Run) error {
	m.runActive.WithLabelValues(run.Pipeline).Set(1)
	return nil
}

func (m *Metrics) OnJobStarted(context.Context, *domain.Run, *domain.JobRun) error {
	return nil
}

func (m *Metrics) OnJobFinished(_ context.Context, _ *domain.Run, job *domain.JobRun) error {
	m.jobsTotal.WithLabelValues(job.Name, string(job.Status)).Inc()
	if job.Resource != "" {
		m.jobDuration.WithLabelValues(job.Name).Observe(job.Duration().Seconds())
	}
	if job.Status == domain.JobStatusSucceeded && job.FinishedAt != nil {
		m.jobLastSucc.WithLabelValues(job.Name).Set(float64(job.FinishedAt.Unix()))
	}
	return nil
}

func (m *Metrics) OnRunFinished(_ context.Context, run *domain.Run) error {
	m.runActive.WithLabelValues(run.Pipeline).Set(0)
	m.runsTotal.WithLabelValues(run.Pipeline, string(run.Status)).Inc()
	m.runDuration.WithLabelValues(run.Pipeline).Observe(run.Duration().Seconds())
	return nil
}
