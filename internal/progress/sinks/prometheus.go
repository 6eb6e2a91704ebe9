package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/link-archiver/internal/progress"
)

// PrometheusSink exports pool and job metrics derived from progress events.
type PrometheusSink struct {
	workersLive        prometheus.Gauge
	workerInitFailures prometheus.Counter
	jobsStarted        prometheus.Counter
	jobsCompleted      *prometheus.CounterVec
	jobDuration        *prometheus.HistogramVec
	mediaDownloads     prometheus.Counter
}

// NewPrometheusSink registers the collectors against reg, or the default
// registerer when reg is nil.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		workersLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "archiver_workers_live",
			Help: "Workers that signaled ready and have not been retired.",
		}),
		workerInitFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "archiver_worker_init_failures_total",
			Help: "Workers that failed to acquire a renderer.",
		}),
		jobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "archiver_jobs_started_total",
			Help: "Capture jobs handed to a worker.",
		}),
		jobsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "archiver_jobs_completed_total",
			Help: "Capture jobs completed partitioned by result.",
		}, []string{"result"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "archiver_job_duration_seconds",
			Help:    "Wall time per capture job.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
		}, []string{"result"}),
		mediaDownloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "archiver_media_downloads_total",
			Help: "Media side downloads stored alongside screenshots.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.workersLive,
		s.workerInitFailures,
		s.jobsStarted,
		s.jobsCompleted,
		s.jobDuration,
		s.mediaDownloads,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageWorkerReady:
			s.workersLive.Inc()
		case progress.StageWorkerExit:
			s.workersLive.Dec()
		case progress.StageWorkerInitFailed:
			s.workerInitFailures.Inc()
		case progress.StageJobStart:
			s.jobsStarted.Inc()
		case progress.StageJobDone:
			s.observeJob(evt, "success")
			s.mediaDownloads.Add(float64(evt.Media))
		case progress.StageJobError:
			s.observeJob(evt, "error")
		}
	}
	return nil
}

func (s *PrometheusSink) observeJob(evt progress.Event, result string) {
	s.jobsCompleted.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.jobDuration.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
}

// Close implements progress.Sink.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
