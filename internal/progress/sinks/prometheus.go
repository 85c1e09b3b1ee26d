package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/clipdl/internal/progress"
)

// PrometheusSink exports queue and job metrics derived from the event stream.
type PrometheusSink struct {
	queueIndex    prometheus.Gauge
	jobsQueued    prometheus.Counter
	jobsStarted   prometheus.Counter
	jobsCompleted *prometheus.CounterVec
	jobsRunning   prometheus.Gauge
	jobRuntime    *prometheus.HistogramVec
	jobWarnings   *prometheus.CounterVec
	notices       *prometheus.CounterVec

	tracker *jobTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		queueIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "clipdl_queue_index",
			Help: "Queue index as shown to the display; -1 when idle.",
		}),
		jobsQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clipdl_jobs_queued_total",
			Help: "Total jobs admitted to the queue.",
		}),
		jobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clipdl_jobs_started_total",
			Help: "Total jobs that have started.",
		}),
		jobsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clipdl_jobs_completed_total",
			Help: "Total jobs completed partitioned by result.",
		}, []string{"result"}),
		jobsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "clipdl_jobs_running",
			Help: "Jobs currently in the pipeline (0 or 1).",
		}),
		jobRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clipdl_job_runtime_seconds",
			Help:    "Wall time per completed job.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"result"}),
		jobWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clipdl_job_warnings_total",
			Help: "Recoverable job problems partitioned by kind.",
		}, []string{"kind"}),
		notices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clipdl_notices_total",
			Help: "Notices sent to the display partitioned by level.",
		}, []string{"level"}),
		tracker: newJobTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.queueIndex,
		s.jobsQueued,
		s.jobsStarted,
		s.jobsCompleted,
		s.jobsRunning,
		s.jobRuntime,
		s.jobWarnings,
		s.notices,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	s.queueIndex.Set(progress.IdleIndex)
	return s, nil
}

// Consume updates the collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageQueueIndex:
		s.queueIndex.Set(float64(evt.Index))
	case progress.StageJobQueued:
		s.jobsQueued.Inc()
	case progress.StageJobStart:
		s.jobsStarted.Inc()
		if s.tracker.start(evt.JobID) {
			s.jobsRunning.Inc()
		}
	case progress.StageJobDone:
		s.complete(evt, "success")
	case progress.StageJobError:
		s.complete(evt, "error")
	case progress.StageJobWarning:
		s.jobWarnings.WithLabelValues(evt.Step).Inc()
	case progress.StageNotice:
		s.notices.WithLabelValues(string(evt.Level)).Inc()
	}
}

func (s *PrometheusSink) complete(evt progress.Event, result string) {
	s.jobsCompleted.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.jobRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
	if s.tracker.complete(evt.JobID) {
		s.jobsRunning.Dec()
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type jobTracker struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func newJobTracker() *jobTracker {
	return &jobTracker{running: make(map[string]struct{})}
}

func (t *jobTracker) start(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *jobTracker) complete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
