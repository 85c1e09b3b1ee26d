package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/clipdl/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms are incremented from events.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	require.Equal(t, -1.0, testutil.ToFloat64(sink.queueIndex))

	now := time.Now()
	batch := []progress.Event{
		{JobID: "a", TS: now, Stage: progress.StageJobQueued, Level: progress.LevelInfo},
		{TS: now, Stage: progress.StageQueueIndex, Level: progress.LevelInfo, Index: 0},
		{JobID: "a", TS: now, Stage: progress.StageJobStart, Level: progress.LevelInfo},
		{JobID: "a", TS: now, Stage: progress.StageJobWarning, Level: progress.LevelInfo, Step: "thumbnail"},
		{JobID: "a", TS: now, Stage: progress.StageJobDone, Level: progress.LevelInfo, Dur: 15 * time.Second},
		{JobID: "b", TS: now, Stage: progress.StageJobStart, Level: progress.LevelInfo},
		{JobID: "b", TS: now, Stage: progress.StageJobError, Level: progress.LevelError, Dur: time.Second},
		{TS: now, Stage: progress.StageNotice, Level: progress.LevelInfo, Message: "job not found"},
		{TS: now, Stage: progress.StageQueueIndex, Level: progress.LevelInfo, Index: -1},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.jobsQueued))
	require.Equal(t, 2.0, testutil.ToFloat64(sink.jobsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.jobsCompleted.WithLabelValues("success")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.jobsCompleted.WithLabelValues("error")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.jobsRunning))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.jobWarnings.WithLabelValues("thumbnail")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.notices.WithLabelValues("info")))
	require.Equal(t, -1.0, testutil.ToFloat64(sink.queueIndex))
	require.Equal(t, 2, testutil.CollectAndCount(sink.jobRuntime, "clipdl_job_runtime_seconds"))
}

// TestPrometheusSinkDuplicateRegistration ensures a second sink on the same
// registry is rejected.
func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.ErrorContains(t, err, "register progress collector")
}
