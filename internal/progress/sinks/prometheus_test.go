package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/link-archiver/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms follow the event stream.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := progress.UUIDToBytes(uuid.New())
	now := time.Now()
	batch := []progress.Event{
		{RunID: runID, TS: now, Stage: progress.StageWorkerReady, WorkerID: 0},
		{RunID: runID, TS: now, Stage: progress.StageWorkerReady, WorkerID: 1},
		{RunID: runID, TS: now, Stage: progress.StageWorkerInitFailed, WorkerID: 2},
		{RunID: runID, TS: now, Stage: progress.StageJobStart, URL: "http://x.com/1"},
		{RunID: runID, TS: now, Stage: progress.StageJobStart, URL: "http://x.com/2"},
		{RunID: runID, TS: now, Stage: progress.StageJobDone, URL: "http://x.com/1", Media: 2, Dur: 3 * time.Second},
		{RunID: runID, TS: now, Stage: progress.StageJobError, URL: "http://x.com/2", Dur: time.Second},
		{RunID: runID, TS: now, Stage: progress.StageWorkerExit, WorkerID: 1},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.workersLive))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.workerInitFailures))
	require.Equal(t, 2.0, testutil.ToFloat64(sink.jobsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.jobsCompleted.WithLabelValues("success")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.jobsCompleted.WithLabelValues("error")))
	require.Equal(t, 2.0, testutil.ToFloat64(sink.mediaDownloads))
	require.Equal(t, 2, testutil.CollectAndCount(sink.jobDuration, "archiver_job_duration_seconds"))
	require.NoError(t, sink.Close(context.Background()))
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}

func TestLogSinkConsume(t *testing.T) {
	t.Parallel()

	sink := NewLogSink(zap.NewNop())
	err := sink.Consume(context.Background(), []progress.Event{{
		RunID: progress.UUIDToBytes(uuid.New()),
		TS:    time.Now(),
		Stage: progress.StageJobError,
		URL:   "http://x.com",
		Note:  "boom",
	}})
	require.NoError(t, err)
	require.NoError(t, sink.Close(context.Background()))
	require.NotNil(t, NewLogSink(nil))
}
