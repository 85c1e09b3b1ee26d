package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/clipdl/internal/progress"
)

func TestLogSinkLevels(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewLogSink(zap.New(core))

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{Seq: 1, JobID: "a", TS: time.Now(), Stage: progress.StageJobStart, Level: progress.LevelInfo, URL: "https://youtu.be/x"},
		{Seq: 2, JobID: "a", TS: time.Now(), Stage: progress.StageJobError, Level: progress.LevelError, Message: "transcode: boom"},
	}))

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, zapcore.InfoLevel, entries[0].Level)
	require.Equal(t, "JOB_START", entries[0].Message)
	require.Equal(t, "https://youtu.be/x", entries[0].ContextMap()["url"])
	require.Equal(t, zapcore.WarnLevel, entries[1].Level)
	require.Equal(t, "transcode: boom", entries[1].Message)
	require.Equal(t, "a", entries[1].ContextMap()["job_id"])
}
