package sinks

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/clipdl/internal/progress"
)

// LogSink writes every event as a structured log line. Error-level events
// log at warn so job failures stand out without paging anyone.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("events")}
}

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		level := zapcore.InfoLevel
		if evt.Level == progress.LevelError {
			level = zapcore.WarnLevel
		}
		if ce := s.logger.Check(level, eventMessage(evt)); ce != nil {
			ce.Write(eventFields(evt)...)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}

func eventMessage(evt progress.Event) string {
	if evt.Message != "" {
		return evt.Message
	}
	return string(evt.Stage)
}

func eventFields(evt progress.Event) []zap.Field {
	fields := []zap.Field{
		zap.Uint64("seq", evt.Seq),
		zap.String("stage", string(evt.Stage)),
	}
	if evt.JobID != "" {
		fields = append(fields, zap.String("job_id", evt.JobID))
	}
	if evt.Step != "" {
		fields = append(fields, zap.String("step", evt.Step))
	}
	if evt.URL != "" {
		fields = append(fields, zap.String("url", evt.URL))
	}
	if evt.Path != "" {
		fields = append(fields, zap.String("path", evt.Path))
	}
	if evt.Title != "" {
		fields = append(fields, zap.String("title", evt.Title))
	}
	if evt.Stage == progress.StageQueueIndex {
		fields = append(fields, zap.Int("index", evt.Index))
	}
	if evt.Dur > 0 {
		fields = append(fields, zap.Duration("dur", evt.Dur))
	}
	return fields
}
