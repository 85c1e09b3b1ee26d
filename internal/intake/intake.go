// Package intake turns candidate text from an input surface into queued jobs.
package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/JakeFAU/clipdl/internal/clock/system"
	"github.com/JakeFAU/clipdl/internal/id/uuid"
	"github.com/JakeFAU/clipdl/internal/media"
	"github.com/JakeFAU/clipdl/internal/metrics"
	"github.com/JakeFAU/clipdl/internal/progress"
)

// Enqueuer admits jobs to the scheduler.
type Enqueuer interface {
	Enqueue(ctx context.Context, job media.Job) error
}

// Intake classifies candidate text and admits supported URLs. Text arriving
// before MarkReady is reported and dropped.
type Intake struct {
	enqueuer Enqueuer
	emitter  progress.Emitter
	ids      media.IDGenerator
	clock    media.Clock
	logger   *zap.Logger
	ready    atomic.Bool
}

// New creates an Intake. Nil ids, clock, and emitter fall back to UUIDv7,
// the wall clock, and progress.Discard.
func New(enqueuer Enqueuer, emitter progress.Emitter, ids media.IDGenerator, clock media.Clock, logger *zap.Logger) *Intake {
	if logger == nil {
		logger = zap.NewNop()
	}
	if emitter == nil {
		emitter = progress.Discard
	}
	if ids == nil {
		ids = uuid.New()
	}
	if clock == nil {
		clock = system.New()
	}
	return &Intake{
		enqueuer: enqueuer,
		emitter:  emitter,
		ids:      ids,
		clock:    clock,
		logger:   logger.Named("intake"),
	}
}

// MarkReady opens the gate. It is called once the scheduler and reporters run.
func (in *Intake) MarkReady() {
	in.ready.Store(true)
}

// Ready reports whether candidates are being accepted.
func (in *Intake) Ready() bool {
	return in.ready.Load()
}

// OnCandidateText inspects text and enqueues a job when it is a supported URL.
// It returns media.ErrSurfaceNotReady before MarkReady and
// media.ErrClassificationMiss for anything that is not a supported URL.
func (in *Intake) OnCandidateText(ctx context.Context, text string) (media.Job, error) {
	if !in.Ready() {
		metrics.ObserveIntake(metrics.IntakeNotReady)
		in.logger.Warn("candidate dropped", zap.Error(media.ErrSurfaceNotReady))
		in.notice(progress.LevelError, media.ErrSurfaceNotReady.Error())
		return media.Job{}, media.ErrSurfaceNotReady
	}

	text = strings.TrimSpace(text)
	if !media.IsSupportedURL(text) {
		metrics.ObserveIntake(metrics.IntakeIgnored)
		in.logger.Debug("candidate ignored", zap.Int("length", len(text)))
		in.notice(progress.LevelInfo, media.ErrClassificationMiss.Error())
		return media.Job{}, media.ErrClassificationMiss
	}

	id, err := in.ids.NewID()
	if err != nil {
		metrics.ObserveIntake(metrics.IntakeRejected)
		return media.Job{}, fmt.Errorf("generate job id: %w", err)
	}
	job := media.Job{ID: id, URL: text, Submitted: in.clock.Now()}
	if err := in.enqueuer.Enqueue(ctx, job); err != nil {
		metrics.ObserveIntake(metrics.IntakeRejected)
		if !errors.Is(err, context.Canceled) {
			in.logger.Error("enqueue failed", zap.String("job_id", id), zap.String("url", text), zap.Error(err))
		}
		return media.Job{}, fmt.Errorf("enqueue job: %w", err)
	}
	metrics.ObserveIntake(metrics.IntakeAccepted)
	in.logger.Info("job accepted", zap.String("job_id", id), zap.String("url", text))
	return job, nil
}

func (in *Intake) notice(level progress.Level, msg string) {
	in.emitter.Emit(progress.Event{
		TS:      in.clock.Now(),
		Stage:   progress.StageNotice,
		Level:   level,
		Message: msg,
	})
}
