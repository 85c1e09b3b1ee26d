// Package dispatcher owns the job queue and runs at most one pipeline at a
// time. All admissions and continuations are serialized through a single
// loop goroutine, so the busy flag needs no lock.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/clipdl/internal/clock/system"
	"github.com/JakeFAU/clipdl/internal/media"
	"github.com/JakeFAU/clipdl/internal/progress"
)

// Pipeline runs one job to a terminal outcome.
type Pipeline interface {
	Process(ctx context.Context, job media.Job) media.Outcome
}

// Queue is the FIFO the scheduler drains.
type Queue interface {
	Push(job media.Job) (int, error)
	Pop() (media.Job, bool)
	Len() int
	Close()
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	Busy      bool       `json:"busy"`
	Current   *media.Job `json:"current,omitempty"`
	Index     int        `json:"index"`
	Pending   int        `json:"pending"`
	Succeeded int64      `json:"succeeded"`
	Failed    int64      `json:"failed"`
}

type admission struct {
	job   media.Job
	reply chan error
}

// Scheduler is the single active-or-idle state machine.
type Scheduler struct {
	queue    Queue
	pipeline Pipeline
	emitter  progress.Emitter
	clock    media.Clock
	logger   *zap.Logger

	admit   chan admission
	kick    chan struct{}
	waitReq chan chan struct{}
	done    chan media.Outcome
	stopped chan struct{}
	running atomic.Bool

	// Owned by the loop goroutine.
	busy      bool
	current   *media.Job
	index     int
	succeeded int64
	failed    int64
	waiters   []chan struct{}

	status atomic.Pointer[Status]
}

// ErrAlreadyRunning is returned when Run is called twice.
var ErrAlreadyRunning = errors.New("scheduler already running")

// New creates a Scheduler. Call Run to start it.
func New(queue Queue, pipeline Pipeline, emitter progress.Emitter, clock media.Clock, logger *zap.Logger) *Scheduler {
	if emitter == nil {
		emitter = progress.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = system.New()
	}
	s := &Scheduler{
		queue:    queue,
		pipeline: pipeline,
		emitter:  emitter,
		clock:    clock,
		logger:   logger.Named("scheduler"),
		admit:    make(chan admission),
		kick:     make(chan struct{}),
		waitReq:  make(chan chan struct{}),
		done:     make(chan media.Outcome, 1),
		stopped:  make(chan struct{}),
		index:    progress.IdleIndex,
	}
	s.publish()
	return s
}

// Run processes admissions and pipeline outcomes until ctx is cancelled.
// An in-flight job is allowed to observe the cancellation and report before
// Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(s.stopped)

	s.logger.Info("scheduler started")
	for {
		select {
		case adm := <-s.admit:
			adm.reply <- s.enqueue(ctx, adm.job)
		case <-s.kick:
			s.dequeueAndRun(ctx)
		case w := <-s.waitReq:
			s.addWaiter(w)
		case out := <-s.done:
			s.finish(ctx, out)
		case <-ctx.Done():
			s.shutdown()
			return nil
		}
	}
}

// Enqueue admits job at the tail of the queue. Processing starts right away
// when the scheduler is idle.
func (s *Scheduler) Enqueue(ctx context.Context, job media.Job) error {
	adm := admission{job: job, reply: make(chan error, 1)}
	select {
	case s.admit <- adm:
	case <-s.stopped:
		return media.ErrSchedulerStopped
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	}
	return <-adm.reply
}

// Kick asks the scheduler to start the next job. It is a no-op, reported as
// a notice, when a job is already running or nothing is queued.
func (s *Scheduler) Kick(ctx context.Context) error {
	select {
	case s.kick <- struct{}{}:
		return nil
	case <-s.stopped:
		return media.ErrSchedulerStopped
	case <-ctx.Done():
		return fmt.Errorf("kick canceled: %w", ctx.Err())
	}
}

// WaitIdle blocks until the scheduler is idle with an empty queue.
func (s *Scheduler) WaitIdle(ctx context.Context) error {
	w := make(chan struct{})
	select {
	case s.waitReq <- w:
	case <-s.stopped:
		return media.ErrSchedulerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-w:
		return nil
	case <-s.stopped:
		return media.ErrSchedulerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the latest published snapshot. Safe from any goroutine.
func (s *Scheduler) Status() Status {
	return *s.status.Load()
}

// Done is closed once Run has returned.
func (s *Scheduler) Done() <-chan struct{} {
	return s.stopped
}

func (s *Scheduler) enqueue(ctx context.Context, job media.Job) error {
	depth, err := s.queue.Push(job)
	if err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	s.index++
	s.logger.Info("job queued",
		zap.String("job_id", job.ID),
		zap.String("url", job.URL),
		zap.Int("depth", depth),
	)
	s.emit(progress.Event{
		Stage:   progress.StageJobQueued,
		Level:   progress.LevelInfo,
		JobID:   job.ID,
		URL:     job.URL,
		Message: fmt.Sprintf("queued (%d waiting)", depth),
	})
	s.emitIndex()

	if !s.busy {
		s.dequeueAndRun(ctx)
	}
	s.publish()
	return nil
}

func (s *Scheduler) dequeueAndRun(ctx context.Context) {
	defer s.publish()
	if s.busy {
		s.notice(media.ErrAlreadyInProgress)
		return
	}
	job, ok := s.queue.Pop()
	if !ok {
		s.notice(media.ErrQueueEmpty)
		s.releaseWaiters()
		return
	}

	s.busy = true
	s.current = &job
	s.logger.Info("job started", zap.String("job_id", job.ID), zap.String("url", job.URL))
	s.emit(progress.Event{
		Stage: progress.StageJobStart,
		Level: progress.LevelInfo,
		JobID: job.ID,
		URL:   job.URL,
	})
	go s.runPipeline(ctx, job)
}

func (s *Scheduler) runPipeline(ctx context.Context, job media.Job) {
	start := s.clock.Now()
	out := func() (out media.Outcome) {
		defer func() {
			if r := recover(); r != nil {
				out = media.Outcome{
					Job:    job,
					Result: media.ResultFailed,
					Err:    fmt.Errorf("pipeline panic: %v", r),
				}
			}
		}()
		return s.pipeline.Process(ctx, job)
	}()
	if out.Duration == 0 {
		out.Duration = s.clock.Now().Sub(start)
	}
	s.done <- out
}

// finish is the single terminal path for every job: decrement, go idle,
// report, and try the next one.
func (s *Scheduler) finish(ctx context.Context, out media.Outcome) {
	s.complete(out)
	if ctx.Err() != nil {
		return
	}
	s.dequeueAndRun(ctx)
}

func (s *Scheduler) complete(out media.Outcome) {
	s.index--
	s.busy = false
	s.current = nil

	fields := []zap.Field{
		zap.String("job_id", out.Job.ID),
		zap.String("url", out.Job.URL),
		zap.String("stage", string(out.Stage)),
		zap.Duration("dur", out.Duration),
	}
	evt := progress.Event{
		JobID: out.Job.ID,
		URL:   out.Job.URL,
		Path:  out.Path,
		Title: out.Title,
		Dur:   nonNegative(out.Duration),
	}
	if out.Result == media.ResultSucceeded {
		s.succeeded++
		evt.Stage, evt.Level = progress.StageJobDone, progress.LevelInfo
		evt.Message = "saved " + out.Path
		s.logger.Info("job finished", append(fields, zap.String("path", out.Path), zap.Int("warnings", len(out.Warnings)))...)
	} else {
		s.failed++
		evt.Stage, evt.Level = progress.StageJobError, progress.LevelError
		evt.Message = errText(out.Err)
		s.logger.Warn("job failed", append(fields, zap.Error(out.Err))...)
	}
	s.emit(evt)
	s.emitIndex()
	s.publish()
}

func (s *Scheduler) shutdown() {
	s.queue.Close()
	if s.busy {
		s.logger.Info("waiting for in-flight job", zap.String("job_id", s.current.ID))
		s.complete(<-s.done)
	}
	s.logger.Info("scheduler stopped", zap.Int("abandoned", s.queue.Len()))
}

func (s *Scheduler) addWaiter(w chan struct{}) {
	if !s.busy && s.queue.Len() == 0 {
		close(w)
		return
	}
	s.waiters = append(s.waiters, w)
}

func (s *Scheduler) releaseWaiters() {
	for _, w := range s.waiters {
		close(w)
	}
	s.waiters = nil
}

func (s *Scheduler) notice(err error) {
	s.logger.Debug("scheduler notice", zap.String("message", err.Error()))
	s.emit(progress.Event{
		Stage:   progress.StageNotice,
		Level:   progress.LevelInfo,
		Message: err.Error(),
	})
}

func (s *Scheduler) emitIndex() {
	s.emit(progress.Event{
		Stage: progress.StageQueueIndex,
		Level: progress.LevelInfo,
		Index: s.index,
	})
}

func (s *Scheduler) emit(evt progress.Event) {
	evt.TS = s.clock.Now()
	s.emitter.Emit(evt)
}

func (s *Scheduler) publish() {
	st := Status{
		Busy:      s.busy,
		Index:     s.index,
		Pending:   s.queue.Len(),
		Succeeded: s.succeeded,
		Failed:    s.failed,
	}
	if s.current != nil {
		cur := *s.current
		st.Current = &cur
	}
	s.status.Store(&st)
}

func errText(err error) string {
	if err == nil {
		return "job failed"
	}
	return err.Error()
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
