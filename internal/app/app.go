// Package app builds and runs clipdl's long-lived services: the progress hub,
// the single-flight scheduler, intake, and the optional status server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/clipdl/internal/api"
	"github.com/JakeFAU/clipdl/internal/config"
	"github.com/JakeFAU/clipdl/internal/dispatcher"
	"github.com/JakeFAU/clipdl/internal/id/uuid"
	"github.com/JakeFAU/clipdl/internal/intake"
	"github.com/JakeFAU/clipdl/internal/media"
	"github.com/JakeFAU/clipdl/internal/metrics"
	"github.com/JakeFAU/clipdl/internal/policy/ratelimit"
	"github.com/JakeFAU/clipdl/internal/progress"
	progresssinks "github.com/JakeFAU/clipdl/internal/progress/sinks"
	queueMemory "github.com/JakeFAU/clipdl/internal/queue/memory"
	"github.com/JakeFAU/clipdl/internal/resolver/youtube"
	localstorage "github.com/JakeFAU/clipdl/internal/storage/local"
	"github.com/JakeFAU/clipdl/internal/tags/id3"
	"github.com/JakeFAU/clipdl/internal/thumbnail"
	"github.com/JakeFAU/clipdl/internal/transcode/ffmpeg"
	"github.com/JakeFAU/clipdl/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// Option overrides a dependency chosen by Build.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
	resolver   media.Resolver
	transcoder media.Transcoder
	source     intake.Source
}

// WithRegisterer registers progress collectors on reg instead of the default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithResolver replaces the video platform resolver.
func WithResolver(r media.Resolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithTranscoder replaces the ffmpeg transcoder.
func WithTranscoder(t media.Transcoder) Option {
	return func(o *options) { o.transcoder = t }
}

// WithSource replaces the clipboard as the watched input surface.
func WithSource(s intake.Source) Option {
	return func(o *options) { o.source = s }
}

// App contains the application's dependencies.
type App struct {
	cfg        config.Config
	logger     *zap.Logger
	hub        *progress.Hub
	feed       *progresssinks.Feed
	queue      *queueMemory.Queue
	scheduler  *dispatcher.Scheduler
	intake     *intake.Intake
	ffmpeg     *ffmpeg.Transcoder
	preflight  bool
	source     intake.Source
	apiServer  *api.Server
	httpServer *http.Server

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	serveErr  chan error
}

// Build creates the application's dependencies without starting anything.
func Build(cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	metrics.Init()

	logger.Info("building application dependencies",
		zap.String("output_dir", cfg.Output.Dir),
		zap.Bool("server_enabled", cfg.Server.Enabled),
		zap.Bool("thumbnails", cfg.Thumbnail.Enabled),
	)

	store, err := localstorage.New(localstorage.Config{BaseDir: cfg.Output.Dir})
	if err != nil {
		return nil, fmt.Errorf("init output dir: %w", err)
	}

	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.HTTP.RateLimitRPS,
		DefaultBurst: cfg.HTTP.RateLimitBurst,
	})

	feed := progresssinks.NewFeed(cfg.Feed.Capacity)
	promSink, err := progresssinks.NewPrometheusSink(o.registerer)
	if err != nil {
		return nil, fmt.Errorf("init progress metrics: %w", err)
	}
	hub := progress.NewHub(progress.Config{Logger: logger},
		progresssinks.NewLogSink(logger),
		promSink,
		feed,
	)

	resolver := o.resolver
	if resolver == nil {
		// Stream bodies can take minutes; requests are bounded by ctx instead.
		resolver = youtube.New(&http.Client{Transport: limiter.Transport(nil)}, logger)
	}

	ff := ffmpeg.New(cfg.Transcode.FFmpegPath, logger)
	var transcoder media.Transcoder = ff
	if o.transcoder != nil {
		transcoder = o.transcoder
	}

	var covers media.CoverSource
	if cfg.Thumbnail.Enabled {
		covers = thumbnail.New(&http.Client{
			Timeout:   cfg.HTTPTimeout(),
			Transport: limiter.Transport(nil),
		}, thumbnail.Config{
			Size:        cfg.Thumbnail.Size,
			JPEGQuality: cfg.Thumbnail.JPEGQuality,
			MaxBytes:    cfg.Thumbnail.MaxBytes,
			UserAgent:   cfg.HTTP.UserAgent,
		}, logger)
	}

	pipeline := worker.New(
		resolver,
		store,
		transcoder,
		covers,
		id3.New(logger),
		hub,
		nil,
		worker.Config{
			Extension:          cfg.Output.Extension,
			DefaultBitrateKbps: cfg.Transcode.DefaultBitrateKbps,
			Quality:            media.HighestAudio,
			EmbedCover:         cfg.Thumbnail.Enabled,
		},
		logger,
	)

	queue := queueMemory.NewQueue()
	scheduler := dispatcher.New(queue, pipeline, hub, nil, logger)
	in := intake.New(scheduler, hub, uuid.New(), nil, logger)

	source := o.source
	if source == nil {
		source = intake.Clipboard{}
	}

	a := &App{
		cfg:       cfg,
		logger:    logger,
		hub:       hub,
		feed:      feed,
		queue:     queue,
		scheduler: scheduler,
		intake:    in,
		ffmpeg:    ff,
		preflight: o.transcoder == nil,
		source:    source,
		serveErr:  make(chan error, 1),
	}
	if cfg.Server.Enabled {
		a.apiServer = api.NewServer(in, scheduler, feed, logger)
		a.httpServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           a.apiServer.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return a, nil
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// OutputDir returns the directory finished files are written to.
func (a *App) OutputDir() string {
	return a.cfg.Output.Dir
}

// Intake returns the shared intake.
func (a *App) Intake() *intake.Intake {
	return a.intake
}

// Status returns the scheduler snapshot.
func (a *App) Status() dispatcher.Status {
	return a.scheduler.Status()
}

// CheckDependencies verifies the transcoder binary is runnable.
func (a *App) CheckDependencies(ctx context.Context) (ffmpeg.Status, error) {
	st, err := a.ffmpeg.Check(ctx)
	if err != nil {
		return st, fmt.Errorf("check ffmpeg: %w", err)
	}
	return st, nil
}

func (a *App) checkPreflight(ctx context.Context) error {
	if !a.preflight {
		return nil
	}
	st, err := a.CheckDependencies(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("ffmpeg found", zap.String("path", st.Path), zap.String("version", st.Version))
	return nil
}

// Start launches the scheduler and the status server, then opens the input
// gate. Start is idempotent.
func (a *App) Start(ctx context.Context) {
	a.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		a.cancel = cancel

		go func() {
			if err := a.scheduler.Run(runCtx); err != nil {
				a.logger.Error("scheduler stopped", zap.Error(err))
			}
		}()

		if a.httpServer != nil {
			go func() {
				a.logger.Info("status server started", zap.Int("port", a.cfg.Server.Port))
				if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					a.logger.Error("status server error", zap.Error(err))
					a.serveErr <- fmt.Errorf("status server: %w", err)
				}
			}()
		}

		a.feed.MarkReady()
		a.intake.MarkReady()
		a.logger.Info("application started")
	})
}

// Watch runs the input surface watcher until ctx is done or the status
// server fails, then shuts everything down.
func (a *App) Watch(ctx context.Context) error {
	if err := a.checkPreflight(ctx); err != nil {
		return err
	}
	if _, isClipboard := a.source.(intake.Clipboard); isClipboard && !intake.ClipboardSupported() {
		return errors.New("no clipboard backend available on this system")
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	a.Start(ctx)

	watcher := intake.NewWatcher(a.source, func(ctx context.Context, text string) {
		// Outcomes are reported through progress events.
		_, _ = a.intake.OnCandidateText(ctx, text)
	}, a.cfg.PollInterval(), a.logger)

	watchErr := make(chan error, 1)
	go func() { watchErr <- watcher.Run(ctx) }()

	var runErr error
	select {
	case runErr = <-watchErr:
	case runErr = <-a.serveErr:
	case <-ctx.Done():
		runErr = <-watchErr
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return errors.Join(runErr, a.Shutdown(shutdownCtx))
}

// Download enqueues each URL, waits for the queue to drain, and shuts down.
// It returns an error if any URL was rejected or any job failed.
func (a *App) Download(ctx context.Context, urls []string) error {
	if err := a.checkPreflight(ctx); err != nil {
		return err
	}
	a.Start(ctx)

	var rejected []error
	for _, u := range urls {
		if _, err := a.intake.OnCandidateText(ctx, u); err != nil {
			rejected = append(rejected, fmt.Errorf("%s: %w", u, err))
		}
	}

	waitErr := a.scheduler.WaitIdle(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	shutdownErr := a.Shutdown(shutdownCtx)

	if waitErr != nil {
		return errors.Join(fmt.Errorf("wait for queue: %w", waitErr), shutdownErr)
	}
	if failed := a.scheduler.Status().Failed; failed > 0 {
		rejected = append(rejected, fmt.Errorf("%d job(s) failed", failed))
	}
	return errors.Join(append(rejected, shutdownErr)...)
}

// Shutdown stops the status server and the scheduler, then flushes progress
// sinks. An in-flight job is interrupted and its partial output removed.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	a.stopOnce.Do(func() {
		a.logger.Info("shutdown initiated")
		if a.httpServer != nil {
			if err := a.httpServer.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown status server: %w", err))
			}
		}
		if a.cancel != nil {
			a.cancel()
			select {
			case <-a.scheduler.Done():
			case <-ctx.Done():
				errs = append(errs, fmt.Errorf("wait for scheduler: %w", ctx.Err()))
			}
		} else {
			a.queue.Close()
		}
		if err := a.hub.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close progress hub: %w", err))
		}
		a.logger.Info("shutdown complete")
	})
	return errors.Join(errs...)
}
