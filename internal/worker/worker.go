// Package worker implements the per-job download pipeline: resolve, select,
// transcode, then tag.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/clipdl/internal/clock/system"
	"github.com/JakeFAU/clipdl/internal/media"
	"github.com/JakeFAU/clipdl/internal/metrics"
	"github.com/JakeFAU/clipdl/internal/progress"
)

// Config controls Pipeline behavior.
type Config struct {
	// Extension of finished files, including the dot.
	Extension string
	// DefaultBitrateKbps is used when the selected stream declares no bitrate.
	DefaultBitrateKbps int
	// Quality is the stream selection policy.
	Quality media.QualityPolicy
	// EmbedCover fetches and embeds thumbnail art when true.
	EmbedCover bool
}

// Warning kinds reported on JOB_WARNING events.
const (
	WarnThumbnail = "thumbnail"
	WarnCover     = "cover"
	WarnTags      = "tags"
	WarnCleanup   = "cleanup"
)

// Pipeline drives one job through every stage and reports an explicit
// outcome. It holds no per-job state between calls.
type Pipeline struct {
	resolver   media.Resolver
	dest       media.Destination
	transcoder media.Transcoder
	covers     media.CoverSource
	tags       media.TagWriter
	emitter    progress.Emitter
	clock      media.Clock
	cfg        Config
	logger     *zap.Logger
}

// New constructs a Pipeline.
func New(
	resolver media.Resolver,
	dest media.Destination,
	transcoder media.Transcoder,
	covers media.CoverSource,
	tags media.TagWriter,
	emitter progress.Emitter,
	clock media.Clock,
	cfg Config,
	logger *zap.Logger,
) *Pipeline {
	if cfg.Extension == "" {
		cfg.Extension = ".mp3"
	}
	if cfg.DefaultBitrateKbps <= 0 {
		cfg.DefaultBitrateKbps = 128
	}
	if cfg.Quality == "" {
		cfg.Quality = media.HighestAudio
	}
	if emitter == nil {
		emitter = progress.Discard
	}
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		resolver:   resolver,
		dest:       dest,
		transcoder: transcoder,
		covers:     covers,
		tags:       tags,
		emitter:    emitter,
		clock:      clock,
		cfg:        cfg,
		logger:     logger.Named("pipeline"),
	}
}

// run is the transient state of one pipeline execution.
type run struct {
	job      media.Job
	res      media.Resolution
	format   media.Format
	path     string
	cover    *media.Cover
	warnings []error
	stage    media.Stage
}

// Process runs job to completion. It never panics on stage failures; every
// failure is folded into the returned Outcome.
func (p *Pipeline) Process(ctx context.Context, job media.Job) media.Outcome {
	start := p.clock.Now()
	r := &run{job: job}
	err := p.execute(ctx, r)

	out := media.Outcome{
		Job:      job,
		Stage:    r.stage,
		Path:     r.path,
		Title:    r.res.Metadata.Title,
		Warnings: r.warnings,
		Duration: p.clock.Now().Sub(start),
	}
	if err != nil {
		out.Result = media.ResultFailed
		out.Err = err
		out.Path = ""
		return out
	}
	out.Result = media.ResultSucceeded
	out.Stage = media.StageDone
	return out
}

func (p *Pipeline) execute(ctx context.Context, r *run) error {
	p.enter(r, media.StageResolving)
	res, err := p.resolver.Resolve(ctx, r.job.URL)
	if err != nil {
		return fmt.Errorf("%w: %w", media.ErrResolve, err)
	}
	r.res = res

	p.enter(r, media.StageSelecting)
	format, err := media.SelectFormat(res.Formats, p.cfg.Quality)
	if err != nil {
		return err
	}
	r.format = format

	p.enter(r, media.StageTranscoding)
	if err := p.transcode(ctx, r); err != nil {
		return err
	}

	p.enter(r, media.StageTagging)
	p.tag(ctx, r)
	return nil
}

func (p *Pipeline) transcode(ctx context.Context, r *run) error {
	path, err := p.dest.ResolveDestination(r.res.Metadata.Title, p.cfg.Extension)
	if err != nil {
		return fmt.Errorf("%w: resolve destination: %w", media.ErrTranscode, err)
	}

	stream, err := p.resolver.OpenStream(ctx, r.res, r.format)
	if err != nil {
		return fmt.Errorf("%w: open stream: %w", media.ErrTranscode, err)
	}
	defer func() { _ = stream.Close() }()

	bitrate := media.TargetBitrateKbps(r.format, p.cfg.DefaultBitrateKbps)
	p.logger.Info("transcoding",
		zap.String("job_id", r.job.ID),
		zap.String("path", path),
		zap.Int("itag", r.format.ID),
		zap.Int("bitrate_kbps", bitrate),
	)
	start := p.clock.Now()
	err = p.transcoder.Transcode(ctx, stream, bitrate, path)
	metrics.ObserveTranscode(p.clock.Now().Sub(start))
	if err != nil {
		if rmErr := p.dest.Remove(path); rmErr != nil {
			p.logger.Warn("remove partial output failed",
				zap.String("job_id", r.job.ID),
				zap.String("path", path),
				zap.Error(rmErr),
			)
			r.warnings = append(r.warnings, rmErr)
			p.warn(r, WarnCleanup, progress.LevelInfo, rmErr)
		}
		return fmt.Errorf("%w: %w", media.ErrTranscode, err)
	}
	r.path = path
	return nil
}

// tag writes metadata with the two-attempt strategy: tags plus cover, then
// tags alone. Failures downgrade the job to warnings; the audio is kept.
func (p *Pipeline) tag(ctx context.Context, r *run) {
	tags := media.BuildTagSet(r.res.Metadata)

	if p.cfg.EmbedCover && p.covers != nil {
		cover, err := p.covers.Normalize(ctx, r.res.Metadata.Thumbnails)
		if err != nil {
			if !errors.Is(err, media.ErrThumbnail) {
				err = fmt.Errorf("%w: %w", media.ErrThumbnail, err)
			}
			r.warnings = append(r.warnings, err)
			p.warn(r, WarnThumbnail, progress.LevelInfo, err)
		} else {
			r.cover = cover
		}
	}

	if r.cover != nil {
		err := p.tags.Write(ctx, r.path, tags, r.cover)
		if err == nil {
			return
		}
		err = fmt.Errorf("%w: embed cover: %w", media.ErrThumbnail, err)
		r.warnings = append(r.warnings, err)
		p.warn(r, WarnCover, progress.LevelInfo, err)
	}

	if err := p.tags.Write(ctx, r.path, tags, nil); err != nil {
		err = fmt.Errorf("%w: %w", media.ErrTagWrite, err)
		r.warnings = append(r.warnings, err)
		p.warn(r, WarnTags, progress.LevelError, err)
	}
}

func (p *Pipeline) enter(r *run, stage media.Stage) {
	r.stage = stage
	p.logger.Debug("stage", zap.String("job_id", r.job.ID), zap.String("stage", string(stage)))
	p.emitter.Emit(progress.Event{
		TS:    p.clock.Now(),
		Stage: progress.StageJobStep,
		Level: progress.LevelInfo,
		JobID: r.job.ID,
		URL:   r.job.URL,
		Step:  string(stage),
		Title: r.res.Metadata.Title,
	})
}

func (p *Pipeline) warn(r *run, kind string, level progress.Level, err error) {
	p.logger.Warn("job warning",
		zap.String("job_id", r.job.ID),
		zap.String("kind", kind),
		zap.Error(err),
	)
	p.emitter.Emit(progress.Event{
		TS:      p.clock.Now(),
		Stage:   progress.StageJobWarning,
		Level:   level,
		JobID:   r.job.ID,
		URL:     r.job.URL,
		Path:    r.path,
		Step:    kind,
		Message: strings.TrimSpace(err.Error()),
	})
}
