package worker

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/clipdl/internal/clock/system"
	"github.com/JakeFAU/clipdl/internal/media"
	"github.com/JakeFAU/clipdl/internal/progress"
	"github.com/JakeFAU/clipdl/internal/storage/local"
)

type harness struct {
	dir        string
	resolver   *fakeResolver
	transcoder *fakeTranscoder
	covers     *fakeCovers
	tags       *fakeTagWriter
	events     *recordingEmitter
	pipeline   *Pipeline
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)

	h := &harness{
		dir: dir,
		resolver: &fakeResolver{
			res: media.Resolution{
				Metadata: media.Metadata{
					ID:           "dQw4w9WgXcQ",
					Title:        "Song",
					AuthorName:   "Band",
					CanonicalURL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
					PublishDate:  time.Date(2009, 10, 25, 0, 0, 0, 0, time.UTC),
					Thumbnails:   []media.Thumbnail{{URL: "https://i.ytimg.com/x.jpg", Width: 480}},
				},
				Formats: []media.Format{
					{ID: 18, AudioChannels: 2, Bitrate: 500_000, Width: 640, Height: 360},
					{ID: 140, AudioChannels: 2, Bitrate: 130_000},
				},
			},
			body: "encoded-audio",
		},
		transcoder: &fakeTranscoder{},
		covers:     &fakeCovers{cover: &media.Cover{MimeType: "image/jpeg", Description: "thumbnail", Data: []byte{1, 2, 3}}},
		tags:       &fakeTagWriter{},
		events:     &recordingEmitter{},
	}
	clock := system.NewFixed(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	h.pipeline = New(h.resolver, store, h.transcoder, h.covers, h.tags, h.events, clock,
		Config{Extension: ".mp3", DefaultBitrateKbps: 128, Quality: media.HighestAudio, EmbedCover: true},
		zap.NewNop())
	return h
}

func testJob() media.Job {
	return media.Job{ID: "job-1", URL: "https://youtu.be/dQw4w9WgXcQ"}
}

// TestPipelineSuccess ensures a job runs every stage in order and produces a
// tagged file named after the title.
func TestPipelineSuccess(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	out := h.pipeline.Process(context.Background(), testJob())

	require.Equal(t, media.ResultSucceeded, out.Result)
	require.NoError(t, out.Err)
	require.Empty(t, out.Warnings)
	require.Equal(t, media.StageDone, out.Stage)
	require.Equal(t, filepath.Join(h.dir, "Song.mp3"), out.Path)
	require.Equal(t, "Song", out.Title)

	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	require.Equal(t, "encoded-audio", string(data))

	require.Equal(t, 140, h.resolver.openedItag)
	require.Equal(t, 130, h.transcoder.bitrate)

	calls := h.tags.Calls()
	require.Len(t, calls, 1)
	require.True(t, calls[0].withCover)
	require.Equal(t, "Song", calls[0].tags.Title)
	require.Equal(t, "YouTube", calls[0].tags.Album)
	require.Equal(t, 2009, calls[0].tags.Year)

	require.Equal(t, []string{"resolving", "selecting", "transcoding", "tagging"}, h.events.Steps())
}

// TestPipelineAvoidsOverwriting ensures an existing file pushes the output to
// the next free name.
func TestPipelineAvoidsOverwriting(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.NoError(t, os.WriteFile(filepath.Join(h.dir, "Song.mp3"), []byte("old"), 0o600))

	out := h.pipeline.Process(context.Background(), testJob())
	require.Equal(t, media.ResultSucceeded, out.Result)
	require.Equal(t, filepath.Join(h.dir, "Song (2).mp3"), out.Path)
}

// TestPipelineTranscodeFailureRemovesPartial ensures a failed encode leaves
// nothing behind and fails the job.
func TestPipelineTranscodeFailureRemovesPartial(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.transcoder.err = errors.New("run ffmpeg: exit status 1: Invalid data")

	out := h.pipeline.Process(context.Background(), testJob())
	require.Equal(t, media.ResultFailed, out.Result)
	require.ErrorIs(t, out.Err, media.ErrTranscode)
	require.Contains(t, out.Err.Error(), "Invalid data")
	require.Equal(t, media.StageTranscoding, out.Stage)
	require.Empty(t, out.Path)

	_, err := os.Stat(filepath.Join(h.dir, "Song.mp3"))
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Empty(t, h.tags.Calls())
}

// TestPipelineThumbnailFailureStillTags ensures missing art falls back to a
// tags-only write and the job still succeeds.
func TestPipelineThumbnailFailureStillTags(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.covers.cover = nil
	h.covers.err = errors.New("fetch: unexpected status 404")

	out := h.pipeline.Process(context.Background(), testJob())
	require.Equal(t, media.ResultSucceeded, out.Result)
	require.Len(t, out.Warnings, 1)
	require.ErrorIs(t, out.Warnings[0], media.ErrThumbnail)

	calls := h.tags.Calls()
	require.Len(t, calls, 1)
	require.False(t, calls[0].withCover)
	require.Equal(t, []string{WarnThumbnail}, h.events.WarningKinds())
}

// TestPipelineCoverEmbedFallsBack ensures a failed tags+cover write is
// retried without the cover.
func TestPipelineCoverEmbedFallsBack(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.tags.failWithCover = true

	out := h.pipeline.Process(context.Background(), testJob())
	require.Equal(t, media.ResultSucceeded, out.Result)

	calls := h.tags.Calls()
	require.Len(t, calls, 2)
	require.True(t, calls[0].withCover)
	require.False(t, calls[1].withCover)
	require.Equal(t, []string{WarnCover}, h.events.WarningKinds())
}

// TestPipelineTagFailureKeepsAudio ensures the job still counts as finished
// when no tags can be written.
func TestPipelineTagFailureKeepsAudio(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.tags.failAlways = true

	out := h.pipeline.Process(context.Background(), testJob())
	require.Equal(t, media.ResultSucceeded, out.Result)
	require.NotEmpty(t, out.Path)
	_, err := os.Stat(out.Path)
	require.NoError(t, err)

	var tagErr bool
	for _, w := range out.Warnings {
		if errors.Is(w, media.ErrTagWrite) {
			tagErr = true
		}
	}
	require.True(t, tagErr)
	require.Equal(t, []string{WarnCover, WarnTags}, h.events.WarningKinds())
}

func TestPipelineResolveFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.resolver.err = errors.New("video is private")

	out := h.pipeline.Process(context.Background(), testJob())
	require.Equal(t, media.ResultFailed, out.Result)
	require.ErrorIs(t, out.Err, media.ErrResolve)
	require.Equal(t, media.StageResolving, out.Stage)
	require.False(t, h.transcoder.called)
}

// TestPipelineNoFormats ensures an empty format list fails at selection
// without touching the output directory.
func TestPipelineNoFormats(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.resolver.res.Formats = nil

	out := h.pipeline.Process(context.Background(), testJob())
	require.Equal(t, media.ResultFailed, out.Result)
	require.ErrorIs(t, out.Err, media.ErrNoFormatAvailable)
	require.Equal(t, media.StageSelecting, out.Stage)
	require.False(t, h.transcoder.called)

	entries, err := os.ReadDir(h.dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestPipelineCoverDisabled(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.pipeline.cfg.EmbedCover = false

	out := h.pipeline.Process(context.Background(), testJob())
	require.Equal(t, media.ResultSucceeded, out.Result)
	require.False(t, h.covers.called)
	require.False(t, h.tags.Calls()[0].withCover)
}

// --- fakes ---

type fakeResolver struct {
	res        media.Resolution
	err        error
	body       string
	openedItag int
}

func (f *fakeResolver) Resolve(context.Context, string) (media.Resolution, error) {
	if f.err != nil {
		return media.Resolution{}, f.err
	}
	return f.res, nil
}

func (f *fakeResolver) OpenStream(_ context.Context, _ media.Resolution, format media.Format) (io.ReadCloser, error) {
	f.openedItag = format.ID
	return io.NopCloser(strings.NewReader(f.body)), nil
}

// fakeTranscoder copies src to dest; on err it leaves a partial file first.
type fakeTranscoder struct {
	err     error
	called  bool
	bitrate int
}

func (f *fakeTranscoder) Transcode(_ context.Context, src io.Reader, bitrateKbps int, dest string) error {
	f.called = true
	f.bitrate = bitrateKbps
	if f.err != nil {
		if err := os.WriteFile(dest, []byte("partial"), 0o600); err != nil {
			return err
		}
		return f.err
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o600)
}

type fakeCovers struct {
	cover  *media.Cover
	err    error
	called bool
}

func (f *fakeCovers) Normalize(context.Context, []media.Thumbnail) (*media.Cover, error) {
	f.called = true
	if f.err != nil {
		return nil, f.err
	}
	return f.cover, nil
}

type tagCall struct {
	path      string
	tags      media.TagSet
	withCover bool
}

type fakeTagWriter struct {
	mu            sync.Mutex
	calls         []tagCall
	failWithCover bool
	failAlways    bool
}

func (f *fakeTagWriter) Write(_ context.Context, path string, tags media.TagSet, cover *media.Cover) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, tagCall{path: path, tags: tags, withCover: cover != nil})
	if f.failAlways || (f.failWithCover && cover != nil) {
		return errors.New("tag write failed")
	}
	return nil
}

func (f *fakeTagWriter) Calls() []tagCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tagCall(nil), f.calls...)
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recordingEmitter) Emit(evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) byStage(stage progress.Stage) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Stage == stage {
			out = append(out, e.Step)
		}
	}
	return out
}

func (r *recordingEmitter) Steps() []string        { return r.byStage(progress.StageJobStep) }
func (r *recordingEmitter) WarningKinds() []string { return r.byStage(progress.StageJobWarning) }
