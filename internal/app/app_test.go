package app

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

	"github.com/bogem/id3v2/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/clipdl/internal/config"
	"github.com/JakeFAU/clipdl/internal/media"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Output:    config.OutputConfig{Dir: t.TempDir(), Extension: ".mp3"},
		Watcher:   config.WatcherConfig{PollIntervalMs: 5},
		Transcode: config.TranscodeConfig{FFmpegPath: "ffmpeg", DefaultBitrateKbps: 128},
		HTTP:      config.HTTPConfig{TimeoutSeconds: 5},
		Feed:      config.FeedConfig{Capacity: 32},
	}
}

func buildTestApp(t *testing.T, cfg config.Config, opts ...Option) *App {
	t.Helper()
	opts = append([]Option{
		WithRegisterer(prometheus.NewRegistry()),
		WithResolver(newFakeResolver()),
		WithTranscoder(fakeTranscoder{}),
	}, opts...)
	a, err := Build(cfg, zap.NewNop(), opts...)
	require.NoError(t, err)
	return a
}

// TestDownloadProducesTaggedFiles runs two jobs end to end and checks they
// land as separately named, tagged files.
func TestDownloadProducesTaggedFiles(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	a := buildTestApp(t, cfg)

	err := a.Download(context.Background(), []string{
		"https://youtu.be/aaaaaaaaaaa",
		"https://www.youtube.com/watch?v=bbbbbbbbbbb",
	})
	require.NoError(t, err)

	st := a.Status()
	require.False(t, st.Busy)
	require.Equal(t, int64(2), st.Succeeded)
	require.Equal(t, -1, st.Index)

	for _, title := range []string{"First Song", "Second Song"} {
		path := filepath.Join(cfg.Output.Dir, title+".mp3")
		tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
		require.NoError(t, err, title)
		require.Equal(t, title, tag.Title())
		require.Equal(t, "YouTube", tag.Album())
		require.NoError(t, tag.Close())
	}
}

func TestDownloadReportsRejectsAndFailures(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	a := buildTestApp(t, cfg)

	err := a.Download(context.Background(), []string{
		"not a url",
		"https://youtu.be/ccccccccccc",
		"https://youtu.be/aaaaaaaaaaa",
	})
	require.Error(t, err)
	require.ErrorIs(t, err, media.ErrClassificationMiss)
	require.Contains(t, err.Error(), "1 job(s) failed")

	st := a.Status()
	require.Equal(t, int64(1), st.Succeeded)
	require.Equal(t, int64(1), st.Failed)
	require.FileExists(t, filepath.Join(cfg.Output.Dir, "First Song.mp3"))
}

func TestWatchPicksUpCopiedURL(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	src := &fakeSource{text: "something copied earlier"}
	a := buildTestApp(t, cfg, WithSource(src))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Watch(ctx) }()

	require.Eventually(t, a.Intake().Ready, time.Second, 5*time.Millisecond)
	src.set("https://youtu.be/bbbbbbbbbbb")

	path := filepath.Join(cfg.Output.Dir, "Second Song.mp3")
	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil && a.Status().Succeeded == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after cancel")
	}
}

func TestShutdownWithoutStart(t *testing.T) {
	t.Parallel()

	a := buildTestApp(t, testConfig(t))
	require.NoError(t, a.Shutdown(context.Background()))
	require.NoError(t, a.Shutdown(context.Background()))
}

func TestBuildFailsOnUnwritableOutput(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	file := filepath.Join(cfg.Output.Dir, "occupied")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	cfg.Output.Dir = file

	_, err := Build(cfg, zap.NewNop(), WithRegisterer(prometheus.NewRegistry()))
	require.ErrorContains(t, err, "init output dir")
}

// --- fakes ---

type fakeResolver struct {
	titles map[string]string
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{titles: map[string]string{
		"aaaaaaaaaaa": "First Song",
		"bbbbbbbbbbb": "Second Song",
	}}
}

func (f *fakeResolver) Resolve(_ context.Context, rawURL string) (media.Resolution, error) {
	id, ok := media.ExtractVideoID(rawURL)
	if !ok {
		return media.Resolution{}, media.ErrClassificationMiss
	}
	title, ok := f.titles[id]
	if !ok {
		return media.Resolution{}, errors.New("video unavailable")
	}
	return media.Resolution{
		Metadata: media.Metadata{
			ID:           id,
			Title:        title,
			AuthorName:   "Band",
			CanonicalURL: "https://www.youtube.com/watch?v=" + id,
		},
		Formats: []media.Format{{ID: 140, AudioChannels: 2, Bitrate: 128_000}},
	}, nil
}

func (f *fakeResolver) OpenStream(context.Context, media.Resolution, media.Format) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("audio")), nil
}

type fakeTranscoder struct{}

func (fakeTranscoder) Transcode(_ context.Context, src io.Reader, _ int, dest string) error {
	data, err := io.ReadAll(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o600)
}

type fakeSource struct {
	mu   sync.Mutex
	text string
}

func (f *fakeSource) ReadText() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text, nil
}

func (f *fakeSource) set(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text = text
}
