// Package youtube resolves YouTube links into media metadata and audio
// streams using github.com/kkdai/youtube/v2.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	yt "github.com/kkdai/youtube/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/clipdl/internal/media"
)

const (
	watchURLPrefix   = "https://www.youtube.com/watch?v="
	channelURLPrefix = "https://www.youtube.com/channel/"
)

// client is the subset of *yt.Client the resolver depends on.
type client interface {
	GetVideoContext(ctx context.Context, url string) (*yt.Video, error)
	GetStreamContext(ctx context.Context, video *yt.Video, format *yt.Format) (io.ReadCloser, int64, error)
}

// ErrRestricted marks private, age-gated, or login-only items.
var ErrRestricted = errors.New("restricted content")

// Resolver implements media.Resolver on top of the YouTube player API.
type Resolver struct {
	client client
	logger *zap.Logger
}

// New builds a Resolver that issues requests through httpClient.
func New(httpClient *http.Client, logger *zap.Logger) *Resolver {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return newWithClient(&yt.Client{HTTPClient: httpClient}, logger)
}

func newWithClient(c client, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{client: c, logger: logger.Named("resolver")}
}

// Resolve fetches metadata and the advertised stream formats for rawURL.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (media.Resolution, error) {
	id, ok := media.ExtractVideoID(rawURL)
	if !ok {
		return media.Resolution{}, fmt.Errorf("extract video id from %q: %w", rawURL, media.ErrClassificationMiss)
	}

	video, err := r.client.GetVideoContext(ctx, id)
	if err != nil {
		return media.Resolution{}, classify(fmt.Errorf("get video %s: %w", id, err))
	}

	res := media.Resolution{
		Metadata: toMetadata(video),
		Formats:  toFormats(video.Formats),
		Handle:   video,
	}
	r.logger.Debug("resolved video",
		zap.String("video_id", video.ID),
		zap.String("title", video.Title),
		zap.Int("formats", len(res.Formats)),
		zap.Int("thumbnails", len(res.Metadata.Thumbnails)),
	)
	return res, nil
}

// OpenStream opens the raw byte stream for format. The caller closes it.
func (r *Resolver) OpenStream(ctx context.Context, res media.Resolution, format media.Format) (io.ReadCloser, error) {
	video, ok := res.Handle.(*yt.Video)
	if !ok || video == nil {
		return nil, fmt.Errorf("resolution was not produced by this resolver")
	}

	var chosen *yt.Format
	for i := range video.Formats {
		if video.Formats[i].ItagNo == format.ID {
			chosen = &video.Formats[i]
			break
		}
	}
	if chosen == nil {
		return nil, fmt.Errorf("format itag %d not offered for %s", format.ID, video.ID)
	}

	stream, size, err := r.client.GetStreamContext(ctx, video, chosen)
	if err != nil {
		return nil, classify(fmt.Errorf("open stream itag %d: %w", chosen.ItagNo, err))
	}
	r.logger.Debug("stream opened",
		zap.String("video_id", video.ID),
		zap.Int("itag", chosen.ItagNo),
		zap.Int64("size", size),
	)
	return stream, nil
}

func classify(err error) error {
	var statusErr *yt.ErrPlayabiltyStatus
	switch {
	case errors.Is(err, yt.ErrLoginRequired),
		errors.Is(err, yt.ErrVideoPrivate),
		errors.Is(err, yt.ErrNotPlayableInEmbed),
		errors.As(err, &statusErr):
		return fmt.Errorf("%w: %w", ErrRestricted, err)
	default:
		return err
	}
}

func toMetadata(video *yt.Video) media.Metadata {
	meta := media.Metadata{
		ID:           video.ID,
		Title:        video.Title,
		AuthorName:   video.Author,
		CanonicalURL: watchURLPrefix + video.ID,
		PublishDate:  video.PublishDate,
	}
	if video.ChannelID != "" {
		meta.AuthorURL = channelURLPrefix + video.ChannelID
	}
	for _, th := range video.Thumbnails {
		meta.Thumbnails = append(meta.Thumbnails, media.Thumbnail{
			URL:    th.URL,
			Width:  int(th.Width),
			Height: int(th.Height),
		})
	}
	return meta
}

func toFormats(formats yt.FormatList) []media.Format {
	out := make([]media.Format, 0, len(formats))
	for _, f := range formats {
		out = append(out, media.Format{
			ID:             f.ItagNo,
			MimeType:       f.MimeType,
			Bitrate:        f.Bitrate,
			AverageBitrate: f.AverageBitrate,
			AudioChannels:  f.AudioChannels,
			AudioQuality:   f.AudioQuality,
			Width:          f.Width,
			Height:         f.Height,
			ContentLength:  f.ContentLength,
		})
	}
	return out
}
