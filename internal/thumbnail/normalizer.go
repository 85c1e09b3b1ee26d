// Package thumbnail fetches the largest advertised thumbnail and normalizes
// it into square cover art.
package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"net/http"

	// Registered decoders for the formats thumbnails are served in.
	_ "image/gif"
	_ "image/png"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/JakeFAU/clipdl/internal/media"
)

// Defaults applied when Config leaves a field zero.
const (
	DefaultSize        = 500
	DefaultJPEGQuality = 90
	DefaultMaxBytes    = 8 << 20
)

// Config tunes the normalizer.
type Config struct {
	Size        int
	JPEGQuality int
	MaxBytes    int64
	UserAgent   string
}

// Normalizer implements media.CoverSource.
type Normalizer struct {
	client *http.Client
	cfg    Config
	logger *zap.Logger
}

// New constructs a Normalizer. A nil client uses http.DefaultClient.
func New(client *http.Client, cfg Config, logger *zap.Logger) *Normalizer {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.Size <= 0 {
		cfg.Size = DefaultSize
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = DefaultJPEGQuality
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{client: client, cfg: cfg, logger: logger.Named("thumbnail")}
}

// Normalize picks the widest candidate, downloads it, and returns it fitted
// onto a white square canvas as JPEG.
func (n *Normalizer) Normalize(ctx context.Context, candidates []media.Thumbnail) (*media.Cover, error) {
	chosen, ok := media.LargestThumbnail(candidates)
	if !ok {
		return nil, fmt.Errorf("%w: no thumbnail candidates", media.ErrThumbnail)
	}

	raw, err := n.fetch(ctx, chosen.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", media.ErrThumbnail, err)
	}

	src, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: decode image: %w", media.ErrThumbnail, err)
	}

	var buf bytes.Buffer
	canvas := Contain(src, n.cfg.Size)
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: n.cfg.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("%w: encode jpeg: %w", media.ErrThumbnail, err)
	}

	n.logger.Debug("cover normalized",
		zap.String("url", chosen.URL),
		zap.String("source_format", format),
		zap.Int("source_width", src.Bounds().Dx()),
		zap.Int("source_height", src.Bounds().Dy()),
		zap.Int("bytes", buf.Len()),
	)
	return &media.Cover{
		MimeType:    media.CoverMimeType,
		Description: media.CoverCaption,
		Data:        buf.Bytes(),
	}, nil
}

func (n *Normalizer) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if n.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", n.cfg.UserAgent)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, n.cfg.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > n.cfg.MaxBytes {
		return nil, fmt.Errorf("thumbnail exceeds %d bytes", n.cfg.MaxBytes)
	}
	return data, nil
}

// Contain scales src to fit inside a size×size square, preserving aspect
// ratio, and centres it on an opaque white background.
func Contain(src image.Image, size int) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	sb := src.Bounds()
	w, h := sb.Dx(), sb.Dy()
	if w == 0 || h == 0 {
		return canvas
	}

	dw, dh := size, size
	if w >= h {
		dh = h * size / w
	} else {
		dw = w * size / h
	}
	dw, dh = max(dw, 1), max(dh, 1)

	x0 := (size - dw) / 2
	y0 := (size - dh) / 2
	target := image.Rect(x0, y0, x0+dw, y0+dh)
	draw.CatmullRom.Scale(canvas, target, src, sb, draw.Over, nil)
	return canvas
}
