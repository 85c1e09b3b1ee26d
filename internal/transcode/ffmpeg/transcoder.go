// Package ffmpeg encodes audio streams to MP3 by piping them through an
// external ffmpeg process.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// DefaultBinary is looked up on PATH when no explicit path is configured.
const DefaultBinary = "ffmpeg"

const maxStderr = 4 << 10

// Transcoder implements media.Transcoder.
type Transcoder struct {
	binary string
	logger *zap.Logger
}

// New returns a Transcoder that runs binary (DefaultBinary when empty).
func New(binary string, logger *zap.Logger) *Transcoder {
	if strings.TrimSpace(binary) == "" {
		binary = DefaultBinary
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transcoder{binary: binary, logger: logger.Named("ffmpeg")}
}

// Args returns the ffmpeg argument list for encoding stdin into dest.
func Args(bitrateKbps int, dest string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", "pipe:0",
		"-vn",
		"-c:a", "libmp3lame",
		"-b:a", strconv.Itoa(bitrateKbps) + "k",
		"-f", "mp3",
		"-y",
		dest,
	}
}

// Transcode streams src into ffmpeg and blocks until the encoder exits.
// Cancelling ctx kills the process.
func (t *Transcoder) Transcode(ctx context.Context, src io.Reader, bitrateKbps int, dest string) error {
	if bitrateKbps <= 0 {
		return fmt.Errorf("bitrate must be > 0")
	}
	if strings.TrimSpace(dest) == "" {
		return fmt.Errorf("destination is required")
	}

	// #nosec G204 -- binary comes from configuration and args are fixed.
	cmd := exec.CommandContext(ctx, t.binary, Args(bitrateKbps, dest)...)
	cmd.Stdin = src
	stderr := &boundedBuffer{limit: maxStderr}
	cmd.Stderr = stderr

	t.logger.Debug("ffmpeg start",
		zap.String("path", dest),
		zap.Int("bitrate_kbps", bitrateKbps),
	)
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("ffmpeg interrupted: %w", ctxErr)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("run ffmpeg: %w", err)
		}
		return fmt.Errorf("run ffmpeg: %w: %s", err, msg)
	}
	return nil
}

// Status describes whether the encoder binary is usable.
type Status struct {
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
}

// ErrNotFound is returned by Check when the binary is not on PATH.
var ErrNotFound = errors.New("ffmpeg not found")

// Check locates the binary and reads its version banner.
func (t *Transcoder) Check(ctx context.Context) (Status, error) {
	path, err := exec.LookPath(t.binary)
	if err != nil {
		return Status{}, fmt.Errorf("%w: %s: %w", ErrNotFound, t.binary, err)
	}
	status := Status{Found: true, Path: path}

	// #nosec G204 -- path was resolved from configuration.
	out, err := exec.CommandContext(ctx, path, "-hide_banner", "-version").Output()
	if err != nil {
		return status, fmt.Errorf("run %s -version: %w", path, err)
	}
	if line, _, _ := strings.Cut(string(out), "\n"); line != "" {
		status.Version = strings.TrimSpace(line)
	}
	return status, nil
}

// boundedBuffer keeps the first limit bytes written and discards the rest.
type boundedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	return b.buf.String()
}
