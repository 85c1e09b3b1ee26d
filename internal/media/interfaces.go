package media

import (
	"context"
	"io"
	"time"
)

// Resolver looks up metadata and streams for a media URL.
type Resolver interface {
	Resolve(ctx context.Context, url string) (Resolution, error)
	OpenStream(ctx context.Context, res Resolution, format Format) (io.ReadCloser, error)
}

// Transcoder encodes src into the destination file at the given bitrate.
type Transcoder interface {
	Transcode(ctx context.Context, src io.Reader, bitrateKbps int, dest string) error
}

// TagWriter embeds descriptive metadata, and optionally a cover, into a file.
type TagWriter interface {
	Write(ctx context.Context, path string, tags TagSet, cover *Cover) error
}

// CoverSource turns thumbnail candidates into an embeddable cover image.
type CoverSource interface {
	Normalize(ctx context.Context, candidates []Thumbnail) (*Cover, error)
}

// Destination allocates output paths and cleans up after failed writes.
type Destination interface {
	ResolveDestination(title string, extension string) (string, error)
	Remove(path string) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs.
type IDGenerator interface {
	NewID() (string, error)
}
