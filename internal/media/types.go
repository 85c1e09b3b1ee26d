package media

import (
	"time"
)

// Job is one unit of work identified by its source URL.
type Job struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Submitted time.Time `json:"submitted_at"`
}

// Thumbnail is a candidate cover image advertised by the resolver.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Metadata describes a resolved media item.
type Metadata struct {
	ID           string
	Title        string
	AuthorName   string
	AuthorURL    string
	Category     string
	Thumbnails   []Thumbnail
	CanonicalURL string
	PublishDate  time.Time
}

// Format is one stream variant offered for a media item.
type Format struct {
	ID             int
	MimeType       string
	Bitrate        int
	AverageBitrate int
	AudioChannels  int
	AudioQuality   string
	Width          int
	Height         int
	ContentLength  int64
}

// AudioOnly reports whether the format carries no video track.
func (f Format) AudioOnly() bool {
	return f.Width == 0 && f.Height == 0
}

// EffectiveBitrate returns the declared bitrate in bits per second, falling
// back to the average when the peak is unknown.
func (f Format) EffectiveBitrate() int {
	if f.Bitrate > 0 {
		return f.Bitrate
	}
	if f.AverageBitrate > 0 {
		return f.AverageBitrate
	}
	return 0
}

// Resolution is the resolver output for one URL. Handle is engine-specific
// state passed back to Resolver.OpenStream and is never inspected elsewhere.
type Resolution struct {
	Metadata Metadata
	Formats  []Format
	Handle   any
}

// Cover is a normalized still image ready to embed as front-cover art.
type Cover struct {
	MimeType    string
	Description string
	Data        []byte
}

// Stage names a step of a pipeline run.
type Stage string

// Pipeline stages in execution order.
const (
	StageResolving   Stage = "resolving"
	StageSelecting   Stage = "selecting"
	StageTranscoding Stage = "transcoding"
	StageTagging     Stage = "tagging"
	StageDone        Stage = "done"
)

// Result is the terminal classification of a pipeline run.
type Result string

// Terminal results.
const (
	ResultSucceeded Result = "succeeded"
	ResultFailed    Result = "failed"
)

// Outcome is what a pipeline run hands back to the scheduler.
type Outcome struct {
	Job      Job
	Result   Result
	Stage    Stage
	Path     string
	Title    string
	Err      error
	Warnings []error
	Duration time.Duration
}
