package media

import "errors"

// Scheduler and intake notices. These are reported, never escalated.
var (
	ErrClassificationMiss = errors.New("text is not a supported media URL")
	ErrAlreadyInProgress  = errors.New("already in progress")
	ErrQueueEmpty         = errors.New("job not found")
	ErrSurfaceNotReady    = errors.New("input surface is not ready")
	ErrSchedulerStopped   = errors.New("scheduler stopped")
)

// Job-fatal failures.
var (
	ErrResolve           = errors.New("resolve media")
	ErrNoFormatAvailable = errors.New("no format available")
	ErrTranscode         = errors.New("transcode")
)

// Recoverable failures that downgrade a job without failing it.
var (
	ErrThumbnail = errors.New("thumbnail")
	ErrTagWrite  = errors.New("write tags")
)
