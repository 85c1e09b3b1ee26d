package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported stages.
const (
	StageJobQueued  Stage = "JOB_QUEUED"
	StageJobStart   Stage = "JOB_START"
	StageJobStep    Stage = "JOB_STEP"
	StageJobWarning Stage = "JOB_WARNING"
	StageJobDone    Stage = "JOB_DONE"
	StageJobError   Stage = "JOB_ERROR"
	StageNotice     Stage = "NOTICE"
	StageQueueIndex Stage = "QUEUE_INDEX"
)

// Level selects the outward channel an event is shown on.
type Level string

// Notification levels.
const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// IdleIndex is the queue index reported when nothing is queued or running.
const IdleIndex = -1

// Event is one outward notification.
type Event struct {
	// Seq is assigned by the Hub in emission order.
	Seq uint64 `json:"seq"`
	// JobID identifies the job for job-scoped stages.
	JobID string `json:"job_id,omitempty"`
	// TS is the UTC timestamp recorded by the emitter.
	TS    time.Time `json:"ts"`
	Stage Stage     `json:"stage"`
	Level Level     `json:"level"`
	// Step names the pipeline step for JOB_STEP, or the warning kind for
	// JOB_WARNING.
	Step    string `json:"step,omitempty"`
	URL     string `json:"url,omitempty"`
	Path    string `json:"path,omitempty"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
	// Index is the queue index; meaningful for QUEUE_INDEX events.
	Index int           `json:"index"`
	Dur   time.Duration `json:"dur,omitempty"`
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Level {
	case LevelInfo, LevelError:
	default:
		return fmt.Errorf("unknown level %q", e.Level)
	}
	switch e.Stage {
	case StageJobQueued, StageJobStart, StageJobDone, StageJobError:
		if e.JobID == "" {
			return fmt.Errorf("%s requires job id", e.Stage)
		}
	case StageJobStep, StageJobWarning:
		if e.JobID == "" {
			return fmt.Errorf("%s requires job id", e.Stage)
		}
		if e.Step == "" {
			return fmt.Errorf("%s requires step", e.Stage)
		}
	case StageNotice:
		if e.Message == "" {
			return errors.New("notice requires message")
		}
	case StageQueueIndex:
		if e.Index < IdleIndex {
			return fmt.Errorf("queue index %d below idle sentinel", e.Index)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
