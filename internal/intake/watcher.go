package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	"go.uber.org/zap"
)

// DefaultPollInterval is how often the clipboard is sampled.
const DefaultPollInterval = 500 * time.Millisecond

// Source supplies the current text of an input surface.
type Source interface {
	ReadText() (string, error)
}

// Clipboard reads the system clipboard.
type Clipboard struct{}

// ReadText returns the clipboard's text content.
func (Clipboard) ReadText() (string, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("read clipboard: %w", err)
	}
	return text, nil
}

// ClipboardSupported reports whether a clipboard backend exists on this host.
func ClipboardSupported() bool {
	return !clipboard.Unsupported
}

// HandlerFunc receives each new piece of text seen on a Source.
type HandlerFunc func(ctx context.Context, text string)

// Watcher polls a Source and hands changed, non-empty text to a handler.
// Whatever is on the surface when Run starts is treated as already seen.
type Watcher struct {
	source   Source
	handle   HandlerFunc
	interval time.Duration
	logger   *zap.Logger
}

// NewWatcher creates a Watcher. A non-positive interval uses DefaultPollInterval.
func NewWatcher(source Source, handle HandlerFunc, interval time.Duration, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Watcher{
		source:   source,
		handle:   handle,
		interval: interval,
		logger:   logger.Named("watcher"),
	}
}

// Run polls until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	last, err := w.source.ReadText()
	if err != nil {
		w.logger.Debug("initial read failed", zap.Error(err))
	}
	failing := false

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return fmt.Errorf("watch input surface: %w", ctx.Err())
		case <-ticker.C:
		}

		text, err := w.source.ReadText()
		if err != nil {
			if !failing {
				w.logger.Warn("read input surface failed", zap.Error(err))
				failing = true
			}
			continue
		}
		if failing {
			w.logger.Info("input surface readable again")
			failing = false
		}
		if text == last {
			continue
		}
		last = text
		if text == "" {
			continue
		}
		w.handle(ctx, text)
	}
}
