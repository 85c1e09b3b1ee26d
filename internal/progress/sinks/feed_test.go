package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/clipdl/internal/progress"
)

func notice(seq uint64) progress.Event {
	return progress.Event{Seq: seq, TS: time.Now(), Stage: progress.StageNotice, Level: progress.LevelInfo, Message: "n"}
}

// TestFeedDropsUntilReady ensures nothing is shown before the surface loads.
func TestFeedDropsUntilReady(t *testing.T) {
	t.Parallel()

	f := NewFeed(4)
	require.False(t, f.Ready())
	require.NoError(t, f.Consume(context.Background(), []progress.Event{notice(1), notice(2)}))
	require.Empty(t, f.Since(0, 0))
	require.Equal(t, int64(2), f.Dropped())

	f.MarkReady()
	require.NoError(t, f.Consume(context.Background(), []progress.Event{notice(3)}))
	got := f.Since(0, 0)
	require.Len(t, got, 1)
	require.Equal(t, uint64(3), got[0].Seq)
}

// TestFeedRingOverwritesOldest ensures the feed keeps the newest events in
// order once it wraps.
func TestFeedRingOverwritesOldest(t *testing.T) {
	t.Parallel()

	f := NewFeed(3)
	f.MarkReady()
	for seq := uint64(1); seq <= 5; seq++ {
		require.NoError(t, f.Consume(context.Background(), []progress.Event{notice(seq)}))
	}

	got := f.Since(0, 0)
	require.Len(t, got, 3)
	require.Equal(t, []uint64{3, 4, 5}, seqs(got))
	require.Equal(t, []uint64{5}, seqs(f.Since(4, 0)))
	require.Equal(t, []uint64{4, 5}, seqs(f.Since(0, 2)))
}

func TestFeedTracksQueueIndex(t *testing.T) {
	t.Parallel()

	f := NewFeed(0)
	require.Equal(t, progress.IdleIndex, f.Index())
	f.MarkReady()
	require.NoError(t, f.Consume(context.Background(), []progress.Event{
		{Seq: 1, TS: time.Now(), Stage: progress.StageQueueIndex, Level: progress.LevelInfo, Index: 2},
	}))
	require.Equal(t, 2, f.Index())
}

func seqs(events []progress.Event) []uint64 {
	out := make([]uint64, 0, len(events))
	for _, e := range events {
		out = append(out, e.Seq)
	}
	return out
}
