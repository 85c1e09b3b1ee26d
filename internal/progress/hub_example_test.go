package progress

import (
	"context"
	"fmt"
	"time"
)

type exampleCountingSink struct {
	total int
}

func (s *exampleCountingSink) Consume(_ context.Context, batch []Event) error {
	s.total += len(batch)
	return nil
}

func (s *exampleCountingSink) Close(context.Context) error {
	return nil
}

// ExampleHub_Emit demonstrates emitting an event and flushing via Close.
func ExampleHub_Emit() {
	sink := &exampleCountingSink{}
	hub := NewHub(Config{
		BufferSize:     4,
		MaxBatchEvents: 1,
		FlushInterval:  time.Second,
	}, sink)

	hub.Emit(Event{
		JobID: "0193a0a8-6d3c-7b52-9f0e-0c9f8b8d2a11",
		TS:    time.Unix(0, 0),
		Stage: StageJobStart,
		Level: LevelInfo,
	})
	if err := hub.Close(context.Background()); err != nil {
		panic(err)
	}

	fmt.Printf("events forwarded: %d\n", sink.total)
	// Output:
	// events forwarded: 1
}

// ExampleSink implements a custom Sink that tracks the latest queue index.
func ExampleSink() {
	index := IdleIndex
	capture := sinkFunc(func(_ context.Context, batch []Event) error {
		for _, evt := range batch {
			if evt.Stage == StageQueueIndex {
				index = evt.Index
			}
		}
		return nil
	})
	hub := NewHub(Config{
		BufferSize:     4,
		MaxBatchEvents: 1,
		FlushInterval:  time.Second,
	}, capture)

	for _, i := range []int{0, 1, 0} {
		hub.Emit(Event{TS: time.Unix(0, 0), Stage: StageQueueIndex, Level: LevelInfo, Index: i})
	}
	if err := hub.Close(context.Background()); err != nil {
		panic(err)
	}

	fmt.Printf("queue index: %d\n", index)
	// Output:
	// queue index: 0
}

type sinkFunc func(context.Context, []Event) error

func (f sinkFunc) Consume(ctx context.Context, batch []Event) error {
	return f(ctx, batch)
}

func (sinkFunc) Close(context.Context) error {
	return nil
}
