package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/grovetools/storybook/logging"
)

func TestStartStopsOnCancel(t *testing.T) {
	e := New(logging.NewLogger("storybook"))
	var stopped atomic.Int32
	for _, name := range []string{"watcher", "server"} {
		e.Register(Func(name, func(ctx context.Context) error {
			<-ctx.Done()
			stopped.Add(1)
			return ctx.Err()
		}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}
	assert.Equal(t, int32(2), stopped.Load())
}

func TestStartFailureCancelsOthers(t *testing.T) {
	e := New(logging.NewLogger("storybook"))
	e.Register(Func("server", func(ctx context.Context) error {
		return assert.AnError
	}))
	var cancelled atomic.Bool
	e.Register(Func("watcher", func(ctx context.Context) error {
		<-ctx.Done()
		cancelled.Store(true)
		return nil
	}))

	err := e.Start(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
	assert.True(t, cancelled.Load())
}
