package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanSource struct{ ch chan Position }

func (s chanSource) SubscribeContinuous(context.Context) (<-chan Position, error) {
	return s.ch, nil
}

func TestReporterForwardsSamples(t *testing.T) {
	store := NewStore(nil, nil)
	src := chanSource{ch: make(chan Position)}
	rep := NewReporter(store, src, "alice")

	done := make(chan error, 1)
	go func() { done <- rep.Run(context.Background()) }()

	src.ch <- Position{Latitude: 10.0, Longitude: 20.0}
	src.ch <- Position{Latitude: 10.1, Longitude: 20.1}
	close(src.ch)
	require.NoError(t, <-done)

	rec, ok := store.Get("alice")
	require.True(t, ok)
	assert.Equal(t, Position{Latitude: 10.1, Longitude: 20.1}, rec.Position)
}

func TestReporterStopsOnCancel(t *testing.T) {
	store := NewStore(nil, nil)
	src := chanSource{ch: make(chan Position)}
	rep := NewReporter(store, src, "alice")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rep.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("reporter did not stop")
	}
}
