package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-pipeline/internal/core"
	"github.com/book-expert/tts-pipeline/internal/eventbus"
)

func newTestBus(t *testing.T) *eventbus.Bus {
	t.Helper()

	log, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)

	bus, err := eventbus.Start(0, log)
	require.NoError(t, err)

	t.Cleanup(bus.Shutdown)

	return bus
}

func TestBus_PublishSubscribeRoundTrip(t *testing.T) {
	bus := newTestBus(t)
	assert.True(t, bus.Connected())

	received := make(chan eventbus.ProgressEvent, 1)

	sub, err := bus.Subscribe(func(event eventbus.ProgressEvent) {
		received <- event
	})
	require.NoError(t, err)

	defer sub.Unsubscribe()

	bus.PublishProgress(core.Job{ID: "job-1", Status: core.JobInProgress, Progress: 0.5})

	select {
	case event := <-received:
		assert.Equal(t, "job-1", event.JobID)
		assert.Equal(t, core.JobInProgress, event.Status)
		assert.InDelta(t, 0.5, event.Progress, 0.001)
	case <-time.After(2 * time.Second):
		t.Fatal("did not receive published progress event")
	}
}

func TestMirror_PutFetchRoundTrip(t *testing.T) {
	bus := newTestBus(t)

	ctx := context.Background()

	mirror, err := eventbus.NewMirror(ctx, bus.Conn(), nil)
	require.NoError(t, err)

	payload := []byte("fake mp3 bytes")
	mirror.Mirror(ctx, "job-42", payload)

	got, err := mirror.Fetch(ctx, "job-42")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestMirror_FetchUnknownID(t *testing.T) {
	bus := newTestBus(t)

	ctx := context.Background()

	mirror, err := eventbus.NewMirror(ctx, bus.Conn(), nil)
	require.NoError(t, err)

	_, err = mirror.Fetch(ctx, "missing")
	require.Error(t, err)
}
