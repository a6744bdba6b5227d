package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamvidya/vidya-dropout/internal/domain/shared"
)

type recordingHandler struct {
	mu     sync.Mutex
	types  []shared.EventType
	events []shared.Event
	err    error
	done   chan struct{}
}

func newRecordingHandler(types ...shared.EventType) *recordingHandler {
	return &recordingHandler{types: types, done: make(chan struct{}, 16)}
}

func (h *recordingHandler) Handle(ctx context.Context, event shared.Event) error {
	h.mu.Lock()
	h.events = append(h.events, event)
	h.mu.Unlock()
	h.done <- struct{}{}
	return h.err
}

func (h *recordingHandler) InterestedIn() []shared.EventType {
	return h.types
}

func (h *recordingHandler) received() []shared.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]shared.Event, len(h.events))
	copy(out, h.events)
	return out
}

func waitFor(t *testing.T, ch chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for handler")
	}
}

func TestEventBusDeliversToInterestedHandler(t *testing.T) {
	bus := NewEventBus(DefaultConfig())
	defer bus.Close()

	handler := newRecordingHandler(shared.EventAttendanceMarked)
	require.NoError(t, bus.Subscribe(handler))

	event := shared.NewAttendanceMarkedEvent(time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC), 42)
	require.NoError(t, bus.Publish(context.Background(), event))

	waitFor(t, handler.done)

	received := handler.received()
	require.Len(t, received, 1)
	assert.Equal(t, shared.EventAttendanceMarked, received[0].EventType())
	assert.Equal(t, "2025-07-14", received[0].AggregateID())
}

func TestEventBusIgnoresUninterestedHandler(t *testing.T) {
	bus := NewEventBus(DefaultConfig())
	defer bus.Close()

	attendance := newRecordingHandler(shared.EventAttendanceMarked)
	recompute := newRecordingHandler(shared.EventProfilesRecomputed)
	require.NoError(t, bus.Subscribe(attendance))
	require.NoError(t, bus.Subscribe(recompute))

	require.NoError(t, bus.Publish(context.Background(), shared.NewProfilesRecomputedEvent(10, 3)))

	waitFor(t, recompute.done)

	assert.Len(t, recompute.received(), 1)
	assert.Empty(t, attendance.received())
}

func TestEventBusRecordsHandlerFailure(t *testing.T) {
	bus := NewEventBus(DefaultConfig())
	defer bus.Close()

	handler := newRecordingHandler(shared.EventProfilesRecomputed)
	handler.err = errors.New("boom")
	require.NoError(t, bus.Subscribe(handler))

	require.NoError(t, bus.Publish(context.Background(), shared.NewProfilesRecomputedEvent(5, 1)))
	waitFor(t, handler.done)

	// Handler completion is recorded asynchronously after Handle returns.
	assert.Eventually(t, func() bool {
		snap := bus.Metrics().Snapshot()
		return snap.TotalHandlerExecs == 1 && snap.HandlerSuccessRate == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEventBusRejectsPublishAfterClose(t *testing.T) {
	bus := NewEventBus(DefaultConfig())
	require.NoError(t, bus.Close())

	err := bus.Publish(context.Background(), shared.NewProfilesRecomputedEvent(1, 0))
	assert.ErrorIs(t, err, ErrEventBusClosed)
}

func TestEventBusSubscribeNilHandler(t *testing.T) {
	bus := NewEventBus(DefaultConfig())
	defer bus.Close()

	assert.Error(t, bus.Subscribe(nil))
}
