package session

import (
	"context"
	"testing"

	"github.com/evidently/consentcam/internal/fsm"
	"github.com/evidently/consentcam/internal/ipc"
	"github.com/stretchr/testify/require"
)

func TestHandleStatusAndUnknownCommand(t *testing.T) {
	ctrl := NewController(nil, nil, nil, nil)

	status := ctrl.Handle(context.Background(), ipc.Request{Command: "status"})
	require.True(t, status.OK)
	require.Equal(t, string(fsm.StateIdle), status.State)
	require.Zero(t, status.Remaining)

	unknown := ctrl.Handle(context.Background(), ipc.Request{Command: "definitely-unknown"})
	require.False(t, unknown.OK)
	require.Contains(t, unknown.Error, "unknown command")
}

func TestHandleStopAndAbandonOutsideRecordingAreTolerated(t *testing.T) {
	ctrl := NewController(nil, nil, nil, nil)

	stop := ctrl.Handle(context.Background(), ipc.Request{Command: "stop"})
	require.True(t, stop.OK, "duplicate stop signals must not be errors")
	require.Equal(t, "no active recording", stop.Message)

	abandon := ctrl.Handle(context.Background(), ipc.Request{Command: "abandon"})
	require.True(t, abandon.OK)
	require.Equal(t, "no active recording", abandon.Message)
}

func TestHandleStopFinalizesActiveSession(t *testing.T) {
	stream := newFakeStream()
	source := &fakeSource{streams: []*fakeStream{stream}}
	sink := &fakeSink{}
	notifier := newFakeNotifier()
	ctrl := NewController(nil, source, sink, notifier)

	require.NoError(t, ctrl.Start(context.Background()))

	resp := ctrl.Handle(context.Background(), ipc.Request{Command: "stop"})
	require.True(t, resp.OK)
	require.Equal(t, "stop requested", resp.Message)
	require.Equal(t, string(fsm.StateCompleted), resp.State)

	outcome := waitOutcome(t, notifier)
	require.False(t, outcome.Abandoned)
	require.Equal(t, 1, sink.putCount())
}

func TestHandleAbandonReleasesWithoutUpload(t *testing.T) {
	stream := newFakeStream()
	source := &fakeSource{streams: []*fakeStream{stream}}
	sink := &fakeSink{}
	notifier := newFakeNotifier()
	ctrl := NewController(nil, source, sink, notifier)

	require.NoError(t, ctrl.Start(context.Background()))

	resp := ctrl.Handle(context.Background(), ipc.Request{Command: "abandon"})
	require.True(t, resp.OK)
	require.Equal(t, "recording abandoned", resp.Message)

	outcome := waitOutcome(t, notifier)
	require.True(t, outcome.Abandoned)
	require.Zero(t, sink.putCount())
	require.True(t, stream.tracksStopped())
}

func TestHandleStatusWhileRecordingReportsCountdown(t *testing.T) {
	stream := newFakeStream()
	source := &fakeSource{streams: []*fakeStream{stream}}
	notifier := newFakeNotifier()
	ctrl := NewController(nil, source, &fakeSink{}, notifier)

	require.NoError(t, ctrl.Start(context.Background()))
	defer func() { _ = ctrl.Abandon() }()

	resp := ctrl.Handle(context.Background(), ipc.Request{Command: "status"})
	require.True(t, resp.OK)
	require.Equal(t, string(fsm.StateRecording), resp.State)
	require.Equal(t, DefaultMaxSeconds, resp.Remaining)
}
