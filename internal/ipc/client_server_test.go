package ipc

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testSocketPath(t *testing.T) string {
	t.Helper()
	// Unix socket paths have a tight length limit; keep it short.
	return filepath.Join(t.TempDir(), "cc.sock")
}

func TestSendRoundtrip(t *testing.T) {
	path := testSocketPath(t)
	listener, err := net.Listen("unix", path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- Serve(ctx, listener, HandlerFunc(func(_ context.Context, req Request) Response {
			return Response{OK: true, State: "recording", Remaining: 17, Message: req.Command}
		}))
	}()

	resp, err := Send(ctx, path, Request{Command: "status"}, time.Second)
	require.NoError(t, err)
	require.True(t, resp.OK)
	require.Equal(t, "recording", resp.State)
	require.Equal(t, 17, resp.Remaining)
	require.Equal(t, "status", resp.Message)

	cancel()
	require.NoError(t, <-serveDone)
}

func TestProbeDistinguishesLiveAndDeadSockets(t *testing.T) {
	path := testSocketPath(t)

	alive, err := Probe(context.Background(), path, 100*time.Millisecond)
	require.NoError(t, err)
	require.False(t, alive, "missing socket must probe dead")

	listener, err := net.Listen("unix", path)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = Serve(ctx, listener, HandlerFunc(func(context.Context, Request) Response {
			return Response{OK: true, State: "idle"}
		}))
	}()

	alive, err = Probe(context.Background(), path, time.Second)
	require.NoError(t, err)
	require.True(t, alive)

	cancel()
}

func TestAcquireReclaimsStaleSocket(t *testing.T) {
	path := testSocketPath(t)

	// Leave a dead socket file behind, as a crashed owner would.
	stale, err := net.Listen("unix", path)
	require.NoError(t, err)
	stale.(*net.UnixListener).SetUnlinkOnClose(false)
	require.NoError(t, stale.Close())

	listener, err := Acquire(context.Background(), path, 100*time.Millisecond, 2)
	require.NoError(t, err)
	require.NoError(t, listener.Close())
}

func TestAcquireRefusesLiveOwner(t *testing.T) {
	path := testSocketPath(t)
	listener, err := net.Listen("unix", path)
	require.NoError(t, err)
	defer listener.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = Serve(ctx, listener, HandlerFunc(func(context.Context, Request) Response {
			return Response{OK: true}
		}))
	}()

	_, err = Acquire(ctx, path, time.Second, 1)
	require.ErrorIs(t, err, ErrAlreadyRunning)
}
