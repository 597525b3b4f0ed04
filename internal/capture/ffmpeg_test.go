package capture

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuildFFmpegArgsBothTracks(t *testing.T) {
	args := buildFFmpegArgs(FFmpegConfig{VideoDevice: "/dev/video2", AudioDevice: "front-mic"}, Constraints{Audio: true, Video: true})
	require.Equal(t, []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-f", "v4l2", "-i", "/dev/video2",
		"-f", "pulse", "-i", "front-mic",
		"-c:v", "libvpx", "-deadline", "realtime",
		"-c:a", "libopus",
		"-f", "webm", "pipe:1",
	}, args)
}

func TestBuildFFmpegArgsAudioOnly(t *testing.T) {
	args := buildFFmpegArgs(FFmpegConfig{AudioDevice: "default"}, Constraints{Audio: true})
	require.NotContains(t, args, "v4l2")
	require.NotContains(t, args, "libvpx")
	require.Contains(t, args, "pulse")
	require.Contains(t, args, "libopus")
}

func TestProbeVideoDeviceMissingNode(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "video9")
	err := ProbeVideoDevice(missing)
	require.Error(t, err)

	var devErr *DeviceError
	require.ErrorAs(t, err, &devErr)
	require.Equal(t, ReasonNotFound, devErr.Reason)
	require.Equal(t, missing, devErr.Device)
}

func TestClassifyOpenErr(t *testing.T) {
	require.Equal(t, ReasonNotFound, classifyOpenErr(os.ErrNotExist))
	require.Equal(t, ReasonPermissionDenied, classifyOpenErr(&os.PathError{Op: "open", Path: "/dev/video0", Err: os.ErrPermission}))
	require.Equal(t, ReasonBusy, classifyOpenErr(&os.PathError{Op: "open", Path: "/dev/video0", Err: syscall.EBUSY}))
	require.Equal(t, ReasonNotFound, classifyOpenErr(errors.New("weird")))
}

func TestDeviceErrorMessageAndUnwrap(t *testing.T) {
	inner := errors.New("open failed")
	err := &DeviceError{Reason: ReasonPermissionDenied, Device: "/dev/video0", Err: inner}
	require.Contains(t, err.Error(), "permission-denied")
	require.Contains(t, err.Error(), "/dev/video0")
	require.ErrorIs(t, err, inner)
}

func TestStreamDeliversFragmentsInOrder(t *testing.T) {
	cmd := exec.Command("sh", "-c", "printf 0123456789")
	stream, err := startStream(cmd, 4, time.Second, nil)
	require.NoError(t, err)

	var out []byte
	for fragment := range stream.Fragments() {
		out = append(out, fragment...)
	}
	require.Equal(t, []byte("0123456789"), out)
	require.NoError(t, stream.Err())
	require.NoError(t, stream.Stop())
}

func TestStreamSurfacesProcessFailure(t *testing.T) {
	cmd := exec.Command("sh", "-c", "echo device exploded >&2; exit 3")
	stream, err := startStream(cmd, 4, time.Second, nil)
	require.NoError(t, err)

	for range stream.Fragments() {
	}
	require.Error(t, stream.Err())
	require.Contains(t, stream.Err().Error(), "device exploded")
}

func TestStreamStopIsIdempotentAndSuppressesExitError(t *testing.T) {
	cmd := exec.Command("sh", "-c", "sleep 10")
	stream, err := startStream(cmd, 4, 50*time.Millisecond, nil)
	require.NoError(t, err)

	go func() {
		for range stream.Fragments() {
		}
	}()

	require.NoError(t, stream.Stop())
	require.NoError(t, stream.Stop())
	require.NoError(t, stream.Err(), "a deliberate stop is not a capture failure")
}

func TestResolveMicrophoneDefault(t *testing.T) {
	mics := []Microphone{
		{ID: "alsa.usb-cam", Available: true},
		{ID: "alsa.builtin", Available: true, Default: true},
	}
	mic, err := ResolveMicrophone(mics, "default")
	require.NoError(t, err)
	require.Equal(t, "alsa.builtin", mic.ID)
}

func TestResolveMicrophoneBySubstring(t *testing.T) {
	mics := []Microphone{
		{ID: "alsa.builtin", Available: true, Default: true},
		{ID: "alsa.usb-headset", Description: "USB Headset", Available: true},
	}
	mic, err := ResolveMicrophone(mics, "headset")
	require.NoError(t, err)
	require.Equal(t, "alsa.usb-headset", mic.ID)
}

func TestResolveMicrophoneFailures(t *testing.T) {
	var devErr *DeviceError

	_, err := ResolveMicrophone(nil, "default")
	require.ErrorAs(t, err, &devErr)
	require.Equal(t, ReasonNotFound, devErr.Reason)

	_, err = ResolveMicrophone([]Microphone{{ID: "mic", Available: true}}, "absent")
	require.ErrorAs(t, err, &devErr)
	require.Equal(t, ReasonNotFound, devErr.Reason)

	_, err = ResolveMicrophone([]Microphone{{ID: "mic", Default: true, Available: false}}, "default")
	require.ErrorAs(t, err, &devErr)
	require.Equal(t, ReasonBusy, devErr.Reason)
}
