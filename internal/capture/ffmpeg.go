package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

const (
	defaultFragmentBytes = 32 << 10
	defaultStopGrace     = 2 * time.Second
)

// FFmpegConfig describes how the ffmpeg capture process is launched.
type FFmpegConfig struct {
	Binary        string
	VideoDevice   string
	AudioDevice   string
	FragmentBytes int
	StopGrace     time.Duration
}

// FFmpegSource muxes the V4L2 camera and Pulse microphone into a live WebM
// stream read from an ffmpeg child process.
type FFmpegSource struct {
	cfg    FFmpegConfig
	logger *slog.Logger
}

func NewFFmpegSource(cfg FFmpegConfig, logger *slog.Logger) *FFmpegSource {
	if cfg.Binary == "" {
		cfg.Binary = "ffmpeg"
	}
	if cfg.VideoDevice == "" {
		cfg.VideoDevice = "/dev/video0"
	}
	if cfg.AudioDevice == "" {
		cfg.AudioDevice = "default"
	}
	if cfg.FragmentBytes <= 0 {
		cfg.FragmentBytes = defaultFragmentBytes
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = defaultStopGrace
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &FFmpegSource{cfg: cfg, logger: logger}
}

// Acquire preflights the requested devices and starts the capture process.
// Device problems surface synchronously as *DeviceError; a capture process
// dying mid-session surfaces later through Stream.Err.
func (s *FFmpegSource) Acquire(ctx context.Context, constraints Constraints) (Stream, error) {
	if !constraints.Audio && !constraints.Video {
		return nil, errors.New("no tracks requested")
	}

	if constraints.Video {
		if err := ProbeVideoDevice(s.cfg.VideoDevice); err != nil {
			return nil, err
		}
	}
	if constraints.Audio {
		mics, err := ListMicrophones(ctx)
		if err != nil {
			return nil, &DeviceError{Reason: ReasonNotFound, Device: s.cfg.AudioDevice, Err: err}
		}
		mic, err := ResolveMicrophone(mics, s.cfg.AudioDevice)
		if err != nil {
			return nil, err
		}
		if mic.Muted {
			s.logger.Warn("capture microphone is muted", "device", mic.ID)
		}
	}

	cmd := exec.Command(s.cfg.Binary, buildFFmpegArgs(s.cfg, constraints)...)
	stream, err := startStream(cmd, s.cfg.FragmentBytes, s.cfg.StopGrace, s.logger)
	if err != nil {
		return nil, fmt.Errorf("start capture process: %w", err)
	}

	go func() {
		<-ctx.Done()
		_ = stream.Stop()
	}()

	s.logger.Info("capture stream acquired",
		"video", constraints.Video,
		"audio", constraints.Audio,
		"video_device", s.cfg.VideoDevice,
		"audio_device", s.cfg.AudioDevice,
	)
	return stream, nil
}

// buildFFmpegArgs assembles the ffmpeg invocation for a live WebM mux to
// stdout.
func buildFFmpegArgs(cfg FFmpegConfig, constraints Constraints) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	if constraints.Video {
		args = append(args, "-f", "v4l2", "-i", cfg.VideoDevice)
	}
	if constraints.Audio {
		args = append(args, "-f", "pulse", "-i", cfg.AudioDevice)
	}
	if constraints.Video {
		args = append(args, "-c:v", "libvpx", "-deadline", "realtime")
	}
	if constraints.Audio {
		args = append(args, "-c:a", "libopus")
	}
	return append(args, "-f", "webm", "pipe:1")
}

// ProbeVideoDevice classifies camera-node access before spawning ffmpeg.
func ProbeVideoDevice(device string) error {
	f, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		return &DeviceError{Reason: classifyOpenErr(err), Device: device, Err: err}
	}
	_ = f.Close()
	return nil
}

func classifyOpenErr(err error) Reason {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return ReasonNotFound
	case errors.Is(err, os.ErrPermission):
		return ReasonPermissionDenied
	case errors.Is(err, syscall.EBUSY):
		return ReasonBusy
	default:
		return ReasonNotFound
	}
}

// ffmpegStream adapts one ffmpeg child process to the Stream interface.
type ffmpegStream struct {
	cmd       *exec.Cmd
	stdout    io.ReadCloser
	stopGrace time.Duration
	logger    *slog.Logger

	fragments chan []byte
	readDone  chan struct{}

	mu          sync.Mutex
	stderr      bytes.Buffer
	stopped     bool
	captureFail error
}

func startStream(cmd *exec.Cmd, fragmentBytes int, stopGrace time.Duration, logger *slog.Logger) (*ffmpegStream, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	st := &ffmpegStream{
		cmd:       cmd,
		stopGrace: stopGrace,
		logger:    logger,
		fragments: make(chan []byte, 64),
		readDone:  make(chan struct{}),
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	st.stdout = stdout
	cmd.Stderr = &stderrWriter{stream: st}

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	go st.readLoop(fragmentBytes)
	return st, nil
}

func (st *ffmpegStream) Fragments() <-chan []byte {
	return st.fragments
}

// Err reports why capture halted, or nil after a deliberate Stop. Valid once
// Fragments has closed.
func (st *ffmpegStream) Err() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.captureFail
}

// Stop halts the capture process and all its device tracks. The process gets
// a grace period to flush before being killed. Safe to call any number of
// times.
func (st *ffmpegStream) Stop() error {
	st.mu.Lock()
	if st.stopped {
		st.mu.Unlock()
		<-st.readDone
		return nil
	}
	st.stopped = true
	st.mu.Unlock()

	if st.cmd.Process != nil {
		_ = st.cmd.Process.Signal(os.Interrupt)
	}

	select {
	case <-st.readDone:
	case <-time.After(st.stopGrace):
		if st.cmd.Process != nil {
			_ = st.cmd.Process.Kill()
		}
		<-st.readDone
	}
	return nil
}

// readLoop slices process stdout into fragments until EOF, then reaps the
// process and records any unexpected exit as a capture failure.
func (st *ffmpegStream) readLoop(fragmentBytes int) {
	defer close(st.readDone)
	defer close(st.fragments)

	buf := make([]byte, fragmentBytes)
	for {
		n, err := st.stdout.Read(buf)
		if n > 0 {
			fragment := make([]byte, n)
			copy(fragment, buf[:n])
			st.fragments <- fragment
		}
		if err != nil {
			break
		}
	}

	waitErr := st.cmd.Wait()

	st.mu.Lock()
	defer st.mu.Unlock()
	if waitErr != nil && !st.stopped {
		detail := strings.TrimSpace(st.stderr.String())
		if detail != "" {
			st.captureFail = fmt.Errorf("capture process exited: %w: %s", waitErr, detail)
		} else {
			st.captureFail = fmt.Errorf("capture process exited: %w", waitErr)
		}
		st.logger.Warn("capture process died", "error", waitErr.Error(), "stderr", detail)
	}
}

// stderrWriter collects process diagnostics under the stream mutex.
type stderrWriter struct {
	stream *ffmpegStream
}

func (w *stderrWriter) Write(p []byte) (int, error) {
	w.stream.mu.Lock()
	defer w.stream.mu.Unlock()
	return w.stream.stderr.Write(p)
}
