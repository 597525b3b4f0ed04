// Package app wires configuration, logging, capture, the session
// controller, and the IPC surface into the consentcam commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/evidently/consentcam/internal/capture"
	"github.com/evidently/consentcam/internal/config"
	"github.com/evidently/consentcam/internal/doctor"
	"github.com/evidently/consentcam/internal/ipc"
	"github.com/evidently/consentcam/internal/logging"
	"github.com/evidently/consentcam/internal/session"
	"github.com/evidently/consentcam/internal/sink"
	"github.com/evidently/consentcam/internal/version"
)

// Runner executes consentcam commands against the configured environment.
type Runner struct {
	Stdout io.Writer
	Stderr io.Writer

	// Logger overrides the file logger when set; used by tests.
	Logger *slog.Logger

	// ConfigPath is the optional --config override.
	ConfigPath string
}

// Record runs a full recording session in the foreground: acquire the
// control socket, start capture, and exit once the artifact outcome is
// known. Exit code 1 covers both startup failures and a failed upload.
func (r *Runner) Record(ctx context.Context) int {
	logRuntime, logger, cleanup, code := r.setupLogging()
	if code != 0 {
		return code
	}
	defer cleanup()

	cfgLoaded, err := config.Load(r.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}

	logger.Info("record start",
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
		"max_seconds", cfgLoaded.Config.Recording.MaxSeconds,
	)

	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintln(r.Stderr, "error: a consentcam session is already running")
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	uploader, err := sink.NewS3(cfgLoaded.Config.S3(), logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	source := capture.NewFFmpegSource(cfgLoaded.Config.FFmpeg(), logger)
	notifier := newOutcomeNotifier(logger)
	controller := session.NewController(logger, source, uploader, notifier)
	controller.SetMaxSeconds(cfgLoaded.Config.Recording.MaxSeconds)

	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, controller)
	}()

	if err := controller.Start(ctx); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintf(r.Stdout, "recording (limit %ds, session %s)\n",
		cfgLoaded.Config.Recording.MaxSeconds, controller.SessionID())

	outcome, ok := r.waitOutcome(ctx, controller, notifier)
	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}
	if !ok {
		fmt.Fprintln(r.Stderr, "error: session ended without an outcome")
		return 1
	}

	return r.reportOutcome(logger, outcome)
}

// waitOutcome blocks until the session resolves. A context cancellation
// (SIGINT, SIGTERM) abandons the session, which still produces an outcome.
func (r *Runner) waitOutcome(ctx context.Context, controller *session.Controller, notifier *outcomeNotifier) (session.Outcome, bool) {
	select {
	case outcome := <-notifier.outcomes:
		return outcome, true
	case <-ctx.Done():
		fmt.Fprintln(r.Stdout, "interrupted, abandoning recording")
		_ = controller.Close()
	}

	select {
	case outcome := <-notifier.outcomes:
		return outcome, true
	case <-time.After(5 * time.Second):
		return session.Outcome{}, false
	}
}

func (r *Runner) reportOutcome(logger *slog.Logger, outcome session.Outcome) int {
	fields := []any{
		"session", outcome.SessionID,
		"bytes", outcome.Bytes,
		"duration_ms", outcome.Duration.Milliseconds(),
		"abandoned", outcome.Abandoned,
	}

	if outcome.Abandoned {
		logger.Info("session abandoned", fields...)
		fmt.Fprintln(r.Stdout, "abandoned, recording discarded")
		return 0
	}
	if outcome.UploadErr != nil {
		logger.Error("session upload failed", append(fields, "error", outcome.UploadErr.Error())...)
		fmt.Fprintf(r.Stderr, "error: upload failed: %v\n", outcome.UploadErr)
		return 1
	}

	logger.Info("session complete", append(fields, "key", outcome.Key)...)
	fmt.Fprintf(r.Stdout, "uploaded %s (%d bytes)\n", outcome.Key, outcome.Bytes)
	return 0
}

// Stop asks a running session to finalize and upload.
func (r *Runner) Stop(ctx context.Context) int {
	return r.forwardOrFail(ctx, "stop")
}

// Abandon asks a running session to discard its recording.
func (r *Runner) Abandon(ctx context.Context) int {
	return r.forwardOrFail(ctx, "abandon")
}

// Status prints the lifecycle state of the running session, or "idle" when
// no session owns the control socket.
func (r *Runner) Status(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, "status")
	if !handled {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	if resp.State == "recording" {
		fmt.Fprintf(r.Stdout, "recording (%ds remaining)\n", resp.Remaining)
	} else if resp.State != "" {
		fmt.Fprintln(r.Stdout, resp.State)
	} else {
		fmt.Fprintln(r.Stdout, "idle")
	}
	return 0
}

// Devices lists capture hardware visible to a session.
func (r *Runner) Devices(ctx context.Context) int {
	cameras, err := capture.ListCameras()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(cameras) == 0 {
		fmt.Fprintln(r.Stdout, "no cameras found")
	}
	for _, node := range cameras {
		fmt.Fprintf(r.Stdout, "camera %s\n", node)
	}

	mics, err := capture.ListMicrophones(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(mics) == 0 {
		fmt.Fprintln(r.Stdout, "no microphones found")
		return 1
	}
	for _, mic := range mics {
		defaultMark := " "
		if mic.Default {
			defaultMark = "*"
		}
		available := "yes"
		if !mic.Available {
			available = "no"
		}
		muted := "no"
		if mic.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s microphone id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark, mic.ID, mic.Description, mic.State, available, muted,
		)
	}
	return 0
}

// Doctor runs environment checks and reports pass/fail per dependency.
func (r *Runner) Doctor(ctx context.Context) int {
	cfgLoaded, err := config.Load(r.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	report := doctor.Run(ctx, cfgLoaded)
	fmt.Fprintln(r.Stdout, report.String())
	if report.OK() {
		return 0
	}
	return 1
}

// Version prints build information.
func (r *Runner) Version() int {
	fmt.Fprintln(r.Stdout, version.String())
	return 0
}

func (r *Runner) setupLogging() (logging.Runtime, *slog.Logger, func(), int) {
	if r.Logger != nil {
		return logging.Runtime{}, r.Logger, func() {}, 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return logging.Runtime{}, nil, nil, 1
	}
	return logRuntime, logRuntime.Logger, func() { _ = logRuntime.Close() }, 0
}

func (r *Runner) forwardOrFail(ctx context.Context, command string) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, command)
	if !handled {
		fmt.Fprintln(r.Stderr, "error: no active consentcam session")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// tryForward delivers a command to the session owning the control socket.
// A missing socket or refused connection means no session is running; that
// is reported as unhandled, not as an error.
func tryForward(ctx context.Context, socketPath string, command string) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, ipc.Request{Command: command}, 220*time.Millisecond)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if isSocketMissing(err) || errors.Is(err, syscall.ECONNREFUSED) {
		return ipc.Response{}, false, nil
	}
	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
}

func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "no such file or directory")
}

// outcomeNotifier surfaces the session outcome to the foreground command.
type outcomeNotifier struct {
	logger   *slog.Logger
	outcomes chan session.Outcome
}

func newOutcomeNotifier(logger *slog.Logger) *outcomeNotifier {
	return &outcomeNotifier{logger: logger, outcomes: make(chan session.Outcome, 1)}
}

func (n *outcomeNotifier) RecordingStopped(_ context.Context, outcome session.Outcome) {
	select {
	case n.outcomes <- outcome:
	default:
	}
}

func (n *outcomeNotifier) CaptureError(_ context.Context, err error) {
	n.logger.Warn("capture error reported", "error", err.Error())
}
