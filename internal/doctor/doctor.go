// Package doctor runs readiness diagnostics for config, the capture tool
// chain, devices, and the artifact sink.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/evidently/consentcam/internal/capture"
	"github.com/evidently/consentcam/internal/config"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment and device checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	checks := []Check{}

	source := cfg.Path
	if source == "" {
		source = "environment"
	}
	checks = append(checks, Check{
		Name:    "config",
		Pass:    true,
		Message: fmt.Sprintf("loaded from %s", source),
	})

	checks = append(checks,
		checkBinary(cfg.Config.Capture.FFmpegBinary),
		checkVideoDevice(cfg.Config.Capture.VideoDevice),
		checkMicrophone(ctx, cfg.Config.Capture.AudioDevice),
		checkSink(cfg.Config),
	)

	return Report{Checks: checks}
}

// checkBinary validates that the capture binary exists in PATH.
func checkBinary(bin string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: "ffmpeg", Pass: false, Message: fmt.Sprintf("binary not found: %s", bin)}
	}
	return Check{Name: "ffmpeg", Pass: true, Message: fmt.Sprintf("found at %s", path)}
}

// checkVideoDevice probes the camera node the way acquisition will.
func checkVideoDevice(device string) Check {
	if err := capture.ProbeVideoDevice(device); err != nil {
		var devErr *capture.DeviceError
		if errors.As(err, &devErr) {
			return Check{Name: "camera", Pass: false, Message: fmt.Sprintf("%s: %s", device, devErr.Reason)}
		}
		return Check{Name: "camera", Pass: false, Message: err.Error()}
	}
	return Check{Name: "camera", Pass: true, Message: fmt.Sprintf("%s is accessible", device)}
}

// checkMicrophone verifies the configured Pulse source resolves.
func checkMicrophone(ctx context.Context, device string) Check {
	mics, err := capture.ListMicrophones(ctx)
	if err != nil {
		return Check{Name: "microphone", Pass: false, Message: err.Error()}
	}
	mic, err := capture.ResolveMicrophone(mics, device)
	if err != nil {
		return Check{Name: "microphone", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", mic.ID)
	if mic.Muted {
		message += " (muted)"
	}
	return Check{Name: "microphone", Pass: true, Message: message}
}

// checkSink validates the sink target without a live upload.
func checkSink(cfg config.Config) Check {
	if cfg.Sink.Bucket == "" {
		return Check{Name: "sink", Pass: false, Message: "sink.bucket is not configured"}
	}
	message := fmt.Sprintf("bucket %q", cfg.Sink.Bucket)
	if cfg.Sink.Endpoint != "" {
		message += fmt.Sprintf(" via %s", cfg.Sink.Endpoint)
	}
	return Check{Name: "sink", Pass: true, Message: message}
}
