// Package cli defines the consentcam command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/evidently/consentcam/internal/app"
)

// Execute parses args and runs the selected command, returning the process
// exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	runner := &app.Runner{Stdout: stdout, Stderr: stderr}
	root := NewRootCommand(runner)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			return exit.code
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}
	return 0
}

// NewRootCommand builds the command tree around a shared runner.
func NewRootCommand(runner *app.Runner) *cobra.Command {
	root := &cobra.Command{
		Use:   "consentcam",
		Short: "Record bounded consent videos and upload them to object storage",
		Long: `Consentcam records a short consent-confirmation video from the local
camera and microphone. Recording stops on request or when the time limit
expires, and the finished WebM artifact is uploaded to the configured
bucket. A running session is controlled over a local socket with the
stop, abandon, and status commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&runner.ConfigPath, "config", "",
		"config file path (default: CONSENTCAM_* environment)")

	root.AddCommand(
		newRecordCommand(runner),
		newStopCommand(runner),
		newAbandonCommand(runner),
		newStatusCommand(runner),
		newDevicesCommand(runner),
		newDoctorCommand(runner),
		newVersionCommand(runner),
	)
	return root
}

func newRecordCommand(runner *app.Runner) *cobra.Command {
	return &cobra.Command{
		Use:   "record",
		Short: "Start a recording session in the foreground",
		Long: `Start a consent recording session. The command stays in the
foreground until the recording is stopped, abandoned, or the time limit
expires, then reports the upload outcome.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return exit(runner.Record(cmd.Context()))
		},
	}
}

func newStopCommand(runner *app.Runner) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the active recording and upload the artifact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return exit(runner.Stop(cmd.Context()))
		},
	}
}

func newAbandonCommand(runner *app.Runner) *cobra.Command {
	return &cobra.Command{
		Use:   "abandon",
		Short: "Abandon the active recording and discard the artifact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return exit(runner.Abandon(cmd.Context()))
		},
	}
}

func newStatusCommand(runner *app.Runner) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the state of the running session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return exit(runner.Status(cmd.Context()))
		},
	}
}

func newDevicesCommand(runner *app.Runner) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List available cameras and microphones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return exit(runner.Devices(cmd.Context()))
		},
	}
}

func newDoctorCommand(runner *app.Runner) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run configuration and environment checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return exit(runner.Doctor(cmd.Context()))
		},
	}
}

func newVersionCommand(runner *app.Runner) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return exit(runner.Version())
		},
	}
}

// exitError carries a non-zero command exit code through cobra.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

func exit(code int) error {
	if code == 0 {
		return nil
	}
	return &exitError{code: code}
}
