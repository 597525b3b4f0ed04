package session

import (
	"context"
	"errors"
	"time"
)

// ErrSinkUnavailable indicates runtime sink wiring is missing.
var ErrSinkUnavailable = errors.New("no artifact sink wired")

// ErrSourceUnavailable indicates runtime capture wiring is missing.
var ErrSourceUnavailable = errors.New("no capture source wired")

// Uploader persists one finalized artifact. Retry policy belongs to the
// implementation, not the session.
type Uploader interface {
	Put(ctx context.Context, key string, content []byte, contentType string) error
}

// UploadFunc adapts a function to the Uploader interface.
type UploadFunc func(ctx context.Context, key string, content []byte, contentType string) error

func (f UploadFunc) Put(ctx context.Context, key string, content []byte, contentType string) error {
	return f(ctx, key, content, contentType)
}

// Outcome is the completion report for one finished session.
type Outcome struct {
	SessionID string
	Key       string
	Bytes     int
	Duration  time.Duration
	Abandoned bool
	UploadErr error
}

// Uploaded reports whether the artifact reached the sink.
func (o Outcome) Uploaded() bool {
	return !o.Abandoned && o.UploadErr == nil
}

// Notifier receives session completion and capture-failure signals. The
// state machine never waits on a notifier; callbacks run off the session's
// critical path.
type Notifier interface {
	RecordingStopped(context.Context, Outcome)
	CaptureError(context.Context, error)
}

// noopNotifier preserves session flow when no notifier is wired.
type noopNotifier struct{}

func (noopNotifier) RecordingStopped(context.Context, Outcome) {}
func (noopNotifier) CaptureError(context.Context, error)       {}
