// Package capture acquires live audio+video device streams and delivers
// time-sliced media fragments.
package capture

import (
	"context"
	"fmt"
)

// Constraints selects which tracks a stream must carry.
type Constraints struct {
	Audio bool
	Video bool
}

// Reason classifies why a device could not be acquired.
type Reason string

const (
	ReasonPermissionDenied Reason = "permission-denied"
	ReasonNotFound         Reason = "not-found"
	ReasonBusy             Reason = "busy"
)

// DeviceError reports a failed device acquisition. Acquisition is never
// retried here; the caller decides whether to re-invoke.
type DeviceError struct {
	Reason Reason
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("device %s: %s: %v", e.Device, e.Reason, e.Err)
	}
	return fmt.Sprintf("device %s: %s", e.Device, e.Reason)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// Stream is one live capture session. Fragments delivers media slices in
// playback order and closes when capture halts; Err reports a capture
// failure once Fragments has closed. Stop halts all tracks and is
// idempotent.
type Stream interface {
	Fragments() <-chan []byte
	Stop() error
	Err() error
}

// Source acquires combined audio+video streams. Exactly one live stream may
// exist per recording session.
type Source interface {
	Acquire(ctx context.Context, constraints Constraints) (Stream, error)
}
