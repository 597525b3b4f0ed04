// Package session coordinates the consent-recording lifecycle: device
// acquisition, fragment buffering, the countdown, finalize sequencing, and
// the asynchronous sink handoff.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/evidently/consentcam/internal/capture"
	"github.com/evidently/consentcam/internal/countdown"
	"github.com/evidently/consentcam/internal/fsm"
	"github.com/evidently/consentcam/internal/media"
)

const (
	// DefaultMaxSeconds is the hard recording limit.
	DefaultMaxSeconds = 30

	defaultTickInterval = time.Second
	uploadTimeout       = 2 * time.Minute
)

// placeholderSource fails acquisition when no capture source is wired.
type placeholderSource struct{}

func (placeholderSource) Acquire(context.Context, capture.Constraints) (capture.Stream, error) {
	return nil, ErrSourceUnavailable
}

// Controller owns all mutable state for one recording attempt and drives it
// through the idle -> recording -> completed lifecycle. One mutex serializes
// every transition entry point (start, stop, abandon, tick), which is what
// makes the exactly-once stop guarantee hold.
type Controller struct {
	logger *slog.Logger
	source capture.Source
	sink   Uploader
	notify Notifier

	// clock is injectable for testing; defaults to time.Now.
	clock        func() time.Time
	tickInterval time.Duration
	maxSeconds   int

	mu        sync.Mutex
	state     fsm.State
	sessionID string
	startedAt time.Time
	remaining int
	stream    capture.Stream
	buf       *media.Buffer
	timer     *countdown.Timer
	pumpDone  chan struct{}
}

// NewController constructs a session controller with safe default fallbacks.
func NewController(
	logger *slog.Logger,
	source capture.Source,
	sink Uploader,
	notifier Notifier,
) *Controller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if source == nil {
		source = placeholderSource{}
	}
	if sink == nil {
		sink = UploadFunc(func(context.Context, string, []byte, string) error {
			return ErrSinkUnavailable
		})
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}

	return &Controller{
		logger:       logger,
		source:       source,
		sink:         sink,
		notify:       notifier,
		clock:        time.Now,
		tickInterval: defaultTickInterval,
		maxSeconds:   DefaultMaxSeconds,
		state:        fsm.StateIdle,
	}
}

// SetMaxSeconds overrides the recording limit for sessions started
// afterward. Values below one are ignored.
func (c *Controller) SetMaxSeconds(seconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seconds > 0 {
		c.maxSeconds = seconds
	}
}

// State returns the current lifecycle state snapshot.
func (c *Controller) State() fsm.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Remaining returns the countdown seconds left in the active session.
func (c *Controller) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// SessionID returns the identifier of the current or most recent session.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Start acquires the device stream and enters recording. Valid only from
// idle; an acquisition failure surfaces synchronously and leaves the
// controller idle with no buffer and no timer, so the caller may retry.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != fsm.StateIdle {
		return fmt.Errorf("cannot start from state %s", c.state)
	}

	stream, err := c.source.Acquire(ctx, capture.Constraints{Audio: true, Video: true})
	if err != nil {
		c.logger.Error("device acquisition failed", "error", err.Error())
		return err
	}

	next, err := fsm.Transition(c.state, fsm.EventStart)
	if err != nil {
		// Partial start: the stream was acquired, so its tracks must
		// still be released.
		_ = stream.Stop()
		return err
	}

	c.sessionID = uuid.NewString()
	c.startedAt = c.clock()
	c.stream = stream
	c.buf = media.NewBuffer()
	c.remaining = c.maxSeconds
	c.pumpDone = make(chan struct{})
	go c.pump(stream, c.buf, c.pumpDone)

	c.timer = countdown.New(c.tickInterval, c.onTick)
	c.timer.Arm()
	c.state = next

	c.logger.Info("recording started",
		"session", c.sessionID,
		"max_seconds", c.maxSeconds,
	)
	return nil
}

// Stop finalizes the active session and hands the artifact to the sink.
// Duplicate stop signals — a user stop racing the countdown expiry — are
// no-ops, so finalize and upload run exactly once per session. The state is
// completed before the upload resolves; the upload outcome arrives through
// the notifier.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.state != fsm.StateRecording {
		c.mu.Unlock()
		return nil
	}

	artifact, err := c.haltLocked(fsm.EventStop)
	sessionID := c.sessionID
	startedAt := c.startedAt
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.logger.Info("recording finalized",
		"session", sessionID,
		"key", artifact.Key,
		"bytes", len(artifact.Data),
	)

	go c.uploadArtifact(sessionID, artifact, startedAt)
	return nil
}

// Abandon tears down the active session and discards the artifact without
// uploading. A no-op unless recording.
func (c *Controller) Abandon() error {
	c.mu.Lock()
	if c.state != fsm.StateRecording {
		c.mu.Unlock()
		return nil
	}

	artifact, err := c.haltLocked(fsm.EventAbandon)
	sessionID := c.sessionID
	startedAt := c.startedAt
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.logger.Info("recording abandoned, artifact discarded",
		"session", sessionID,
		"bytes", len(artifact.Data),
	)

	go c.notify.RecordingStopped(context.Background(), Outcome{
		SessionID: sessionID,
		Bytes:     len(artifact.Data),
		Duration:  artifact.CreatedAt.Sub(startedAt),
		Abandoned: true,
	})
	return nil
}

// Close releases session resources on teardown. An in-flight recording is
// abandoned, never uploaded.
func (c *Controller) Close() error {
	return c.Abandon()
}

// Reset returns a completed controller to idle for a fresh session.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fsm.Transition(c.state, fsm.EventReset)
	if err != nil {
		return err
	}
	c.state = next
	c.sessionID = ""
	c.remaining = 0
	return nil
}

// haltLocked runs the shared teardown sequence: disarm the countdown, halt
// capture and release every device track, then seal the buffer into the
// output artifact. Caller holds c.mu and has verified state is recording.
func (c *Controller) haltLocked(event fsm.Event) (media.Artifact, error) {
	next, err := fsm.Transition(c.state, event)
	if err != nil {
		return media.Artifact{}, err
	}

	c.timer.Disarm()
	_ = c.stream.Stop()
	<-c.pumpDone

	artifact := media.NewArtifact(c.buf.Finalize(), c.clock())

	c.stream = nil
	c.buf = nil
	c.timer = nil
	c.pumpDone = nil
	c.state = next
	return artifact, nil
}

// pump appends capture fragments to the buffer in arrival order. Sealed
// buffers discard late fragments, so a delivery racing finalize can never
// corrupt the artifact. A capture failure is reported but does not end the
// session; finalize proceeds with whatever was buffered.
func (c *Controller) pump(stream capture.Stream, buf *media.Buffer, done chan struct{}) {
	defer close(done)

	for fragment := range stream.Fragments() {
		_ = buf.Append(fragment)
	}

	if err := stream.Err(); err != nil {
		c.logger.Warn("capture error, session continues with buffered fragments", "error", err.Error())
		go c.notify.CaptureError(context.Background(), err)
	}
}

// onTick decrements the countdown once per second while recording. Ticks
// racing a stop are ignored; expiry drives the same idempotent stop path as
// an external stop request.
func (c *Controller) onTick() {
	c.mu.Lock()
	if c.state != fsm.StateRecording {
		c.mu.Unlock()
		return
	}
	if c.remaining > 0 {
		c.remaining--
	}
	remaining := c.remaining
	sessionID := c.sessionID
	c.mu.Unlock()

	if remaining == 0 {
		c.logger.Info("countdown expired", "session", sessionID)
		_ = c.Stop(context.Background())
	}
}

// uploadArtifact is the post-finalize sink handoff, decoupled from the state
// transition already observable to callers.
func (c *Controller) uploadArtifact(sessionID string, artifact media.Artifact, startedAt time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()

	err := c.sink.Put(ctx, artifact.Key, artifact.Data, artifact.ContentType)
	if err != nil {
		c.logger.Error("artifact upload failed", "session", sessionID, "key", artifact.Key, "error", err.Error())
	} else {
		c.logger.Info("artifact uploaded", "session", sessionID, "key", artifact.Key)
	}

	c.notify.RecordingStopped(ctx, Outcome{
		SessionID: sessionID,
		Key:       artifact.Key,
		Bytes:     len(artifact.Data),
		Duration:  artifact.CreatedAt.Sub(startedAt),
		UploadErr: err,
	})
}
