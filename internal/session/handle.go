package session

import (
	"context"
	"fmt"

	"github.com/evidently/consentcam/internal/fsm"
	"github.com/evidently/consentcam/internal/ipc"
)

// Handle serves IPC commands against the active session.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case "status":
		return ipc.Response{OK: true, State: string(c.State()), Remaining: c.Remaining(), Message: "status"}
	case "stop":
		if c.State() != fsm.StateRecording {
			// Duplicate stop signals are tolerated, not errors.
			return ipc.Response{OK: true, State: string(c.State()), Message: "no active recording"}
		}
		_ = c.Stop(ctx)
		return ipc.Response{OK: true, State: string(c.State()), Message: "stop requested"}
	case "abandon":
		if c.State() != fsm.StateRecording {
			return ipc.Response{OK: true, State: string(c.State()), Message: "no active recording"}
		}
		_ = c.Abandon()
		return ipc.Response{OK: true, State: string(c.State()), Message: "recording abandoned"}
	default:
		return ipc.Response{OK: false, State: string(c.State()), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}
