package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateCompleted State = "completed"
)

const (
	EventStart   Event = "start"
	EventStop    Event = "stop"
	EventAbandon Event = "abandon"
	EventReset   Event = "reset"
)

// Transition applies one lifecycle event to a state. Recording has two
// terminal paths: stop (finalize and upload) and abandon (discard).
// Completed only leaves through an explicit reset.
func Transition(current State, event Event) (State, error) {
	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateRecording, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRecording:
		switch event {
		case EventStop, EventAbandon:
			return StateCompleted, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateCompleted:
		switch event {
		case EventReset:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
