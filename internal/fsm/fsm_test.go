package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionHappyPath(t *testing.T) {
	s := StateIdle

	next, err := Transition(s, EventStart)
	require.NoError(t, err)
	require.Equal(t, StateRecording, next)

	next, err = Transition(next, EventStop)
	require.NoError(t, err)
	require.Equal(t, StateCompleted, next)

	next, err = Transition(next, EventReset)
	require.NoError(t, err)
	require.Equal(t, StateIdle, next)
}

func TestTransitionAbandonTerminates(t *testing.T) {
	next, err := Transition(StateRecording, EventAbandon)
	require.NoError(t, err)
	require.Equal(t, StateCompleted, next)
}

func TestTransitionMatrixInvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		event   Event
		want    State
		wantErr bool
	}{
		{name: "idle stop invalid", state: StateIdle, event: EventStop, want: StateIdle, wantErr: true},
		{name: "idle abandon invalid", state: StateIdle, event: EventAbandon, want: StateIdle, wantErr: true},
		{name: "idle reset invalid", state: StateIdle, event: EventReset, want: StateIdle, wantErr: true},
		{name: "recording start invalid", state: StateRecording, event: EventStart, want: StateRecording, wantErr: true},
		{name: "recording reset invalid", state: StateRecording, event: EventReset, want: StateRecording, wantErr: true},
		{name: "completed start invalid", state: StateCompleted, event: EventStart, want: StateCompleted, wantErr: true},
		{name: "completed stop invalid", state: StateCompleted, event: EventStop, want: StateCompleted, wantErr: true},
		{name: "completed abandon invalid", state: StateCompleted, event: EventAbandon, want: StateCompleted, wantErr: true},
		{name: "completed reset valid", state: StateCompleted, event: EventReset, want: StateIdle, wantErr: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Transition(tc.state, tc.event)
			require.Equal(t, tc.want, next)
			if tc.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), "invalid transition")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTransitionUnknownState(t *testing.T) {
	_, err := Transition(State("limbo"), EventStart)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown state")
}
