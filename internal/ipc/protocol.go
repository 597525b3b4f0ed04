// Package ipc carries control commands between the CLI and the process that
// owns the active recording session.
package ipc

type Request struct {
	Command string `json:"command"`
}

type Response struct {
	OK        bool   `json:"ok"`
	State     string `json:"state,omitempty"`
	Remaining int    `json:"remaining_seconds"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}
