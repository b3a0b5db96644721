package hub

import "github.com/user/devdash/internal/term"

// ClientMessage is the envelope for everything a browser client sends.
type ClientMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Data      string `json:"data,omitempty"`
	Cols      int    `json:"cols,omitempty"`
	Rows      int    `json:"rows,omitempty"`
	WorkDir   string `json:"work_dir,omitempty"`
	Command   string `json:"command,omitempty"`
}

// TermDataMessage carries a chunk of terminal output.
type TermDataMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Data      string `json:"data"`
}

// TermExitMessage announces a terminal session's process exit.
type TermExitMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	ExitCode  int    `json:"exit_code"`
	Signal    string `json:"signal,omitempty"`
}

// TermOpenedMessage is the direct reply to a term_open request.
type TermOpenedMessage struct {
	Type   string            `json:"type"`
	Result term.CreateResult `json:"result"`
}

// AppStatusMessage announces a managed app status transition.
type AppStatusMessage struct {
	Type      string `json:"type"`
	ProjectID string `json:"project_id"`
	RunID     string `json:"run_id,omitempty"`
	Status    string `json:"status"`
	PID       int    `json:"pid,omitempty"`
	ExitCode  int    `json:"exit_code,omitempty"`
}

// ProgressMessage reports bulk port-assignment progress.
type ProgressMessage struct {
	Type    string `json:"type"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Percent int    `json:"percent"`
}

// HealthMessage pushes a host metrics snapshot.
type HealthMessage struct {
	Type     string `json:"type"`
	Snapshot any    `json:"snapshot"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
