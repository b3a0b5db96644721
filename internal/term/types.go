package term

import "time"

// EventType distinguishes the kind of event published by the Manager.
type EventType int

const (
	// EventData indicates that new output was read from a session's PTY.
	EventData EventType = iota
	// EventExit indicates that a session's child process has exited.
	EventExit
)

// Event is a single notification published to Manager subscribers.
// Data is set for EventData; ExitCode and Signal for EventExit.
type Event struct {
	Type      EventType
	SessionID string
	Data      string
	ExitCode  int
	Signal    string
}

// Kind reports how a session's command was chosen.
type Kind string

const (
	// KindShell means the manager resolved a default interactive shell.
	KindShell Kind = "shell"
	// KindCustom means the caller supplied an explicit command line.
	KindCustom Kind = "custom"
)

// SessionInfo is a read-only snapshot of session metadata returned by Manager.List.
type SessionInfo struct {
	ID        string    `json:"id"`
	WorkDir   string    `json:"work_dir"`
	PID       int       `json:"pid"`
	Command   string    `json:"command"`
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateRequest describes a session to spawn.
type CreateRequest struct {
	ID      string
	WorkDir string
	Cols    int
	Rows    int
	// Command, when non-empty, is a custom command line used verbatim
	// instead of the default interactive shell.
	Command string
	// Env entries overlay the inherited process environment.
	Env map[string]string
}

// CreateResult is the outcome of Manager.Create. Spawn failures are
// reported here rather than as a Go error.
type CreateResult struct {
	OK        bool   `json:"ok"`
	SessionID string `json:"session_id,omitempty"`
	PID       int    `json:"pid,omitempty"`
	Command   string `json:"command,omitempty"`
	Kind      Kind   `json:"kind,omitempty"`
	Err       string `json:"error,omitempty"`
}

// DetectResult is the outcome of Manager.DetectCommand.
type DetectResult struct {
	Installed bool   `json:"installed"`
	Path      string `json:"path,omitempty"`
	Version   string `json:"version,omitempty"`
	Err       string `json:"error,omitempty"`
}
