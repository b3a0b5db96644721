package term

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"syscall"

	"github.com/kballard/go-shellquote"
)

const subscriberBuffer = 1024

// Manager owns the registry of live PTY sessions and multiplexes their
// output and exit events to subscribers. It is transport-agnostic: the
// hub (or any other consumer) attaches via Subscribe.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session
	order    []string
	closed   bool

	subsMu sync.RWMutex
	subs   map[chan Event]struct{}
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*session),
		subs:     make(map[chan Event]struct{}),
	}
}

// Subscribe registers a new event channel. Delivery is best-effort: when
// a subscriber's buffer is full, events for it are dropped rather than
// blocking the session read loops.
func (m *Manager) Subscribe() chan Event {
	ch := make(chan Event, subscriberBuffer)
	m.subsMu.Lock()
	m.subs[ch] = struct{}{}
	m.subsMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a channel previously returned by Subscribe.
func (m *Manager) Unsubscribe(ch chan Event) {
	m.subsMu.Lock()
	if _, ok := m.subs[ch]; ok {
		delete(m.subs, ch)
		close(ch)
	}
	m.subsMu.Unlock()
}

func (m *Manager) publish(ev Event) {
	m.subsMu.RLock()
	defer m.subsMu.RUnlock()
	for ch := range m.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Create spawns a new PTY session. Spawn failures are reported in the
// result, never as a panic or error across this boundary. If a session
// with the same id already exists, the new one atomically takes its
// place and the old process is terminated, so at most one session per
// id is ever live.
func (m *Manager) Create(req CreateRequest) CreateResult {
	if strings.TrimSpace(req.ID) == "" {
		return CreateResult{Err: "session id is required"}
	}
	if req.Cols <= 0 || req.Rows <= 0 {
		return CreateResult{Err: fmt.Sprintf("invalid terminal size %dx%d", req.Cols, req.Rows)}
	}

	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return CreateResult{Err: "session manager is shut down"}
	}

	workDir := resolveWorkDir(req.WorkDir)
	shellPath, shellArgs := resolveShell()

	var argv []string
	kind := KindShell
	if strings.TrimSpace(req.Command) != "" {
		parsed, err := shellquote.Split(req.Command)
		if err != nil {
			return CreateResult{Err: fmt.Sprintf("invalid command %q: %v", req.Command, err)}
		}
		argv = parsed
		kind = KindCustom
	} else {
		argv = append([]string{shellPath}, shellArgs...)
	}

	env := buildEnv(req.Env, shellPath)

	sess, err := newSession(req.ID, kind, argv, workDir, env, uint16(req.Cols), uint16(req.Rows))
	if err != nil {
		return CreateResult{Err: fmt.Sprintf("failed to spawn %q: %v", argv[0], err)}
	}

	// Swap the new session in atomically: any previous holder of the id
	// is taken out of the registry in the same critical section, so no
	// interleaving of concurrent Creates can leave two live sessions or
	// two order entries for one id.
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		sess.terminate()
		return CreateResult{Err: "session manager is shut down"}
	}
	old := m.sessions[req.ID]
	m.sessions[req.ID] = sess
	if old != nil {
		m.dropOrderLocked(req.ID)
	}
	m.order = append(m.order, req.ID)
	m.mu.Unlock()

	if old != nil {
		old.terminate()
		slog.Info("replaced existing session", "id", req.ID)
	}

	go m.readPump(sess)
	go m.waitExit(sess)

	slog.Info("session created", "id", req.ID, "pid", sess.pid(), "command", argv[0], "kind", kind)

	return CreateResult{
		OK:        true,
		SessionID: req.ID,
		PID:       sess.pid(),
		Command:   strings.Join(argv, " "),
		Kind:      kind,
	}
}

// readPump reads raw output from the PTY and publishes ordered data
// events until the fd is closed or a read error occurs.
func (m *Manager) readPump(s *session) {
	buf := make([]byte, 4096)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			m.publish(Event{
				Type:      EventData,
				SessionID: s.id,
				Data:      string(buf[:n]),
			})
		}
		if err != nil {
			return
		}
	}
}

// waitExit reaps the child process, unregisters the session (a no-op if
// an explicit Kill got there first) and publishes the exit event.
func (m *Manager) waitExit(s *session) {
	err := s.cmd.Wait()

	exitCode := 0
	signal := ""
	if state := s.cmd.ProcessState; state != nil {
		exitCode = state.ExitCode()
		if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			signal = ws.Signal().String()
			exitCode = 0
		}
	} else if err != nil {
		exitCode = -1
	}

	m.remove(s.id, s)
	s.terminate()

	m.publish(Event{
		Type:      EventExit,
		SessionID: s.id,
		ExitCode:  exitCode,
		Signal:    signal,
	})
	slog.Info("session exited", "id", s.id, "exit_code", exitCode, "signal", signal)
}

// remove unregisters a session only if the registry still maps the id to
// this exact session. This is what makes the kill/exit race safe: the
// first path to run removes the entry, the other becomes a no-op.
func (m *Manager) remove(id string, s *session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.sessions[id]; ok && cur == s {
		delete(m.sessions, id)
		m.dropOrderLocked(id)
	}
}

func (m *Manager) dropOrderLocked(id string) {
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

// Write delivers raw input to a session. Returns false if the id is
// unknown or the session is no longer writable; never an error.
func (m *Manager) Write(id string, data string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return false
	}
	return s.write([]byte(data)) == nil
}

// Resize adjusts a session's terminal dimensions. Returns false if the
// id is unknown. Safe to call at arbitrary frequency.
func (m *Manager) Resize(id string, cols, rows int) bool {
	if cols <= 0 || rows <= 0 {
		return false
	}
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return false
	}
	return s.resize(uint16(cols), uint16(rows)) == nil
}

// Kill terminates a session and removes it from the registry. Idempotent:
// a second call for the same id returns false.
func (m *Manager) Kill(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.sessions, id)
	m.dropOrderLocked(id)
	m.mu.Unlock()

	s.terminate()
	return true
}

// Exists reports whether a session is currently registered.
func (m *Manager) Exists(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	return ok
}

// List returns a snapshot of all registered sessions in creation order.
func (m *Manager) List() []SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	infos := make([]SessionInfo, 0, len(m.order))
	for _, id := range m.order {
		s, ok := m.sessions[id]
		if !ok {
			continue
		}
		infos = append(infos, SessionInfo{
			ID:        s.id,
			WorkDir:   s.workDir,
			PID:       s.pid(),
			Command:   s.command,
			Kind:      s.kind,
			CreatedAt: s.createdAt,
		})
	}
	return infos
}

// Close kills every remaining session. Called by the host's own shutdown
// path so that no child process survives the daemon.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	remaining := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		remaining = append(remaining, s)
	}
	m.sessions = make(map[string]*session)
	m.order = nil
	m.mu.Unlock()

	for _, s := range remaining {
		s.terminate()
	}
	if len(remaining) > 0 {
		slog.Info("killed remaining sessions on shutdown", "count", len(remaining))
	}
}
