// Package runner supervises the child processes behind managed
// applications: it starts a project's configured command, captures its
// output tail, records run history, and broadcasts status transitions.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/user/devdash/internal/ansi"
	"github.com/user/devdash/internal/db"
)

type Status string

const (
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
	StatusCrashed Status = "crashed"
)

const (
	defaultStopGrace = 10 * time.Second
	defaultLogLines  = 500
	dbOpTimeout      = 5 * time.Second
)

// StatusEvent is broadcast on every app status transition.
type StatusEvent struct {
	ProjectID string `json:"project_id"`
	RunID     string `json:"run_id"`
	Status    Status `json:"status"`
	PID       int    `json:"pid,omitempty"`
	ExitCode  int    `json:"exit_code,omitempty"`
}

// AppState is a snapshot of one running app.
type AppState struct {
	ProjectID string    `json:"project_id"`
	RunID     string    `json:"run_id"`
	PID       int       `json:"pid"`
	Status    Status    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

type proc struct {
	projectID string
	runID     string
	cmd       *exec.Cmd
	startedAt time.Time
	logs      *logRing
	done      chan struct{}
	stopped   bool // set by Stop before signalling, read by the monitor
	mu        sync.Mutex
}

// Runner owns the table of live app processes, keyed by project id.
type Runner struct {
	projectRepo *db.ProjectRepo
	runRepo     *db.RunRepo
	stopGrace   time.Duration

	mu    sync.Mutex
	procs map[string]*proc

	subsMu sync.RWMutex
	subs   map[chan StatusEvent]struct{}
}

func New(projectRepo *db.ProjectRepo, runRepo *db.RunRepo) *Runner {
	return &Runner{
		projectRepo: projectRepo,
		runRepo:     runRepo,
		stopGrace:   defaultStopGrace,
		procs:       make(map[string]*proc),
		subs:        make(map[chan StatusEvent]struct{}),
	}
}

// Subscribe registers a status event channel. Best-effort delivery:
// events are dropped for subscribers whose buffer is full.
func (r *Runner) Subscribe() chan StatusEvent {
	ch := make(chan StatusEvent, 64)
	r.subsMu.Lock()
	r.subs[ch] = struct{}{}
	r.subsMu.Unlock()
	return ch
}

func (r *Runner) Unsubscribe(ch chan StatusEvent) {
	r.subsMu.Lock()
	if _, ok := r.subs[ch]; ok {
		delete(r.subs, ch)
		close(ch)
	}
	r.subsMu.Unlock()
}

func (r *Runner) publish(ev StatusEvent) {
	r.subsMu.RLock()
	defer r.subsMu.RUnlock()
	for ch := range r.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Start launches the project's start command in its directory, with the
// assigned port injected as $PORT. One live process per project.
func (r *Runner) Start(ctx context.Context, project *db.Project) (*db.Run, error) {
	if project.StartCommand == "" {
		return nil, fmt.Errorf("project %q has no start command", project.Name)
	}

	r.mu.Lock()
	if _, running := r.procs[project.ID]; running {
		r.mu.Unlock()
		return nil, fmt.Errorf("project %q is already running", project.Name)
	}
	// Reserve the slot before the (slow) spawn so concurrent starts of
	// the same project cannot race past each other.
	r.procs[project.ID] = nil
	r.mu.Unlock()

	release := func() {
		r.mu.Lock()
		delete(r.procs, project.ID)
		r.mu.Unlock()
	}

	cmd := exec.Command("sh", "-c", project.StartCommand)
	cmd.Dir = project.Path
	cmd.Env = appEnv(project)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		release()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		release()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		release()
		return nil, fmt.Errorf("failed to start %q: %w", project.StartCommand, err)
	}

	run := &db.Run{
		ProjectID: project.ID,
		PID:       cmd.Process.Pid,
		Status:    string(StatusRunning),
	}
	if err := r.runRepo.Create(ctx, run); err != nil {
		// The process is already up; kill it rather than leak it.
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		release()
		return nil, err
	}

	p := &proc{
		projectID: project.ID,
		runID:     run.ID,
		cmd:       cmd,
		startedAt: time.Now(),
		logs:      newLogRing(defaultLogLines),
		done:      make(chan struct{}),
	}

	r.mu.Lock()
	r.procs[project.ID] = p
	r.mu.Unlock()

	go p.readOutput(stdout)
	go p.readOutput(stderr)
	go r.monitor(p)

	r.setProjectStatus(project.ID, StatusRunning)
	r.publish(StatusEvent{ProjectID: project.ID, RunID: run.ID, Status: StatusRunning, PID: run.PID})
	slog.Info("app started", "project", project.Name, "pid", run.PID)

	return run, nil
}

// Stop signals the app's process group TERM, escalating to KILL after
// the grace period. Returns an error if the project is not running.
func (r *Runner) Stop(projectID string) error {
	r.mu.Lock()
	p, ok := r.procs[projectID]
	r.mu.Unlock()
	if !ok || p == nil {
		return fmt.Errorf("project %q is not running", projectID)
	}

	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	pgid := -p.cmd.Process.Pid
	if err := syscall.Kill(pgid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("signal process group %d: %w", pgid, err)
	}

	select {
	case <-p.done:
	case <-time.After(r.stopGrace):
		slog.Warn("app did not exit in grace period, killing", "project", projectID)
		_ = syscall.Kill(pgid, syscall.SIGKILL)
		<-p.done
	}
	return nil
}

// monitor reaps the child, finalizes the run record and broadcasts the
// terminal status.
func (r *Runner) monitor(p *proc) {
	err := p.cmd.Wait()
	close(p.done)

	exitCode := 0
	if state := p.cmd.ProcessState; state != nil {
		exitCode = state.ExitCode()
	} else if err != nil {
		exitCode = -1
	}

	p.mu.Lock()
	wasStopped := p.stopped
	p.mu.Unlock()

	status := StatusStopped
	if !wasStopped && exitCode != 0 {
		status = StatusCrashed
	}

	r.mu.Lock()
	if cur, ok := r.procs[p.projectID]; ok && cur == p {
		delete(r.procs, p.projectID)
	}
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), dbOpTimeout)
	defer cancel()
	if err := r.runRepo.MarkExited(ctx, p.runID, string(status), exitCode); err != nil {
		slog.Error("failed to finalize run", "run", p.runID, "error", err)
	}
	r.setProjectStatus(p.projectID, status)

	r.publish(StatusEvent{ProjectID: p.projectID, RunID: p.runID, Status: status, ExitCode: exitCode})
	slog.Info("app exited", "project", p.projectID, "status", status, "exit_code", exitCode)
}

func (r *Runner) setProjectStatus(projectID string, status Status) {
	ctx, cancel := context.WithTimeout(context.Background(), dbOpTimeout)
	defer cancel()

	project, err := r.projectRepo.Get(ctx, projectID)
	if err != nil || project == nil {
		return
	}
	project.Status = string(status)
	if err := r.projectRepo.Update(ctx, project); err != nil {
		slog.Error("failed to update project status", "project", projectID, "error", err)
	}
}

// Logs returns the last n captured output lines for a running or
// recently started app. Unknown projects get an empty slice.
func (r *Runner) Logs(projectID string, n int) []string {
	r.mu.Lock()
	p, ok := r.procs[projectID]
	r.mu.Unlock()
	if !ok || p == nil {
		return nil
	}
	return p.logs.Tail(n)
}

// Runs returns the project's run history, newest first.
func (r *Runner) Runs(ctx context.Context, projectID string) ([]*db.Run, error) {
	return r.runRepo.ListByProject(ctx, projectID)
}

// Running reports whether the project has a live process.
func (r *Runner) Running(projectID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.procs[projectID]
	return ok && p != nil
}

// Statuses returns a snapshot of all live apps.
func (r *Runner) Statuses() []AppState {
	r.mu.Lock()
	defer r.mu.Unlock()

	states := make([]AppState, 0, len(r.procs))
	for _, p := range r.procs {
		if p == nil {
			continue
		}
		states = append(states, AppState{
			ProjectID: p.projectID,
			RunID:     p.runID,
			PID:       p.cmd.Process.Pid,
			Status:    StatusRunning,
			StartedAt: p.startedAt,
		})
	}
	return states
}

// Close stops every live app. Called on daemon shutdown.
func (r *Runner) Close() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.procs))
	for id, p := range r.procs {
		if p != nil {
			ids = append(ids, id)
		}
	}
	r.mu.Unlock()

	for _, id := range ids {
		if err := r.Stop(id); err != nil {
			slog.Warn("failed to stop app on shutdown", "project", id, "error", err)
		}
	}
}

// readOutput drains the pipe until EOF no matter what the app emits.
// Lines longer than the buffer are captured as multiple segments rather
// than aborting the read loop: a reader that stops draining would
// eventually fill the kernel pipe buffer and block the app on write.
func (p *proc) readOutput(pipe io.Reader) {
	br := bufio.NewReaderSize(pipe, 64*1024)
	for {
		chunk, err := br.ReadSlice('\n')
		if len(chunk) > 0 {
			p.logs.Append(ansi.Strip(strings.TrimRight(string(chunk), "\n")))
		}
		if err != nil && err != bufio.ErrBufferFull {
			return
		}
	}
}

// appEnv inherits the daemon environment and injects the assigned port.
func appEnv(project *db.Project) []string {
	env := os.Environ()
	if project.Port > 0 {
		env = append(env, fmt.Sprintf("PORT=%d", project.Port))
	}
	return env
}

// logRing keeps the last capacity output lines.
type logRing struct {
	mu    sync.Mutex
	lines []string
	max   int
}

func newLogRing(capacity int) *logRing {
	return &logRing{max: capacity}
}

func (l *logRing) Append(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, line)
	if len(l.lines) > l.max {
		l.lines = l.lines[len(l.lines)-l.max:]
	}
}

func (l *logRing) Tail(n int) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n >= len(l.lines) {
		n = len(l.lines)
	}
	out := make([]string, n)
	copy(out, l.lines[len(l.lines)-n:])
	return out
}
