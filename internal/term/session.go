package term

import (
	"errors"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	creackpty "github.com/creack/pty"
)

// session wraps a child process running inside a PTY. Its lifetime is
// owned by the Manager; nothing else holds a reference to the process.
type session struct {
	id        string
	kind      Kind
	command   string
	workDir   string
	createdAt time.Time

	cmd  *exec.Cmd
	ptmx *os.File

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

func newSession(id string, kind Kind, argv []string, workDir string, env []string, cols, rows uint16) (*session, error) {
	if len(argv) == 0 {
		return nil, errors.New("term: argv must not be empty")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = workDir
	cmd.Env = env

	ptmx, err := creackpty.StartWithSize(cmd, &creackpty.Winsize{
		Cols: cols,
		Rows: rows,
	})
	if err != nil {
		return nil, err
	}

	return &session{
		id:        id,
		kind:      kind,
		command:   argv[0],
		workDir:   workDir,
		createdAt: time.Now(),
		cmd:       cmd,
		ptmx:      ptmx,
	}, nil
}

func (s *session) pid() int {
	if s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

func (s *session) write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("term: session is closed")
	}
	_, err := s.ptmx.Write(data)
	return err
}

func (s *session) resize(cols, rows uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("term: session is closed")
	}
	return creackpty.Setsize(s.ptmx, &creackpty.Winsize{Cols: cols, Rows: rows})
}

// terminate signals the child and closes the PTY fd. Safe to call more
// than once; errors from signalling an already-dead process are swallowed.
func (s *session) terminate() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		if s.cmd.Process != nil {
			_ = s.cmd.Process.Signal(syscall.SIGTERM)
		}
		_ = s.ptmx.Close()
	})
}
