package term

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// detectTimeout bounds the whole tool probe, including the version
// subprocess. When it fires the subprocess is killed via the context.
const detectTimeout = 5 * time.Second

// DetectCommand probes well-known installation directories for a named
// external tool before falling back to a PATH lookup with an extended
// search path. It never hangs: the probe resolves installed=false with a
// timeout indication once the bound elapses.
func (m *Manager) DetectCommand(ctx context.Context, name string) DetectResult {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsRune(name, os.PathSeparator) {
		return DetectResult{Err: "invalid command name"}
	}

	ctx, cancel := context.WithTimeout(ctx, detectTimeout)
	defer cancel()

	path := findTool(name)
	if path == "" {
		return DetectResult{Err: name + " not found"}
	}

	version, err := toolVersion(ctx, path)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return DetectResult{Path: path, Err: "version probe timed out"}
		}
		// The binary exists but does not answer --version; still installed.
		return DetectResult{Installed: true, Path: path}
	}
	return DetectResult{Installed: true, Path: path, Version: version}
}

// findTool checks well-known install dirs first, then falls back to
// LookPath. The well-known list covers per-user toolchain locations that
// a non-login daemon PATH usually misses.
func findTool(name string) string {
	home, _ := os.UserHomeDir()

	dirs := toolchainDirs(home)
	dirs = append(dirs,
		"/opt/homebrew/bin",
		"/usr/local/bin",
		"/usr/bin",
		"/bin",
	)
	if home != "" {
		dirs = append(dirs, filepath.Join(home, ".docker", "bin"))
	}

	for _, dir := range dirs {
		candidate := filepath.Join(dir, name)
		if isExecutable(candidate) {
			return candidate
		}
	}

	if path, err := exec.LookPath(name); err == nil {
		return path
	}
	return ""
}

// toolVersion runs "<path> --version" under the caller's context and
// returns the first output line.
func toolVersion(ctx context.Context, path string) (string, error) {
	out, err := exec.CommandContext(ctx, path, "--version").CombinedOutput()
	if err != nil {
		return "", err
	}
	line := strings.TrimSpace(string(out))
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line), nil
}
