package term

import (
	"os"
	"path/filepath"
)

// fallbackShells is probed in priority order when $SHELL is unusable.
var fallbackShells = []string{
	"/bin/zsh",
	"/usr/bin/zsh",
	"/usr/local/bin/zsh",
	"/bin/bash",
	"/usr/bin/bash",
	"/usr/local/bin/bash",
	"/bin/sh",
}

// lastResortShell is returned when no candidate is accessible at all.
const lastResortShell = "/bin/sh"

// loginShells are interactive shells known to honor the -l login flag,
// which makes them source the user's profile on startup.
var loginShells = map[string]bool{
	"zsh":  true,
	"bash": true,
	"fish": true,
}

// resolveShell picks the default interactive shell: the user's $SHELL if
// it exists and is executable, then the fixed fallback list. For known
// login shells the -l flag is added so the user's profile runs.
func resolveShell() (string, []string) {
	candidates := make([]string, 0, len(fallbackShells)+1)
	if env := os.Getenv("SHELL"); env != "" {
		candidates = append(candidates, env)
	}
	candidates = append(candidates, fallbackShells...)

	shell := lastResortShell
	for _, c := range candidates {
		if isExecutable(c) {
			shell = c
			break
		}
	}

	if loginShells[filepath.Base(shell)] {
		return shell, []string{"-l"}
	}
	return shell, nil
}

// isExecutable reports whether path is a regular file with any execute bit set.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0
}

// resolveWorkDir validates the requested working directory, substituting
// a fallback that exists on disk rather than failing the spawn.
func resolveWorkDir(requested string) string {
	if requested != "" {
		if info, err := os.Stat(requested); err == nil && info.IsDir() {
			return requested
		}
	}
	if tmp := os.TempDir(); dirExists(tmp) {
		return tmp
	}
	if home, err := os.UserHomeDir(); err == nil && dirExists(home) {
		return home
	}
	return "/"
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
