package term

import (
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"strings"
)

// buildEnv constructs the child process environment: the current process
// environment overlaid with caller-supplied entries, then forced locale,
// terminal and identity fields, and a search path that prepends detected
// per-user toolchain directories ahead of the standard system paths. The
// original PATH is kept as the final segment so nothing is lost.
func buildEnv(overlay map[string]string, shell string) []string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			env[kv[:i]] = kv[i+1:]
		}
	}
	for k, v := range overlay {
		env[k] = v
	}

	if env["LANG"] == "" {
		env["LANG"] = "en_US.UTF-8"
	}
	env["TERM"] = "xterm-256color"
	env["COLORTERM"] = "truecolor"
	env["SHELL"] = shell

	home := env["HOME"]
	if home == "" {
		if h, err := os.UserHomeDir(); err == nil {
			home = h
		}
	}
	if home != "" {
		env["HOME"] = home
	}
	if env["USER"] == "" {
		if u, err := user.Current(); err == nil {
			env["USER"] = u.Username
		}
	}

	env["PATH"] = augmentPath(env["PATH"], home)

	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// augmentPath builds the session search path: per-user toolchain bins
// first, then the standard system directories, with the original PATH
// appended as the last segment.
func augmentPath(original, home string) string {
	var dirs []string
	seen := make(map[string]bool)

	add := func(dir string) {
		if dir == "" || seen[dir] || !dirExists(dir) {
			return
		}
		seen[dir] = true
		dirs = append(dirs, dir)
	}

	for _, dir := range toolchainDirs(home) {
		add(dir)
	}
	for _, dir := range []string{
		"/opt/homebrew/bin",
		"/usr/local/bin",
		"/usr/bin",
		"/bin",
		"/usr/sbin",
		"/sbin",
	} {
		add(dir)
	}

	joined := strings.Join(dirs, string(os.PathListSeparator))
	if original == "" {
		return joined
	}
	if joined == "" {
		return original
	}
	return joined + string(os.PathListSeparator) + original
}

// toolchainDirs detects version-managed runtime install locations under
// the user's home directory (nvm, fnm, volta, asdf, yarn, pnpm).
func toolchainDirs(home string) []string {
	if home == "" {
		return nil
	}

	var dirs []string

	// nvm keeps one bin dir per installed node version; newest first.
	if versions, err := filepath.Glob(filepath.Join(home, ".nvm", "versions", "node", "*", "bin")); err == nil {
		sort.Sort(sort.Reverse(sort.StringSlice(versions)))
		dirs = append(dirs, versions...)
	}

	dirs = append(dirs,
		filepath.Join(home, ".fnm"),
		filepath.Join(home, ".volta", "bin"),
		filepath.Join(home, ".asdf", "shims"),
		filepath.Join(home, ".yarn", "bin"),
		filepath.Join(home, ".local", "share", "pnpm"),
		filepath.Join(home, ".local", "bin"),
	)
	return dirs
}
