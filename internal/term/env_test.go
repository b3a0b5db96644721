package term

import (
	"strings"
	"testing"
)

func envValue(env []string, key string) (string, bool) {
	prefix := key + "="
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			return kv[len(prefix):], true
		}
	}
	return "", false
}

// TestBuildEnvForcedFields verifies the terminal, locale and shell
// fields are always set on the spawned environment.
func TestBuildEnvForcedFields(t *testing.T) {
	env := buildEnv(nil, "/bin/bash")

	for key, want := range map[string]string{
		"TERM":      "xterm-256color",
		"COLORTERM": "truecolor",
		"SHELL":     "/bin/bash",
	} {
		got, ok := envValue(env, key)
		if !ok {
			t.Errorf("missing %s", key)
			continue
		}
		if got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}

	if lang, ok := envValue(env, "LANG"); !ok || lang == "" {
		t.Error("LANG is unset or empty")
	}
}

// TestBuildEnvOverlay verifies caller overrides land in the environment
// but cannot clobber the forced terminal type.
func TestBuildEnvOverlay(t *testing.T) {
	env := buildEnv(map[string]string{
		"MY_FLAG": "on",
		"TERM":    "dumb",
	}, "/bin/sh")

	if got, _ := envValue(env, "MY_FLAG"); got != "on" {
		t.Errorf("MY_FLAG = %q, want on", got)
	}
	if got, _ := envValue(env, "TERM"); got != "xterm-256color" {
		t.Errorf("TERM = %q, forced value was overridden", got)
	}
}

// TestAugmentPathKeepsOriginal verifies the original PATH survives as the
// final segment of the augmented search path.
func TestAugmentPathKeepsOriginal(t *testing.T) {
	original := "/original/first:/original/second"
	got := augmentPath(original, "")

	if !strings.HasSuffix(got, original) {
		t.Errorf("augmented PATH %q does not end with original %q", got, original)
	}
}

// TestAugmentPathEmptyOriginal verifies a missing PATH still yields the
// standard system directories.
func TestAugmentPathEmptyOriginal(t *testing.T) {
	got := augmentPath("", "")
	if !strings.Contains(got, "/usr/bin") && !strings.Contains(got, "/bin") {
		t.Errorf("augmented PATH %q is missing system dirs", got)
	}
}
