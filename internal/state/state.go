// Package state persists process-wide configuration shared across
// restarts: the app-id to port mapping produced by bulk configuration,
// plus allocator settings.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// State is the on-disk document.
type State struct {
	// Apps maps application id to its assigned listening port.
	Apps map[string]int `yaml:"apps"`
	// DefaultStartPort seeds bulk configuration when the caller does not
	// supply a floor.
	DefaultStartPort int `yaml:"default_start_port,omitempty"`
}

// Store owns the state file. All mutations go through read-modify-write
// under the mutex and are flushed with an atomic rename.
type Store struct {
	path string

	mu    sync.Mutex
	state State
}

// Open loads the state file at path, creating an empty store if the file
// does not exist yet.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("state path is required")
	}

	s := &Store{
		path:  path,
		state: State{Apps: make(map[string]int)},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read state file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &s.state); err != nil {
		return nil, fmt.Errorf("parse state file %q: %w", path, err)
	}
	if s.state.Apps == nil {
		s.state.Apps = make(map[string]int)
	}
	return s, nil
}

// Ports returns a copy of the current app→port mapping.
func (s *Store) Ports() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int, len(s.state.Apps))
	for k, v := range s.state.Apps {
		out[k] = v
	}
	return out
}

// Port returns the assigned port for an app, if any.
func (s *Store) Port(appID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	port, ok := s.state.Apps[appID]
	return port, ok
}

// MergePorts merges a completed assignment into the mapping and flushes
// to disk before returning. Existing entries for other apps are kept.
func (s *Store) MergePorts(assignments map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, port := range assignments {
		s.state.Apps[id] = port
	}
	return s.saveLocked()
}

// SetDefaultStartPort records the start-port setting and flushes.
func (s *Store) SetDefaultStartPort(port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.DefaultStartPort = port
	return s.saveLocked()
}

// DefaultStartPort returns the persisted start-port setting, or 0.
func (s *Store) DefaultStartPort() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.DefaultStartPort
}

// saveLocked writes the document to a temp file in the same directory
// and renames it into place. Callers hold s.mu.
func (s *Store) saveLocked() error {
	data, err := yaml.Marshal(&s.state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir %q: %w", dir, err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state file %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state file %q: %w", s.path, err)
	}
	return nil
}
