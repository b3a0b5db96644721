package state

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// TestOpenMissingFile verifies a fresh store starts empty without
// creating the file.
func TestOpenMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(s.Ports()) != 0 {
		t.Errorf("fresh store Ports() = %v, want empty", s.Ports())
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Open created the state file before any write")
	}
}

// TestMergePortsPersistsAcrossReopen writes a mapping, reopens the file
// and verifies both the merge semantics and the flush.
func TestMergePortsPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.MergePorts(map[string]int{"web": 3000, "api": 3001}); err != nil {
		t.Fatalf("MergePorts: %v", err)
	}
	// A later merge updates one app and keeps the other.
	if err := s.MergePorts(map[string]int{"api": 4001, "worker": 4002}); err != nil {
		t.Fatalf("MergePorts: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	want := map[string]int{"web": 3000, "api": 4001, "worker": 4002}
	if got := reopened.Ports(); !reflect.DeepEqual(got, want) {
		t.Errorf("reopened Ports() = %v, want %v", got, want)
	}

	port, ok := reopened.Port("worker")
	if !ok || port != 4002 {
		t.Errorf("Port(worker) = %d,%v, want 4002,true", port, ok)
	}
}

// TestPortsReturnsCopy verifies mutating the returned map does not leak
// into the store.
func TestPortsReturnsCopy(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "state.yaml"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.MergePorts(map[string]int{"web": 3000}); err != nil {
		t.Fatalf("MergePorts: %v", err)
	}

	got := s.Ports()
	got["web"] = 9999

	if port, _ := s.Port("web"); port != 3000 {
		t.Errorf("store mutated through Ports() copy: %d", port)
	}
}

// TestDefaultStartPortRoundTrip persists the setting and reads it back.
func TestDefaultStartPortRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.SetDefaultStartPort(3001); err != nil {
		t.Fatalf("SetDefaultStartPort: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := reopened.DefaultStartPort(); got != 3001 {
		t.Errorf("DefaultStartPort = %d, want 3001", got)
	}
}

// TestOpenRejectsGarbage verifies a corrupt file surfaces a parse error.
func TestOpenRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	if err := os.WriteFile(path, []byte("{{not yaml"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Fatal("Open accepted a corrupt state file")
	}
}
