package ports

import (
	"errors"
	"net"
	"reflect"
	"testing"
)

// memStore records MergePorts calls for assertions.
type memStore struct {
	merged []map[string]int
}

func (s *memStore) MergePorts(assignments map[string]int) error {
	snapshot := make(map[string]int, len(assignments))
	for k, v := range assignments {
		snapshot[k] = v
	}
	s.merged = append(s.merged, snapshot)
	return nil
}

// TestAssignSequentialNoOracle verifies that without an oracle every app
// gets consecutive ports from the start port, in input order.
func TestAssignSequentialNoOracle(t *testing.T) {
	store := &memStore{}
	a := NewAllocator(store)

	got, err := a.Assign(Request{
		AppIDs:    []string{"web", "api", "worker"},
		StartPort: 3000,
	})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}

	want := map[string]int{"web": 3000, "api": 3001, "worker": 3002}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Assign = %v, want %v", got, want)
	}
	if len(store.merged) != 1 || !reflect.DeepEqual(store.merged[0], want) {
		t.Errorf("persisted %v, want single merge of %v", store.merged, want)
	}
}

// TestAssignSkipsBlockedPorts reproduces the reference scenario: four
// apps from 3001 with 3002 and 3003 blocked.
func TestAssignSkipsBlockedPorts(t *testing.T) {
	blocked := map[int]bool{3002: true, 3003: true}
	a := NewAllocator(&memStore{})

	got, err := a.Assign(Request{
		AppIDs:    []string{"app1", "app2", "app3", "app4"},
		StartPort: 3001,
		Oracle:    func(port int) bool { return !blocked[port] },
	})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}

	want := map[string]int{"app1": 3001, "app2": 3004, "app3": 3005, "app4": 3006}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Assign = %v, want %v", got, want)
	}
}

// TestAssignResultInvariants checks that with an arbitrary blocked set
// no returned port is blocked, ports are strictly increasing in input
// order, and none repeat.
func TestAssignResultInvariants(t *testing.T) {
	blocked := map[int]bool{4000: true, 4002: true, 4003: true, 4007: true}
	appIDs := []string{"a", "b", "c", "d", "e"}
	a := NewAllocator(&memStore{})

	got, err := a.Assign(Request{
		AppIDs:    appIDs,
		StartPort: 4000,
		Oracle:    func(port int) bool { return !blocked[port] },
	})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}

	prev := 0
	for _, id := range appIDs {
		port, ok := got[id]
		if !ok {
			t.Fatalf("app %q missing from result", id)
		}
		if blocked[port] {
			t.Errorf("app %q got blocked port %d", id, port)
		}
		if port <= prev {
			t.Errorf("app %q port %d is not strictly increasing (prev %d)", id, port, prev)
		}
		prev = port
	}
}

// TestAssignExhaustion verifies the atomic failure path: two apps from
// 65535 cannot both fit, nothing is persisted, and the error carries the
// unplaced count and start port.
func TestAssignExhaustion(t *testing.T) {
	store := &memStore{}
	a := NewAllocator(store)

	_, err := a.Assign(Request{
		AppIDs:    []string{"a", "b"},
		StartPort: MaxPort,
	})
	if err == nil {
		t.Fatal("expected exhaustion error, got nil")
	}

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error type = %T, want *ExhaustedError", err)
	}
	if exhausted.Unplaced != 1 {
		t.Errorf("Unplaced = %d, want 1", exhausted.Unplaced)
	}
	if exhausted.StartPort != MaxPort {
		t.Errorf("StartPort = %d, want %d", exhausted.StartPort, MaxPort)
	}
	if len(store.merged) != 0 {
		t.Errorf("partial mapping was persisted: %v", store.merged)
	}
}

// TestAssignEmptyInput verifies an empty id list yields an empty mapping
// and still performs the persistence flush.
func TestAssignEmptyInput(t *testing.T) {
	store := &memStore{}
	a := NewAllocator(store)

	got, err := a.Assign(Request{AppIDs: nil, StartPort: 3000})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Assign = %v, want empty mapping", got)
	}
	if len(store.merged) != 1 {
		t.Errorf("expected one persistence flush, got %d", len(store.merged))
	}
}

// TestAssignProgress verifies the callback fires exactly once per app,
// strictly in order, with rounded percentages (3 apps: 33, 67, 100).
func TestAssignProgress(t *testing.T) {
	a := NewAllocator(&memStore{})

	type call struct{ current, total, percent int }
	var calls []call

	_, err := a.Assign(Request{
		AppIDs:    []string{"a", "b", "c"},
		StartPort: 5000,
		OnProgress: func(current, total, percent int) {
			calls = append(calls, call{current, total, percent})
		},
	})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}

	want := []call{{1, 3, 33}, {2, 3, 67}, {3, 3, 100}}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("progress calls = %v, want %v", calls, want)
	}
}

// TestAssignRejectsBadStartPort covers the start port validation bounds.
func TestAssignRejectsBadStartPort(t *testing.T) {
	a := NewAllocator(&memStore{})

	for _, port := range []int{0, -1, MaxPort + 1} {
		if _, err := a.Assign(Request{AppIDs: []string{"a"}, StartPort: port}); err == nil {
			t.Errorf("Assign with start port %d succeeded", port)
		}
	}
}

// TestAssignRejectsDuplicateAppIDs verifies duplicate ids fail instead of
// silently overwriting a mapping key.
func TestAssignRejectsDuplicateAppIDs(t *testing.T) {
	store := &memStore{}
	a := NewAllocator(store)

	if _, err := a.Assign(Request{AppIDs: []string{"a", "a"}, StartPort: 3000}); err == nil {
		t.Fatal("expected error for duplicate app ids")
	}
	if len(store.merged) != 0 {
		t.Error("duplicate-id failure still persisted a mapping")
	}
}

// TestListenOracle binds a listener and verifies the oracle reports the
// held port busy and a free port available.
func TestListenOracle(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	busy := ln.Addr().(*net.TCPAddr).Port
	if ListenOracle(busy) {
		t.Errorf("port %d is held but oracle reported it free", busy)
	}

	free, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	freePort := free.Addr().(*net.TCPAddr).Port
	free.Close()

	if !ListenOracle(freePort) {
		t.Errorf("port %d is free but oracle reported it busy", freePort)
	}
}
