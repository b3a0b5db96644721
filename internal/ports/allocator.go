// Package ports implements sequential port assignment for bulk-configured
// applications: each app receives the lowest available port at or above a
// starting floor, in a single deterministic pass.
package ports

import (
	"fmt"
	"log/slog"
	"math"
)

// MaxPort is the highest valid TCP port.
const MaxPort = 65535

// Oracle reports whether a candidate port is currently free to bind.
type Oracle func(port int) bool

// Progress receives one call per successfully placed app, in input order.
type Progress func(current, total, percent int)

// Store is the persistence sink for completed assignments. The full
// mapping is merged into process-wide configuration state and flushed to
// durable storage before Assign returns.
type Store interface {
	MergePorts(assignments map[string]int) error
}

// Request describes one bulk assignment pass.
type Request struct {
	// AppIDs is the ordered sequence of application identifiers. Order
	// defines assignment priority.
	AppIDs    []string
	StartPort int
	// Oracle, when nil, makes assignment purely sequential with no
	// availability confirmation.
	Oracle     Oracle
	OnProgress Progress
}

// ExhaustedError reports that the usable port space ran out before every
// app was placed. The operation is atomic: nothing was persisted.
type ExhaustedError struct {
	Unplaced  int
	StartPort int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("port range exhausted: %d app(s) could not be placed starting from port %d", e.Unplaced, e.StartPort)
}

// Allocator assigns ports and persists the result through its Store.
type Allocator struct {
	store Store
}

// NewAllocator creates an Allocator persisting through store. A nil store
// skips persistence (used by tests that only care about the algorithm).
func NewAllocator(store Store) *Allocator {
	return &Allocator{store: store}
}

// Assign walks a single cursor upward from StartPort, testing each
// candidate with the oracle and consuming it for at most one app. The
// result is deterministic given the same oracle responses: ports are
// strictly increasing in input order and never repeat.
//
// There is no mid-flight cancellation; callers let the pass run to
// completion or exhaustion failure.
func (a *Allocator) Assign(req Request) (map[string]int, error) {
	if req.StartPort < 1 || req.StartPort > MaxPort {
		return nil, fmt.Errorf("invalid start port %d: must be between 1 and %d", req.StartPort, MaxPort)
	}

	total := len(req.AppIDs)
	result := make(map[string]int, total)
	cursor := req.StartPort

	for i, appID := range req.AppIDs {
		if _, dup := result[appID]; dup {
			return nil, fmt.Errorf("duplicate app id %q at position %d", appID, i)
		}

		placed := false
		for cursor <= MaxPort {
			if req.Oracle == nil || req.Oracle(cursor) {
				result[appID] = cursor
				cursor++
				placed = true
				break
			}
			cursor++
		}
		if !placed {
			return nil, &ExhaustedError{Unplaced: total - i, StartPort: req.StartPort}
		}

		if req.OnProgress != nil {
			current := i + 1
			req.OnProgress(current, total, roundPercent(current, total))
		}
	}

	if a.store != nil {
		if err := a.store.MergePorts(result); err != nil {
			return nil, fmt.Errorf("persist port assignments: %w", err)
		}
	}

	slog.Info("assigned ports", "apps", total, "start_port", req.StartPort)
	return result, nil
}

func roundPercent(current, total int) int {
	return int(math.Round(float64(current) / float64(total) * 100))
}
