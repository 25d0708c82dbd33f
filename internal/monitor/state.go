// Package monitor drives probing rounds, switches the active resolver pair
// and keeps the remembered pair in step with the operating system.
package monitor

import (
	"slices"
	"sync"
	"time"

	"github.com/hazz-dev/dnsswitch/internal/prober"
	"github.com/hazz-dev/dnsswitch/internal/selector"
)

// State is shared by the Monitor loop and the DriftDetector.
type State struct {
	mu         sync.Mutex
	active     selector.Pair
	hasActive  bool
	running    bool
	snapshot   []prober.Result
	snapshotAt time.Time

	// gatewayMu serializes apply-then-record against query-then-reconcile,
	// so a switch in progress is never taken for a manual change.
	gatewayMu sync.Mutex
}

// NewState returns a State with no active pair, not running.
func NewState() *State {
	return &State{}
}

// Active returns the remembered active pair and whether one is known.
func (s *State) Active() (selector.Pair, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.hasActive
}

// SetActive records p as the active pair.
func (s *State) SetActive(p selector.Pair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = p
	s.hasActive = true
}

// Reconcile adopts observed as the active pair if it differs from the
// remembered one. It returns the previous pair, whether one was known and
// whether anything changed.
func (s *State) Reconcile(observed selector.Pair) (prev selector.Pair, hadActive, changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, hadActive = s.active, s.hasActive
	if hadActive && prev == observed {
		return prev, hadActive, false
	}
	s.active = observed
	s.hasActive = true
	return prev, hadActive, true
}

// Running reports whether monitoring is running.
func (s *State) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *State) setRunning(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = v
}

// Snapshot returns the results of the most recent round and when it ran.
func (s *State) Snapshot() ([]prober.Result, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.snapshot), s.snapshotAt
}

func (s *State) setSnapshot(results []prober.Result, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = results
	s.snapshotAt = at
}
