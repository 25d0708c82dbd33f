package gateway

import (
	"context"
	"sync"

	"github.com/hazz-dev/dnsswitch/internal/selector"
)

// Memory is an in-process Gateway that only records what would be applied.
// It backs the "dryrun" gateway type and is safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	pair     selector.Pair
	applied  []selector.Pair
	applyErr error
	queryErr error
}

// NewMemory creates a Memory gateway reporting initial as the active pair.
func NewMemory(initial selector.Pair) *Memory {
	return &Memory{pair: initial}
}

func (m *Memory) Apply(_ context.Context, primary, secondary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applyErr != nil {
		return m.applyErr
	}
	m.pair = selector.Pair{Primary: primary, Secondary: secondary}
	m.applied = append(m.applied, m.pair)
	return nil
}

func (m *Memory) QueryActive(_ context.Context) (selector.Pair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queryErr != nil {
		return selector.Pair{}, m.queryErr
	}
	if m.pair.Primary == "" {
		return selector.Pair{}, ErrNoServers
	}
	return m.pair, nil
}

// Set changes the reported pair without recording an apply, as an
// out-of-band edit would.
func (m *Memory) Set(p selector.Pair) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = p
}

// Applied returns every pair passed to Apply, oldest first.
func (m *Memory) Applied() []selector.Pair {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]selector.Pair(nil), m.applied...)
}

// FailApply makes subsequent Apply calls return err (nil to clear).
func (m *Memory) FailApply(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyErr = err
}

// FailQuery makes subsequent QueryActive calls return err (nil to clear).
func (m *Memory) FailQuery(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryErr = err
}
