package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazz-dev/dnsswitch/internal/events"
	"github.com/hazz-dev/dnsswitch/internal/gateway"
	"github.com/hazz-dev/dnsswitch/internal/prober"
	"github.com/hazz-dev/dnsswitch/internal/registry"
	"github.com/hazz-dev/dnsswitch/internal/scheduler"
	"github.com/hazz-dev/dnsswitch/internal/selector"
)

// DefaultInterval is the pause between rounds when none is configured.
const DefaultInterval = 5 * time.Second

// RoundObserver is told about every completed round.
type RoundObserver interface {
	ObserveRound(duration time.Duration, results []prober.Result, d selector.Decision)
}

// Options configures a Monitor.
type Options struct {
	Interval   time.Duration
	Thresholds selector.Thresholds
}

// Monitor runs probing rounds while started and applies switch decisions.
type Monitor struct {
	state    *State
	registry *registry.Registry
	sched    *scheduler.Scheduler
	gw       gateway.Gateway
	pub      events.Publisher
	th       selector.Thresholds
	interval time.Duration
	observer RoundObserver
	logger   *slog.Logger

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// New creates a stopped Monitor. Pass nil logger to use the default logger.
func New(state *State, reg *registry.Registry, sched *scheduler.Scheduler, gw gateway.Gateway,
	pub events.Publisher, opts Options, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	return &Monitor{
		state:    state,
		registry: reg,
		sched:    sched,
		gw:       gw,
		pub:      pub,
		th:       opts.Thresholds,
		interval: opts.Interval,
		logger:   logger,
	}
}

// SetRoundObserver sets the observer notified after each round.
func (m *Monitor) SetRoundObserver(o RoundObserver) {
	m.observer = o
}

// State returns the state shared with the drift detector.
func (m *Monitor) State() *State {
	return m.state
}

// Running reports whether the loop is running.
func (m *Monitor) Running() bool {
	return m.state.Running()
}

// Start launches the round loop. It returns false, doing nothing, if the
// loop is already running. The loop ends on Stop or when ctx is done.
func (m *Monitor) Start(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Running() {
		return false
	}
	m.state.setRunning(true)

	prev := m.done
	stop := make(chan struct{})
	done := make(chan struct{})
	m.stop, m.done = stop, done
	go m.run(ctx, prev, stop, done)

	m.logger.Info("monitoring started", "endpoints", m.registry.Len(), "interval", m.interval)
	m.pub.Publish(events.Event{Kind: events.LogLine, Text: "Monitoring started"})
	return true
}

// Stop asks the loop to end. A round in flight runs to completion; no new
// round starts. It returns false if the loop was not running.
func (m *Monitor) Stop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.Running() {
		return false
	}
	m.state.setRunning(false)
	close(m.stop)

	m.logger.Info("monitoring stopped")
	m.pub.Publish(events.Event{Kind: events.LogLine, Text: "Monitoring stopped"})
	return true
}

// Wait blocks until the most recently started loop has exited.
func (m *Monitor) Wait() {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (m *Monitor) run(ctx context.Context, prev <-chan struct{}, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer m.exited(stop)

	// Rounds never overlap: a restart waits for the previous loop's round.
	// done is only closed once prev is, so Wait covers every earlier loop.
	if prev != nil {
		select {
		case <-prev:
		case <-stop:
			<-prev
			return
		}
	}

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		m.RunRound(ctx)

		timer := time.NewTimer(m.interval)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// exited clears the running flag when the loop ends on its own because its
// context was cancelled.
func (m *Monitor) exited(stop <-chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != stop || !m.state.Running() {
		return
	}
	m.state.setRunning(false)
	close(m.stop)

	m.logger.Info("monitoring stopped", "reason", "context done")
	m.pub.Publish(events.Event{Kind: events.LogLine, Text: "Monitoring stopped"})
}

// RunRound performs one probing round, decides and applies a switch if
// needed. It is exported so a single round can be driven directly.
func (m *Monitor) RunRound(ctx context.Context) selector.Decision {
	start := time.Now()
	results := m.sched.RunRound(ctx, m.registry.Endpoints())
	m.state.setSnapshot(results, start)

	for _, r := range results {
		m.pub.Publish(events.Event{
			Kind:        events.ResultUpdated,
			Endpoint:    r.Endpoint,
			LatencyText: r.LatencyText(),
			Status:      string(r.Status()),
			Latency:     r.Latency,
			Reachable:   r.Reachable,
		})
	}

	in := selector.Input{Round: results}
	if active, ok := m.state.Active(); ok {
		in.Active = &active
		if active.Complete() {
			fresh := m.sched.ProbePair(ctx, active)
			in.Fresh = &fresh
		}
	}

	d := selector.Decide(in, m.th)
	m.logger.Debug("round decision",
		"action", d.Action,
		"need_switch", d.NeedSwitch,
		"reason", d.Reason,
		"reachable", len(d.Ranked),
	)

	if d.Action == selector.SwitchTo {
		m.apply(ctx, d.Pair, d.Reason)
	}

	if m.observer != nil {
		m.observer.ObserveRound(time.Since(start), results, d)
	}
	return d
}

func (m *Monitor) apply(ctx context.Context, p selector.Pair, reason string) bool {
	m.logger.Info("switching resolvers", "primary", p.Primary, "secondary", p.Secondary, "reason", reason)
	m.pub.Publish(events.Event{
		Kind: events.LogLine,
		Text: fmt.Sprintf("Switching DNS → %s, %s (%s)", p.Primary, p.Secondary, reason),
	})

	m.state.gatewayMu.Lock()
	defer m.state.gatewayMu.Unlock()

	if err := m.gw.Apply(ctx, p.Primary, p.Secondary); err != nil {
		m.logger.Error("applying resolvers", "primary", p.Primary, "secondary", p.Secondary, "error", err)
		m.pub.Publish(events.Event{Kind: events.LogLine, Text: fmt.Sprintf("Error changing DNS: %v", err)})
		return false
	}

	m.state.SetActive(p)
	m.pub.Publish(events.Event{
		Kind: events.LogLine,
		Text: fmt.Sprintf("DNS successfully changed → %s , %s", p.Primary, p.Secondary),
	})
	m.pub.Publish(events.Event{
		Kind:      events.StatusChanged,
		Text:      p.String(),
		Primary:   p.Primary,
		Secondary: p.Secondary,
	})
	return true
}
