package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazz-dev/dnsswitch/internal/events"
	"github.com/hazz-dev/dnsswitch/internal/gateway"
	"github.com/hazz-dev/dnsswitch/internal/selector"
)

// DefaultDriftInterval is the drift check cadence when none is configured.
const DefaultDriftInterval = 2 * time.Second

// DriftObserver is told about every adopted out-of-band change.
type DriftObserver interface {
	ObserveDrift(prev, observed selector.Pair)
}

// DriftDetector periodically reads the resolvers the OS actually uses and
// adopts them when they differ from the remembered pair. It never reverts a
// manual change.
type DriftDetector struct {
	state    *State
	gw       gateway.Gateway
	pub      events.Publisher
	interval time.Duration
	observer DriftObserver
	logger   *slog.Logger
}

// NewDriftDetector creates a DriftDetector. Pass nil logger to use the
// default logger.
func NewDriftDetector(state *State, gw gateway.Gateway, pub events.Publisher, interval time.Duration, logger *slog.Logger) *DriftDetector {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultDriftInterval
	}
	return &DriftDetector{
		state:    state,
		gw:       gw,
		pub:      pub,
		interval: interval,
		logger:   logger,
	}
}

// SetDriftObserver sets the observer notified on adopted changes.
func (d *DriftDetector) SetDriftObserver(o DriftObserver) {
	d.observer = o
}

// Run checks immediately and then every interval until ctx is done. It runs
// whether or not the Monitor is started.
func (d *DriftDetector) Run(ctx context.Context) {
	d.Tick(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick performs one drift check and reports whether the remembered pair
// changed. A failed query skips the tick and leaves the state untouched.
func (d *DriftDetector) Tick(ctx context.Context) bool {
	d.state.gatewayMu.Lock()
	defer d.state.gatewayMu.Unlock()

	observed, err := d.gw.QueryActive(ctx)
	if err != nil {
		if !errors.Is(err, gateway.ErrNoServers) {
			d.logger.Debug("querying active resolvers", "error", err)
		}
		return false
	}

	prev, hadActive, changed := d.state.Reconcile(observed)
	if !changed {
		return false
	}

	text := fmt.Sprintf("DNS manually changed! Current: %s", observed)
	if !hadActive {
		text = fmt.Sprintf("Detected current DNS: %s", observed)
	}
	d.logger.Info("active resolvers changed outside dnsswitch",
		"primary", observed.Primary,
		"secondary", observed.Secondary,
		"previous_primary", prev.Primary,
		"previous_secondary", prev.Secondary,
	)
	d.pub.Publish(events.Event{Kind: events.LogLine, Text: text})
	d.pub.Publish(events.Event{
		Kind:      events.StatusChanged,
		Text:      observed.String(),
		Primary:   observed.Primary,
		Secondary: observed.Secondary,
	})
	if d.observer != nil {
		d.observer.ObserveDrift(prev, observed)
	}
	return true
}
