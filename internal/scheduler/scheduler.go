// Package scheduler fans a probing round out over the candidate registry.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazz-dev/dnsswitch/internal/prober"
	"github.com/hazz-dev/dnsswitch/internal/selector"
)

// DefaultConcurrency is the in-flight probe limit used when none is set.
const DefaultConcurrency = 15

// Scheduler runs probing rounds with a bounded number of concurrent probes.
type Scheduler struct {
	prober  prober.Prober
	limit   int
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a Scheduler. A limit below 1 selects DefaultConcurrency.
// Pass nil logger to use the default logger.
func New(p prober.Prober, limit int, timeout time.Duration, logger *slog.Logger) *Scheduler {
	if limit < 1 {
		limit = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		prober:  p,
		limit:   limit,
		timeout: timeout,
		logger:  logger,
	}
}

// Timeout returns the per-probe timeout.
func (s *Scheduler) Timeout() time.Duration {
	return s.timeout
}

// RunRound probes every endpoint once and returns the results in the same
// order as endpoints. It returns only after all probes have finished.
func (s *Scheduler) RunRound(ctx context.Context, endpoints []string) []prober.Result {
	start := time.Now()
	results := make([]prober.Result, len(endpoints))

	var g errgroup.Group
	g.SetLimit(s.limit)
	for i, ep := range endpoints {
		i, ep := i, ep
		g.Go(func() error {
			results[i] = s.prober.Probe(ctx, ep, s.timeout)
			return nil
		})
	}
	g.Wait()

	reachable := 0
	for _, r := range results {
		if r.Reachable {
			reachable++
		}
	}
	s.logger.Debug("round complete",
		"endpoints", len(endpoints),
		"reachable", reachable,
		"duration", time.Since(start),
	)
	return results
}

// ProbePair probes the two members of pair one after the other.
func (s *Scheduler) ProbePair(ctx context.Context, pair selector.Pair) selector.PairProbe {
	return selector.PairProbe{
		Primary:   s.prober.Probe(ctx, pair.Primary, s.timeout),
		Secondary: s.prober.Probe(ctx, pair.Secondary, s.timeout),
	}
}
