// Package selector ranks probe results and decides whether the active
// resolver pair must be replaced.
//
// The policy has hysteresis: a candidate is only adopted when its latency is
// at most Thresholds.OK, and an active endpoint is only abandoned once it is
// unreachable or slower than Thresholds.Bad. An active pair sitting between
// the two thresholds stays in service even when faster candidates exist.
package selector

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/hazz-dev/dnsswitch/internal/prober"
)

// Pair is a primary/secondary resolver assignment. Secondary may be empty
// when the OS reports a single server.
type Pair struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
}

// Complete reports whether both members are set.
func (p Pair) Complete() bool {
	return p.Primary != "" && p.Secondary != ""
}

func (p Pair) String() string {
	secondary := p.Secondary
	if secondary == "" {
		secondary = "-"
	}
	return fmt.Sprintf("Primary: %s | Secondary: %s", p.Primary, secondary)
}

// Thresholds is the latency hysteresis band.
type Thresholds struct {
	// OK is the highest latency good enough to adopt a new primary.
	OK time.Duration
	// Bad is the lowest latency that disqualifies an active endpoint.
	Bad time.Duration
}

// Validate checks 0 < OK < Bad.
func (t Thresholds) Validate() error {
	if t.OK <= 0 {
		return fmt.Errorf("ok threshold must be positive, got %s", t.OK)
	}
	if t.OK >= t.Bad {
		return fmt.Errorf("ok threshold %s must be below bad threshold %s", t.OK, t.Bad)
	}
	return nil
}

// PairProbe is a fresh probe of both members of the active pair.
type PairProbe struct {
	Primary   prober.Result
	Secondary prober.Result
}

// Action is the outcome of a decision.
type Action int

const (
	NoAction Action = iota
	SwitchTo
)

func (a Action) String() string {
	if a == SwitchTo {
		return "switch"
	}
	return "none"
}

// Input is everything a decision depends on.
type Input struct {
	// Round holds one result per registry endpoint, in registry order.
	Round []prober.Result
	// Active is the remembered active pair, nil before the first configuration.
	Active *Pair
	// Fresh is a probe of Active taken this round. Ignored when Active is
	// nil or incomplete.
	Fresh *PairProbe
}

// Decision is the Selector output. Pair is only set when Action is SwitchTo.
type Decision struct {
	Action     Action
	Pair       Pair
	NeedSwitch bool
	Reason     string
	Ranked     []prober.Result
}

// Rank returns the reachable results sorted by ascending latency. Equal
// latencies keep their input order.
func Rank(results []prober.Result) []prober.Result {
	ranked := make([]prober.Result, 0, len(results))
	for _, r := range results {
		if r.Reachable {
			ranked = append(ranked, r)
		}
	}
	slices.SortStableFunc(ranked, func(a, b prober.Result) int {
		return cmp.Compare(a.Latency, b.Latency)
	})
	return ranked
}

// NeedSwitch reports whether the active pair has to be replaced and why.
func NeedSwitch(active *Pair, fresh *PairProbe, th Thresholds) (bool, string) {
	if active == nil || !active.Complete() {
		return true, "no active pair"
	}
	if fresh == nil {
		return true, "active pair not probed"
	}
	for _, r := range []prober.Result{fresh.Primary, fresh.Secondary} {
		if !r.Reachable {
			return true, fmt.Sprintf("%s unreachable", r.Endpoint)
		}
		if r.Latency > th.Bad {
			return true, fmt.Sprintf("%s latency %s above %s", r.Endpoint, r.Latency.Round(time.Millisecond), th.Bad)
		}
	}
	return false, "active pair healthy"
}

// Decide applies the switch policy. It has no side effects and is
// deterministic for identical inputs.
func Decide(in Input, th Thresholds) Decision {
	d := Decision{Ranked: Rank(in.Round)}
	d.NeedSwitch, d.Reason = NeedSwitch(in.Active, in.Fresh, th)
	if !d.NeedSwitch {
		return d
	}

	if len(d.Ranked) < 2 {
		d.Reason = fmt.Sprintf("%s; only %d reachable candidate(s)", d.Reason, len(d.Ranked))
		return d
	}

	best1, best2 := d.Ranked[0], d.Ranked[1]
	if best1.Latency > th.OK {
		d.Reason = fmt.Sprintf("%s; best candidate %s at %s is above %s",
			d.Reason, best1.Endpoint, best1.Latency.Round(time.Millisecond), th.OK)
		return d
	}

	d.Action = SwitchTo
	d.Pair = Pair{Primary: best1.Endpoint, Secondary: best2.Endpoint}
	return d
}
