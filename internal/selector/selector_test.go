package selector_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/hazz-dev/dnsswitch/internal/prober"
	"github.com/hazz-dev/dnsswitch/internal/selector"
)

var th = selector.Thresholds{OK: 75 * time.Millisecond, Bad: 90 * time.Millisecond}

func ok(endpoint string, ms int) prober.Result {
	return prober.Result{Endpoint: endpoint, Latency: time.Duration(ms) * time.Millisecond, Reachable: true}
}

func fail(endpoint string) prober.Result {
	return prober.Result{Endpoint: endpoint, Error: "timeout"}
}

func TestRank_ExcludesUnreachableAndSorts(t *testing.T) {
	ranked := selector.Rank([]prober.Result{
		ok("1.1.1.1", 50), fail("4.2.2.1"), ok("8.8.8.8", 20), ok("9.9.9.9", 35),
	})

	var got []string
	for _, r := range ranked {
		got = append(got, r.Endpoint)
	}
	want := []string{"8.8.8.8", "9.9.9.9", "1.1.1.1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestRank_TiesKeepRegistryOrder(t *testing.T) {
	ranked := selector.Rank([]prober.Result{
		ok("1.0.0.1", 30), ok("1.1.1.1", 30), ok("8.8.8.8", 30),
	})
	if ranked[0].Endpoint != "1.0.0.1" || ranked[1].Endpoint != "1.1.1.1" || ranked[2].Endpoint != "8.8.8.8" {
		t.Errorf("expected input order on ties, got %v", ranked)
	}
}

func TestDecide_ColdStartSwitches(t *testing.T) {
	d := selector.Decide(selector.Input{
		Round: []prober.Result{ok("9.9.9.9", 50), ok("1.1.1.1", 40)},
	}, th)

	if d.Action != selector.SwitchTo {
		t.Fatalf("expected SwitchTo, got %v (%s)", d.Action, d.Reason)
	}
	want := selector.Pair{Primary: "1.1.1.1", Secondary: "9.9.9.9"}
	if d.Pair != want {
		t.Errorf("expected %+v, got %+v", want, d.Pair)
	}
	if !d.NeedSwitch {
		t.Error("expected NeedSwitch on cold start")
	}
}

func TestDecide_AntiFlapping(t *testing.T) {
	active := &selector.Pair{Primary: "4.2.2.1", Secondary: "4.2.2.2"}
	d := selector.Decide(selector.Input{
		Round:  []prober.Result{ok("1.1.1.1", 10), ok("4.2.2.1", 80), ok("4.2.2.2", 80), ok("8.8.8.8", 12)},
		Active: active,
		Fresh:  &selector.PairProbe{Primary: ok("4.2.2.1", 80), Secondary: ok("4.2.2.2", 80)},
	}, th)

	if d.Action != selector.NoAction {
		t.Errorf("expected NoAction for a not-bad active pair, got %v", d.Action)
	}
	if d.NeedSwitch {
		t.Error("expected NeedSwitch false")
	}
}

func TestDecide_AtBadThresholdStays(t *testing.T) {
	d := selector.Decide(selector.Input{
		Round:  []prober.Result{ok("1.1.1.1", 10), ok("8.8.8.8", 12)},
		Active: &selector.Pair{Primary: "4.2.2.1", Secondary: "4.2.2.2"},
		Fresh:  &selector.PairProbe{Primary: ok("4.2.2.1", 90), Secondary: ok("4.2.2.2", 20)},
	}, th)
	if d.NeedSwitch {
		t.Errorf("latency equal to Bad must not force a switch: %s", d.Reason)
	}
}

func TestDecide_ForcedSwitch(t *testing.T) {
	active := &selector.Pair{Primary: "4.2.2.1", Secondary: "4.2.2.2"}

	tests := []struct {
		name       string
		round      []prober.Result
		fresh      selector.PairProbe
		wantAction selector.Action
		wantPair   selector.Pair
	}{
		{
			name:       "secondary unreachable, good candidates",
			round:      []prober.Result{ok("1.1.1.1", 30), ok("4.2.2.1", 20), fail("4.2.2.2"), ok("8.8.8.8", 40)},
			fresh:      selector.PairProbe{Primary: ok("4.2.2.1", 20), Secondary: fail("4.2.2.2")},
			wantAction: selector.SwitchTo,
			wantPair:   selector.Pair{Primary: "4.2.2.1", Secondary: "1.1.1.1"},
		},
		{
			name:       "primary too slow, good candidates",
			round:      []prober.Result{ok("1.1.1.1", 30), ok("8.8.8.8", 40)},
			fresh:      selector.PairProbe{Primary: ok("4.2.2.1", 120), Secondary: ok("4.2.2.2", 20)},
			wantAction: selector.SwitchTo,
			wantPair:   selector.Pair{Primary: "1.1.1.1", Secondary: "8.8.8.8"},
		},
		{
			name:       "primary unreachable, best candidate not good enough",
			round:      []prober.Result{ok("1.1.1.1", 80), ok("8.8.8.8", 85)},
			fresh:      selector.PairProbe{Primary: fail("4.2.2.1"), Secondary: ok("4.2.2.2", 20)},
			wantAction: selector.NoAction,
		},
		{
			name:       "primary unreachable, one reachable candidate",
			round:      []prober.Result{ok("1.1.1.1", 10), fail("8.8.8.8")},
			fresh:      selector.PairProbe{Primary: fail("4.2.2.1"), Secondary: ok("4.2.2.2", 20)},
			wantAction: selector.NoAction,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fresh := tc.fresh
			d := selector.Decide(selector.Input{Round: tc.round, Active: active, Fresh: &fresh}, th)
			if !d.NeedSwitch {
				t.Fatal("expected NeedSwitch")
			}
			if d.Action != tc.wantAction {
				t.Fatalf("expected %v, got %v (%s)", tc.wantAction, d.Action, d.Reason)
			}
			if d.Action == selector.SwitchTo && d.Pair != tc.wantPair {
				t.Errorf("expected %+v, got %+v", tc.wantPair, d.Pair)
			}
		})
	}
}

func TestDecide_InsufficientCandidates(t *testing.T) {
	rounds := [][]prober.Result{
		nil,
		{fail("1.1.1.1"), fail("8.8.8.8")},
		{ok("1.1.1.1", 5), fail("8.8.8.8")},
	}
	for _, round := range rounds {
		d := selector.Decide(selector.Input{Round: round}, th)
		if d.Action != selector.NoAction {
			t.Errorf("expected NoAction for %d reachable results, got %v", len(d.Ranked), d.Action)
		}
	}
}

func TestDecide_IncompletePairTreatedAsColdStart(t *testing.T) {
	d := selector.Decide(selector.Input{
		Round:  []prober.Result{ok("1.1.1.1", 10), ok("8.8.8.8", 12)},
		Active: &selector.Pair{Primary: "192.168.1.1"},
	}, th)
	if d.Action != selector.SwitchTo {
		t.Errorf("expected SwitchTo for a single-server active config, got %v", d.Action)
	}
}

func TestDecide_Deterministic(t *testing.T) {
	in := selector.Input{
		Round: []prober.Result{ok("1.0.0.1", 30), ok("1.1.1.1", 30), ok("8.8.8.8", 30), fail("9.9.9.9")},
	}
	first := selector.Decide(in, th)
	for i := 0; i < 50; i++ {
		if got := selector.Decide(in, th); !reflect.DeepEqual(got, first) {
			t.Fatalf("decision %d differs: %+v vs %+v", i, got, first)
		}
	}
	if first.Pair != (selector.Pair{Primary: "1.0.0.1", Secondary: "1.1.1.1"}) {
		t.Errorf("unexpected tie-break: %+v", first.Pair)
	}
}

func TestThresholds_Validate(t *testing.T) {
	if err := th.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (selector.Thresholds{OK: 90 * time.Millisecond, Bad: 90 * time.Millisecond}).Validate(); err == nil {
		t.Error("expected error for OK == Bad")
	}
	if err := (selector.Thresholds{Bad: 90 * time.Millisecond}).Validate(); err == nil {
		t.Error("expected error for zero OK")
	}
}

func TestPair_String(t *testing.T) {
	if got := (selector.Pair{Primary: "1.1.1.1"}).String(); got != "Primary: 1.1.1.1 | Secondary: -" {
		t.Errorf("unexpected string: %q", got)
	}
}
