package integration_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hazz-dev/dnsswitch/internal/config"
	"github.com/hazz-dev/dnsswitch/internal/events"
	"github.com/hazz-dev/dnsswitch/internal/gateway"
	"github.com/hazz-dev/dnsswitch/internal/monitor"
	"github.com/hazz-dev/dnsswitch/internal/prober"
	"github.com/hazz-dev/dnsswitch/internal/registry"
	"github.com/hazz-dev/dnsswitch/internal/scheduler"
	"github.com/hazz-dev/dnsswitch/internal/selector"
	"github.com/hazz-dev/dnsswitch/internal/server"
	"github.com/hazz-dev/dnsswitch/internal/storage"
)

type latencyTable map[string]time.Duration

func (l latencyTable) Probe(_ context.Context, endpoint string, _ time.Duration) prober.Result {
	lat, ok := l[endpoint]
	if !ok {
		return prober.Result{Endpoint: endpoint, Error: "timeout", CheckedAt: time.Now()}
	}
	return prober.Result{Endpoint: endpoint, Latency: lat, Reachable: true, CheckedAt: time.Now()}
}

// TestIntegration_FullFlow verifies the complete pipeline:
// config → scheduler → selector → gateway → events → journal → API
func TestIntegration_FullFlow(t *testing.T) {
	// 1. Build config
	cfg, err := config.Parse([]byte(`
candidates: ["1.1.1.1", "8.8.8.8", "9.9.9.9", "4.2.2.4"]
gateway: {type: dryrun}
interval: 1h
`))
	if err != nil {
		t.Fatalf("parsing config: %v", err)
	}

	// 2. Open in-memory SQLite
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening storage: %v", err)
	}
	defer db.Close()

	// 3. Wire the engine
	probes := latencyTable{
		"1.1.1.1": 12 * time.Millisecond,
		"8.8.8.8": 20 * time.Millisecond,
		"9.9.9.9": 40 * time.Millisecond,
	}
	gw := gateway.NewMemory(selector.Pair{})
	bus := events.NewBus()
	state := monitor.NewState()
	sched := scheduler.New(probes, cfg.Probe.Concurrency, cfg.Probe.Timeout.Duration, nil)
	mon := monitor.New(state, registry.New(cfg.Candidates), sched, gw, bus, monitor.Options{
		Interval:   cfg.Interval.Duration,
		Thresholds: selector.Thresholds{OK: cfg.Thresholds.OK.Duration, Bad: cfg.Thresholds.Bad.Duration},
	}, nil)
	drift := monitor.NewDriftDetector(state, gw, bus, cfg.DriftInterval.Duration, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, unsubscribe := bus.Subscribe(64)
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		events.Consume(ctx, ch, func(e events.Event) {
			if err := db.InsertEvent(ctx, e); err != nil {
				t.Errorf("InsertEvent: %v", err)
			}
		})
	}()
	defer func() {
		unsubscribe()
		<-consumed
	}()

	// 4. A cold-start round switches to the two fastest candidates
	d := mon.RunRound(ctx)
	if d.Action != selector.SwitchTo {
		t.Fatalf("expected switch on cold start, got %v (%s)", d.Action, d.Reason)
	}
	want := selector.Pair{Primary: "1.1.1.1", Secondary: "8.8.8.8"}
	if applied := gw.Applied(); len(applied) != 1 || applied[0] != want {
		t.Fatalf("expected %v applied once, got %v", want, applied)
	}

	// 5. The drift detector does not mistake the switch for a manual edit
	if drift.Tick(ctx) {
		t.Error("drift reported the monitor's own switch")
	}

	// 6. An out-of-band edit is adopted
	manual := selector.Pair{Primary: "9.9.9.9", Secondary: "8.8.8.8"}
	gw.Set(manual)
	if !drift.Tick(ctx) {
		t.Fatal("expected drift to adopt the manual pair")
	}

	// 7. Wait for the journal to record the manual change (up to 5s)
	deadline := time.Now().Add(5 * time.Second)
	var last *storage.Entry
	for time.Now().Before(deadline) {
		last, err = db.LastStatus(ctx)
		if err != nil {
			t.Fatalf("LastStatus: %v", err)
		}
		if last != nil && last.Primary == manual.Primary {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if last == nil || last.Primary != manual.Primary {
		t.Fatalf("journal did not record manual pair, last=%+v", last)
	}

	// 8. The API reflects the adopted pair and the journal
	apiServer := server.New(server.Options{
		Controller: mon,
		State:      state,
		Journal:    db,
		Events:     bus,
		RunContext: ctx,
	}, nil)
	ts := httptest.NewServer(apiServer.Router())
	defer ts.Close()

	var status struct {
		Data struct {
			Running bool           `json:"running"`
			Active  *selector.Pair `json:"active"`
		} `json:"data"`
	}
	getJSON(t, ts.URL+"/api/status", &status)
	if status.Data.Active == nil || *status.Data.Active != manual {
		t.Errorf("expected active %v, got %+v", manual, status.Data.Active)
	}

	var journal struct {
		Data []storage.Entry `json:"data"`
	}
	getJSON(t, ts.URL+"/api/events?limit=10", &journal)
	found := false
	for _, e := range journal.Data {
		if e.Text == "DNS manually changed! Current: Primary: 9.9.9.9 | Secondary: 8.8.8.8" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected manual change in journal, got %+v", journal.Data)
	}

	// 9. Start and stop the loop over HTTP
	resp, err := http.Post(ts.URL+"/api/monitor/start", "application/json", nil)
	if err != nil {
		t.Fatalf("POST start: %v", err)
	}
	resp.Body.Close()
	if !mon.Running() {
		t.Error("expected monitor to be running after start")
	}

	resp, err = http.Post(ts.URL+"/api/monitor/stop", "application/json", nil)
	if err != nil {
		t.Fatalf("POST stop: %v", err)
	}
	resp.Body.Close()
	mon.Wait()
	if mon.Running() {
		t.Error("expected monitor to be stopped")
	}
}

func getJSON(t *testing.T, url string, v interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: expected 200, got %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decoding %s: %v", url, err)
	}
}
