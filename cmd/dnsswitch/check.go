package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/hazz-dev/dnsswitch/internal/selector"
)

// executeCheck runs a single round and prints what the monitor would do.
// Nothing is applied to the interface.
func executeCheck(ctx context.Context, out io.Writer, eng *engine) error {
	results := eng.sched.RunRound(ctx, eng.registry.Endpoints())

	in := selector.Input{Round: results}
	var current string
	active, err := eng.gateway.QueryActive(ctx)
	if err != nil {
		current = fmt.Sprintf("unknown (%v)", err)
	} else {
		current = active.String()
		in.Active = &active
		if active.Complete() {
			fresh := eng.sched.ProbePair(ctx, active)
			in.Fresh = &fresh
		}
	}

	d := selector.Decide(in, eng.th)

	rank := make(map[string]int, len(d.Ranked))
	for i, r := range d.Ranked {
		rank[r.Endpoint] = i + 1
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "DNS", "Latency (ms)", "Status", "Error"})
	for _, r := range results {
		pos := "-"
		if n, ok := rank[r.Endpoint]; ok {
			pos = strconv.Itoa(n)
		}
		t.AppendRow(table.Row{pos, r.Endpoint, r.LatencyText(), r.Status(), r.Error})
	}
	fmt.Fprintln(out, t.Render())

	fmt.Fprintf(out, "Current:  %s\n", current)
	if d.Action == selector.SwitchTo {
		fmt.Fprintf(out, "Decision: switch to %s, %s (%s)\n", d.Pair.Primary, d.Pair.Secondary, d.Reason)
	} else {
		fmt.Fprintf(out, "Decision: keep (%s)\n", d.Reason)
	}

	if len(d.Ranked) < 2 {
		return errors.New("fewer than two candidates reachable")
	}
	return nil
}
