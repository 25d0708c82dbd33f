// Package prober measures the round-trip latency of a single resolver endpoint.
package prober

import (
	"context"
	"fmt"
	"time"
)

// Prober performs one reachability check against an endpoint.
//
// Probe never returns an error and never blocks longer than timeout: any
// failure is reported as an unreachable Result.
type Prober interface {
	Probe(ctx context.Context, endpoint string, timeout time.Duration) Result
}

// Options tunes the network probers. Zero values select defaults.
type Options struct {
	// Query is the name asked by the dns prober. Default ".".
	Query string
	// Port is the resolver port used by the dns and tcp probers. Default "53".
	Port string
}

func (o Options) withDefaults() Options {
	if o.Query == "" {
		o.Query = "."
	}
	if o.Port == "" {
		o.Port = "53"
	}
	return o
}

// New returns the Prober for kind: "ping", "dns" or "tcp".
func New(kind string, opts Options) (Prober, error) {
	opts = opts.withDefaults()
	switch kind {
	case "ping":
		return newPingProber(), nil
	case "dns":
		return newDNSProber(opts), nil
	case "tcp":
		return newTCPProber(opts), nil
	default:
		return nil, fmt.Errorf("unknown prober type %q", kind)
	}
}
