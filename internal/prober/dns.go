package prober

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

// dnsProber sends one recursive query over UDP. Any well-formed answer,
// whatever its rcode, proves the resolver is reachable.
type dnsProber struct {
	query string
	port  string
}

func newDNSProber(opts Options) *dnsProber {
	return &dnsProber{query: dns.Fqdn(opts.Query), port: opts.Port}
}

func (p *dnsProber) Probe(ctx context.Context, endpoint string, timeout time.Duration) Result {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msg := new(dns.Msg)
	msg.SetQuestion(p.query, dns.TypeNS)
	msg.RecursionDesired = true

	client := &dns.Client{Net: "udp", Timeout: timeout}
	addr := net.JoinHostPort(endpoint, p.port)
	resp, rtt, err := client.ExchangeContext(ctx, msg, addr)
	if err != nil {
		return unreachable(endpoint, start, fmt.Sprintf("dns query %s: %v", addr, err))
	}
	if resp == nil || resp.Id != msg.Id {
		return unreachable(endpoint, start, "malformed dns response")
	}
	return Result{
		Endpoint:  endpoint,
		Latency:   rtt,
		Reachable: true,
		CheckedAt: start,
	}
}
