package prober

import (
	"context"
	"fmt"
	"net"
	"time"
)

type tcpProber struct {
	port string
}

func newTCPProber(opts Options) *tcpProber {
	return &tcpProber{port: opts.Port}
}

func (p *tcpProber) Probe(ctx context.Context, endpoint string, timeout time.Duration) Result {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := net.JoinHostPort(endpoint, p.port)
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	latency := time.Since(start)
	if err != nil {
		return unreachable(endpoint, start, fmt.Sprintf("dial tcp %s: %v", addr, err))
	}
	conn.Close()
	return Result{
		Endpoint:  endpoint,
		Latency:   latency,
		Reachable: true,
		CheckedAt: start,
	}
}
