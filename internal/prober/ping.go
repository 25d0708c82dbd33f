package prober

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"runtime"
	"strconv"
	"time"

	"github.com/hazz-dev/dnsswitch/internal/command"
)

type pingProber struct {
	executor command.Executor
	goos     string
}

func newPingProber() *pingProber {
	return &pingProber{executor: &command.OSExecutor{}, goos: runtime.GOOS}
}

// NewPingProberWithExecutor creates a ping prober with a custom executor and
// target OS (for testing).
func NewPingProberWithExecutor(exec command.Executor, goos string) Prober {
	return &pingProber{executor: exec, goos: goos}
}

// Matches "time=12ms" and "time<1ms" (Windows) and "time=12.3 ms" (Unix).
var rttRegex = regexp.MustCompile(`time[=<](\d+\.?\d*)\s*ms`)

func (p *pingProber) Probe(ctx context.Context, endpoint string, timeout time.Duration) Result {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdout, _, err := p.executor.Run(ctx, "ping", p.args(endpoint, timeout)...)
	if err != nil {
		return unreachable(endpoint, start, fmt.Sprintf("ping %s: %v", endpoint, err))
	}

	matches := rttRegex.FindSubmatch(stdout)
	if matches == nil {
		return unreachable(endpoint, start, "could not parse RTT from ping output")
	}

	ms, err := strconv.ParseFloat(string(matches[1]), 64)
	if err != nil {
		return unreachable(endpoint, start, fmt.Sprintf("parsing RTT %q: %v", matches[1], err))
	}
	return Result{
		Endpoint:  endpoint,
		Latency:   time.Duration(ms * float64(time.Millisecond)),
		Reachable: true,
		CheckedAt: start,
	}
}

func (p *pingProber) args(endpoint string, timeout time.Duration) []string {
	switch p.goos {
	case "windows":
		ms := timeout.Milliseconds()
		if ms < 1 {
			ms = 1
		}
		return []string{"-n", "1", "-w", strconv.FormatInt(ms, 10), endpoint}
	case "darwin":
		return []string{"-c", "1", "-t", strconv.Itoa(timeoutSeconds(timeout)), endpoint}
	default:
		return []string{"-c", "1", "-W", strconv.Itoa(timeoutSeconds(timeout)), endpoint}
	}
}

func timeoutSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		s = 1
	}
	return s
}
