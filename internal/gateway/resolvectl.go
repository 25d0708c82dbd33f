package gateway

import (
	"context"
	"strings"
	"time"

	"github.com/hazz-dev/dnsswitch/internal/command"
	"github.com/hazz-dev/dnsswitch/internal/selector"
)

// Resolvectl manages per-link resolvers through systemd-resolved.
type Resolvectl struct {
	iface   string
	timeout time.Duration
	exec    command.Executor
}

// NewResolvectl creates a resolvectl gateway for the link iface.
func NewResolvectl(iface string, timeout time.Duration, exec command.Executor) *Resolvectl {
	return &Resolvectl{iface: iface, timeout: timeout, exec: exec}
}

func (g *Resolvectl) Apply(ctx context.Context, primary, secondary string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	_, stderr, err := g.exec.Run(ctx, "resolvectl", "dns", g.iface, primary, secondary)
	if err != nil {
		return commandError("resolvectl dns", err, stderr)
	}
	return nil
}

func (g *Resolvectl) QueryActive(ctx context.Context) (selector.Pair, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	stdout, stderr, err := g.exec.Run(ctx, "resolvectl", "dns", g.iface)
	if err != nil {
		return selector.Pair{}, commandError("resolvectl dns", err, stderr)
	}
	return pairFromList(parseResolvectl(string(stdout)))
}

// parseResolvectl extracts the server list from output such as
// "Link 3 (wlan0): 1.1.1.1 8.8.8.8".
func parseResolvectl(out string) []string {
	var servers []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, rest, ok := strings.Cut(line, "):"); ok {
			line = rest
		}
		for _, f := range strings.Fields(line) {
			// Drop any "%ifindex#server-name" suffixes.
			if i := strings.IndexAny(f, "%#"); i > 0 {
				f = f[:i]
			}
			servers = append(servers, f)
		}
	}
	return servers
}
