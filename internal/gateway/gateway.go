// Package gateway reads and writes the resolver pair configured on a network
// interface.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hazz-dev/dnsswitch/internal/command"
	"github.com/hazz-dev/dnsswitch/internal/selector"
)

// ErrNoServers is returned by QueryActive when the interface reports no
// resolvers at all.
var ErrNoServers = errors.New("no resolvers configured")

// Gateway applies and queries the active resolver pair of one interface.
type Gateway interface {
	// Apply configures primary and secondary as the interface resolvers.
	Apply(ctx context.Context, primary, secondary string) error
	// QueryActive returns the resolvers currently configured. Secondary is
	// empty when only one server is set.
	QueryActive(ctx context.Context) (selector.Pair, error)
}

// New returns the Gateway for kind: "powershell", "resolvectl" or "dryrun".
// Every call made by the returned Gateway is bounded by timeout.
func New(kind, iface string, timeout time.Duration, exec command.Executor) (Gateway, error) {
	if exec == nil {
		exec = &command.OSExecutor{}
	}
	switch kind {
	case "powershell":
		return NewPowerShell(iface, timeout, exec), nil
	case "resolvectl":
		return NewResolvectl(iface, timeout, exec), nil
	case "dryrun":
		return NewMemory(selector.Pair{}), nil
	default:
		return nil, fmt.Errorf("unknown gateway type %q", kind)
	}
}

// pairFromList builds a Pair from the ordered server list reported by the OS.
func pairFromList(servers []string) (selector.Pair, error) {
	if len(servers) == 0 {
		return selector.Pair{}, ErrNoServers
	}
	p := selector.Pair{Primary: servers[0]}
	if len(servers) > 1 {
		p.Secondary = servers[1]
	}
	return p, nil
}

func commandError(name string, err error, stderr []byte) error {
	msg := strings.TrimSpace(string(stderr))
	if msg == "" {
		return fmt.Errorf("running %s: %w", name, err)
	}
	return fmt.Errorf("running %s: %w: %s", name, err, msg)
}
