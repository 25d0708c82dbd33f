package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hazz-dev/dnsswitch/internal/command"
	"github.com/hazz-dev/dnsswitch/internal/selector"
)

// PowerShell manages resolvers through the Windows DnsClient cmdlets.
type PowerShell struct {
	iface   string
	timeout time.Duration
	exec    command.Executor
}

// NewPowerShell creates a PowerShell gateway for the interface alias iface.
func NewPowerShell(iface string, timeout time.Duration, exec command.Executor) *PowerShell {
	return &PowerShell{iface: iface, timeout: timeout, exec: exec}
}

func (g *PowerShell) Apply(ctx context.Context, primary, secondary string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	script := fmt.Sprintf("Set-DnsClientServerAddress -InterfaceAlias %s -ServerAddresses (%s,%s)",
		psQuote(g.iface), psQuote(primary), psQuote(secondary))
	_, stderr, err := g.exec.Run(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	if err != nil {
		return commandError("Set-DnsClientServerAddress", err, stderr)
	}
	return nil
}

func (g *PowerShell) QueryActive(ctx context.Context) (selector.Pair, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	script := fmt.Sprintf("Get-DnsClientServerAddress -InterfaceAlias %s | Select-Object -ExpandProperty ServerAddresses",
		psQuote(g.iface))
	stdout, stderr, err := g.exec.Run(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	if err != nil {
		return selector.Pair{}, commandError("Get-DnsClientServerAddress", err, stderr)
	}
	return pairFromList(parseServerLines(string(stdout)))
}

// parseServerLines returns the non-blank lines of out, one server per line.
func parseServerLines(out string) []string {
	var servers []string
	for _, line := range strings.Split(out, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			servers = append(servers, s)
		}
	}
	return servers
}

// psQuote renders s as a single-quoted PowerShell string literal.
func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
