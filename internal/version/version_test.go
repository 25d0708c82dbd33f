package version_test

import (
	"testing"

	"github.com/hazz-dev/dnsswitch/internal/version"
)

func TestString(t *testing.T) {
	want := "dnsswitch dev (commit none, built unknown)"
	if got := version.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
