package prober

import (
	"strconv"
	"time"
)

// Status is the display status of a probed endpoint.
type Status string

const (
	StatusOK   Status = "OK"
	StatusFail Status = "Fail"
)

// Result is the outcome of a single probe. Latency is only meaningful when
// Reachable is true.
type Result struct {
	Endpoint  string
	Latency   time.Duration
	Reachable bool
	Error     string
	CheckedAt time.Time
}

// Status returns StatusOK for reachable endpoints and StatusFail otherwise.
func (r Result) Status() Status {
	if r.Reachable {
		return StatusOK
	}
	return StatusFail
}

// LatencyText renders the latency in whole milliseconds, or "Timeout".
func (r Result) LatencyText() string {
	if !r.Reachable {
		return "Timeout"
	}
	return strconv.FormatInt(r.Latency.Milliseconds(), 10)
}

func unreachable(endpoint string, checkedAt time.Time, msg string) Result {
	return Result{
		Endpoint:  endpoint,
		Error:     msg,
		CheckedAt: checkedAt,
	}
}
