// Package registry holds the candidate resolver endpoints probed each round.
package registry

import (
	"slices"
	"strings"
)

// Registry is a deduplicated, lexicographically ordered set of endpoints.
// It is immutable after construction and safe for concurrent use.
type Registry struct {
	endpoints []string
}

// New builds a Registry from addrs. Blank entries are ignored, surrounding
// whitespace is trimmed and duplicates collapse.
func New(addrs []string) *Registry {
	seen := make(map[string]bool, len(addrs))
	endpoints := make([]string, 0, len(addrs))
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		endpoints = append(endpoints, a)
	}
	slices.Sort(endpoints)
	return &Registry{endpoints: endpoints}
}

// Endpoints returns a copy of the endpoints in iteration order.
func (r *Registry) Endpoints() []string {
	return slices.Clone(r.endpoints)
}

// Len returns the number of endpoints.
func (r *Registry) Len() int {
	return len(r.endpoints)
}

// Contains reports whether endpoint is registered.
func (r *Registry) Contains(endpoint string) bool {
	_, found := slices.BinarySearch(r.endpoints, endpoint)
	return found
}

// Index returns the position of endpoint in iteration order, or -1.
func (r *Registry) Index(endpoint string) int {
	i, found := slices.BinarySearch(r.endpoints, endpoint)
	if !found {
		return -1
	}
	return i
}
