// Package topic defines the fixed catalog of notification categories valid
// across all services.
package topic

import "strings"

// The catalog. Topic filters stored on subscriptions and supplied at
// delivery time may only contain these values.
const (
	Fills         = "fills"
	RiskEvents    = "risk_events"
	Statements    = "statements"
	Security      = "security"
	Announcements = "announcements"
)

var catalog = map[string]struct{}{
	Fills:         {},
	RiskEvents:    {},
	Statements:    {},
	Security:      {},
	Announcements: {},
}

// All returns every topic in the catalog.
func All() []string {
	return []string{Fills, RiskEvents, Statements, Security, Announcements}
}

// Known reports whether t is a catalog topic.
func Known(t string) bool {
	_, ok := catalog[t]
	return ok
}

// Normalize filters candidates down to recognized catalog topics,
// lowercased, trimmed and deduplicated, preserving first-seen order.
// Unrecognized values are dropped silently: unknown topics are
// forward-compat noise, not a caller mistake. An empty result means
// "no filter, deliver all topics".
func Normalize(candidates []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		t := strings.ToLower(strings.TrimSpace(c))
		if !Known(t) {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
