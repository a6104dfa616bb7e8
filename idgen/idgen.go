// Package idgen provides the ID generation strategy for branchsnap entities.
//
// Every persisted row carries a UUIDv7-based identifier with a type prefix
// ("req_" for comparison requests, "snap_" for snapshots, "evt_" for event
// rows), making IDs self-describing in logs and time-sortable in indexes.
package idgen

import "github.com/google/uuid"

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator producing RFC 9562 UUID v7 strings:
// time-sortable and globally unique.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps gen and prepends a fixed prefix to every ID.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Default is the repository-wide default generator.
var Default Generator = UUIDv7()

// Request produces comparison-request IDs.
var Request = Prefixed("req_", Default)

// Snapshot produces snapshot IDs.
var Snapshot = Prefixed("snap_", Default)

// Event produces event-log IDs.
var Event = Prefixed("evt_", Default)
