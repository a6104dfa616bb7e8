package idgen_test

import (
	"strings"
	"testing"

	"github.com/branchsnap/branchsnap/idgen"
)

func TestPrefixes(t *testing.T) {
	cases := []struct {
		gen    idgen.Generator
		prefix string
	}{
		{idgen.Request, "req_"},
		{idgen.Snapshot, "snap_"},
		{idgen.Event, "evt_"},
	}
	for _, tc := range cases {
		id := tc.gen()
		if !strings.HasPrefix(id, tc.prefix) {
			t.Errorf("id %q missing prefix %q", id, tc.prefix)
		}
		if len(id) != len(tc.prefix)+36 {
			t.Errorf("id %q has unexpected length", id)
		}
	}
}

func TestUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		id := idgen.Default()
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestOrdered(t *testing.T) {
	// UUIDv7 identifiers sort by creation time, which the stores rely on
	// for tie-breaking.
	prev := idgen.Event()
	for i := 0; i < 100; i++ {
		next := idgen.Event()
		if next <= prev {
			t.Fatalf("ids not monotonic: %q then %q", prev, next)
		}
		prev = next
	}
}
