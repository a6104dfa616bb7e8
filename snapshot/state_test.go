package snapshot_test

import (
	"testing"

	"github.com/branchsnap/branchsnap/snapshot"
)

func TestParseStateLive(t *testing.T) {
	for _, s := range []string{"empty", "collected", "overflow"} {
		got, err := snapshot.ParseState(s)
		if err != nil {
			t.Fatalf("ParseState(%q): %v", s, err)
		}
		if !got.Live() {
			t.Errorf("ParseState(%q).Live() = false, want true", s)
		}
	}
}

func TestParseStateLegacy(t *testing.T) {
	legacy := []string{
		"timeout",
		"overflow_commits_safe_size",
		"overflow_diff_files_limit",
		"overflow_diff_lines_limit",
	}
	for _, s := range legacy {
		got, err := snapshot.ParseState(s)
		if err != nil {
			t.Fatalf("ParseState(%q): %v", s, err)
		}
		if got.Live() {
			t.Errorf("ParseState(%q).Live() = true, want false", s)
		}
	}
}

func TestParseStateEmptyString(t *testing.T) {
	got, err := snapshot.ParseState("")
	if err != nil {
		t.Fatal(err)
	}
	if got != snapshot.StateEmpty {
		t.Fatalf("got %q, want empty", got)
	}
}

func TestParseStateUnknown(t *testing.T) {
	if _, err := snapshot.ParseState("exploded"); err == nil {
		t.Fatal("expected error for unknown state")
	}
}
