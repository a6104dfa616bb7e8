package snapshot

import "fmt"

// State records how far a snapshot's collection got.
type State string

// Live states — the only values current logic writes.
const (
	// StateEmpty is the initial state, and the final one when the source
	// side has no unique commits.
	StateEmpty State = "empty"
	// StateCollected means diffs were collected, possibly truncated.
	StateCollected State = "collected"
	// StateOverflow means the comparison hit a safety limit and produced no
	// storable diffs.
	StateOverflow State = "overflow"
)

// Legacy states found in rows written by older versions. They decode without
// error but are never produced by the encoder or the collect protocol.
const (
	StateTimeout                 State = "timeout"
	StateOverflowCommitsSafeSize State = "overflow_commits_safe_size"
	StateOverflowDiffFilesLimit  State = "overflow_diff_files_limit"
	StateOverflowDiffLinesLimit  State = "overflow_diff_lines_limit"
)

// ParseState decodes a stored state value. The empty string (legacy NULL
// column) decodes to StateEmpty; anything outside the live and legacy sets
// is an error.
func ParseState(s string) (State, error) {
	switch State(s) {
	case "":
		return StateEmpty, nil
	case StateEmpty, StateCollected, StateOverflow,
		StateTimeout, StateOverflowCommitsSafeSize,
		StateOverflowDiffFilesLimit, StateOverflowDiffLinesLimit:
		return State(s), nil
	}
	return "", fmt.Errorf("snapshot: unknown state %q", s)
}

// Live reports whether s is a state current logic may write.
func (s State) Live() bool {
	switch s {
	case StateEmpty, StateCollected, StateOverflow:
		return true
	}
	return false
}
