package gitexec

import "time"

// Commit is a single commit record as reported by the backend.
type Commit struct {
	SHA         string    `json:"sha"`
	AuthorName  string    `json:"author_name"`
	AuthorEmail string    `json:"author_email"`
	AuthoredAt  time.Time `json:"authored_at"`
	Message     string    `json:"message"`
}

// FileDiff is the diff of one file between two tips. Patch holds the unified
// hunks (no diff --git header). Lines reports the hunk line count even when
// the patch body was dropped for size, so callers can size a diff without
// its literal content.
type FileDiff struct {
	OldPath     string `json:"old_path"`
	NewPath     string `json:"new_path"`
	Patch       string `json:"patch,omitempty"`
	Lines       int    `json:"lines"`
	NewFile     bool   `json:"new_file,omitempty"`
	RenamedFile bool   `json:"renamed_file,omitempty"`
	DeletedFile bool   `json:"deleted_file,omitempty"`
	Binary      bool   `json:"binary,omitempty"`
	TooLarge    bool   `json:"too_large,omitempty"`
}

// Compared is the outcome of a diff collection. RealSize is the total file
// count before truncation, with a trailing "+" marker when Overflow is set.
type Compared struct {
	Overflow bool
	RealSize string
	Diffs    []FileDiff
}

// SafetyLimits bounds a diff collection. Exceeding any limit truncates the
// result and raises the overflow flag; it is never an error.
type SafetyLimits struct {
	MaxCommits int
	MaxFiles   int
	MaxLines   int
}

// DefaultSafetyLimits returns the fixed safety configuration every snapshot
// collection runs under.
func DefaultSafetyLimits() SafetyLimits {
	return SafetyLimits{MaxCommits: 100, MaxFiles: 100, MaxLines: 5000}
}

// DiffOptions adjusts how a comparison is computed.
type DiffOptions struct {
	// IgnoreWhitespace compares with whitespace changes suppressed (git -w).
	IgnoreWhitespace bool
}
