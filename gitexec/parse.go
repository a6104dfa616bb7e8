package gitexec

import (
	"strconv"
	"strings"
	"time"
)

const (
	fieldSep  = "\x1f"
	recordSep = "\x1e"
)

// parseCommits parses commitFormat output into commit records, preserving
// the order git printed them in.
func parseCommits(out []byte) []Commit {
	var commits []Commit
	for _, record := range strings.Split(string(out), recordSep) {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}
		fields := strings.SplitN(record, fieldSep, 5)
		if len(fields) != 5 {
			continue
		}
		unix, err := strconv.ParseInt(fields[3], 10, 64)
		if err != nil {
			continue
		}
		commits = append(commits, Commit{
			SHA:         fields[0],
			AuthorName:  fields[1],
			AuthorEmail: fields[2],
			AuthoredAt:  time.Unix(unix, 0).UTC(),
			Message:     fields[4],
		})
	}
	return commits
}

// parseDiff splits `git diff` output into per-file records. Paths come from
// the ---/+++ headers when present (rename and binary blocks carry them in
// their own header lines instead). Patch holds everything from the first
// hunk header onward.
func parseDiff(out []byte) []FileDiff {
	var (
		files   []FileDiff
		current *FileDiff
		patch   strings.Builder
		inHunks bool
	)

	flush := func() {
		if current == nil {
			return
		}
		current.Patch = patch.String()
		current.Lines = countLines(current.Patch)
		files = append(files, *current)
		current = nil
		patch.Reset()
		inHunks = false
	}

	for _, line := range strings.SplitAfter(string(out), "\n") {
		trimmed := strings.TrimSuffix(line, "\n")
		switch {
		case strings.HasPrefix(trimmed, "diff --git "):
			flush()
			old, neu := parseDiffHeader(trimmed)
			current = &FileDiff{OldPath: old, NewPath: neu}
		case current == nil:
			continue
		case inHunks:
			patch.WriteString(line)
		case strings.HasPrefix(trimmed, "@@"):
			inHunks = true
			patch.WriteString(line)
		case strings.HasPrefix(trimmed, "new file mode"):
			current.NewFile = true
			current.OldPath = ""
		case strings.HasPrefix(trimmed, "deleted file mode"):
			current.DeletedFile = true
			current.NewPath = ""
		case strings.HasPrefix(trimmed, "rename from "):
			current.RenamedFile = true
			current.OldPath = strings.TrimPrefix(trimmed, "rename from ")
		case strings.HasPrefix(trimmed, "rename to "):
			current.RenamedFile = true
			current.NewPath = strings.TrimPrefix(trimmed, "rename to ")
		case strings.HasPrefix(trimmed, "Binary files "):
			current.Binary = true
		case strings.HasPrefix(trimmed, "--- a/"):
			current.OldPath = strings.TrimPrefix(trimmed, "--- a/")
		case strings.HasPrefix(trimmed, "+++ b/"):
			current.NewPath = strings.TrimPrefix(trimmed, "+++ b/")
		}
	}
	flush()
	return files
}

// parseDiffHeader extracts old and new paths from a "diff --git a/X b/Y"
// line. Paths containing " b/" are resolved later by the ---/+++ headers.
func parseDiffHeader(line string) (oldPath, newPath string) {
	rest := strings.TrimPrefix(line, "diff --git ")
	idx := strings.Index(rest, " b/")
	if idx < 0 {
		return "", ""
	}
	return strings.TrimPrefix(rest[:idx], "a/"), rest[idx+len(" b/"):]
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}
