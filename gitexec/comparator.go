// Package gitexec implements branch comparison over the git executable.
//
// The package deliberately leaves history walking and textual diffing to
// git itself; it shells out, parses, and applies safety limits. Every call
// that reaches the backend takes a context and may block on repository I/O.
package gitexec

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Comparator computes commit and diff differences between a source and a
// target repository. Source and target may be the same repository.
type Comparator struct {
	source *Repo
	target *Repo
	log    *slog.Logger
}

// ComparatorOption configures a Comparator.
type ComparatorOption func(*Comparator)

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) ComparatorOption {
	return func(c *Comparator) { c.log = l }
}

// NewComparator creates a comparator over the given repository pair.
func NewComparator(source, target *Repo, opts ...ComparatorOption) *Comparator {
	c := &Comparator{source: source, target: target, log: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// EnsureSourceRef makes the source branch's objects reachable from the
// target repository. A no-op for same-repository comparisons; otherwise it
// fetches the branch into a scratch ref under refs/branchsnap/.
func (c *Comparator) EnsureSourceRef(ctx context.Context, sourceBranch string) error {
	if c.source.path == c.target.path {
		return nil
	}
	refspec := "+refs/heads/" + sourceBranch + ":refs/branchsnap/source/" + sourceBranch
	if _, err := run(ctx, c.target.path, "fetch", "--no-tags", c.source.path, refspec); err != nil {
		return fmt.Errorf("ensure source ref %s: %w", sourceBranch, err)
	}
	return nil
}

// UniqueCommits returns the commits reachable from sourceSHA but not from
// targetBranch, in git's own (reverse chronological) order. Callers needing
// a defined order must sort.
func (c *Comparator) UniqueCommits(ctx context.Context, targetBranch, sourceSHA string) ([]Commit, error) {
	if sourceSHA == "" {
		return nil, nil
	}
	out, err := run(ctx, c.target.path, "log", "--format="+commitFormat, targetBranch+".."+sourceSHA)
	if err != nil {
		return nil, fmt.Errorf("unique commits %s..%s: %w", targetBranch, shortSHA(sourceSHA), err)
	}
	return parseCommits(out), nil
}

// Diff computes the merge-base diff between targetBranch and sourceSHA under
// the given safety limits. Truncation is reported through Compared.Overflow
// and the "+" real-size marker, never as an error.
func (c *Comparator) Diff(ctx context.Context, targetBranch, sourceSHA string, limits SafetyLimits, opts DiffOptions) (*Compared, error) {
	if sourceSHA == "" {
		return &Compared{RealSize: "0"}, nil
	}

	countOut, err := run(ctx, c.target.path, "rev-list", "--count", targetBranch+".."+sourceSHA)
	if err != nil {
		return nil, fmt.Errorf("diff commit count: %w", err)
	}
	commitCount, _ := strconv.Atoi(strings.TrimSpace(string(countOut)))

	args := []string{"diff", "--no-color", "-M"}
	if opts.IgnoreWhitespace {
		args = append(args, "-w")
	}
	args = append(args, targetBranch+"..."+sourceSHA)

	out, err := run(ctx, c.target.path, args...)
	if err != nil {
		return nil, fmt.Errorf("diff %s...%s: %w", targetBranch, shortSHA(sourceSHA), err)
	}

	files := parseDiff(out)
	total := len(files)
	overflow := limits.MaxCommits > 0 && commitCount > limits.MaxCommits

	if limits.MaxFiles > 0 && len(files) > limits.MaxFiles {
		files = files[:limits.MaxFiles]
		overflow = true
	}
	if limits.MaxLines > 0 {
		files, overflow = applyLineBudget(files, limits.MaxLines, overflow)
	}

	realSize := strconv.Itoa(total)
	if overflow {
		realSize += "+"
	}

	c.log.Debug("gitexec: diff computed",
		"target", targetBranch, "source", shortSHA(sourceSHA),
		"files", len(files), "real_size", realSize, "overflow", overflow)

	return &Compared{Overflow: overflow, RealSize: realSize, Diffs: files}, nil
}

// applyLineBudget enforces the total and per-file line limits. A single file
// over the whole budget keeps its entry with the patch body dropped; once
// the cumulative budget is spent the remaining files are cut entirely.
func applyLineBudget(files []FileDiff, maxLines int, overflow bool) ([]FileDiff, bool) {
	budget := maxLines
	for i := range files {
		if files[i].Lines > maxLines {
			files[i].Patch = ""
			files[i].TooLarge = true
			overflow = true
			continue
		}
		if files[i].Lines > budget {
			files = files[:i]
			return files, true
		}
		budget -= files[i].Lines
	}
	return files, overflow
}

// MergeBase returns the nearest common ancestor of sourceSHA and
// targetBranch, or "" when they share no history.
func (c *Comparator) MergeBase(ctx context.Context, sourceSHA, targetBranch string) (string, error) {
	if sourceSHA == "" {
		return "", nil
	}
	out, stderr, code, err := runExit(ctx, c.target.path, "merge-base", sourceSHA, targetBranch)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	switch {
	case code == 0:
		return strings.TrimSpace(string(out)), nil
	case code == 1 && strings.TrimSpace(stderr) == "":
		return "", nil
	default:
		return "", fmt.Errorf("merge base: %w", classify(fmt.Errorf("git exited %d", code), stderr))
	}
}

func shortSHA(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
