package gitexec

import (
	"context"
	"fmt"
	"strings"
)

// commitFormat renders one commit per record: fields separated by the unit
// separator, records terminated by the record separator. Both bytes are
// illegal in ref names and vanishingly rare in commit messages.
const commitFormat = "%H%x1f%an%x1f%ae%x1f%at%x1f%s%x1e"

// Repo is a handle on a local git repository.
type Repo struct {
	path string
}

// OpenRepo validates that path is a git repository and returns a handle.
func OpenRepo(ctx context.Context, path string) (*Repo, error) {
	if _, err := run(ctx, path, "rev-parse", "--git-dir"); err != nil {
		return nil, fmt.Errorf("open repo %s: %w", path, err)
	}
	return &Repo{path: path}, nil
}

// Path returns the repository's working directory.
func (r *Repo) Path() string { return r.path }

// ResolveRef resolves a ref name to a commit SHA. A ref that does not exist
// yields "" with no error; only backend faults are errors.
func (r *Repo) ResolveRef(ctx context.Context, ref string) (string, error) {
	out, _, code, err := runExit(ctx, r.path, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if code != 0 {
		return "", nil
	}
	return strings.TrimSpace(string(out)), nil
}

// Commit looks up a single commit by SHA. An unknown SHA yields nil with no
// error.
func (r *Repo) Commit(ctx context.Context, sha string) (*Commit, error) {
	if sha == "" {
		return nil, nil
	}
	out, _, code, err := runExit(ctx, r.path, "show", "-s", "--format="+commitFormat, sha)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if code != 0 {
		return nil, nil
	}
	commits := parseCommits(out)
	if len(commits) == 0 {
		return nil, nil
	}
	return &commits[0], nil
}

// FileAt returns the content of path at the given revision. A path or
// revision that does not exist yields nil with no error.
func (r *Repo) FileAt(ctx context.Context, rev, path string) ([]byte, error) {
	out, _, code, err := runExit(ctx, r.path, "show", rev+":"+path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if code != 0 {
		return nil, nil
	}
	return out, nil
}
