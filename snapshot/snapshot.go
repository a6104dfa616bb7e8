// Package snapshot caches the result of comparing two divergent branches as
// an immutable, persisted record: the commits unique to the source side and
// the file diff between the two tips.
//
// Comparing live is expensive and the branch tips can move after the
// comparison is requested, so the result is captured once by the two-phase
// collect protocol and replayed from its encoded columns thereafter. The
// comparator and repository handles are injected; the package never reaches
// through an owning-record graph to find its backend.
package snapshot

import (
	"context"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/branchsnap/branchsnap/gitexec"
	"github.com/branchsnap/branchsnap/idgen"
)

// Repository is the backend handle the engine reads commits and refs from.
// Absence (unknown SHA, missing ref) is a nil or empty result, not an error.
type Repository interface {
	Commit(ctx context.Context, sha string) (*gitexec.Commit, error)
	ResolveRef(ctx context.Context, ref string) (string, error)
}

// Comparator computes the underlying comparison. gitexec.Comparator is the
// production implementation; tests substitute fakes.
type Comparator interface {
	EnsureSourceRef(ctx context.Context, sourceBranch string) error
	UniqueCommits(ctx context.Context, targetBranch, sourceSHA string) ([]gitexec.Commit, error)
	Diff(ctx context.Context, targetBranch, sourceSHA string, limits gitexec.SafetyLimits, opts gitexec.DiffOptions) (*gitexec.Compared, error)
	MergeBase(ctx context.Context, sourceSHA, targetBranch string) (string, error)
}

// Owner identifies the comparison request a snapshot belongs to: the branch
// pair and the repositories they live in. The snapshot does not own it but
// cannot collect without it.
type Owner struct {
	RequestID    string
	SourceBranch string
	TargetBranch string
	SourceRepo   Repository
	TargetRepo   Repository
}

// Snapshot is the persisted comparison result. The exported fields mirror
// the snapshots table; derived views are memoized per instance and a given
// instance is not safe for unsynchronized concurrent first access — a race
// redoes pure work, it never corrupts the row.
type Snapshot struct {
	ID             string
	RequestID      string
	State          State
	EncodedCommits []byte
	EncodedDiffs   []byte
	RealSize       string
	BaseCommitSHA  string
	CreatedAt      time.Time
	UpdatedAt      time.Time

	owner Owner
	cmp   Comparator
	store *Store

	commitsMemo *[]gitexec.Commit
	diffsMemo   *[]gitexec.FileDiff
	wsTipSHA    string
	wsMemo      []gitexec.FileDiff
}

// New creates an unpersisted snapshot for owner, bound to its collaborators.
// Call Collect to run the collect protocol, which persists as it goes.
func New(store *Store, cmp Comparator, owner Owner) *Snapshot {
	return &Snapshot{
		ID:        idgen.Snapshot(),
		RequestID: owner.RequestID,
		State:     StateEmpty,
		owner:     owner,
		cmp:       cmp,
		store:     store,
	}
}

// Bind attaches collaborators to a snapshot loaded from storage. Collect and
// the live/lookup views require it; the decoded views do not.
func (s *Snapshot) Bind(store *Store, cmp Comparator, owner Owner) {
	s.store = store
	s.cmp = cmp
	s.owner = owner
}

// Collect runs the two-phase collect protocol: commit collection, then diff
// collection, each independently persisted. The phases are deliberately not
// one transaction — an interruption between them leaves a detectable,
// repairable partial row (commits present, state still empty), and re-running
// Collect repairs it. A backend error aborts the current phase without
// touching fields an earlier phase already persisted.
func (s *Snapshot) Collect(ctx context.Context) error {
	if err := s.cmp.EnsureSourceRef(ctx, s.owner.SourceBranch); err != nil {
		return err
	}
	sourceSHA, err := s.CurrentSourceSHA(ctx)
	if err != nil {
		return err
	}
	if err := s.collectCommits(ctx, sourceSHA); err != nil {
		return err
	}
	return s.collectDiffs(ctx, sourceSHA)
}

// collectCommits is phase A: fetch the commits unique to the source side,
// order them newest-first, encode, persist.
func (s *Snapshot) collectCommits(ctx context.Context, sourceSHA string) error {
	commits, err := s.cmp.UniqueCommits(ctx, s.owner.TargetBranch, sourceSHA)
	if err != nil {
		return err
	}
	if len(commits) > 0 {
		sort.SliceStable(commits, func(i, j int) bool {
			return commits[i].AuthoredAt.Before(commits[j].AuthoredAt)
		})
		slices.Reverse(commits)
	}
	encoded, err := EncodeCommits(commits)
	if err != nil {
		return err
	}
	s.EncodedCommits = encoded
	s.commitsMemo = nil
	return s.store.SaveCommits(ctx, s)
}

// collectDiffs is phase B. The step order below is load-bearing: stored rows
// and their readers depend on a non-empty (even truncated) diff sequence
// overriding an overflow state, so the collected assignment stays last.
func (s *Snapshot) collectDiffs(ctx context.Context, sourceSHA string) error {
	if len(s.Commits()) == 0 {
		s.State = StateEmpty
		encoded, err := EncodeDiffs(nil)
		if err != nil {
			return err
		}
		s.EncodedDiffs = encoded
		s.diffsMemo = nil
	} else {
		res, err := s.cmp.Diff(ctx, s.owner.TargetBranch, sourceSHA, gitexec.DefaultSafetyLimits(), gitexec.DiffOptions{})
		if err != nil {
			return err
		}
		if res.Overflow {
			s.State = StateOverflow
		}
		s.RealSize = res.RealSize
		if len(res.Diffs) > 0 {
			encoded, err := EncodeDiffs(res.Diffs)
			if err != nil {
				return err
			}
			s.EncodedDiffs = encoded
			s.diffsMemo = nil
			s.State = StateCollected
		}
	}

	base, err := s.cmp.MergeBase(ctx, sourceSHA, s.owner.TargetBranch)
	if err != nil {
		return err
	}
	s.BaseCommitSHA = base
	return s.store.SaveDiffs(ctx, s)
}

// Commits returns the decoded commit list, newest first. Memoized.
func (s *Snapshot) Commits() []gitexec.Commit {
	if s.commitsMemo == nil {
		decoded := DecodeCommits(s.EncodedCommits)
		s.commitsMemo = &decoded
	}
	return *s.commitsMemo
}

// Diffs returns the diff view. The default view decodes the persisted
// column and is memoized. With IgnoreWhitespace set it never reads the
// persisted column: the comparison runs live against the current source tip
// and the result is memoized per tip SHA, so a moved branch is recomputed
// rather than served stale.
func (s *Snapshot) Diffs(ctx context.Context, opts gitexec.DiffOptions) ([]gitexec.FileDiff, error) {
	if !opts.IgnoreWhitespace {
		if s.diffsMemo == nil {
			decoded := DecodeDiffs(s.EncodedDiffs)
			s.diffsMemo = &decoded
		}
		return *s.diffsMemo, nil
	}

	tip, err := s.CurrentSourceSHA(ctx)
	if err != nil {
		return nil, err
	}
	if tip == "" {
		return nil, nil
	}
	if tip == s.wsTipSHA {
		return s.wsMemo, nil
	}
	res, err := s.cmp.Diff(ctx, s.owner.TargetBranch, tip, gitexec.DefaultSafetyLimits(), opts)
	if err != nil {
		return nil, err
	}
	s.wsTipSHA = tip
	s.wsMemo = res.Diffs
	return s.wsMemo, nil
}

// Size returns the comparator-reported real size when present (the "N+"
// truncation marker is understood), falling back to the decoded diff count.
func (s *Snapshot) Size(ctx context.Context) int {
	if n, ok := parseRealSize(s.RealSize); ok {
		return n
	}
	diffs, _ := s.Diffs(ctx, gitexec.DiffOptions{})
	return len(diffs)
}

// LastCommit returns the newest commit: the head of the descending-ordered
// list. The chronologically inverted naming is part of the stored contract.
func (s *Snapshot) LastCommit() *gitexec.Commit {
	commits := s.Commits()
	if len(commits) == 0 {
		return nil
	}
	return &commits[0]
}

// FirstCommit returns the oldest commit: the tail of the list.
func (s *Snapshot) FirstCommit() *gitexec.Commit {
	commits := s.Commits()
	if len(commits) == 0 {
		return nil
	}
	return &commits[len(commits)-1]
}

// BaseCommit looks up the merge-base commit in the target repository, or
// nil when no base was recorded.
func (s *Snapshot) BaseCommit(ctx context.Context) (*gitexec.Commit, error) {
	if s.BaseCommitSHA == "" {
		return nil, nil
	}
	return s.owner.TargetRepo.Commit(ctx, s.BaseCommitSHA)
}

// CurrentSourceSHA resolves the current tip of the source branch — not the
// snapshot's frozen view. "" means the branch no longer resolves.
func (s *Snapshot) CurrentSourceSHA(ctx context.Context) (string, error) {
	return s.owner.SourceRepo.ResolveRef(ctx, s.owner.SourceBranch)
}

func parseRealSize(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(s, "+"))
	if err != nil {
		return 0, false
	}
	return n, true
}
