// Package compare is the owning layer for branch-comparison snapshots: it
// persists comparison requests, wires the git comparator for each request's
// repository pair, and drives the snapshot collect protocol.
package compare

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/branchsnap/branchsnap/events"
	"github.com/branchsnap/branchsnap/gitexec"
	"github.com/branchsnap/branchsnap/idgen"
	"github.com/branchsnap/branchsnap/patch"
	"github.com/branchsnap/branchsnap/snapshot"
)

// Service orchestrates comparison requests and their snapshots.
type Service struct {
	reqs   *requestStore
	snaps  *snapshot.Store
	events *events.Logger
	logger *slog.Logger

	repoRoot string
	newID    idgen.Generator
}

// Option configures a Service.
type Option func(*Service)

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithEvents attaches a lifecycle event logger.
func WithEvents(l *events.Logger) Option {
	return func(s *Service) { s.events = l }
}

// New creates a Service over db. Repository paths in requests are resolved
// under repoRoot and may not escape it. Call Init once at startup.
func New(db *sql.DB, repoRoot string, opts ...Option) *Service {
	s := &Service{
		reqs:     &requestStore{db: db},
		snaps:    snapshot.NewStore(db),
		logger:   slog.Default(),
		repoRoot: filepath.Clean(repoRoot),
		newID:    idgen.Request,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Init creates the request and snapshot tables (and the event table when an
// event logger is attached).
func (s *Service) Init(ctx context.Context) error {
	if err := s.reqs.init(ctx); err != nil {
		return err
	}
	if err := s.snaps.Init(ctx); err != nil {
		return err
	}
	if s.events != nil {
		return s.events.Init(ctx)
	}
	return nil
}

// CreateParams describes a new comparison request.
type CreateParams struct {
	SourceRepo   string `json:"source_repo"`
	TargetRepo   string `json:"target_repo"`
	SourceBranch string `json:"source_branch"`
	TargetBranch string `json:"target_branch"`
}

func (p *CreateParams) validate() error {
	if p.SourceRepo == "" || p.SourceBranch == "" || p.TargetBranch == "" {
		return fmt.Errorf("%w: source_repo, source_branch and target_branch are required", ErrInvalidInput)
	}
	if p.TargetRepo == "" {
		p.TargetRepo = p.SourceRepo
	}
	return nil
}

// Create persists a new comparison request and synchronously runs the
// collect protocol for its first snapshot. A collect failure still leaves
// the request and its partially collected snapshot behind: re-invoking the
// protocol via Recollect repairs it.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Request, *snapshot.Snapshot, error) {
	if err := p.validate(); err != nil {
		return nil, nil, err
	}

	req := &Request{
		ID:           s.newID(),
		SourceRepo:   p.SourceRepo,
		TargetRepo:   p.TargetRepo,
		SourceBranch: p.SourceBranch,
		TargetBranch: p.TargetBranch,
	}
	owner, cmp, err := s.binding(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	if err := s.reqs.insert(ctx, req); err != nil {
		return nil, nil, err
	}

	snap := snapshot.New(s.snaps, cmp, owner)
	if err := s.snaps.Insert(ctx, snap); err != nil {
		return nil, nil, err
	}

	s.logEvent(ctx, req.ID, snap.ID, "collect_started", "", "")
	if err := snap.Collect(ctx); err != nil {
		s.logEvent(ctx, req.ID, snap.ID, "collect_failed", string(snap.State), err.Error())
		return req, snap, err
	}
	s.logEvent(ctx, req.ID, snap.ID, "collect_finished", string(snap.State), snap.RealSize)

	s.logger.Info("comparison collected",
		"request_id", req.ID, "snapshot_id", snap.ID,
		"state", string(snap.State), "real_size", snap.RealSize)
	return req, snap, nil
}

// Recollect re-runs the full collect protocol for a request's latest
// snapshot, mutating the same row. It also repairs a request whose snapshot
// row went missing by creating a fresh one.
func (s *Service) Recollect(ctx context.Context, requestID string) (*snapshot.Snapshot, error) {
	req, err := s.reqs.get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, ErrNotFound
	}

	owner, cmp, err := s.binding(ctx, req)
	if err != nil {
		return nil, err
	}

	snap, err := s.snaps.Latest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		snap = snapshot.New(s.snaps, cmp, owner)
		if err := s.snaps.Insert(ctx, snap); err != nil {
			return nil, err
		}
	} else {
		snap.Bind(s.snaps, cmp, owner)
	}

	if err := snap.Collect(ctx); err != nil {
		s.logEvent(ctx, req.ID, snap.ID, "collect_failed", string(snap.State), err.Error())
		return snap, err
	}
	s.logEvent(ctx, req.ID, snap.ID, "recollected", string(snap.State), snap.RealSize)
	return snap, nil
}

// Get returns a request and its latest snapshot, bound and ready for the
// derived views. The snapshot is nil when collection never produced a row.
func (s *Service) Get(ctx context.Context, requestID string) (*Request, *snapshot.Snapshot, error) {
	req, err := s.reqs.get(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	if req == nil {
		return nil, nil, ErrNotFound
	}
	snap, err := s.snaps.Latest(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	if snap != nil {
		owner, cmp, bindErr := s.binding(ctx, req)
		if bindErr != nil {
			return nil, nil, bindErr
		}
		snap.Bind(s.snaps, cmp, owner)
	}
	return req, snap, nil
}

// List returns every comparison request, newest first.
func (s *Service) List(ctx context.Context) ([]Request, error) {
	return s.reqs.list(ctx)
}

// Delete destroys a request and every snapshot it owns.
func (s *Service) Delete(ctx context.Context, requestID string) error {
	snap, err := s.snaps.Latest(ctx, requestID)
	if err != nil {
		return err
	}
	if err := s.snaps.DeleteByRequest(ctx, requestID); err != nil {
		return err
	}
	found, err := s.reqs.delete(ctx, requestID)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	snapID := ""
	if snap != nil {
		snapID = snap.ID
	}
	s.logEvent(ctx, requestID, snapID, "destroyed", "", "")
	return nil
}

// FileDiff renders the unified diff of one file between a snapshot's base
// and its frozen head, recomputed from blob contents. It serves files whose
// stored patch body was dropped by the safety limits.
func (s *Service) FileDiff(ctx context.Context, requestID, path string) (string, error) {
	if path == "" || strings.Contains(path, "..") {
		return "", fmt.Errorf("%w: bad file path", ErrInvalidInput)
	}
	req, snap, err := s.Get(ctx, requestID)
	if err != nil {
		return "", err
	}
	if snap == nil || snap.LastCommit() == nil {
		return "", fmt.Errorf("%w: no collected snapshot", ErrNotFound)
	}

	targetPath, err := s.resolveRepoPath(req.TargetRepo)
	if err != nil {
		return "", err
	}
	repo, err := gitexec.OpenRepo(ctx, targetPath)
	if err != nil {
		return "", err
	}

	base := snap.BaseCommitSHA
	if base == "" {
		base = req.TargetBranch
	}
	oldContent, err := repo.FileAt(ctx, base, path)
	if err != nil {
		return "", err
	}
	newContent, err := repo.FileAt(ctx, snap.LastCommit().SHA, path)
	if err != nil {
		return "", err
	}
	if oldContent == nil && newContent == nil {
		return "", fmt.Errorf("%w: file %s not present on either side", ErrNotFound, path)
	}

	oldName, newName := "a/"+path, "b/"+path
	if oldContent == nil {
		oldName = ""
	}
	if newContent == nil {
		newName = ""
	}
	body, _ := patch.Unified(oldName, newName, oldContent, newContent, patch.Options{MaxBytes: 4 << 20})
	return body, nil
}

// Events returns a request's lifecycle events, oldest first. Nil when no
// event logger is attached.
func (s *Service) Events(ctx context.Context, requestID string, limit int) ([]events.Event, error) {
	if s.events == nil {
		return nil, nil
	}
	return s.events.ByRequest(ctx, requestID, limit)
}

// binding opens the request's repositories and builds its comparator.
func (s *Service) binding(ctx context.Context, req *Request) (snapshot.Owner, snapshot.Comparator, error) {
	sourcePath, err := s.resolveRepoPath(req.SourceRepo)
	if err != nil {
		return snapshot.Owner{}, nil, err
	}
	targetPath, err := s.resolveRepoPath(req.TargetRepo)
	if err != nil {
		return snapshot.Owner{}, nil, err
	}

	sourceRepo, err := gitexec.OpenRepo(ctx, sourcePath)
	if err != nil {
		return snapshot.Owner{}, nil, err
	}
	targetRepo := sourceRepo
	if targetPath != sourcePath {
		targetRepo, err = gitexec.OpenRepo(ctx, targetPath)
		if err != nil {
			return snapshot.Owner{}, nil, err
		}
	}

	owner := snapshot.Owner{
		RequestID:    req.ID,
		SourceBranch: req.SourceBranch,
		TargetBranch: req.TargetBranch,
		SourceRepo:   sourceRepo,
		TargetRepo:   targetRepo,
	}
	cmp := gitexec.NewComparator(sourceRepo, targetRepo, gitexec.WithLogger(s.logger))
	return owner, cmp, nil
}

// resolveRepoPath joins a request-supplied repo path onto the repo root and
// rejects escapes.
func (s *Service) resolveRepoPath(p string) (string, error) {
	joined := filepath.Clean(filepath.Join(s.repoRoot, p))
	if joined != s.repoRoot && !strings.HasPrefix(joined, s.repoRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrRepoOutsideRoot, p)
	}
	return joined, nil
}

func (s *Service) logEvent(ctx context.Context, requestID, snapshotID, eventType, state, detail string) {
	if s.events == nil {
		return
	}
	s.events.Log(ctx, events.Event{
		RequestID:  requestID,
		SnapshotID: snapshotID,
		Type:       eventType,
		State:      state,
		Detail:     detail,
	})
}
