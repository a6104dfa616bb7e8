package compare_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/branchsnap/branchsnap/compare"
	"github.com/branchsnap/branchsnap/dbopen"
	"github.com/branchsnap/branchsnap/events"
	"github.com/branchsnap/branchsnap/snapshot"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

func runGit(t *testing.T, dir string, env []string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(append(os.Environ(),
		"GIT_AUTHOR_NAME=Test Author",
		"GIT_AUTHOR_EMAIL=author@example.com",
		"GIT_COMMITTER_NAME=Test Author",
		"GIT_COMMITTER_EMAIL=author@example.com",
	), env...)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
}

var commitClock int64 = 1700000000

func commitFile(t *testing.T, dir, path, content, msg string) {
	t.Helper()
	full := filepath.Join(dir, path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	commitClock += 60
	date := fmt.Sprintf("%d +0000", commitClock)
	runGit(t, dir, nil, "add", path)
	runGit(t, dir, []string{"GIT_AUTHOR_DATE=" + date, "GIT_COMMITTER_DATE=" + date},
		"commit", "-q", "-m", msg)
}

// seedRepoRoot creates a repo root holding one repository named "project"
// with a main branch and a feature branch two commits ahead.
func seedRepoRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "project")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, nil, "init", "-q")
	runGit(t, dir, nil, "checkout", "-q", "-b", "main")
	commitFile(t, dir, "README.md", "hello\n", "initial")
	runGit(t, dir, nil, "checkout", "-q", "-b", "feature")
	commitFile(t, dir, "README.md", "hello world\n", "reword")
	commitFile(t, dir, "extra.txt", "more\n", "add extra")
	runGit(t, dir, nil, "checkout", "-q", "main")
	return root
}

func newService(t *testing.T, root string) *compare.Service {
	t.Helper()
	db := dbopen.OpenMemory(t)
	svc := compare.New(db, root, compare.WithEvents(events.NewLogger(db)))
	if err := svc.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	return svc
}

func createParams() compare.CreateParams {
	return compare.CreateParams{
		SourceRepo:   "project",
		SourceBranch: "feature",
		TargetBranch: "main",
	}
}

func TestCreateAndGet(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	svc := newService(t, seedRepoRoot(t))

	req, snap, err := svc.Create(ctx, createParams())
	if err != nil {
		t.Fatal(err)
	}
	if req.TargetRepo != "project" {
		t.Fatalf("target repo defaulted to %q", req.TargetRepo)
	}
	if snap.State != snapshot.StateCollected {
		t.Fatalf("state = %q, want collected", snap.State)
	}
	commits := snap.Commits()
	if len(commits) != 2 {
		t.Fatalf("got %d commits", len(commits))
	}
	if commits[0].Message != "add extra" || commits[1].Message != "reword" {
		t.Fatalf("commit order: %q, %q", commits[0].Message, commits[1].Message)
	}
	if snap.BaseCommitSHA == "" {
		t.Fatal("base commit not recorded")
	}

	gotReq, gotSnap, err := svc.Get(ctx, req.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gotReq.ID != req.ID || gotSnap == nil || gotSnap.ID != snap.ID {
		t.Fatalf("Get = %+v / %+v", gotReq, gotSnap)
	}
	if got := gotSnap.Size(ctx); got != 2 {
		t.Fatalf("Size = %d, want 2", got)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newService(t, t.TempDir())
	_, _, err := svc.Create(context.Background(), compare.CreateParams{SourceRepo: "project"})
	if !errors.Is(err, compare.ErrInvalidInput) {
		t.Fatalf("err = %v, want invalid input", err)
	}
}

func TestCreateRepoOutsideRoot(t *testing.T) {
	requireGit(t)
	svc := newService(t, seedRepoRoot(t))
	p := createParams()
	p.SourceRepo = "../elsewhere"
	_, _, err := svc.Create(context.Background(), p)
	if !errors.Is(err, compare.ErrRepoOutsideRoot) {
		t.Fatalf("err = %v, want repo outside root", err)
	}
}

func TestGetMissing(t *testing.T) {
	svc := newService(t, t.TempDir())
	_, _, err := svc.Get(context.Background(), "req_nope")
	if !errors.Is(err, compare.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestRecollectPicksUpNewCommits(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	root := seedRepoRoot(t)
	svc := newService(t, root)

	req, snap, err := svc.Create(ctx, createParams())
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Commits()) != 2 {
		t.Fatalf("initial commits = %d", len(snap.Commits()))
	}

	dir := filepath.Join(root, "project")
	runGit(t, dir, nil, "checkout", "-q", "feature")
	commitFile(t, dir, "third.txt", "third\n", "add third")
	runGit(t, dir, nil, "checkout", "-q", "main")

	re, err := svc.Recollect(ctx, req.ID)
	if err != nil {
		t.Fatal(err)
	}
	if re.ID != snap.ID {
		t.Fatalf("recollect created a new row: %s vs %s", re.ID, snap.ID)
	}
	commits := re.Commits()
	if len(commits) != 3 || commits[0].Message != "add third" {
		t.Fatalf("recollected commits = %d, head %q", len(commits), commits[0].Message)
	}
}

func TestDelete(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	svc := newService(t, seedRepoRoot(t))

	req, _, err := svc.Create(ctx, createParams())
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, req.ID); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.Get(ctx, req.ID); !errors.Is(err, compare.ErrNotFound) {
		t.Fatalf("Get after delete = %v", err)
	}
	if err := svc.Delete(ctx, req.ID); !errors.Is(err, compare.ErrNotFound) {
		t.Fatalf("second delete = %v", err)
	}
}

func TestFileDiff(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	svc := newService(t, seedRepoRoot(t))

	req, _, err := svc.Create(ctx, createParams())
	if err != nil {
		t.Fatal(err)
	}

	body, err := svc.FileDiff(ctx, req.ID, "README.md")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(body, "+hello world") || !strings.Contains(body, "-hello") {
		t.Fatalf("diff body = %q", body)
	}

	body, err = svc.FileDiff(ctx, req.ID, "extra.txt")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(body, "/dev/null") || !strings.Contains(body, "+more") {
		t.Fatalf("added-file diff = %q", body)
	}

	if _, err := svc.FileDiff(ctx, req.ID, "../escape"); !errors.Is(err, compare.ErrInvalidInput) {
		t.Fatalf("path traversal err = %v", err)
	}
	if _, err := svc.FileDiff(ctx, req.ID, ""); !errors.Is(err, compare.ErrInvalidInput) {
		t.Fatalf("empty path err = %v", err)
	}
	if _, err := svc.FileDiff(ctx, req.ID, "absent.txt"); !errors.Is(err, compare.ErrNotFound) {
		t.Fatalf("absent file err = %v", err)
	}
}

func TestEventsLogged(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	svc := newService(t, seedRepoRoot(t))

	req, _, err := svc.Create(ctx, createParams())
	if err != nil {
		t.Fatal(err)
	}

	evts, err := svc.Events(ctx, req.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(evts) != 2 {
		t.Fatalf("got %d events", len(evts))
	}
	if evts[0].Type != "collect_started" || evts[1].Type != "collect_finished" {
		t.Fatalf("event types: %q, %q", evts[0].Type, evts[1].Type)
	}
	if evts[1].State != "collected" {
		t.Fatalf("finish event state = %q", evts[1].State)
	}
}
