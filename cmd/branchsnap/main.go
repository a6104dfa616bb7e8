// Command branchsnap runs a one-shot branch comparison and prints the
// collected snapshot as JSON. State lives in the given database, so a later
// run against the same file can recollect or inspect it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	_ "modernc.org/sqlite"

	"github.com/branchsnap/branchsnap/compare"
	"github.com/branchsnap/branchsnap/dbopen"
	"github.com/branchsnap/branchsnap/gitexec"
)

func main() {
	var (
		dbPath       = flag.String("db", "branchsnap.db", "SQLite database file")
		repoRoot     = flag.String("repo-root", ".", "directory repository paths are resolved under")
		sourceRepo   = flag.String("source-repo", "", "source repository (relative to -repo-root)")
		targetRepo   = flag.String("target-repo", "", "target repository (defaults to -source-repo)")
		sourceBranch = flag.String("source", "", "source branch")
		targetBranch = flag.String("target", "", "target branch")
		withDiffs    = flag.Bool("diffs", false, "include file diffs in the output")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	ctx := context.Background()

	db, err := dbopen.Open(*dbPath, dbopen.WithMkdirAll())
	if err != nil {
		fatal(err)
	}
	defer db.Close()

	svc := compare.New(db, *repoRoot, compare.WithLogger(logger))
	if err := svc.Init(ctx); err != nil {
		fatal(err)
	}

	req, snap, err := svc.Create(ctx, compare.CreateParams{
		SourceRepo:   *sourceRepo,
		TargetRepo:   *targetRepo,
		SourceBranch: *sourceBranch,
		TargetBranch: *targetBranch,
	})
	if err != nil {
		fatal(err)
	}

	out := map[string]any{
		"request_id":      req.ID,
		"snapshot_id":     snap.ID,
		"state":           string(snap.State),
		"real_size":       snap.RealSize,
		"size":            snap.Size(ctx),
		"base_commit_sha": snap.BaseCommitSHA,
		"commits":         snap.Commits(),
	}
	if *withDiffs {
		diffs, err := snap.Diffs(ctx, gitexec.DiffOptions{})
		if err != nil {
			fatal(err)
		}
		out["diffs"] = diffs
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(out)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "branchsnap:", err)
	os.Exit(1)
}
