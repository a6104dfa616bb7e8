package gitexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// run executes git with the given arguments in dir and returns stdout.
// stderr is captured and folded into the classified error on failure.
func run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	out, stderr, code, err := runExit(ctx, dir, args...)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if code != 0 {
		return out, classify(fmt.Errorf("git exited %d", code), stderr)
	}
	return out, nil
}

// runExit executes git and reports the raw exit code instead of classifying
// it. Callers that treat a nonzero exit as "no value" (missing ref, no merge
// base) use this directly. err is non-nil only when the process never ran.
func runExit(ctx context.Context, dir string, args ...string) (out []byte, stderr string, code int, err error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	var stdout, errbuf bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &errbuf

	runErr := cmd.Run()
	out = stdout.Bytes()
	stderr = errbuf.String()
	if runErr == nil {
		return out, stderr, 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return out, stderr, exitErr.ExitCode(), nil
	}
	if ctx.Err() != nil {
		return out, stderr, -1, ctx.Err()
	}
	return out, stderr, -1, runErr
}

// classify maps a git failure onto the package error kinds. Unresolvable
// revisions surface as ErrRefResolutionFailed; everything else (missing
// binary, corrupt object store, cancelled context) is ErrBackendUnavailable.
func classify(err error, stderr string) error {
	msg := strings.TrimSpace(stderr)
	if isRefFailure(msg) {
		return fmt.Errorf("%w: %s", ErrRefResolutionFailed, msg)
	}
	if msg == "" {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return fmt.Errorf("%w: %v: %s", ErrBackendUnavailable, err, msg)
}

func isRefFailure(stderr string) bool {
	for _, marker := range []string{
		"unknown revision",
		"bad revision",
		"not a valid object name",
		"Not a valid object name",
		"ambiguous argument",
	} {
		if strings.Contains(stderr, marker) {
			return true
		}
	}
	return false
}
