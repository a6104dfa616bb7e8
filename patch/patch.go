// Package patch renders unified patches in pure Go via go-difflib. It backs
// the on-demand single-file diff view for snapshots whose stored patch body
// was dropped by the safety limits.
package patch

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Options controls patch generation.
type Options struct {
	// Context is the number of context lines per hunk. 0 means 3.
	Context int
	// MaxBytes guards against diffing huge blobs (old+new). When exceeded a
	// placeholder patch is returned with oversize=true. 0 means no limit.
	MaxBytes int
}

// Unified renders a classic unified patch (---/+++ headers, @@ hunks) for
// oldContent to newContent.
func Unified(oldName, newName string, oldContent, newContent []byte, opt Options) (body string, oversize bool) {
	if opt.MaxBytes > 0 && len(oldContent)+len(newContent) > opt.MaxBytes {
		return omitted(oldName, newName), true
	}

	ctx := opt.Context
	if ctx <= 0 {
		ctx = 3
	}
	if oldName == "" {
		oldName = "/dev/null"
	}
	if newName == "" {
		newName = "/dev/null"
	}

	diff := difflib.UnifiedDiff{
		A:        splitKeepNL(string(oldContent)),
		B:        splitKeepNL(string(newContent)),
		FromFile: oldName,
		ToFile:   newName,
		Context:  ctx,
	}
	s, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return omitted(oldName, newName), false
	}
	return s, false
}

// splitKeepNL splits into lines with their trailing newlines kept, which is
// what difflib expects for clean hunks.
func splitKeepNL(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.SplitAfter(s, "\n")
}

func omitted(oldName, newName string) string {
	return fmt.Sprintf("--- %s\n+++ %s\n@@ diff omitted (oversize) @@\n", oldName, newName)
}
