// Package paths derives the deterministic per-fingerprint scratch files a
// Worker reads and writes, and rejects glob-like paths the way the
// teacher's scanner rejects non-literal entries it cannot safely treat as
// a single writable file.
package paths

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/defdo-dev/tailwindport/internal/fingerprint"
)

// scratchDirName is the fixed sub-directory under the scratch root, kept
// for parity with spec.md §6's persisted state layout
// (R/tailwind_port/{content,input,output}_<F>.*).
const scratchDirName = "tailwind_port"

// WorkPaths are the absolute, non-glob paths a single Worker uses.
type WorkPaths struct {
	Content string // overwritten before every compile
	Input   string // CSS stub, written once
	Output  string // compiler output; mtime is the sync signal
}

// Derive computes the WorkPaths for fp under scratchRoot. scratchRoot must
// already be an absolute path (callers get this from Config).
func Derive(scratchRoot string, fp fingerprint.Digest) WorkPaths {
	dir := filepath.Join(scratchRoot, scratchDirName)
	f := fp.String()
	return WorkPaths{
		Content: filepath.Join(dir, "content_"+f+".html"),
		Input:   filepath.Join(dir, "input_"+f+".css"),
		Output:  filepath.Join(dir, "output_"+f+".css"),
	}
}

// stubInput is the minimal valid Tailwind entry stylesheet written once
// per Worker.
const stubInput = "@tailwind base;\n@tailwind components;\n@tailwind utilities;\n"

// Ensure creates the parent directory and writes the input stub if it does
// not already exist. It is idempotent — safe to call on every Worker spawn.
func Ensure(wp WorkPaths) error {
	dir := filepath.Dir(wp.Input)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("paths: ensure dir %s: %w", dir, err)
	}
	if _, err := os.Stat(wp.Input); os.IsNotExist(err) {
		if err := os.WriteFile(wp.Input, []byte(stubInput), 0o644); err != nil {
			return fmt.Errorf("paths: write input stub: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("paths: stat input stub: %w", err)
	}
	return nil
}

// RejectGlob returns an error if p looks like a glob pattern — WorkPaths
// invariant: "paths never contain glob wildcards" (spec.md §3), and the
// reference resolution of the Open Question in §9 ("content path is a
// glob" is rejected as non-writable).
func RejectGlob(p string) error {
	if !doublestar.ValidatePattern(p) {
		return fmt.Errorf("paths: %q is not a valid path pattern", p)
	}
	if containsGlobMeta(p) {
		return fmt.Errorf("paths: %q contains glob wildcards, which WorkPaths cannot treat as a single writable file", p)
	}
	return nil
}

// containsGlobMeta reports whether s contains any doublestar/glob
// metacharacter. Ported from the teacher's scanner.containsGlob, used
// there to recognize patterns worth walking; here the same recognition is
// used to reject them.
func containsGlobMeta(s string) bool {
	for _, c := range s {
		switch c {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}
