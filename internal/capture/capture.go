// Package capture turns "compile this content with this Worker" into
// "bytes of produced CSS" by writing the request payload and polling the
// Worker's output file mtime, since the Tailwind CLI does not mark
// per-build boundaries on stdout reliably (spec.md §9).
package capture

import (
	"fmt"
	"os"
	"time"

	"github.com/defdo-dev/tailwindport/internal/worker"
)

// Outcome tags a capture result the way spec.md §4.D's three-way return
// does: ok (fresh output observed), degraded (timeout or missing output
// path, partial/no CSS), or error (the content file could not be written).
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeDegraded
	OutcomeError
)

// DegradeReason explains why an Outcome is Degraded.
type DegradeReason string

const (
	ReasonNone          DegradeReason = ""
	ReasonTimeout       DegradeReason = "timeout"
	ReasonMissingOutput DegradeReason = "missing_output_path"
)

// Result is the outcome of a single capture attempt.
type Result struct {
	Outcome Outcome
	CSS     string
	Mtime   time.Time
	Reason  DegradeReason
	Err     error
}

// DefaultTimeout matches spec.md §4.D's normative default.
const DefaultTimeout = 5 * time.Second

// pollInterval matches spec.md §4.D step 3's "~75 ms" retry cadence.
const pollInterval = 75 * time.Millisecond

// Capture writes content to w's content file, then polls w's output file
// until its mtime advances past the pre-capture value or timeout elapses.
func Capture(w *worker.Worker, content string, timeout time.Duration) Result {
	wp := w.Paths()
	if timeout <= 0 {
		// spec.md §8: compile_timeout_ms = 0 yields degraded immediately,
		// with no polling at all.
		return Result{Outcome: OutcomeDegraded, Reason: ReasonTimeout}
	}
	if wp.Output == "" {
		return Result{Outcome: OutcomeDegraded, Reason: ReasonMissingOutput}
	}

	previousMtime, hadPrevious := w.LastOutputMtime()

	if err := os.WriteFile(wp.Content, []byte(content), 0o644); err != nil {
		return Result{Outcome: OutcomeError, Err: fmt.Errorf("capture: write content: %w", err)}
	}

	deadline := time.Now().Add(timeout)
	for {
		if css, mtime, ok := tryRead(wp.Output, previousMtime, hadPrevious); ok {
			return Result{Outcome: OutcomeOK, CSS: css, Mtime: mtime}
		}
		if time.Now().After(deadline) {
			break
		}
		time.Sleep(pollInterval)
	}

	// Deadline elapsed: final best-effort read, per spec.md §4.D step 4.
	if css, mtime, ok := tryRead(wp.Output, previousMtime, hadPrevious); ok {
		return Result{Outcome: OutcomeDegraded, CSS: css, Mtime: mtime, Reason: ReasonTimeout}
	}
	if info, err := os.Stat(wp.Output); err == nil {
		b, readErr := os.ReadFile(wp.Output)
		if readErr == nil {
			return Result{Outcome: OutcomeDegraded, CSS: string(b), Mtime: info.ModTime(), Reason: ReasonTimeout}
		}
	}
	return Result{Outcome: OutcomeDegraded, Reason: ReasonTimeout}
}

// tryRead stats path and, if it exists with an mtime newer than previous
// (or there was no previous mtime at all — first-ever compile on this
// Worker accepts any present file), reads and returns its contents.
func tryRead(path string, previous time.Time, hadPrevious bool) (css string, mtime time.Time, ok bool) {
	info, err := os.Stat(path)
	if err != nil {
		return "", time.Time{}, false
	}
	if hadPrevious && !info.ModTime().After(previous) {
		return "", time.Time{}, false
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", time.Time{}, false
	}
	return string(b), info.ModTime(), true
}
