package capture

import (
	"os"
	"testing"
	"time"

	"github.com/defdo-dev/tailwindport/internal/paths"
	"github.com/defdo-dev/tailwindport/internal/worker"
)

func fixtureWorker(t *testing.T) (*worker.Worker, paths.WorkPaths) {
	t.Helper()
	dir := t.TempDir()
	wp := paths.WorkPaths{
		Content: dir + "/content.html",
		Input:   dir + "/input.css",
		Output:  dir + "/output.css",
	}
	w := worker.New(worker.Config{Fingerprint: "test"}, wp, nil)
	return w, wp
}

func TestCaptureReadsFreshOutput(t *testing.T) {
	w, wp := fixtureWorker(t)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = os.WriteFile(wp.Output, []byte(".a{color:red}"), 0o644)
	}()

	res := Capture(w, "<div class=a>", 2*time.Second)
	if res.Outcome != OutcomeOK {
		t.Fatalf("Outcome = %v, want OutcomeOK (err=%v)", res.Outcome, res.Err)
	}
	if res.CSS != ".a{color:red}" {
		t.Errorf("CSS = %q, want .a{color:red}", res.CSS)
	}
}

func TestCaptureDegradesOnTimeout(t *testing.T) {
	w, _ := fixtureWorker(t)

	res := Capture(w, "<div>", 60*time.Millisecond)
	if res.Outcome != OutcomeDegraded {
		t.Fatalf("Outcome = %v, want OutcomeDegraded", res.Outcome)
	}
	if res.Reason != ReasonTimeout {
		t.Errorf("Reason = %q, want timeout", res.Reason)
	}
}

func TestCaptureZeroTimeoutDegradesImmediately(t *testing.T) {
	w, wp := fixtureWorker(t)
	if err := os.WriteFile(wp.Output, []byte(".a{}"), 0o644); err != nil {
		t.Fatalf("seed output: %v", err)
	}

	start := time.Now()
	res := Capture(w, "<div>", 0)
	elapsed := time.Since(start)

	if res.Outcome != OutcomeDegraded || res.Reason != ReasonTimeout {
		t.Fatalf("Outcome/Reason = %v/%q, want Degraded/timeout", res.Outcome, res.Reason)
	}
	if res.CSS != "" {
		t.Errorf("CSS = %q, want empty: a zero timeout must not poll or read output at all", res.CSS)
	}
	if elapsed > 30*time.Millisecond {
		t.Errorf("Capture with timeout=0 took %v, want an immediate return with no polling", elapsed)
	}
}

func TestCaptureDegradesOnMissingOutputPath(t *testing.T) {
	dir := t.TempDir()
	wp := paths.WorkPaths{Content: dir + "/content.html", Input: dir + "/input.css"}
	w := worker.New(worker.Config{Fingerprint: "test"}, wp, nil)

	res := Capture(w, "<div>", time.Second)
	if res.Outcome != OutcomeDegraded || res.Reason != ReasonMissingOutput {
		t.Errorf("Outcome/Reason = %v/%q, want Degraded/missing_output_path", res.Outcome, res.Reason)
	}
}

func TestCaptureIgnoresStaleOutput(t *testing.T) {
	w, wp := fixtureWorker(t)
	if err := os.WriteFile(wp.Output, []byte(".stale{}"), 0o644); err != nil {
		t.Fatalf("seed stale output: %v", err)
	}
	info, err := os.Stat(wp.Output)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	w.SetLastOutputMtime(info.ModTime())

	res := Capture(w, "<div>", 60*time.Millisecond)
	if res.Outcome != OutcomeDegraded {
		t.Fatalf("Outcome = %v, want OutcomeDegraded (output never advanced)", res.Outcome)
	}
}
