package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/defdo-dev/tailwindport/internal/fingerprint"
)

func TestDeriveIsDeterministicAndNonOverlapping(t *testing.T) {
	fp := fingerprint.Digest{1, 2, 3}
	wp := Derive("/scratch", fp)

	if wp.Content == wp.Input || wp.Input == wp.Output || wp.Content == wp.Output {
		t.Fatalf("Derive produced overlapping paths: %+v", wp)
	}
	wp2 := Derive("/scratch", fp)
	if wp != wp2 {
		t.Errorf("Derive is not deterministic for the same fingerprint: %+v != %+v", wp, wp2)
	}

	other := fingerprint.Digest{9, 9, 9}
	wp3 := Derive("/scratch", other)
	if wp3.Output == wp.Output {
		t.Error("different fingerprints should derive different output paths")
	}
}

func TestEnsureWritesStubOnce(t *testing.T) {
	root := t.TempDir()
	fp := fingerprint.Digest{7}
	wp := Derive(root, fp)

	if err := Ensure(wp); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	b, err := os.ReadFile(wp.Input)
	if err != nil {
		t.Fatalf("read input stub: %v", err)
	}
	if string(b) != stubInput {
		t.Errorf("input stub = %q, want %q", b, stubInput)
	}

	if err := os.WriteFile(wp.Input, []byte("@tailwind custom;\n"), 0o644); err != nil {
		t.Fatalf("overwrite stub: %v", err)
	}
	if err := Ensure(wp); err != nil {
		t.Fatalf("Ensure (second call): %v", err)
	}
	b2, err := os.ReadFile(wp.Input)
	if err != nil {
		t.Fatalf("read input stub: %v", err)
	}
	if string(b2) != "@tailwind custom;\n" {
		t.Error("Ensure should be idempotent and not overwrite an existing stub")
	}
}

func TestEnsureCreatesParentDir(t *testing.T) {
	root := t.TempDir()
	fp := fingerprint.Digest{42}
	wp := Derive(root, fp)

	if err := Ensure(wp); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(wp.Input)); err != nil {
		t.Errorf("scratch dir was not created: %v", err)
	}
}

func TestRejectGlob(t *testing.T) {
	cases := []struct {
		path    string
		wantErr bool
	}{
		{"/abs/content.html", false},
		{"/abs/**/*.html", true},
		{"/abs/file?.html", true},
		{"/abs/[abc].html", true},
		{"/abs/{a,b}.html", true},
	}
	for _, c := range cases {
		err := RejectGlob(c.path)
		if c.wantErr && err == nil {
			t.Errorf("RejectGlob(%q) = nil, want error", c.path)
		}
		if !c.wantErr && err != nil {
			t.Errorf("RejectGlob(%q) = %v, want nil", c.path, err)
		}
	}
}
