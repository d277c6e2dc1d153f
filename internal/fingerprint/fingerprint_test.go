package fingerprint

import (
	"testing"

	"github.com/defdo-dev/tailwindport/internal/option"
)

func TestComputeDeterministic(t *testing.T) {
	a := option.Options{option.KeyInput: "/a.css", option.KeyMinify: true}
	b := option.Options{option.KeyMinify: true, option.KeyInput: "/a.css"}

	d1, err := Compute(a)
	if err != nil {
		t.Fatalf("Compute(a): %v", err)
	}
	d2, err := Compute(b)
	if err != nil {
		t.Fatalf("Compute(b): %v", err)
	}
	if d1 != d2 {
		t.Errorf("Compute should be insensitive to key order: %s != %s", d1, d2)
	}
}

func TestComputeIgnoresNulls(t *testing.T) {
	withNull := option.Options{option.KeyInput: "/a.css", option.KeyConfig: nil}
	withoutKey := option.Options{option.KeyInput: "/a.css"}

	d1, err := Compute(withNull)
	if err != nil {
		t.Fatalf("Compute(withNull): %v", err)
	}
	d2, err := Compute(withoutKey)
	if err != nil {
		t.Fatalf("Compute(withoutKey): %v", err)
	}
	if d1 != d2 {
		t.Errorf("a null-valued key should not change the fingerprint: %s != %s", d1, d2)
	}
}

func TestComputeDiffersOnValue(t *testing.T) {
	a := option.Options{option.KeyInput: "/a.css"}
	b := option.Options{option.KeyInput: "/b.css"}

	d1, _ := Compute(a)
	d2, _ := Compute(b)
	if d1 == d2 {
		t.Error("different option values should produce different fingerprints")
	}
}

func TestDigestStringIsHex(t *testing.T) {
	d, err := Compute(option.Options{option.KeyInput: "/a.css"})
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	s := d.String()
	if len(s) != 64 {
		t.Errorf("Digest.String() length = %d, want 64", len(s))
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			t.Errorf("Digest.String() contains non-hex character %q", c)
		}
	}
}
