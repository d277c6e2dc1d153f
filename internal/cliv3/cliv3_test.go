package cliv3

import (
	"strings"
	"testing"

	"github.com/defdo-dev/tailwindport/internal/option"
)

func argvString(argv []string) string { return strings.Join(argv, " ") }

func TestRenderBasicFlags(t *testing.T) {
	argv, err := Render("tailwindcss", option.Options{
		option.KeyInput:  "/in.css",
		option.KeyOutput: "/out.css",
		option.KeyMinify: true,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if argv[0] != "tailwindcss" {
		t.Errorf("argv[0] = %q, want binary name", argv[0])
	}
	s := argvString(argv)
	for _, want := range []string{"--input /in.css", "--output /out.css", "--minify"} {
		if !strings.Contains(s, want) {
			t.Errorf("argv %q missing %q", s, want)
		}
	}
}

func TestRenderDropsV4OnlyKeys(t *testing.T) {
	argv, err := Render("tailwindcss", option.Options{
		option.KeyInput:   "/in.css",
		option.KeyOptimize: true,
		option.KeyCWD:      "/work",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	s := argvString(argv)
	if strings.Contains(s, "--optimize") || strings.Contains(s, "--cwd") {
		t.Errorf("v4-only keys leaked into v3 argv: %q", s)
	}
}

func TestRenderWatchImpliesPollOnlyWhenSet(t *testing.T) {
	argv, err := Render("tailwindcss", option.Options{
		option.KeyInput: "/in.css",
		option.KeyWatch: true,
		option.KeyPoll:  true,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	s := argvString(argv)
	if !strings.Contains(s, "--watch") || !strings.Contains(s, "--poll") {
		t.Errorf("expected --watch and --poll, got %q", s)
	}
}

func TestRenderJoinsContentList(t *testing.T) {
	argv, err := Render("tailwindcss", option.Options{
		option.KeyInput:   "/in.css",
		option.KeyContent: []string{"/a.html", "/b.html"},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	s := argvString(argv)
	if !strings.Contains(s, "--content /a.html,/b.html") {
		t.Errorf("expected joined content flag, got %q", s)
	}
}

func TestRenderRejectsEmptyOptions(t *testing.T) {
	if _, err := Render("tailwindcss", option.Options{}); err == nil {
		t.Error("an option map with no recognized flags should be rejected")
	}
}
