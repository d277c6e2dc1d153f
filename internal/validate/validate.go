// Package validate rejects malformed option maps and paths before they
// reach the Pool, per spec.md §4.H.
package validate

import (
	"fmt"
	"path/filepath"

	"github.com/defdo-dev/tailwindport/internal/option"
	"github.com/defdo-dev/tailwindport/internal/paths"
)

// boolKeys and stringKeys partition the closed key set by expected value
// shape; unknown keys are ignored (Tailwind itself ignores them), but a
// known key with the wrong shape fails.
var boolKeys = map[string]bool{
	option.KeyMinify:   true,
	option.KeyWatch:    true,
	option.KeyPoll:     true,
	option.KeyOptimize: true,
	option.KeyMap:      true,
}

var stringKeys = map[string]bool{
	option.KeyInput:   true,
	option.KeyOutput:  true,
	option.KeyConfig:  true,
	option.KeyPostCSS: true,
	option.KeyCWD:     true,
}

// Options rejects non-mapping types (the caller's type system normally
// prevents that in Go, but a nil map is still rejected as malformed), and
// checks that every known key has the shape spec.md §6 requires.
// Unknown keys are allowed — Tailwind itself ignores flags it doesn't
// recognize.
func Options(opts option.Options) error {
	if opts == nil {
		return fmt.Errorf("validate: option map is required")
	}

	for k := range boolKeys {
		v, present := opts[k]
		if !present || v == nil {
			continue
		}
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("validate: option %q must be a bool, got %T", k, v)
		}
	}

	for k := range stringKeys {
		v, present := opts[k]
		if !present || v == nil {
			continue
		}
		if _, ok := v.(string); !ok {
			return fmt.Errorf("validate: option %q must be a string, got %T", k, v)
		}
	}

	if v, present := opts[option.KeyContent]; present && v != nil {
		switch c := v.(type) {
		case string:
			if err := ContentPath(c); err != nil {
				return err
			}
		case []string:
			if len(c) == 0 {
				return fmt.Errorf("validate: option %q: empty list", option.KeyContent)
			}
			for _, p := range c {
				if err := ContentPath(p); err != nil {
					return err
				}
			}
		case []any:
			if len(c) == 0 {
				return fmt.Errorf("validate: option %q: empty list", option.KeyContent)
			}
			for _, raw := range c {
				s, ok := raw.(string)
				if !ok {
					return fmt.Errorf("validate: option %q: list entries must be strings", option.KeyContent)
				}
				if err := ContentPath(s); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("validate: option %q must be a path or list of paths, got %T", option.KeyContent, v)
		}
	}

	return nil
}

// ContentPath rejects empty and glob-shaped content entries — spec.md §9's
// resolution of the "content path is a glob" open question.
func ContentPath(p string) error {
	if p == "" {
		return fmt.Errorf("validate: content path is required")
	}
	if err := paths.RejectGlob(p); err != nil {
		return err
	}
	return nil
}

// AbsolutePath rejects empty strings and non-absolute paths, used for the
// download path/url arguments (for the external BinaryProvider) and
// process start arguments spec.md §4.H names.
func AbsolutePath(name, p string) error {
	if p == "" {
		return fmt.Errorf("validate: %s is required", name)
	}
	if !filepath.IsAbs(p) {
		return fmt.Errorf("validate: %s must be an absolute path, got %q", name, p)
	}
	return nil
}

// NonEmpty rejects an empty string argument (download URLs, process
// names).
func NonEmpty(name, s string) error {
	if s == "" {
		return fmt.Errorf("validate: %s is required", name)
	}
	return nil
}
