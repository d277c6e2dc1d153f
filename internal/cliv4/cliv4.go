// Package cliv4 is a reference CliRenderer for Tailwind CSS v4, translating
// a normalized option map into argv. See internal/cliv3 for the v3
// counterpart and the rationale for shipping a reference implementation.
package cliv4

import (
	"fmt"

	"github.com/defdo-dev/tailwindport/internal/option"
)

// Render turns opts into argv for `tailwindcss` (v4 CLI), dropping v3-only
// keys.
func Render(binary string, opts option.Options) ([]string, error) {
	argv := []string{binary}

	if v, ok := str(opts, option.KeyInput); ok {
		argv = append(argv, "--input", v)
	}
	if v, ok := str(opts, option.KeyOutput); ok {
		argv = append(argv, "--output", v)
	}
	if v, ok := str(opts, option.KeyCWD); ok {
		argv = append(argv, "--cwd", v)
	}
	if b, ok := boolVal(opts, option.KeyMinify); ok && b {
		argv = append(argv, "--minify")
	}
	if b, ok := boolVal(opts, option.KeyOptimize); ok && b {
		argv = append(argv, "--optimize")
	}
	if b, ok := boolVal(opts, option.KeyMap); ok && b {
		argv = append(argv, "--map")
	}
	if b, ok := boolVal(opts, option.KeyWatch); ok && b {
		argv = append(argv, "--watch")
	}

	if len(argv) == 1 {
		return nil, fmt.Errorf("cliv4: option map rendered no flags")
	}
	return argv, nil
}

func str(opts option.Options, key string) (string, bool) {
	v, ok := opts[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

func boolVal(opts option.Options, key string) (bool, bool) {
	v, ok := opts[key]
	if !ok || v == nil {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}
