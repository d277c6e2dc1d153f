// Package cliv3 is a reference CliRenderer for Tailwind CSS v3, translating
// a normalized option map into argv. It exists so the bundled devtool
// (cmd/tailwindportd) is runnable without an embedder supplying its own
// translator — CLI-flag translation itself stays an external collaborator
// per spec.md §1, this is just one concrete implementation of it.
//
// Grounded on the teacher's internal/executor.RenderCommand argv assembly,
// adapted from template rendering to direct flag-table translation since
// the Tailwind CLI flag surface is fixed, not user-templated.
package cliv3

import (
	"fmt"

	"github.com/defdo-dev/tailwindport/internal/option"
)

// Render turns opts into argv for `tailwindcss`, dropping v4-only keys.
func Render(binary string, opts option.Options) ([]string, error) {
	argv := []string{binary}

	if v, ok := str(opts, option.KeyInput); ok {
		argv = append(argv, "--input", v)
	}
	if v, ok := str(opts, option.KeyOutput); ok {
		argv = append(argv, "--output", v)
	}
	if v, ok := str(opts, option.KeyConfig); ok {
		argv = append(argv, "--config", v)
	}
	if v, ok := str(opts, option.KeyPostCSS); ok {
		argv = append(argv, "--postcss", v)
	}
	if contentArg, ok := contentFlag(opts); ok {
		argv = append(argv, "--content", contentArg)
	}
	if b, ok := boolVal(opts, option.KeyMinify); ok && b {
		argv = append(argv, "--minify")
	}
	if b, ok := boolVal(opts, option.KeyWatch); ok && b {
		argv = append(argv, "--watch")
		if pb, ok := boolVal(opts, option.KeyPoll); ok && pb {
			argv = append(argv, "--poll")
		}
	}

	if len(argv) == 1 {
		return nil, fmt.Errorf("cliv3: option map rendered no flags")
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

func contentFlag(opts option.Options) (string, bool) {
	v, ok := opts[option.KeyContent]
	if !ok || v == nil {
		return "", false
	}
	switch c := v.(type) {
	case string:
		return c, c != ""
	case []string:
		if len(c) == 0 {
			return "", false
		}
		out := c[0]
		for _, p := range c[1:] {
			out += "," + p
		}
		return out, true
	default:
		return "", false
	}
}
