// Package option defines the closed set of Tailwind compile option keys
// and the canonicalization rules used to derive a stable fingerprint.
package option

import "sort"

// Options is a normalized compile option bag. Keys are drawn from the
// closed set below; unknown keys are accepted (and ignored downstream)
// since Tailwind itself ignores flags it does not recognize.
type Options map[string]any

// Closed key set (spec.md §6). Version-incompatible keys are silently
// dropped by the CliRenderer, not rejected here.
const (
	KeyInput    = "input"
	KeyOutput   = "output"
	KeyContent  = "content"
	KeyConfig   = "config"
	KeyPostCSS  = "postcss"
	KeyMinify   = "minify"
	KeyWatch    = "watch"
	KeyPoll     = "poll"
	KeyOptimize = "optimize"
	KeyCWD      = "cwd"
	KeyMap      = "map"
)

// v3Only and v4Only partition the keys that a CliRenderer must drop when
// targeting the other major version.
var v3Only = map[string]bool{KeyConfig: true, KeyPostCSS: true, KeyPoll: true}
var v4Only = map[string]bool{KeyOptimize: true, KeyCWD: true, KeyMap: true}

// V3Only reports whether key is meaningful only for Tailwind v3.
func V3Only(key string) bool { return v3Only[key] }

// V4Only reports whether key is meaningful only for Tailwind v4.
func V4Only(key string) bool { return v4Only[key] }

// Canonicalize drops null-valued entries and returns a fresh map, leaving
// the input untouched. It does not mutate key order — callers needing a
// stable order should use SortedKeys.
func Canonicalize(opts Options) Options {
	out := make(Options, len(opts))
	for k, v := range opts {
		if v == nil {
			continue
		}
		out[k] = v
	}
	return out
}

// SortedKeys returns the canonicalized option map's keys in total (byte)
// order, giving deterministic iteration for serialization.
func SortedKeys(opts Options) []string {
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy of opts.
func Clone(opts Options) Options {
	out := make(Options, len(opts))
	for k, v := range opts {
		out[k] = v
	}
	return out
}

// WithPaths returns a copy of opts with input/content/output overridden to
// the given absolute paths — the Pool always pins these three to the
// deterministic WorkPaths for the request's fingerprint, regardless of
// what the caller originally supplied.
func WithPaths(opts Options, input, content, output string) Options {
	out := Clone(opts)
	out[KeyInput] = input
	out[KeyContent] = content
	out[KeyOutput] = output
	return out
}
