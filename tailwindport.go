// Package tailwindport is the public facade over the subprocess pool:
// it re-exports the types an embedder needs (CompileRequest, CompileResult,
// Pool, the CliRenderer/BinaryProvider extension points) without requiring
// imports from internal/, grounded on the teacher's internal/overseer/iface.go
// re-export-facade pattern (type aliases to the real implementation).
package tailwindport

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/defdo-dev/tailwindport/internal/option"
	"github.com/defdo-dev/tailwindport/internal/pool"
	"github.com/defdo-dev/tailwindport/internal/retry"
	"github.com/defdo-dev/tailwindport/internal/store"
	"github.com/defdo-dev/tailwindport/internal/telemetry"
)

// Options is the normalized compile option map (spec.md §6's closed key set).
type Options = option.Options

// CompileRequest is a single compile request.
type CompileRequest = pool.Request

// CompileResult is the outcome of one compile.
type CompileResult = pool.Result

// Pool multiplexes subprocesses across compile requests by fingerprint.
type Pool = pool.Pool

// CliRenderer turns a normalized option map into argv for a binary.
// Implementations live outside this module's core per spec.md §1 — see
// internal/cliv3 and internal/cliv4 for reference translators.
type CliRenderer = pool.CliRenderer

// BinaryProvider resolves a trusted, executable Tailwind binary path.
// See internal/binaryprovider.Static for a reference implementation.
type BinaryProvider = pool.BinaryProvider

// RetryPolicy configures the exponential-backoff spawn executor.
type RetryPolicy = retry.Policy

// TelemetrySink receives typed lifecycle and KPI events.
type TelemetrySink = telemetry.Sink

// Store is the optional SQLite-backed fingerprint cache / counters.
type Store = store.Store

var (
	// ErrPoolExhausted is returned when the request's fingerprint already
	// has a busy Worker, or when it has none and the pool is at
	// max_pool_size.
	ErrPoolExhausted = pool.ErrPoolExhausted
	// ErrWorkerDown is returned when a Worker's subprocess exits or is
	// stopped mid-compile.
	ErrWorkerDown = pool.ErrWorkerDown
	// ErrValidation is returned for malformed option maps or paths.
	ErrValidation = pool.ErrValidation

	// DefaultRetryPolicy matches spec.md §7's stated defaults.
	DefaultRetryPolicy = retry.DefaultPolicy
)

// Config configures a new Pool.
type Config struct {
	MaxPoolSize      int
	IdleTimeout      time.Duration
	CacheTTL         time.Duration
	StartupTimeout   time.Duration
	PortReadyTimeout time.Duration
	CompileTimeout   time.Duration
	ScratchRoot      string
	RetryPolicy      RetryPolicy
}

// New constructs a Pool. store and telemetry sink may be nil.
func New(cfg Config, cli CliRenderer, bin BinaryProvider, st *Store, tel TelemetrySink, logger zerolog.Logger) *Pool {
	return pool.New(pool.Config{
		MaxPoolSize:      cfg.MaxPoolSize,
		IdleTimeout:      cfg.IdleTimeout,
		CacheTTL:         cfg.CacheTTL,
		StartupTimeout:   cfg.StartupTimeout,
		PortReadyTimeout: cfg.PortReadyTimeout,
		CompileTimeout:   cfg.CompileTimeout,
		ScratchRoot:      cfg.ScratchRoot,
		RetryPolicy:      cfg.RetryPolicy,
	}, cli, bin, st, tel, logger)
}
