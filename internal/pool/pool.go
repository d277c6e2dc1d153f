// Package pool implements the fingerprint-keyed subprocess scheduler:
// find-or-create acquisition, compile execution, batching, idle eviction,
// and KPI aggregation (SPEC_FULL.md §4.F), grounded on the teacher's
// internal/pool.Pool (mutex-guarded map, shrink/eviction timer, log.Printf
// lifecycle lines) generalized from a path-keyed job table to a
// fingerprint-keyed Worker table.
package pool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/defdo-dev/tailwindport/internal/capture"
	"github.com/defdo-dev/tailwindport/internal/fingerprint"
	"github.com/defdo-dev/tailwindport/internal/option"
	"github.com/defdo-dev/tailwindport/internal/paths"
	"github.com/defdo-dev/tailwindport/internal/retry"
	"github.com/defdo-dev/tailwindport/internal/store"
	"github.com/defdo-dev/tailwindport/internal/telemetry"
	"github.com/defdo-dev/tailwindport/internal/validate"
	"github.com/defdo-dev/tailwindport/internal/worker"
)

// CliRenderer turns a normalized option map into argv for a binary. Both
// internal/cliv3 and internal/cliv4 satisfy this structurally.
type CliRenderer interface {
	Render(binary string, opts option.Options) ([]string, error)
}

// BinaryProvider resolves the trusted, executable Tailwind binary path.
// internal/binaryprovider.Static satisfies this structurally.
type BinaryProvider interface {
	Resolve(ctx context.Context) (string, error)
}

// Errors surfaced to callers, matching spec.md §7's error taxonomy.
var (
	ErrPoolExhausted = fmt.Errorf("pool: exhausted")
	ErrWorkerDown    = fmt.Errorf("pool: worker down")
	ErrValidation    = fmt.Errorf("pool: validation failed")
)

// Config configures a Pool's behavior.
type Config struct {
	MaxPoolSize      int
	IdleTimeout      time.Duration
	CacheTTL         time.Duration
	StartupTimeout   time.Duration
	PortReadyTimeout time.Duration
	CompileTimeout   time.Duration
	ScratchRoot      string
	RetryPolicy      retry.Policy
}

// Request is a single compile request (spec.md §3's CompileRequest).
type Request struct {
	Options  option.Options
	Content  string
	Priority int
}

// Result is what Compile/BatchCompile return for one request.
type Result struct {
	CSS         string
	Fingerprint string
	Degraded    bool
	Reason      capture.DegradeReason
	BuildCount  int64
	Err         error
}

type cacheEntry struct {
	options  option.Options
	cachedAt time.Time
}

// Pool maps fingerprint -> Worker under a single mutating authority
// (spec.md §5), spawning Workers via binaries CliRenderer, with optional
// persistence and telemetry.
type Pool struct {
	cfg       Config
	cli       CliRenderer
	bin       BinaryProvider
	st        *store.Store
	tel       telemetry.Sink
	log       zerolog.Logger
	startedAt time.Time

	mu       sync.Mutex
	workers  map[string]*worker.Worker
	cache    map[string]cacheEntry
	stopped  bool
	stopCh   chan struct{}
	stopOnce sync.Once

	counters struct {
		portCreations       int64
		portReuses          int64
		poolExhaustions     int64
		degradedCompilations int64
		compileSuccesses    int64
		compileErrors       int64
		lifetimeMs          int64
		lifetimeBuildCount  int64
	}
}

// New constructs a Pool. st and tel may be nil (no persistence / discard
// telemetry, respectively).
func New(cfg Config, cli CliRenderer, bin BinaryProvider, st *store.Store, tel telemetry.Sink, logger zerolog.Logger) *Pool {
	if cfg.MaxPoolSize <= 0 {
		cfg.MaxPoolSize = 4
	}
	if tel == nil {
		tel = telemetry.Discard{}
	}
	p := &Pool{
		cfg:       cfg,
		cli:       cli,
		bin:       bin,
		st:        st,
		tel:       tel,
		log:       logger.With().Str("component", "pool").Logger(),
		startedAt: time.Now(),
		workers:   make(map[string]*worker.Worker),
		cache:     make(map[string]cacheEntry),
		stopCh:    make(chan struct{}),
	}
	go p.maintenanceLoop()
	return p
}

// Compile executes a single request end to end: validate, fingerprint,
// acquire, await readiness, capture, release (spec.md §4.F "Compile
// execution").
func (p *Pool) Compile(ctx context.Context, req Request) Result {
	if err := validate.Options(req.Options); err != nil {
		return Result{Err: fmt.Errorf("%w: %v", ErrValidation, err)}
	}

	fp, err := fingerprint.Compute(stripContent(req.Options))
	if err != nil {
		return Result{Err: fmt.Errorf("pool: compute fingerprint: %w", err)}
	}
	fpHex := fp.String()

	p.tel.Publish(telemetry.KindCompileStart, fpHex, "", nil)

	w, created, err := p.findOrCreate(ctx, fpHex, req.Options)
	if err != nil {
		if err == ErrPoolExhausted {
			p.mu.Lock()
			p.counters.poolExhaustions++
			p.mu.Unlock()
			if p.st != nil {
				if err := p.st.IncrExhausted(); err != nil {
					p.log.Warn().Err(err).Msg("persist pool_exhaustions failed")
				}
			}
			p.tel.Publish(telemetry.KindPoolExhausted, fpHex, "", nil)
		}
		p.tel.Publish(telemetry.KindCompileError, fpHex, err.Error(), nil)
		p.mu.Lock()
		p.counters.compileErrors++
		p.mu.Unlock()
		return Result{Fingerprint: fpHex, Err: err}
	}
	if created {
		p.tel.Publish(telemetry.KindPoolPortCreated, fpHex, "", nil)
	} else {
		p.tel.Publish(telemetry.KindPoolPortReused, fpHex, "", nil)
	}

	res := p.runCompile(ctx, w, req)
	res.Fingerprint = fpHex
	w.MarkIdle()

	if res.Err != nil {
		p.tel.Publish(telemetry.KindCompileError, fpHex, res.Err.Error(), nil)
		p.mu.Lock()
		p.counters.compileErrors++
		p.mu.Unlock()
	} else {
		p.tel.Publish(telemetry.KindCompileStop, fpHex, "", map[string]any{"degraded": res.Degraded})
		p.mu.Lock()
		p.counters.compileSuccesses++
		if res.Degraded {
			p.counters.degradedCompilations++
		}
		p.mu.Unlock()
		if res.Degraded && p.st != nil {
			if err := p.st.IncrDegraded(); err != nil {
				p.log.Warn().Err(err).Msg("persist degraded_compilations failed")
			}
		}
	}
	return res
}

// BatchCompile groups requests by fingerprint and runs each group
// sequentially on one Worker kept busy for the group's duration.
func (p *Pool) BatchCompile(ctx context.Context, reqs []Request) []Result {
	groups := map[string][]int{}
	order := []string{}
	fps := make([]string, len(reqs))

	for i, r := range reqs {
		canon := stripContent(r.Options)
		fp, err := fingerprint.Compute(canon)
		if err != nil {
			fps[i] = ""
			continue
		}
		fps[i] = fp.String()
		if _, ok := groups[fps[i]]; !ok {
			order = append(order, fps[i])
		}
		groups[fps[i]] = append(groups[fps[i]], i)
	}

	out := make([]Result, len(reqs))
	for i, r := range reqs {
		if fps[i] == "" {
			out[i] = Result{Err: fmt.Errorf("pool: compute fingerprint for batch item %d", i)}
		}
		_ = r
	}

	for _, fpHex := range order {
		indices := groups[fpHex]
		if len(indices) == 0 {
			continue
		}
		first := reqs[indices[0]]
		w, created, err := p.findOrCreate(ctx, fpHex, first.Options)
		if err != nil {
			for _, idx := range indices {
				out[idx] = Result{Fingerprint: fpHex, Err: err}
			}
			continue
		}
		if created {
			p.tel.Publish(telemetry.KindPoolPortCreated, fpHex, "", nil)
		} else {
			p.tel.Publish(telemetry.KindPoolPortReused, fpHex, "", nil)
		}
		for _, idx := range indices {
			res := p.runCompile(ctx, w, reqs[idx])
			res.Fingerprint = fpHex
			out[idx] = res
			if res.Err != nil {
				p.tel.Publish(telemetry.KindCompileError, fpHex, res.Err.Error(), nil)
			} else {
				p.tel.Publish(telemetry.KindCompileStop, fpHex, "", map[string]any{"degraded": res.Degraded})
			}
		}
		w.MarkIdle()
	}
	return out
}

// WarmUp pre-creates Workers for a list of option maps; failures are
// silently skipped (spec.md §4.F).
func (p *Pool) WarmUp(ctx context.Context, optSets []option.Options) {
	for _, opts := range optSets {
		canon := stripContent(opts)
		fp, err := fingerprint.Compute(canon)
		if err != nil {
			continue
		}
		w, created, err := p.findOrCreate(ctx, fp.String(), opts)
		if err != nil {
			continue
		}
		if created {
			p.tel.Publish(telemetry.KindPoolPortCreated, fp.String(), "", nil)
		}
		w.MarkIdle()
	}
}

// Stats is the snapshot returned by Stats() and fired as metrics.snapshot.
// The AllTime* fields come from the durable store (SPEC_FULL.md §4.I) and
// stay zero when the Pool runs without persistence, so two back-to-back
// calls with no activity in between still report equal counters either way.
type Stats struct {
	PoolSize             int
	MaxPoolSize          int
	PortCreations        int64
	PortReuses           int64
	PoolExhaustions      int64
	DegradedCompilations int64
	CompileSuccesses     int64
	CompileErrors        int64
	ReuseRate            float64
	AvgPortLifetimeMs    float64
	StartedAt            time.Time

	AllTimePortCreations        int64
	AllTimePortReuses           int64
	AllTimePoolExhaustions      int64
	AllTimeDegradedCompilations int64
	AllTimeLifetimeMs           int64
	AllTimeBuilds               int64
}

// Stats returns a point-in-time snapshot of pool counters, emitting a
// metrics.snapshot telemetry event.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	total := p.counters.portCreations + p.counters.portReuses
	var reuseRate float64
	if total > 0 {
		reuseRate = float64(p.counters.portReuses) / float64(total)
	}
	var avgLifetime float64
	if p.counters.lifetimeBuildCount > 0 {
		avgLifetime = float64(p.counters.lifetimeMs) / float64(p.counters.lifetimeBuildCount)
	}

	s := Stats{
		PoolSize:             len(p.workers),
		MaxPoolSize:          p.cfg.MaxPoolSize,
		PortCreations:        p.counters.portCreations,
		PortReuses:           p.counters.portReuses,
		PoolExhaustions:      p.counters.poolExhaustions,
		DegradedCompilations: p.counters.degradedCompilations,
		CompileSuccesses:     p.counters.compileSuccesses,
		CompileErrors:        p.counters.compileErrors,
		ReuseRate:            reuseRate,
		AvgPortLifetimeMs:    avgLifetime,
		StartedAt:            p.startedAt,
	}
	p.mu.Unlock()

	if p.st != nil {
		if snap, err := p.st.Snapshot(); err != nil {
			p.log.Warn().Err(err).Msg("read persisted counters failed")
		} else {
			s.AllTimePortCreations = snap.PortCreations
			s.AllTimePortReuses = snap.PortReuses
			s.AllTimePoolExhaustions = snap.PoolExhaustions
			s.AllTimeDegradedCompilations = snap.DegradedCompilations
			s.AllTimeLifetimeMs = snap.TotalLifetimeMs
			s.AllTimeBuilds = snap.TotalBuilds
		}
	}

	p.tel.Publish(telemetry.KindMetricsSnapshot, "", "", s)
	return s
}

// WorkerStatus is a point-in-time view of one Worker, used by the /pool
// endpoint's per-worker status list (SPEC_FULL.md §4.M).
type WorkerStatus struct {
	Fingerprint string
	State       string
	Ready       bool
	Degraded    bool
	BuildCount  int64
	CreatedAt   time.Time
	LastUsedAt  time.Time
}

// WorkerStatuses snapshots every live Worker the Pool currently holds.
func (p *Pool) WorkerStatuses() []WorkerStatus {
	p.mu.Lock()
	workers := make([]*worker.Worker, 0, len(p.workers))
	for _, w := range p.workers {
		workers = append(workers, w)
	}
	p.mu.Unlock()

	out := make([]WorkerStatus, len(workers))
	for i, w := range workers {
		out[i] = WorkerStatus{
			Fingerprint: w.Fingerprint(),
			State:       w.State().String(),
			Ready:       w.Ready(),
			Degraded:    w.Degraded(),
			BuildCount:  w.BuildCount(),
			CreatedAt:   w.CreatedAt(),
			LastUsedAt:  w.LastUsedAt(),
		}
	}
	return out
}

// findOrCreate implements spec.md §4.F's acquisition protocol under the
// pool's single mutating authority.
func (p *Pool) findOrCreate(ctx context.Context, fpHex string, opts option.Options) (*worker.Worker, bool, error) {
	p.mu.Lock()
	if w, ok := p.workers[fpHex]; ok {
		if w.State() == worker.StateIdle || w.State() == worker.StateStarting {
			if err := w.MarkBusy(); err == nil {
				p.counters.portReuses++
				p.mu.Unlock()
				p.incrReused()
				p.rememberCache(fpHex, opts)
				return w, false, nil
			}
		}
		// Busy: spec.md §9 fixes the conservative one-Worker-per-fingerprint
		// policy, so a busy Worker is pool_exhausted for this fingerprint
		// even if capacity remains for other fingerprints.
		p.mu.Unlock()
		return nil, false, ErrPoolExhausted
	}
	if len(p.workers) >= p.cfg.MaxPoolSize {
		p.mu.Unlock()
		return nil, false, ErrPoolExhausted
	}
	p.mu.Unlock()

	w, err := p.spawn(ctx, fpHex, opts)
	if err != nil {
		return nil, false, err
	}

	p.mu.Lock()
	if existing, ok := p.workers[fpHex]; ok {
		// Lost the race with a concurrent spawn for the same fingerprint.
		p.mu.Unlock()
		_ = w.Stop("lost spawn race")
		if err := existing.MarkBusy(); err != nil {
			return nil, false, ErrPoolExhausted
		}
		p.counters.portReuses++
		p.incrReused()
		return existing, false, nil
	}
	p.workers[fpHex] = w
	p.counters.portCreations++
	if err := w.MarkBusy(); err != nil {
		p.mu.Unlock()
		return nil, false, fmt.Errorf("pool: mark busy fresh worker: %w", err)
	}
	p.mu.Unlock()
	p.incrCreated()
	p.rememberCache(fpHex, opts)
	return w, true, nil
}

func (p *Pool) incrCreated() {
	if p.st == nil {
		return
	}
	if err := p.st.IncrCreated(); err != nil {
		p.log.Warn().Err(err).Msg("persist port_creations failed")
	}
}

func (p *Pool) incrReused() {
	if p.st == nil {
		return
	}
	if err := p.st.IncrReused(); err != nil {
		p.log.Warn().Err(err).Msg("persist port_reuses failed")
	}
}

// spawn resolves the binary, renders argv, and starts a Worker through the
// Retry executor.
func (p *Pool) spawn(ctx context.Context, fpHex string, opts option.Options) (*worker.Worker, error) {
	policy := p.cfg.RetryPolicy
	if policy.MaxAttempts == 0 {
		policy = retry.DefaultPolicy()
	}

	return retry.With(ctx, policy, func(attempt int) (*worker.Worker, error) {
		binary, err := p.bin.Resolve(ctx)
		if err != nil {
			return nil, fmt.Errorf("pool: resolve binary: %w", err)
		}

		fp := fingerprint.Digest{}
		copy(fp[:], decodeHex(fpHex))
		wp := paths.Derive(p.cfg.ScratchRoot, fp)
		if err := paths.Ensure(wp); err != nil {
			return nil, fmt.Errorf("pool: ensure paths: %w", err)
		}

		renderOpts := option.WithPaths(opts, wp.Input, wp.Content, wp.Output)
		argv, err := p.cli.Render(binary, renderOpts)
		if err != nil {
			return nil, retry.MarkPermanent(fmt.Errorf("pool: render argv: %w", err))
		}

		w := worker.New(worker.Config{
			Fingerprint:    fpHex,
			Argv:           argv,
			StartupTimeout: p.cfg.StartupTimeout,
			Logger:         p.log,
		}, wp, p.onWorkerDead)

		if err := w.Start(); err != nil {
			return nil, fmt.Errorf("pool: start worker: %w", err)
		}
		return w, nil
	})
}

// runCompile executes steps 2-4 of spec.md §4.F's "Compile execution" for
// an already-acquired Worker.
func (p *Pool) runCompile(ctx context.Context, w *worker.Worker, req Request) Result {
	readyCtx, cancel := context.WithTimeout(ctx, p.readyTimeout())
	defer cancel()

	degraded := false
	err := w.AwaitReady(readyCtx)
	switch {
	case err == nil:
		// ready
	case err == worker.ErrWorkerDown:
		return Result{Err: ErrWorkerDown}
	default:
		degraded = true
	}
	if workerGone(w) {
		return Result{Err: ErrWorkerDown}
	}

	capRes := capture.Capture(w, req.Content, p.cfg.CompileTimeout)
	if capRes.Outcome != capture.OutcomeOK && workerGone(w) {
		return Result{Err: ErrWorkerDown}
	}
	css := capRes.CSS
	reason := capRes.Reason
	switch capRes.Outcome {
	case capture.OutcomeOK:
		w.SetLastOutputMtime(capRes.Mtime)
		w.SetLastCSS(capRes.CSS)
	case capture.OutcomeDegraded:
		degraded = true
		if css == "" {
			css = w.LastCSS()
		}
		if css == "" {
			css = req.Content
		}
		if !capRes.Mtime.IsZero() {
			w.SetLastOutputMtime(capRes.Mtime)
			w.SetLastCSS(capRes.CSS)
		}
	case capture.OutcomeError:
		return Result{Err: capRes.Err}
	}

	w.IncrementBuildCount()

	return Result{
		CSS:        css,
		Degraded:   degraded,
		Reason:     reason,
		BuildCount: w.BuildCount(),
	}
}

// workerGone reports whether w's subprocess has exited or is being stopped.
func workerGone(w *worker.Worker) bool {
	s := w.State()
	return s == worker.StateDead || s == worker.StateTerminating
}

func (p *Pool) readyTimeout() time.Duration {
	if p.cfg.PortReadyTimeout <= 0 {
		return time.Second
	}
	return p.cfg.PortReadyTimeout
}

// rememberCache records the fingerprint -> options association in the
// in-process cache and, when persistence is enabled, in the durable
// fingerprint_cache table so a warm-up survives a restart (SPEC_FULL.md
// §4.I).
func (p *Pool) rememberCache(fpHex string, opts option.Options) {
	p.mu.Lock()
	p.cache[fpHex] = cacheEntry{options: option.Clone(opts), cachedAt: time.Now()}
	p.mu.Unlock()

	if p.st == nil {
		return
	}
	b, err := json.Marshal(stripContent(opts))
	if err != nil {
		p.log.Warn().Err(err).Msg("marshal options for cache persistence failed")
		return
	}
	if err := p.st.Remember(fpHex, string(b)); err != nil {
		p.log.Warn().Err(err).Msg("persist fingerprint cache failed")
	}
}

// onWorkerDead removes a dead Worker from the map and counts its lifetime,
// per spec.md §3's "same atomic step" invariant.
func (p *Pool) onWorkerDead(w *worker.Worker) {
	lifetimeMs := time.Since(w.CreatedAt()).Milliseconds()
	builds := w.BuildCount()

	p.mu.Lock()
	if p.workers[w.Fingerprint()] == w {
		delete(p.workers, w.Fingerprint())
		p.counters.lifetimeMs += lifetimeMs
		p.counters.lifetimeBuildCount += builds
	}
	p.mu.Unlock()
	if p.st != nil {
		if err := p.st.Evict(w.Fingerprint()); err != nil {
			p.log.Warn().Err(err).Msg("evict cache entry on worker death failed")
		}
		if err := p.st.AddLifetime(lifetimeMs, builds); err != nil {
			p.log.Warn().Err(err).Msg("persist lifetime totals failed")
		}
	}
}

// maintenanceLoop runs the idle-eviction tick (spec.md §4.F).
func (p *Pool) maintenanceLoop() {
	interval := p.cfg.IdleTimeout
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.evictIdle(interval)
		case <-p.stopCh:
			return
		}
	}
}

func (p *Pool) evictIdle(threshold time.Duration) {
	cutoff := time.Now().Add(-threshold)

	p.mu.Lock()
	var toEvict []*worker.Worker
	for _, w := range p.workers {
		if w.State() == worker.StateIdle && w.LastUsedAt().Before(cutoff) {
			toEvict = append(toEvict, w)
		}
	}
	p.mu.Unlock()

	for _, w := range toEvict {
		_ = w.Stop("idle eviction")
		p.tel.Publish(telemetry.KindPoolPortTerminated, w.Fingerprint(), "idle eviction", nil)
	}

	if p.st != nil {
		cacheCutoff := time.Now()
		if p.cfg.CacheTTL > 0 {
			cacheCutoff = cacheCutoff.Add(-p.cfg.CacheTTL)
		}
		if _, err := p.st.EvictOlderThan(cacheCutoff); err != nil {
			p.log.Warn().Err(err).Msg("cache gc failed")
		}
	}

	p.mu.Lock()
	now := time.Now()
	ttl := p.cfg.CacheTTL
	for fp, entry := range p.cache {
		if ttl > 0 && now.Sub(entry.cachedAt) > ttl {
			delete(p.cache, fp)
		}
	}
	p.mu.Unlock()

	p.tel.Publish(telemetry.KindMaintenanceCompleted, "", "", map[string]any{"evicted": len(toEvict)})
}

// Shutdown stops every Worker concurrently and waits up to timeout for
// them to finish; past that it logs a warning and returns while any
// remaining Stop calls continue in the background.
func (p *Pool) Shutdown(timeout time.Duration) {
	p.stopOnce.Do(func() { close(p.stopCh) })

	p.mu.Lock()
	workers := make([]*worker.Worker, 0, len(p.workers))
	for _, w := range p.workers {
		workers = append(workers, w)
	}
	p.mu.Unlock()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *worker.Worker) {
			defer wg.Done()
			_ = w.Stop("pool shutdown")
		}(w)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		p.log.Warn().Msg("shutdown timeout: some workers may still be terminating")
	}
}

// stripContent removes the content key so it never participates in the
// fingerprint (spec.md §3).
func stripContent(opts option.Options) option.Options {
	out := option.Clone(opts)
	delete(out, option.KeyContent)
	return out
}

func decodeHex(s string) []byte {
	b := make([]byte, len(s)/2)
	for i := 0; i < len(b); i++ {
		hi := hexVal(s[i*2])
		lo := hexVal(s[i*2+1])
		b[i] = hi<<4 | lo
	}
	return b
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}
