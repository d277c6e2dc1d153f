// Package api is the bundled HTTP daemon's router, grounded on the
// teacher's internal/api.Server (chi router, writeJSON/writeError idiom)
// retargeted to SPEC_FULL.md §4.M's routes over the Pool.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/defdo-dev/tailwindport/internal/option"
	"github.com/defdo-dev/tailwindport/internal/pool"
)

// Server holds the API dependencies.
type Server struct {
	pool *pool.Pool
	ws   http.HandlerFunc
	ui   http.Handler
}

// New creates a Server. ws and ui may be nil to disable those routes.
func New(p *pool.Pool, ws http.HandlerFunc, ui http.Handler) *Server {
	return &Server{pool: p, ws: ws, ui: ui}
}

// Router returns the chi router with every route from SPEC_FULL.md §4.M
// registered.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/compile", s.handleCompile)
	r.Post("/batch", s.handleBatch)
	r.Get("/stats", s.handleStats)
	r.Get("/pool", s.handlePool)
	r.Post("/warmup", s.handleWarmup)

	if s.ws != nil {
		r.Get("/ws", s.ws)
	}
	if s.ui != nil {
		r.Get("/", s.ui.ServeHTTP)
	}

	return r
}

type compileRequest struct {
	Options  option.Options `json:"options"`
	Content  string         `json:"content"`
	Priority int            `json:"priority"`
}

type compileResponse struct {
	CSS         string `json:"css"`
	Fingerprint string `json:"fingerprint"`
	Degraded    bool   `json:"degraded"`
	Reason      string `json:"reason,omitempty"`
}

func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	var req compileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res := s.pool.Compile(r.Context(), pool.Request{Options: req.Options, Content: req.Content, Priority: req.Priority})
	if res.Err != nil {
		writeError(w, statusForError(res.Err), res.Err.Error())
		return
	}
	writeJSON(w, http.StatusOK, compileResponse{
		CSS:         res.CSS,
		Fingerprint: res.Fingerprint,
		Degraded:    res.Degraded,
		Reason:      string(res.Reason),
	})
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var reqs []compileRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	poolReqs := make([]pool.Request, len(reqs))
	for i, req := range reqs {
		poolReqs[i] = pool.Request{Options: req.Options, Content: req.Content, Priority: req.Priority}
	}

	results := s.pool.BatchCompile(r.Context(), poolReqs)
	out := make([]map[string]any, len(results))
	for i, res := range results {
		item := map[string]any{"fingerprint": res.Fingerprint, "degraded": res.Degraded}
		if res.Err != nil {
			item["error"] = res.Err.Error()
		} else {
			item["css"] = res.CSS
			item["reason"] = string(res.Reason)
		}
		out[i] = item
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.pool.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"pool_size":             stats.PoolSize,
		"max_pool_size":         stats.MaxPoolSize,
		"port_creations":        stats.PortCreations,
		"port_reuses":           stats.PortReuses,
		"pool_exhaustions":      stats.PoolExhaustions,
		"degraded_compilations": stats.DegradedCompilations,
		"compile_successes":     stats.CompileSuccesses,
		"compile_errors":        stats.CompileErrors,
		"reuse_rate":            stats.ReuseRate,
		"avg_port_lifetime_ms":  stats.AvgPortLifetimeMs,
		"started_at":            stats.StartedAt,
		"uptime_human":          humanize.Time(stats.StartedAt),
		"all_time": map[string]any{
			"port_creations":        stats.AllTimePortCreations,
			"port_reuses":           stats.AllTimePortReuses,
			"pool_exhaustions":      stats.AllTimePoolExhaustions,
			"degraded_compilations": stats.AllTimeDegradedCompilations,
			"total_lifetime_ms":     stats.AllTimeLifetimeMs,
			"total_builds":          stats.AllTimeBuilds,
		},
	})
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pool.WorkerStatuses())
}

type warmupRequest struct {
	OptionSets []option.Options `json:"option_sets"`
}

func (s *Server) handleWarmup(w http.ResponseWriter, r *http.Request) {
	var req warmupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.pool.WarmUp(r.Context(), req.OptionSets)
	writeJSON(w, http.StatusOK, map[string]string{"status": "warming"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusForError maps the error taxonomy of spec.md §7 onto HTTP status
// codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, pool.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, pool.ErrPoolExhausted):
		return http.StatusServiceUnavailable
	case errors.Is(err, pool.ErrWorkerDown):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
