// Command tailwindportd is the bundled devtool: it wires the Pool, the
// optional SQLite cache, the telemetry hub, and the HTTP API together into
// a long-running daemon. Grounded on the teacher's cmd/sticky-refinery
// main — flag-based config path, signal-triggered graceful shutdown.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/defdo-dev/tailwindport/internal/api"
	"github.com/defdo-dev/tailwindport/internal/binaryprovider"
	"github.com/defdo-dev/tailwindport/internal/cliv3"
	"github.com/defdo-dev/tailwindport/internal/cliv4"
	"github.com/defdo-dev/tailwindport/internal/config"
	"github.com/defdo-dev/tailwindport/internal/db"
	"github.com/defdo-dev/tailwindport/internal/hub"
	"github.com/defdo-dev/tailwindport/internal/logging"
	"github.com/defdo-dev/tailwindport/internal/option"
	"github.com/defdo-dev/tailwindport/internal/pool"
	"github.com/defdo-dev/tailwindport/internal/retry"
	"github.com/defdo-dev/tailwindport/internal/store"
	"github.com/defdo-dev/tailwindport/internal/telemetry"
	"github.com/defdo-dev/tailwindport/internal/ui"
)

// cliRendererFunc adapts a package-level Render function to pool.CliRenderer.
type cliRendererFunc func(binary string, opts option.Options) ([]string, error)

func (f cliRendererFunc) Render(binary string, opts option.Options) ([]string, error) {
	return f(binary, opts)
}

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logging.Init(logging.Config{Level: logging.InfoLevel})
	log := logging.WithComponent("daemon")

	log.Info().
		Int("max_pool_size", cfg.MaxPoolSize).
		Str("scratch_root", cfg.ScratchRoot).
		Int("tailwind_version", cfg.TailwindVersion).
		Msg("tailwindportd starting")

	var st *store.Store
	if cfg.DBPath != "" {
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			log.Fatal().Err(err).Msg("open db")
		}
		st, err = store.New(database)
		if err != nil {
			log.Fatal().Err(err).Msg("init store")
		}
	}

	trustedNets := hub.DetectLocalSubnets()
	if cfg.TrustedCIDRs != "" {
		nets, err := hub.ParseTrustedCIDRs(cfg.TrustedCIDRs)
		if err != nil {
			log.Fatal().Err(err).Msg("parse trusted_cidrs")
		}
		trustedNets = nets
	}
	h := hub.New(trustedNets, logging.Logger)
	bus := telemetry.NewBus(h, nil)

	bin, err := binaryprovider.NewStatic(cfg.BinaryPath)
	if err != nil {
		log.Fatal().Err(err).Msg("binary provider")
	}

	var renderer cliRendererFunc
	if cfg.TailwindVersion == 3 {
		renderer = cliv3.Render
	} else {
		renderer = cliv4.Render
	}

	p := pool.New(pool.Config{
		MaxPoolSize:      cfg.MaxPoolSize,
		IdleTimeout:      cfg.IdleTimeout.Duration,
		CacheTTL:         cfg.CacheTTL.Duration,
		StartupTimeout:   cfg.StartupTimeout.Duration,
		PortReadyTimeout: cfg.PortReadyTimeout.Duration,
		CompileTimeout:   cfg.CompileTimeout.Duration,
		ScratchRoot:      cfg.ScratchRoot,
		RetryPolicy: retry.Policy{
			MaxAttempts: cfg.MaxRetryAttempts,
			BaseDelay:   cfg.RetryBaseDelay.Duration,
			Factor:      cfg.RetryFactor,
		},
	}, renderer, bin, st, bus, logging.Logger)

	srv := api.New(p, h.ServeWS, ui.Handler())
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Router(),
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info().Msg("shutdown: received signal")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}

	p.Shutdown(30 * time.Second)
	log.Info().Msg("shutdown complete")
}
