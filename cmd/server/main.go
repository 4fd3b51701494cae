// Command server boots the community simulator API: configuration, logging,
// SQLite storage, OpenTelemetry, the HTTP router, and the bot automation loop.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-community-sim/internal/automation"
	"github.com/tbourn/go-community-sim/internal/config"
	httpapi "github.com/tbourn/go-community-sim/internal/http"
	"github.com/tbourn/go-community-sim/internal/observability"
	"github.com/tbourn/go-community-sim/internal/repo"
	"github.com/tbourn/go-community-sim/internal/services"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Load .env in dev; missing file is fine.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	setupLogger(cfg)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Tracing (no-op unless OTEL_ENABLED)
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	// Storage
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			log.Fatal().Err(err).Msg("enable db tracing failed")
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}

	// Services and the automation runner
	interactions := services.NewInteractionService(db)
	runner := &automation.Runner{
		DB:        db,
		Directory: services.NewDirectoryService(db, cfg.Automation.DirectoryTTL),
		Scheduler: services.NewSchedulerService(cfg.Automation.SpamCap,
			cfg.Automation.SpamWindow, cfg.Automation.Cooldown, cfg.Automation.DupThreshold),
		Ledger:            services.NewLedgerService(db),
		Interactions:      interactions,
		Log:               log.With().Str("component", "automation").Logger(),
		DupWindowAge:      cfg.Automation.DupWindowAge,
		DupWindowPosts:    cfg.Automation.DupWindowPosts,
		OpenQuestionLimit: cfg.Automation.OpenQuestionLimit,
		CycleTimeout:      cfg.Automation.CycleTimeout,
		EventBatch:        cfg.Automation.EventBatch,
	}

	// HTTP
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB:           db,
		Directory:    runner.Directory,
		Ledger:       runner.Ledger,
		Runner:       runner,
		Interactions: interactions,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	if cfg.Automation.Autostart {
		runner.Start(cfg.Automation.Interval)
		log.Info().Dur("interval", cfg.Automation.Interval).Msg("automation autostarted")
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("base_path", cfg.APIBasePath).
			Str("version", version).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	// Stop the loop first so no cycle writes race the server teardown.
	runner.Stop()

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	log.Info().Msg("server stopped")
}

// setupLogger configures the global zerolog logger from config.
func setupLogger(cfg config.Config) {
	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
