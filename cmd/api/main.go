package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callbridge/internal/audit"
	"callbridge/internal/auth"
	"callbridge/internal/calls"
	"callbridge/internal/config"
	"callbridge/internal/enrich"
	"callbridge/internal/lockout"
	"callbridge/internal/ratelimit"
	"callbridge/internal/webhook"
	"callbridge/pkg/logger"
	"callbridge/pkg/storage"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	db, err := storage.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), storage.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres open failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := storage.OpenRedis(ctx, storage.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis open failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	auditSvc := audit.NewService(audit.NewPostgresRepo(db))

	tokens, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth manager init failed", "err", err)
		os.Exit(1)
	}

	callRepo := calls.NewPostgresRepo(db)
	reconciler := calls.NewReconciler(callRepo)

	var summarizer enrich.Summarizer
	if cfg.Enrich.SummarizerURL != "" {
		summarizer = enrich.NewHTTPSummarizer(cfg.Enrich.SummarizerURL, cfg.Enrich.SummarizerAPIKey)
	}
	var quotes enrich.QuoteExtractor
	if cfg.Enrich.QuotesURL != "" {
		quotes = enrich.NewHTTPQuoteExtractor(cfg.Enrich.QuotesURL, cfg.Enrich.QuotesAPIKey)
	}
	dispatcher := enrich.NewDispatcher(callRepo, summarizer, quotes, cfg.Enrich.Timeout, log)
	if !dispatcher.Enabled() {
		log.Warn("no enrichers configured; completed calls will not be enriched")
	}

	deps := routeDeps{
		log:        log,
		tokens:     tokens,
		registry:   newProviderRegistry(cfg.Providers),
		reconciler: reconciler,
		callRepo:   callRepo,
		dispatcher: dispatcher,
		limiter:    ratelimit.NewLimiter(rdb),
		guard:      lockout.NewGuard(rdb),
		verifier:   auth.NewHTTPVerifier(cfg.Session),
		audit:      auditSvc,
		db:         db,
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           newRouter(cfg, deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", cfg.HTTPAddr(), "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	// Let in-flight enrichment branches land their writes before the pools close.
	if err := dispatcher.Drain(shutdownCtx); err != nil {
		log.Warn("enrichment drain incomplete", "err", err)
	}
	log.Info("shutdown complete")
}

func newProviderRegistry(p config.ProviderConfig) webhook.Registry {
	return webhook.NewRegistry(
		webhook.NewRetellAdapter(p.RetellWebhookSecret),
		webhook.NewVapiAdapter(p.VapiWebhookSecret),
		webhook.NewLiveKitAdapter(p.LiveKitWebhookToken, p.RecordingBucket),
	)
}
