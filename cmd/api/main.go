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

	"crm-platform/internal/auth"
	"crm-platform/internal/config"
	"crm-platform/internal/extraction"
	"crm-platform/internal/gmail"
	"crm-platform/internal/httpapi"
	"crm-platform/internal/identity"
	"crm-platform/internal/ingest"
	"crm-platform/internal/knowledge"
	"crm-platform/internal/mail"
	"crm-platform/internal/openai"
	"crm-platform/internal/reporting"
	"crm-platform/internal/storage"
	"crm-platform/internal/telephony"
	"crm-platform/pkg/logger"
	"crm-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("config invalid", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	store := storage.NewStore(db)

	rules := mail.DefaultRules()
	if cfg.Ingest.FilterRulesPath != "" {
		rules, err = mail.LoadRules(cfg.Ingest.FilterRulesPath)
		if err != nil {
			log.Error("filter rules load failed", "path", cfg.Ingest.FilterRulesPath, "err", err)
			os.Exit(1)
		}
	}
	filter, err := mail.NewFilter(rules)
	if err != nil {
		log.Error("filter init failed", "err", err)
		os.Exit(1)
	}

	ai := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.ChatModel, cfg.OpenAI.TranscribeModel)
	pool := ingest.NewPool(cfg.Ingest.Workers, 0, log)

	orchestrator := ingest.NewOrchestrator(ingest.Options{
		Repo:        store,
		Resolver:    identity.NewResolver(store),
		Engine:      extraction.NewEngine(ai),
		Knowledge:   knowledge.NewService(store, log),
		Transcriber: ai,
		Fetcher:     telephony.NewAudioFetcher(nil),
		Mail:        ingest.GmailProvider{Client: gmail.NewClient(cfg.Google.ClientID, cfg.Google.ClientSecret)},
		Filter:      filter,
		Lock:        ingest.NewRedisSyncLock(rdb, 0),
		Pool:        pool,
		Lookback:    cfg.Ingest.SyncLookback,
		Log:         log,
	})

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		Webhooks: telephony.WebhookHandler{
			Directory:    store,
			Pipeline:     orchestrator,
			VoiceURL:     cfg.VoiceWebhookURL(),
			RecordingURL: cfg.RecordingCallbackURL(),
		},
		API: httpapi.Handlers{
			Auth:      authManager,
			Repo:      store,
			Reporting: reporting.NewService(store),
			Sync:      orchestrator,
		},
		AuthMW: auth.RequireAccessToken(authManager),
		Health: healthProbe(db, rdb),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	// Drain in-flight transcription work before exiting.
	pool.Shutdown()

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
