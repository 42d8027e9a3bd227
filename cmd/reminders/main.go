package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmhodges/clock"

	"reminders/internal/auth"
	"reminders/internal/config"
	"reminders/internal/db"
	httpx "reminders/internal/http"
	"reminders/internal/jobs"
	"reminders/internal/llm"
	"reminders/internal/reminder"
	"reminders/internal/voice"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel()}))
	slog.SetDefault(log)

	gdb, err := db.Connect(cfg.Database.URL, log)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		log.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	clk := clock.New()

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		if secret, err = auth.DeriveSecret(cfg.Auth.APIToken); err != nil {
			log.Error("failed to derive token secret", "error", err)
			os.Exit(1)
		}
	}
	jwtSvc := auth.NewJWT(secret, cfg.Auth.TokenTTL, clk)

	provider, err := llm.NewProvider(cfg)
	switch {
	case errors.Is(err, llm.ErrDisabled):
		log.Info("voice parsing disabled")
	case err != nil:
		log.Error("failed to create llm provider", "error", err)
		os.Exit(1)
	}
	parser := voice.NewParser(provider, cfg.Parser.Model, cfg.Parser.MaxRetries, clk, log)

	whisper := &voice.Whisper{
		Bin:     cfg.Whisper.Bin,
		Model:   cfg.Whisper.Model,
		FFmpeg:  cfg.Whisper.FFmpeg,
		Timeout: cfg.Whisper.Timeout,
		Log:     log,
	}
	if err := whisper.Available(); err != nil {
		log.Warn("voice transcription unavailable", "error", err)
	}

	r := httpx.NewRouter(cfg, httpx.Deps{
		DB:          gdb,
		Clock:       clk,
		Log:         log,
		JWT:         jwtSvc,
		Parser:      parser,
		Transcriber: whisper,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Worker.Enabled {
		worker := &jobs.Worker{
			ID:           "worker-1",
			Repo:         jobs.NewRepo(gdb, clk),
			Reminders:    reminder.NewStore(gdb, clk),
			Log:          log,
			PollInterval: cfg.PollInterval(),
		}
		go worker.Run(ctx)
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
