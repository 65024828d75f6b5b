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

	"emotag/internal/api"
	"emotag/internal/config"
	"emotag/internal/db"
	"emotag/internal/markup"
	"emotag/internal/mqtt"
	"emotag/internal/synth"
	"emotag/internal/voice"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.LoadServerConfig()
	if err != nil {
		logger.Error("load config failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	parser := markup.NewParser(cfg.ParserOptions())
	deps := api.Deps{
		Parser:         parser,
		MaxBodyBytes:   cfg.ReadBodyMaxBytes,
		StreamMaxFrame: cfg.StreamMaxFrame,
		Logger:         logger,
	}

	var (
		voices   synth.VoiceLookup
		recorder synth.PlanRecorder
	)
	if cfg.DBDSN != "" {
		store, err := db.New(ctx, cfg.DBDSN)
		if err != nil {
			logger.Error("connect db failed", "error", err)
			os.Exit(1)
		}
		defer store.Close()

		if err := store.Migrate(ctx); err != nil {
			logger.Error("migrate db failed", "error", err)
			os.Exit(1)
		}
		catalog := voice.NewCatalog(store, cfg.VoiceCacheTTL)
		deps.Store = store
		deps.Voices = catalog
		voices = catalog
		recorder = store
	} else {
		logger.Warn("DB_DSN not set, voice catalog disabled and voice ids are not validated")
	}

	client := synth.NewClient(cfg.SynthBaseURL, cfg.SynthTimeout)
	if !client.Enabled() {
		logger.Info("SYNTH_BASE_URL not set, requests are planned but not rendered")
	}
	service := synth.NewService(synth.NewPlanner(voices, parser), recorder, client, logger)
	deps.Service = service

	if cfg.MQTTBrokerURL != "" {
		hub := mqtt.NewHub(mqtt.HubConfig{
			BrokerURL:      cfg.MQTTBrokerURL,
			ClientID:       cfg.MQTTClientID,
			Username:       cfg.MQTTUsername,
			Password:       cfg.MQTTPassword,
			TopicPrefix:    cfg.MQTTTopicPrefix,
			RequestTimeout: cfg.SynthTimeout,
		}, service, logger)
		if err := hub.Start(ctx); err != nil {
			logger.Error("start mqtt hub failed", "error", err)
			os.Exit(1)
		}
		deps.Terminals = hub
		logger.Info("mqtt hub started", "broker", cfg.MQTTBrokerURL, "topic_prefix", cfg.MQTTTopicPrefix)
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("emotag server started",
			"addr", cfg.HTTPAddr,
			"adjacency", cfg.Adjacency,
			"keep_empty", cfg.KeepEmpty,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("received shutdown signal")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
}
