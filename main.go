package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"itemscan/internal/config"
	"itemscan/internal/llm"
	"itemscan/internal/scan"
	"itemscan/internal/search"
	"itemscan/internal/server"
	"itemscan/internal/storage"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := config.Load()
	ctx := context.Background()

	var analyzer llm.Analyzer
	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGemini(ctx, cfg.GeminiAPIKey)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize Gemini client")
		}
		analyzer = gemini
	} else {
		// The server still starts so the misconfiguration is reported
		// per request instead of crash-looping the process.
		log.Warn().Msg("GEMINI_API_KEY is not set; scan requests will fail")
	}

	var store scan.Store
	var searcher scan.Searcher
	if cfg.Enrichment() {
		s, err := storage.New(ctx, storage.Options{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize object storage")
		}
		store = s
		searcher = search.NewLens(search.LensOpts{APIKey: cfg.SerpAPIKey})
		log.Info().Str("bucket", cfg.MinioBucket).Msg("web search enrichment enabled")
	} else {
		log.Info().Msg("web search enrichment disabled")
	}

	orchestrator := scan.New(analyzer, store, searcher, cfg.VisionTimeout)
	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.New(orchestrator, cfg.GeminiAPIKey != "").Router(),
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server listen error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
}
