package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"studio/internal/http/handlers"
	"studio/internal/http/httpapi"
	"studio/internal/infra"
	"studio/internal/infra/geoip"
	"studio/internal/middleware"
	"studio/internal/providers/genai"
	"studio/internal/providers/image"
	"studio/internal/providers/qwen"
	"studio/internal/session"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
		resolver = nil
	}
	var lookup middleware.CountryLookup
	if resolver != nil {
		lookup = resolver.CountryCode
	}

	geminiClient, err := genai.NewClient(genai.Options{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("gemini client init failed")
	}
	qwenClient, err := qwen.NewClient(qwen.Options{
		APIKey:  cfg.QwenAPIKey,
		BaseURL: cfg.QwenBaseURL,
		Model:   cfg.QwenModel,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("qwen client init failed")
	}
	editors := map[string]image.Editor{
		"gemini": image.NewGeminiEditor(geminiClient),
		"qwen":   image.NewQwenEditor(qwenClient),
	}

	sessions := session.NewStore(cfg.SessionTTL, logger)
	defer sessions.Stop()

	app := handlers.NewApp(cfg, logger, sessions, editors)
	router := httpapi.NewRouter(cfg, logger, app, lookup)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("port", cfg.Port).Str("provider", cfg.ImageProvider).Msg("api listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	_ = resolver.Close()
	logger.Info().Msg("server stopped")
}
