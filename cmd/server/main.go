package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"chatrelay.dev/context-bot/internal/api"
	"chatrelay.dev/context-bot/internal/bot"
	"chatrelay.dev/context-bot/internal/config"
	"chatrelay.dev/context-bot/internal/core"
	"chatrelay.dev/context-bot/internal/logger"
	"chatrelay.dev/context-bot/internal/store"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	appLog, err := logger.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		appLog.Fatal("failed to initialize database", "error", err)
	}
	defer dbStore.Close()

	completer, closeCompleter, err := newCompleter(cfg, appLog)
	if err != nil {
		appLog.Fatal("failed to initialize completion provider", "provider", cfg.CompletionProvider, "error", err)
	}
	defer closeCompleter()

	var transcriber core.Transcriber
	if cfg.OpenAIAPIKey != "" {
		transcriber = core.NewOpenAIService(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.TranscriptionModel)
	} else {
		appLog.Warn("OPENAI_API_KEY not set, voice messages are disabled")
	}

	messenger, err := bot.NewTelegramMessenger(cfg.TelegramToken)
	if err != nil {
		appLog.Fatal("failed to initialize telegram client", "error", err)
	}

	relayBot := bot.New(bot.Options{
		Store:       dbStore,
		Relay:       core.NewChatService(dbStore, completer, cfg.HistoryWindow, cfg.ReplyChunkSize),
		Transcriber: transcriber,
		Messenger:   messenger,
		Logger:      appLog,
		Name:        messenger.Username(),
		AdminID:     cfg.AdminUserID,
		PageSize:    cfg.SelectorPageSize,
	})

	apiOpts := api.Options{Store: dbStore, Logger: appLog, AdminToken: cfg.AdminAPIToken}
	if cfg.TransportMode == config.TransportWebhook {
		path, err := webhookPath(cfg.WebhookURL)
		if err != nil {
			appLog.Fatal("invalid webhook url", "error", err)
		}
		apiOpts.Decoder = messenger
		apiOpts.Dispatcher = relayBot
		apiOpts.WebhookPath = path
	}

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      api.NewRouter(api.NewAPIHandler(apiOpts)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		appLog.Info("starting HTTP server", "addr", serverAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("could not listen on %s: %w", serverAddr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		appLog.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	switch cfg.TransportMode {
	case config.TransportWebhook:
		if err := messenger.SetWebhook(cfg.WebhookURL); err != nil {
			appLog.Fatal("failed to register webhook", "error", err)
		}
		appLog.Info("receiving updates via webhook", "url", cfg.WebhookURL)
	default:
		g.Go(func() error {
			appLog.Info("receiving updates via long polling", "bot", messenger.Username())
			return messenger.Poll(gctx, relayBot.Dispatch)
		})
	}

	if err := g.Wait(); err != nil {
		appLog.Error("server stopped with error", "error", err)
	}

	// In-flight turns finish before the store closes.
	relayBot.Wait()
	appLog.Info("server exiting gracefully")
}

func newCompleter(cfg *config.Config, log *logger.Logger) (core.Completer, func(), error) {
	switch cfg.CompletionProvider {
	case config.ProviderGemini:
		gemini, err := core.NewGeminiService(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel, log)
		if err != nil {
			return nil, nil, err
		}
		return gemini, gemini.Close, nil
	default:
		return core.NewOpenAIService(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.TranscriptionModel), func() {}, nil
	}
}

// webhookPath is the local route Telegram will post to for the given URL.
func webhookPath(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "https" {
		return "", fmt.Errorf("webhook url must use https, got %q", raw)
	}
	if u.Path == "" || u.Path == "/" {
		return api.DefaultWebhookPath, fmt.Errorf("webhook url %q needs a path, e.g. %s", raw, api.DefaultWebhookPath)
	}
	return u.Path, nil
}
