package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/adultally/ally/backend/internal/config"
	"github.com/adultally/ally/backend/internal/handler"
	"github.com/adultally/ally/backend/internal/model/persona"
	"github.com/adultally/ally/backend/internal/service/ai"
	"github.com/adultally/ally/backend/internal/service/identity"
	"github.com/adultally/ally/backend/internal/service/session"
	"github.com/adultally/ally/backend/internal/service/workspace"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if envErr != nil {
		logger.Info("no .env file loaded, using process environment", zap.Error(envErr))
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	store, err := cfg.Storage.Open()
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()
	logger.Info("storage ready", zap.String("backend", cfg.Storage.Backend), zap.String("path", cfg.Storage.Path))

	registry := persona.MustNewRegistry(persona.Seed())

	completer, err := newCompleter(ctx, cfg, logger)
	if err != nil {
		logger.Warn("completion backend unavailable, chat replies will fail", zap.String("provider", cfg.AI.Provider), zap.Error(err))
		cause := err
		completer = ai.CompleterFunc(func(context.Context, ai.Request) (string, error) {
			return "", &ai.StatusError{Code: http.StatusServiceUnavailable, Err: cause}
		})
	} else {
		logger.Info("completion backend ready", zap.String("provider", cfg.AI.Provider))
	}

	workspaces := workspace.NewManager(store, registry, completer, session.Config{
		DeliveryDelay:     cfg.Session.DeliveryDelay,
		CompletionTimeout: cfg.Session.CompletionTimeout,
	}, logger)
	defer workspaces.Close()

	router := handler.NewRouter(handler.Deps{
		Registry:       registry,
		Workspaces:     workspaces,
		Resolver:       identity.NewGoogleResolver(identity.NewDirectory(store)),
		Completer:      completer,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		SecureCookies:  cfg.Server.SecureCookies,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("ally backend listening", zap.String("addr", cfg.Server.Addr))
	return runServer(ctx, srv)
}

func newCompleter(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ai.Completer, error) {
	switch cfg.AI.Provider {
	case config.ProviderArk:
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			return nil, err
		}
		return ai.NewService(ctx, chatModel, logger)
	case config.ProviderRemote:
		return ai.NewRemoteClient(cfg.AI.RemoteURL, cfg.Session.CompletionTimeout), nil
	default:
		return ai.NewGeminiCompleter(ctx, cfg.AI.GeminiAPIKey, cfg.AI.GeminiModel)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
