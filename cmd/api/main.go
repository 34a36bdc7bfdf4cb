// Package main is the entry point for the API server.
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

	"go.uber.org/zap"

	"github.com/filo-ai/portal/internal/config"
	"github.com/filo-ai/portal/internal/handler"
	"github.com/filo-ai/portal/internal/legacy"
	"github.com/filo-ai/portal/internal/lifecycle"
	"github.com/filo-ai/portal/internal/llm"
	"github.com/filo-ai/portal/internal/middleware"
	"github.com/filo-ai/portal/internal/model"
	natsclient "github.com/filo-ai/portal/internal/nats"
	"github.com/filo-ai/portal/internal/reply"
	"github.com/filo-ai/portal/internal/service"
	"github.com/filo-ai/portal/internal/store"
	"github.com/filo-ai/portal/pkg/logger"
	"github.com/filo-ai/portal/pkg/tracing"
)

type stores struct {
	conversations store.Conversations
	users         store.Users
	uploads       store.Uploads
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.ForEnv(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server", zap.String("env", cfg.Env))

	ctx := context.Background()

	// Initialize tracing if enabled
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "filo-portal", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	checks := map[string]handler.Check{}

	// Persistence: JetStream when NATS is configured, memory otherwise
	var st stores
	if cfg.NATSURL != "" {
		natsClient, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer natsClient.Close()

		natsStore, err := natsclient.NewStore(ctx, natsClient)
		if err != nil {
			return fmt.Errorf("failed to open NATS store: %w", err)
		}
		st = stores{natsStore, natsStore, natsStore}
		checks["nats"] = func(context.Context) error {
			if !natsClient.IsConnected() {
				return errors.New("not connected")
			}
			return nil
		}
	} else {
		log.Warn("NATS_URL not set, using in-memory stores")
		mem := store.NewMemory()
		st = stores{mem, mem, mem}
	}

	legacyStore, err := legacy.Open(cfg.LegacyDBPath)
	if err != nil {
		return fmt.Errorf("failed to open legacy store: %w", err)
	}
	defer legacyStore.Close()
	checks["legacy"] = legacyStore.Ping

	// Initialize LLM client
	var llmClient llm.Client
	if key := cfg.APIKey(); key != "" {
		llmClient, err = llm.NewClient(ctx, llm.Provider(cfg.DefaultLLM), key)
		if err != nil {
			log.Warn("failed to create LLM client, replies disabled", zap.Error(err))
			llmClient = nil
		}
	} else if cfg.ReplyAPIURL == "" {
		log.Warn("no LLM API key configured, replies will fail", zap.String("provider", cfg.DefaultLLM))
	}

	tokens, err := middleware.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiration)
	if err != nil {
		return err
	}

	// Initialize services
	conversationSvc := service.NewConversationService(st.conversations, log)
	replySvc := service.NewReplyService(conversationSvc, llmClient, cfg.LLMModel, log)
	userSvc := service.NewUserService(st.users, tokens, log)

	// The chat view asks the reply API for each turn. Without an external
	// URL the in-process backend answers directly.
	replierFor := func(userID string) lifecycle.Replier {
		return lifecycle.ReplierFunc(func(ctx context.Context, conversationID, message string) (string, error) {
			return replySvc.Reply(ctx, userID, conversationID, message)
		})
	}
	if cfg.ReplyAPIURL != "" {
		client := reply.NewClient(cfg.ReplyAPIURL, cfg.ReplyTimeout, middleware.GetToken)
		replierFor = func(string) lifecycle.Replier { return client }
	}

	script := lifecycle.DefaultScript()
	manager := lifecycle.NewManager(lifecycle.NewInitialReplyGuard(), log)
	manager.Register(model.ViewModeChat, func(userID string) lifecycle.Repository {
		return lifecycle.NewRemoteRepository(userID, conversationSvc, replierFor(userID))
	})
	manager.Register(model.ViewModeRequest, func(string) lifecycle.Repository {
		return lifecycle.NewLocalRepository(legacyStore, script, cfg.LegacyReplyDelay)
	})

	router := handler.NewRouter(handler.RouterConfig{
		Logger:            log,
		JWTSecret:         cfg.JWTSecret,
		AllowedOrigins:    cfg.AllowedOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
		Health:            handler.NewHealthHandler(checks),
		Auth:              handler.NewAuthHandler(userSvc, log),
		Conversations:     handler.NewConversationHandler(conversationSvc, log),
		Requests:          handler.NewRequestHandler(legacyStore, log),
		Chat:              handler.NewChatHandler(replySvc, log),
		ChatViews:         handler.NewViewHandler(manager, model.ViewModeChat, st.uploads, log),
		RequestViews:      handler.NewViewHandler(manager, model.ViewModeRequest, st.uploads, log),
	})

	// Create HTTP server. Event streams are long-lived, so writes are not
	// bounded unless configured.
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-quit:
	}

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Closing the views ends their event streams so Shutdown does not wait
	// on them.
	manager.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	if err := manager.Drain(shutdownCtx); err != nil {
		log.Warn("in-flight replies did not finish", zap.Error(err))
	}

	log.Info("server stopped")
	return nil
}
