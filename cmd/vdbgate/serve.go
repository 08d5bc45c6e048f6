package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/hektorlabs/vdbgate/internal/auth"
	"github.com/hektorlabs/vdbgate/internal/config"
	"github.com/hektorlabs/vdbgate/internal/embeddings"
	"github.com/hektorlabs/vdbgate/internal/engine"
	"github.com/hektorlabs/vdbgate/internal/logging"
	"github.com/hektorlabs/vdbgate/internal/ratelimit"
	"github.com/hektorlabs/vdbgate/internal/server"
)

// Routes carrying stricter quotas than the default.
const (
	loginRoute = "/auth/login"
	batchRoute = "/collections/:name/documents/batch"
)

// runServe starts the gateway and blocks until a termination signal.
//
// Startup order: configuration, logger, credential store and token service,
// rate limiter, engine manager (eagerly initialized), HTTP server. Shutdown
// order is the reverse: the listener drains first, then the engine is
// flushed with its own bounded timeout.
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	logger.Info("starting vdbgate",
		zap.String("version", version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("engine_path", cfg.Engine.Path),
	)

	store, err := buildCredentialStore(cfg.Auth, logger)
	if err != nil {
		return fmt.Errorf("building credential store: %w", err)
	}

	tokens, err := auth.NewTokenService(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("initializing token service: %w", err)
	}

	var limiter ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewLocal(ratelimit.Config{
			Default: cfg.RateLimit.Default,
			Window:  cfg.RateLimit.Window,
			Overrides: map[string]int{
				loginRoute: cfg.RateLimit.LoginQuota,
				batchRoute: cfg.RateLimit.BatchQuota,
			},
			MaxKeys: cfg.RateLimit.MaxKeys,
		})
	} else {
		logger.Warn("rate limiting disabled")
	}

	manager := engine.NewManager(func() (engine.Engine, error) {
		embedder, err := buildEmbedder(cfg.Embeddings)
		if err != nil {
			return nil, err
		}
		return engine.NewChromemEngine(engine.ChromemConfig{
			Path:     cfg.Engine.Path,
			Compress: cfg.Engine.Compress,
		}, embedder, logger)
	}, logger)

	// Signal handling for graceful shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	// Eager initialization. A failure is not fatal to the process: the
	// gateway stays up in Failed state so /health can report the outage.
	if err := manager.Initialize(ctx); err != nil {
		logger.Error("engine initialization failed; serving in degraded state", zap.Error(err))
	}

	srv, err := server.New(server.Options{
		Config:  cfg.Server,
		Manager: manager,
		Store:   store,
		Tokens:  tokens,
		Limiter: limiter,
		Logger:  logger,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	err = srv.Start(ctx)
	if err != nil && err != http.ErrServerClosed {
		return err
	}

	// Listener is drained; flush the engine with a bounded timeout.
	syncCtx, syncCancel := context.WithTimeout(context.Background(), cfg.Engine.SyncTimeout)
	defer syncCancel()
	if err := manager.Shutdown(syncCtx); err != nil {
		logger.Warn("engine shutdown flush failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

// buildCredentialStore turns configured users into the credential store.
// With no users configured it falls back to admin/admin123 so a fresh
// install is reachable, and warns loudly.
func buildCredentialStore(cfg config.AuthConfig, logger *zap.Logger) (*auth.Store, error) {
	creds := make([]auth.Credential, 0, len(cfg.Users))
	for _, u := range cfg.Users {
		creds = append(creds, auth.Credential{
			Username:     u.Username,
			PasswordHash: u.PasswordHash,
			Role:         u.Role,
		})
	}

	if len(creds) == 0 {
		logger.Warn("no users configured; creating default admin user with password admin123 - change this in production")
		hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		creds = append(creds, auth.Credential{
			Username:     "admin",
			PasswordHash: string(hash),
			Role:         "admin",
		})
	}

	return auth.NewStore(creds)
}

// buildEmbedder selects the embedder per configuration.
func buildEmbedder(cfg config.EmbeddingsConfig) (embeddings.Embedder, error) {
	switch cfg.Provider {
	case "openai":
		return embeddings.NewOpenAIEmbedder(embeddings.OpenAIConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
		})
	default:
		return embeddings.NewLocalEmbedder(cfg.Dimension)
	}
}
