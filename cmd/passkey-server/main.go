// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeremyhahn/go-passkey/internal/config"
	"github.com/jeremyhahn/go-passkey/internal/rest"
	"github.com/jeremyhahn/go-passkey/internal/storage/sqlite"
	"github.com/jeremyhahn/go-passkey/pkg/health"
	"github.com/jeremyhahn/go-passkey/pkg/logger"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
	"github.com/jeremyhahn/go-passkey/pkg/ratelimit"
)

var (
	// Version information (set during build)
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	configPath := flag.String("config", "/etc/passkey/config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("go-passkey server\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Git Commit: %s\n", commit)
		fmt.Printf("  Built:      %s\n", date)
		os.Exit(0)
	}

	// Check for config file override via environment
	if envConfig := os.Getenv("PASSKEY_CONFIG"); envConfig != "" {
		*configPath = envConfig
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	log := newLogger(cfg.Logging)
	log.Info("Starting passkey server",
		logger.String("config", *configPath),
		logger.String("version", version),
		logger.String("rp_id", cfg.Passkey.RPID),
		logger.Int("port", cfg.Server.Port))

	if cfg.Metrics.Enabled {
		metrics.Enable()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.Enabled {
		collector := metrics.StartResourceCollector(ctx, 15*time.Second)
		defer collector.Stop()
	}

	// Credential store backend
	var (
		userStore       passkey.UserStore
		credentialStore passkey.CredentialStore
		challengeStore  passkey.ChallengeStore
		sweeper         rest.ChallengeSweeper
		checker         = health.NewChecker()
	)

	switch cfg.Storage.Backend {
	case "sqlite":
		store, err := sqlite.Open(cfg.Storage.Path)
		if err != nil {
			log.Fatal("Failed to open credential store", logger.Error(err))
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Error("Failed to close credential store", logger.Error(err))
			}
		}()
		if cfg.Storage.ChallengeTTL > 0 {
			store.SetChallengeTTL(cfg.Storage.ChallengeTTL)
		}
		userStore = store.Users()
		credentialStore = store.Credentials()
		challengeStore = store.Challenges()
		sweeper = store.Challenges()
		checker.RegisterCheck("store", health.StoreCheck("store", store.DB().PingContext))
	case "memory":
		memChallenges := passkey.NewMemoryChallengeStore()
		if cfg.Storage.ChallengeTTL > 0 {
			memChallenges = passkey.NewMemoryChallengeStoreWithTTL(cfg.Storage.ChallengeTTL)
		}
		userStore = passkey.NewMemoryUserStore()
		credentialStore = passkey.NewMemoryCredentialStore()
		challengeStore = memChallenges
		sweeper = memChallenges
	default:
		log.Fatal("Unknown storage backend", logger.String("backend", cfg.Storage.Backend))
	}

	// Session token issuer for post-login tokens
	params := passkey.ServiceParams{
		Config:          &cfg.Passkey,
		UserStore:       userStore,
		CredentialStore: credentialStore,
		ChallengeStore:  challengeStore,
	}
	if issuer, err := cfg.Auth.CreateTokenIssuer(); err != nil {
		log.Fatal("Failed to create token issuer", logger.Error(err))
	} else if issuer != nil {
		params.TokenIssuer = issuer
	}

	service, err := passkey.NewService(params)
	if err != nil {
		log.Fatal("Failed to create passkey service", logger.Error(err))
	}

	authenticator, err := cfg.Auth.CreateAuthenticator()
	if err != nil {
		log.Fatal("Failed to create authenticator", logger.Error(err))
	}

	tlsConfig, err := cfg.TLS.LoadTLSConfig()
	if err != nil {
		log.Fatal("Failed to load TLS configuration", logger.Error(err))
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(&cfg.RateLimit)
		defer limiter.Stop()
	}

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}

	server, err := rest.NewServer(&rest.Config{
		Port:          cfg.Server.Port,
		Service:       service,
		Version:       version,
		TLSConfig:     tlsConfig,
		Authenticator: authenticator,
		RateLimiter:   limiter,
		MetricsPath:   metricsPath,
		Logger:        log,
		ReadTimeout:   cfg.Server.ReadTimeout,
		WriteTimeout:  cfg.Server.WriteTimeout,
		IdleTimeout:   cfg.Server.IdleTimeout,
	})
	if err != nil {
		log.Fatal("Failed to create server", logger.Error(err))
	}
	server.SetHealthChecker(checker)

	// Background sweep of expired ceremony challenges
	stopCleanup := rest.StartChallengeCleanup(ctx, sweeper, time.Minute, log)
	defer stopCleanup()

	shutdownCtx := setupSignalHandler(log)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errChan <- err
		}
	}()

	checker.MarkStarted()
	log.Info("Passkey server started", logger.Int("port", server.Port()))

	select {
	case <-shutdownCtx.Done():
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error", logger.Error(err))
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()

	if err := server.Stop(stopCtx); err != nil {
		log.Error("Error during server shutdown", logger.Error(err))
		os.Exit(1)
	}

	log.Info("Passkey server stopped")
}

// newLogger builds the logging adapter from the config section.
func newLogger(cfg config.LoggingConfig) logger.Logger {
	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: slogLevel(cfg.Level),
	}
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return logger.NewSlogAdapter(&logger.SlogConfig{Handler: handler})
}

func slogLevel(level string) slog.Level {
	switch logger.ParseLevel(level) {
	case logger.LevelDebug:
		return slog.LevelDebug
	case logger.LevelWarn:
		return slog.LevelWarn
	case logger.LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupSignalHandler sets up signal handling for graceful shutdown
func setupSignalHandler(log logger.Logger) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-signalCh
		log.Info("Received shutdown signal")
		cancel()
	}()

	return ctx
}
