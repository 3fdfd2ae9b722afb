package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/layer-3/tonauth/adapters/events"
	"github.com/layer-3/tonauth/adapters/store"
	"github.com/layer-3/tonauth/adapters/tokenizer"
	"github.com/layer-3/tonauth/config"
	"github.com/layer-3/tonauth/core"
	"github.com/layer-3/tonauth/ports"
	"github.com/layer-3/tonauth/service"
	apihttp "github.com/layer-3/tonauth/transport/http"
)

var serveDev bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the authentication backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

		signKey, err := signingKey(cfg, serveDev, logger)
		if err != nil {
			return err
		}

		var closers []io.Closer
		defer func() {
			for _, c := range closers {
				if err := c.Close(); err != nil {
					logger.Error("error closing resource", "err", err)
				}
			}
		}()

		var (
			authStore ports.Store
			eventPub  ports.EventPublisher
		)
		switch {
		case cfg.RedisURL != "":
			opts, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				return fmt.Errorf("failed to parse Redis URL: %w", err)
			}
			redisClient := redis.NewClient(opts)
			closers = append(closers, redisClient)
			if err := redisClient.Ping(cmd.Context()).Err(); err != nil {
				return fmt.Errorf("failed to reach Redis: %w", err)
			}

			publisher, err := redisstream.NewPublisher(
				redisstream.PublisherConfig{Client: redisClient},
				watermill.NewSlogLogger(logger),
			)
			if err != nil {
				return fmt.Errorf("failed to create Redis publisher: %w", err)
			}
			closers = append([]io.Closer{publisher}, closers...)

			authStore = store.NewRedisStore(redisClient)
			eventPub = events.NewWatermillPublisher(publisher)
			logger.Info("using Redis store and event stream")

		case cfg.NATSURL != "":
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				return err
			}
			closers = append(closers, pub)
			authStore = store.NewMemoryStore()
			eventPub = pub
			logger.Info("using in-memory store, events on NATS", "nats_url", cfg.NATSURL)

		default:
			authStore = store.NewMemoryStore()
			eventPub = events.NoopPublisher{}
			logger.Info("using in-memory store, events disabled")
		}

		tok, err := tokenizer.NewJWTTokenizer(signKey)
		if err != nil {
			return err
		}
		authService := service.NewAuthService(
			tok,
			authStore,
			eventPub,
			cfg.Service(),
			service.WithLogger(logger),
		)

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           apihttp.SetupRouter(authService, logger),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr, "domains", cfg.AllowedDomains)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		select {
		case err := <-errCh:
			return fmt.Errorf("HTTP server error: %w", err)
		case <-ctx.Done():
			logger.Info("shutting down")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("shutdown complete")
		return nil
	},
}

// signingKey loads the configured key. Without one, serve refuses to start
// unless dev mode asks for a throwaway key.
func signingKey(cfg *config.Config, dev bool, logger *slog.Logger) (*ecdsa.PrivateKey, error) {
	if cfg.SigningKeyPath != "" {
		return config.LoadSigningKey(cfg.SigningKeyPath)
	}
	if !dev {
		return nil, fmt.Errorf("TONAUTH_SIGNING_KEY not set (use --dev for a throwaway key): %w", core.ErrConfiguration)
	}
	logger.Warn("dev mode: using an ephemeral signing key; tokens will not survive a restart")
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}
	return key, nil
}

func init() {
	serveCmd.Flags().BoolVar(&serveDev, "dev", false, "generate a throwaway signing key when none is configured")
}
