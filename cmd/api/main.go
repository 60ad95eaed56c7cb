// Package main provides the API server entry point
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	dapr "github.com/dapr/go-sdk/client"
	"github.com/sirupsen/logrus"

	"github.com/chicogong/ffmpeg-chain/pkg/api"
	"github.com/chicogong/ffmpeg-chain/pkg/auth"
	"github.com/chicogong/ffmpeg-chain/pkg/compiler/validator"
	"github.com/chicogong/ffmpeg-chain/pkg/config"
	"github.com/chicogong/ffmpeg-chain/pkg/events"
	"github.com/chicogong/ffmpeg-chain/pkg/executor"
	"github.com/chicogong/ffmpeg-chain/pkg/logger"
	"github.com/chicogong/ffmpeg-chain/pkg/prober"
	"github.com/chicogong/ffmpeg-chain/pkg/registry"
	"github.com/chicogong/ffmpeg-chain/pkg/storage"
	"github.com/chicogong/ffmpeg-chain/pkg/store"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}

	log, err := logger.Build(cfg.LogLevel)
	if err != nil {
		logrus.WithError(err).Fatal("Cannot build logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux, broker, closeDapr, err := buildBackends(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Cannot initialize backends")
	}
	defer closeDapr()

	binary, err := executor.FindFFmpeg(cfg.FFmpegPath)
	if err != nil {
		log.WithError(err).Warn("ffmpeg not found, jobs will fail until it is installed")
		binary = "ffmpeg"
	}

	opts := []api.Option{
		api.WithLogger(log),
		api.WithRegistry(registry.Default()),
		api.WithExecutor(executor.NewExecutor(binary, executor.WithLogger(log), executor.WithStorage(mux))),
		api.WithProber(prober.NewProber(prober.WithFFprobePath(cfg.FFprobePath))),
		api.WithSourcePolicy(&validator.SourcePolicy{AllowLocalFiles: cfg.AllowLocalFiles}),
		api.WithEvents(broker),
		api.WithWorkDir(cfg.WorkDir),
	}
	if cfg.AuthEnabled() {
		mw, err := buildAuth(cfg)
		if err != nil {
			log.WithError(err).Fatal("Cannot initialize authentication")
		}
		opts = append(opts, api.WithAuth(mw))
	}

	server := api.NewServer(store.NewMemoryStore(), opts...)

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      server.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"addr":     cfg.Addr(),
			"ffmpeg":   binary,
			"registry": registry.TableVersion,
		}).Info("Starting server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Server forced to shutdown")
	}
	if err := server.Close(); err != nil {
		log.WithError(err).Warn("Failed to close server")
	}

	log.Info("Server stopped")
}

// buildBackends registers a storage backend per configured scheme and
// connects to the Dapr sidecar when pub/sub or bindings are used
func buildBackends(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*storage.Mux, *events.Broker, func(), error) {
	mux := storage.NewMux()
	web := storage.NewHTTPStorage(storage.WithUserAgent("ffmpeg-chain"))
	mux.Handle("http", web)
	mux.Handle("https", web)

	if cfg.S3Enabled() {
		s3, err := storage.NewS3Storage(ctx, storage.S3Options{
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			UsePathStyle: cfg.S3PathStyle,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		mux.Handle("s3", s3)
	}

	if cfg.PubSubName == "" && !cfg.DaprBinding {
		return mux, nil, func() {}, nil
	}

	client, err := dapr.NewClientWithPort(cfg.DaprGRPCPort)
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.DaprBinding {
		mux.Handle("dapr", storage.NewDaprStorage(client))
	}

	var broker *events.Broker
	if cfg.PubSubName != "" {
		log.WithFields(logrus.Fields{"pubsub": cfg.PubSubName, "topic": cfg.PubSubTopic}).Info("Publishing job events")
		broker = events.NewBroker(client, events.Options{
			PubSub: cfg.PubSubName,
			Topic:  cfg.PubSubTopic,
			Logger: log,
		})
	}
	return mux, broker, client.Close, nil
}

// buildAuth enables JWT when a secret is set and registers the configured
// API keys
func buildAuth(cfg *config.Config) (*auth.AuthMiddleware, error) {
	var jwtManager *auth.JWTManager
	if cfg.JWTSecret != "" {
		jwtManager = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	}

	var keys *auth.APIKeyManager
	if len(cfg.APIKeys) > 0 {
		keys = auth.NewAPIKeyManager()
		for _, pair := range cfg.APIKeys {
			user, key, _ := config.SplitAPIKey(pair)
			if _, err := keys.Register(key, user, "configured", nil); err != nil {
				return nil, err
			}
		}
	}

	return auth.NewAuthMiddleware(jwtManager, keys, !cfg.AuthRequired), nil
}
