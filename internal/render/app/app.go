// Package app assembles the render pipeline from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/nemanja-m/ccrender/internal/render/core"
	"github.com/nemanja-m/ccrender/internal/render/remote"
	"github.com/nemanja-m/ccrender/internal/render/service"
	"github.com/nemanja-m/ccrender/internal/render/storage"
	"github.com/nemanja-m/ccrender/internal/shared/config"
	"github.com/nemanja-m/ccrender/internal/shared/logging"
)

type App struct {
	Client       *remote.Client
	Orchestrator core.Orchestrator
	Runs         core.RunStore
	Artifacts    core.ArtifactStore

	closers []io.Closer
}

// New wires the remote client, stores and services described by cfg. httpClient may
// be nil to use http.DefaultClient.
func New(ctx context.Context, cfg *config.RendererConfig, httpClient *http.Client, logger logging.Logger) (*App, error) {
	auth, err := remote.NewAuthProvider(ctx, cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}

	client, err := remote.NewClient(cfg.API, cfg.Breaker, httpClient, logger)
	if err != nil {
		return nil, err
	}

	a := &App{Client: client}

	a.Artifacts, err = newArtifactStore(cfg.Storage, cfg.Fetch)
	if err != nil {
		return nil, err
	}

	a.Runs, err = a.newRunStore(cfg.History)
	if err != nil {
		return nil, err
	}

	a.Orchestrator = service.NewOrchestrator(
		auth,
		client,
		service.NewStatusPoller(client, logger),
		service.NewResultFetcher(client, a.Artifacts, logger),
		a.Runs,
		service.OrchestratorOptions{
			Poll:      PollPolicy(cfg.Poll),
			Extension: cfg.Fetch.Extension,
		},
		logger,
	)
	return a, nil
}

func PollPolicy(cfg config.PollConfig) core.PollPolicy {
	return core.PollPolicy{
		MaxAttempts: cfg.MaxAttempts,
		Interval:    cfg.Interval,
		Backoff:     core.BackoffKind(cfg.Backoff),
		MaxInterval: cfg.MaxInterval,
	}
}

func newArtifactStore(cfg config.StorageConfig, fetch config.FetchConfig) (core.ArtifactStore, error) {
	switch cfg.Type {
	case "s3":
		client := storage.NewS3Client(cfg.S3)
		return storage.NewS3ArtifactStore(client, cfg.S3.Bucket, cfg.S3.Prefix, int64(fetch.ChunkSize)), nil
	case "local", "":
		store, err := storage.NewLocalArtifactStore(cfg.Local.Dir, fetch.ChunkSize)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

func (a *App) newRunStore(cfg config.HistoryConfig) (core.RunStore, error) {
	switch cfg.Type {
	case "redis":
		store := storage.NewRedisRunStore(storage.NewRedisClient(cfg.Redis), cfg.Redis.Prefix, cfg.Redis.TTL)
		a.closers = append(a.closers, store)
		return store, nil
	case "memory", "":
		return storage.NewInMemoryRunStore(), nil
	default:
		return nil, fmt.Errorf("unsupported history type: %s", cfg.Type)
	}
}

func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// NewLogger builds the process logger from the logging section.
func NewLogger(cfg config.LoggingConfig, w io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewSlogLoggerWithWriter(w, level, cfg.Format), nil
}
