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

	"github.com/spf13/cobra"

	"github.com/nemanja-m/ccrender/internal/render/api/grpc"
	"github.com/nemanja-m/ccrender/internal/render/api/rest"
	"github.com/nemanja-m/ccrender/internal/render/app"
	"github.com/nemanja-m/ccrender/internal/render/service"
	"github.com/nemanja-m/ccrender/internal/shared/config"
)

const (
	shutdownTimeout = 30 * time.Second
	// Canceled renders need this long to record their outcome and respond.
	drainGrace = 10 * time.Second
)

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the REST and gRPC health servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadRenderer(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return serve(cfg)
		},
	}
}

func serve(cfg *config.RendererConfig) error {
	logger, err := app.NewLogger(cfg.Logging, os.Stdout)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, &http.Client{}, logger)
	if err != nil {
		return fmt.Errorf("failed to build renderer: %w", err)
	}
	defer a.Close()

	grpcServer := grpc.NewServer(cfg.GRPC, logger)
	monitor := service.NewRemoteHealthMonitor(cfg.Health.CheckInterval, a.Client, grpcServer, logger)
	go monitor.Start(ctx)

	api := rest.NewAPI(a.Orchestrator, a.Runs, a.Artifacts, a.Client, logger)
	// Canceled by Drain; ctx stays live until the REST server has drained.
	runCtx, cancelRuns := context.WithCancel(context.Background())
	defer cancelRuns()
	restServer := rest.NewServer(runCtx, cfg.REST, api, logger)

	errCh := make(chan error, 2)
	go func() {
		logger.Info("Starting REST API server", "addr", cfg.REST.Addr)
		if err := restServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("rest server: %w", err)
		}
	}()
	go func() {
		if err := grpcServer.Start(); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-errCh:
		logger.Error("Server failed", "error", err)
		cancelRuns()
		cancel()
		grpcServer.Stop()
		return err
	}

	logger.Info("Shutting down servers...")

	err = rest.Drain(restServer, cancelRuns, shutdownTimeout, drainGrace)
	cancel()
	grpcServer.Stop()
	if err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Servers stopped")
	return nil
}
