package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nemanja-m/ccrender/internal/render/api/rest"
	"github.com/nemanja-m/ccrender/internal/render/app"
	"github.com/nemanja-m/ccrender/internal/shared/config"
)

func newRenderCommand(configPath *string) *cobra.Command {
	var (
		req rest.RenderRequest
		dpi int
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one design and store its artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadRenderer(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			// Keep stdout for the outcome document.
			logger, err := app.NewLogger(cfg.Logging, os.Stderr)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, &http.Client{}, logger)
			if err != nil {
				return fmt.Errorf("failed to build renderer: %w", err)
			}
			defer a.Close()

			if cmd.Flags().Changed("dpi") {
				req.DPI = &dpi
			}
			outcome := a.Orchestrator.Run(ctx, req.ToJobRequest())

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(rest.ToOutcomeResponse(outcome)); err != nil {
				return err
			}
			if !outcome.Succeeded() {
				return fmt.Errorf("render failed: %s", outcome.Reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&req.DesignID, "design", "", "saved design (state) ID")
	cmd.Flags().StringVar(&req.OwnerID, "owner", "", "owner (user) ID")
	cmd.Flags().StringVar(&req.OutputName, "name", "", "output name (default resultfile_<design>)")
	cmd.Flags().StringVar(&req.Format, "format", string(rest.DefaultFormat), "output format")
	cmd.Flags().StringVar(&req.ColorSpace, "color-space", string(rest.DefaultColorSpace), "output color space")
	cmd.Flags().IntVar(&dpi, "dpi", rest.DefaultDPI, "output resolution")
	cmd.MarkFlagRequired("design")
	cmd.MarkFlagRequired("owner")

	return cmd
}
