package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/rowanlabs/cloudbrief/internal/api"
	"github.com/rowanlabs/cloudbrief/internal/pipeline"
)

// serveCmd runs the HTTP trigger: a scheduler (or a human with curl) POSTs
// /api/run and gets the run report back as JSON.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the pipeline as an HTTP trigger for scheduled invocation",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port, _ = cmd.Flags().GetInt("port")
		}

		coord, cleanup, err := buildCoordinator(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		router := api.NewRouter(func(ctx context.Context) (*pipeline.Report, error) {
			return coord.Run(ctx)
		})

		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("starting trigger server", "addr", addr)
		if err := http.ListenAndServe(addr, router); err != nil {
			return fmt.Errorf("serving trigger endpoint: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "HTTP listen port (default from config)")

	rootCmd.AddCommand(serveCmd)
}
