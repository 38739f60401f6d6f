// Package main is the entry point for the cloudbrief CLI: announcement
// filtering based on what an account actually uses.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rowanlabs/cloudbrief/internal/ai"
	"github.com/rowanlabs/cloudbrief/internal/config"
	"github.com/rowanlabs/cloudbrief/internal/feeds"
	"github.com/rowanlabs/cloudbrief/internal/ledger"
	"github.com/rowanlabs/cloudbrief/internal/notify"
	"github.com/rowanlabs/cloudbrief/internal/pipeline"
	"github.com/rowanlabs/cloudbrief/internal/usage"
)

// rootCmd is the base command for the cloudbrief CLI.
var rootCmd = &cobra.Command{
	Use:   "cloudbrief",
	Short: "Cloud announcement notifier based on your usage patterns",
	Long: `cloudbrief filters the provider's "what's new" feed down to the
announcements that matter to you: it resolves which services your account
actually pays for, asks an LLM whether each announcement touches one of them,
and delivers the relevant ones to the console and optionally Slack. A local
ledger keeps re-runs from notifying about the same announcement twice.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "config.toml", "path to config file")
	rootCmd.PersistentFlags().String("log-level", "", "log level (DEBUG, INFO, WARNING, ERROR, CRITICAL)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "show detailed announcement information")
}

// loadConfig reads the config file named by --config and applies flag
// overrides shared by all subcommands.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Run.LogLevel, _ = cmd.Flags().GetString("log-level")
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Run.Verbose, _ = cmd.Flags().GetBool("verbose")
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))

	return cfg, nil
}

// buildCoordinator wires the pipeline's collaborators from config. The
// returned cleanup closes the ledger.
func buildCoordinator(cfg *config.Config) (*pipeline.Coordinator, func(), error) {
	classifier, err := ai.NewClassifier(ai.ProviderConfig{
		Provider: cfg.AI.Provider,
		APIKey:   cfg.AI.APIKey,
		Model:    cfg.AI.Model,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating classifier: %w", err)
	}

	var led ledger.Ledger
	if cfg.Ledger.NoHistory {
		slog.Info("history tracking disabled, announcements will repeat across runs")
		led = ledger.Noop{}
	} else {
		led, err = ledger.Open(cfg.Ledger.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening ledger: %w", err)
		}
	}

	sinks := []notify.Sink{notify.NewConsole(os.Stdout)}
	if cfg.Slack.Enabled {
		sinks = append(sinks, notify.NewSlack(cfg.Slack.Token, cfg.Slack.Channel))
		slog.Info("slack notifications enabled", "channel", cfg.Slack.Channel)
	}

	coord := pipeline.New(
		usage.NewClient(cfg.Usage.Endpoint, cfg.Usage.APIToken),
		feeds.NewFetcher(cfg.Feed.URL),
		classifier,
		led,
		notify.NewDispatcher(sinks...),
		pipeline.Options{
			WindowDays:       cfg.Usage.WindowDays,
			Scope:            usage.Scope(cfg.Usage.Scope),
			DaysBack:         cfg.Feed.DaysBack,
			FetchFullContent: cfg.Feed.FetchFullContent,
			MaxWorkers:       cfg.Run.MaxWorkers,
			ItemTimeout:      time.Duration(cfg.Run.ItemTimeoutSeconds) * time.Second,
			Verbose:          cfg.Run.Verbose,
		},
	)

	return coord, func() { led.Close() }, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
