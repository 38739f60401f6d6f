package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rowanlabs/cloudbrief/internal/config"
	"github.com/rowanlabs/cloudbrief/internal/usage"
)

// runCmd executes the pipeline once and exits.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch, classify, and deliver relevant announcements once",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		applyRunFlags(cmd, cfg)

		coord, cleanup, err := buildCoordinator(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		report, err := coord.Run(cmd.Context())
		if err != nil {
			if usage.IsFatal(err) {
				fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			}
			return err
		}

		if report.RelevantCount == 0 {
			fmt.Fprintln(os.Stdout, "No relevant announcements found for your services.")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().Int("days-back", 0, "days of announcements to consider (default from config)")
	runCmd.Flags().Int("workers", 0, "parallel classification workers (default from config)")
	runCmd.Flags().String("model", "", "model id for classification (default from config)")
	runCmd.Flags().Bool("no-history", false, "disable the dedup ledger for this run")
	runCmd.Flags().Bool("slack", false, "enable Slack delivery for this run")

	rootCmd.AddCommand(runCmd)
}

// applyRunFlags overlays run-scoped flag values on the loaded config.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("days-back") {
		cfg.Feed.DaysBack, _ = cmd.Flags().GetInt("days-back")
	}
	if cmd.Flags().Changed("workers") {
		cfg.Run.MaxWorkers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("model") {
		cfg.AI.Model, _ = cmd.Flags().GetString("model")
	}
	if cmd.Flags().Changed("no-history") {
		cfg.Ledger.NoHistory, _ = cmd.Flags().GetBool("no-history")
	}
	if cmd.Flags().Changed("slack") {
		cfg.Slack.Enabled, _ = cmd.Flags().GetBool("slack")
	}
}
