// cmd/detect.go
package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stackscope/internal/detection"
	"github.com/xkilldash9x/stackscope/internal/observability"
	"github.com/xkilldash9x/stackscope/internal/report"
)

// newDetectCmd creates the `detect` command, a single-URL check.
func newDetectCmd() *cobra.Command {
	var outputPath string
	var format string

	detectCmd := &cobra.Command{
		Use:   "detect <url>",
		Short: "Identify the technology behind a single URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			eng, cleanup, err := buildEngine(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
				defer cancel()
				cleanup(shutdownCtx)
			}()

			target := args[0]
			if err := eng.robots.Collect(ctx, target); err != nil {
				logger.Debug("robots.txt collection failed.", zap.String("url", target), zap.Error(err))
			}

			outcome := eng.orch.Check(ctx, target)
			return writeOutcomes(logger, []detection.Outcome{outcome}, format, outputPath)
		},
	}

	detectCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path. Defaults to stdout.")
	detectCmd.Flags().StringVarP(&format, "format", "f", "jsonl", "Output format: jsonl, csv, or markdown.")

	return detectCmd
}

// writeOutcomes renders outcomes with the requested reporter.
func writeOutcomes(logger *zap.Logger, outcomes []detection.Outcome, format, outputPath string) error {
	reporter, err := report.New(format, outputPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := reporter.Close(); err != nil {
			logger.Warn("Failed to close reporter cleanly.", zap.Error(err))
		}
	}()

	return reporter.Write(outcomes)
}
