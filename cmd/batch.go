// cmd/batch.go
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stackscope/internal/batch"
	"github.com/xkilldash9x/stackscope/internal/config"
	"github.com/xkilldash9x/stackscope/internal/detection"
	"github.com/xkilldash9x/stackscope/internal/observability"
	"github.com/xkilldash9x/stackscope/internal/store"
)

// newBatchCmd creates the `batch` command, which checks a file of URLs
// concurrently.
func newBatchCmd() *cobra.Command {
	var inputPath string
	var outputPath string
	var format string
	var persist bool

	batchCmd := &cobra.Command{
		Use:   "batch -i <urls-file>",
		Short: "Check a list of URLs concurrently",
		Long: `Reads URLs (one per line, # starts a comment) and runs the detection
pipeline for each over a bounded worker pool. In snapshot mode, previously
captured snapshots are replayed; missing ones are captured live first.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("batch.workers", cmd.Flags().Lookup("workers")); err != nil {
				return err
			}
			if err := viper.BindPFlag("batch.mode", cmd.Flags().Lookup("mode")); err != nil {
				return err
			}
			if err := viper.BindPFlag("batch.rate_limit", cmd.Flags().Lookup("rate")); err != nil {
				return err
			}
			return viper.BindPFlag("batch.snapshot_dir", cmd.Flags().Lookup("snapshot-dir"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			urls, err := readURLFile(inputPath)
			if err != nil {
				return err
			}
			if len(urls) == 0 {
				return fmt.Errorf("no URLs found in %s", inputPath)
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

			runner := batch.NewRunner(cfg.Batch, eng.orch, eng.provider, eng.robots, logger)
			outcomes, err := runner.Run(ctx, urls)
			if err != nil {
				return err
			}

			if persist {
				if err := persistOutcomes(ctx, logger, cfg, outcomes); err != nil {
					return err
				}
			}

			return writeOutcomes(logger, outcomes, format, outputPath)
		},
	}

	batchCmd.Flags().StringVarP(&inputPath, "input", "i", "", "File with one URL per line (required)")
	_ = batchCmd.MarkFlagRequired("input")
	batchCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path. Defaults to stdout.")
	batchCmd.Flags().StringVarP(&format, "format", "f", "jsonl", "Output format: jsonl, csv, or markdown.")
	batchCmd.Flags().Int("workers", 0, "Number of concurrent workers")
	batchCmd.Flags().String("mode", "", "Run mode: live or snapshot")
	batchCmd.Flags().Float64("rate", 0, "Maximum checks started per second")
	batchCmd.Flags().String("snapshot-dir", "", "Directory for captured snapshots")
	batchCmd.Flags().BoolVar(&persist, "store", false, "Persist outcomes to the configured database")

	return batchCmd
}

// readURLFile loads the target list, skipping blanks and comments.
func readURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open URL file: %w", err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read URL file: %w", err)
	}
	return urls, nil
}

// persistOutcomes saves the batch to PostgreSQL under a fresh run ID.
func persistOutcomes(ctx context.Context, logger *zap.Logger, cfg *config.Config, outcomes []detection.Outcome) error {
	if cfg.Database.URL == "" {
		return fmt.Errorf("database URL is not configured (STACKSCOPE_DATABASE_URL)")
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	st, err := store.New(ctx, pool, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}

	runID, err := st.SaveOutcomes(ctx, outcomes)
	if err != nil {
		return fmt.Errorf("failed to persist outcomes: %w", err)
	}
	logger.Info("Outcomes persisted.", zap.String("run_id", runID))
	return nil
}
