// cmd/replay.go
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stackscope/internal/detection"
	"github.com/xkilldash9x/stackscope/internal/observability"
	"github.com/xkilldash9x/stackscope/internal/robots"
	"github.com/xkilldash9x/stackscope/internal/snapshot"
)

// newReplayCmd creates the `replay` command, which re-runs detection against
// previously captured snapshots without touching the network.
func newReplayCmd() *cobra.Command {
	var outputPath string
	var format string

	replayCmd := &cobra.Command{
		Use:   "replay <snapshot-file-or-dir>...",
		Short: "Re-run detection against captured snapshots, offline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			paths, err := resolveSnapshotPaths(args)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return fmt.Errorf("no snapshot files found")
			}

			// Replay has no live robots.txt data; the robots strategy degrades
			// to a zero-confidence result for every detector.
			collector := robots.NewCollector(cfg.Network.RobotsTimeout, logger)
			probers := detection.DefaultProbers(collector, logger)
			orch := detection.NewOrchestrator(nil, probers, logger)
			orch.SetThreshold(cfg.Detection.ConfidenceThreshold)

			outcomes := make([]detection.Outcome, 0, len(paths))
			for _, path := range paths {
				snap, err := snapshot.Load(path)
				if err != nil {
					logger.Warn("Skipping unreadable snapshot.",
						zap.String("path", path), zap.Error(err))
					outcomes = append(outcomes, detection.Outcome{
						Technology: detection.TechUnknown,
						Error:      fmt.Sprintf("loading snapshot %s: %v", path, err),
					})
					continue
				}
				page := snapshot.NewPageView(snap)
				outcomes = append(outcomes, orch.CheckPage(ctx, page, page.NavigationMetadata()))
			}

			return writeOutcomes(logger, outcomes, format, outputPath)
		},
	}

	replayCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path. Defaults to stdout.")
	replayCmd.Flags().StringVarP(&format, "format", "f", "jsonl", "Output format: jsonl, csv, or markdown.")

	return replayCmd
}

// resolveSnapshotPaths expands directories into the .json files they contain.
func resolveSnapshotPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", arg, err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			paths = append(paths, filepath.Join(arg, e.Name()))
		}
	}
	return paths, nil
}
