// Package batch drives technology checks for many URLs concurrently, in
// either live or snapshot-replay mode.
package batch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/stackscope/internal/config"
	"github.com/xkilldash9x/stackscope/internal/detection"
	"github.com/xkilldash9x/stackscope/internal/snapshot"
)

// Checker runs the detection pipeline for one URL or one already-loaded page.
// The orchestrator is the production implementation.
type Checker interface {
	Check(ctx context.Context, target string) detection.Outcome
	CheckPage(ctx context.Context, page detection.PageView, meta *detection.NavigationMetadata) detection.Outcome
}

// RobotsCollector primes robots.txt evidence for a host before its pages are
// checked.
type RobotsCollector interface {
	Collect(ctx context.Context, pageURL string) error
}

// Runner fans a list of URLs out over a bounded worker pool, rate limiting
// the starts so a large batch does not hammer shared infrastructure.
type Runner struct {
	batchCfg config.BatchConfig
	checker  Checker
	provider detection.ContextProvider
	robots   RobotsCollector
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// NewRunner assembles a batch runner. provider may be nil when the mode never
// goes live (pure replay of existing snapshots).
func NewRunner(
	batchCfg config.BatchConfig,
	checker Checker,
	provider detection.ContextProvider,
	robotsCollector RobotsCollector,
	logger *zap.Logger,
) *Runner {
	return &Runner{
		batchCfg: batchCfg,
		checker:  checker,
		provider: provider,
		robots:   robotsCollector,
		limiter:  rate.NewLimiter(rate.Limit(batchCfg.RateLimit), 1),
		logger:   logger.Named("batch"),
	}
}

// Run checks every URL and returns one outcome per input, in input order.
// Individual failures are reported inside their outcome; Run only returns an
// error when the whole batch is aborted (context cancellation).
func (r *Runner) Run(ctx context.Context, urls []string) ([]detection.Outcome, error) {
	outcomes := make([]detection.Outcome, len(urls))

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.batchCfg.Workers)

	r.logger.Info("Starting batch run.",
		zap.Int("urls", len(urls)),
		zap.Int("workers", r.batchCfg.Workers),
		zap.String("mode", r.batchCfg.Mode),
	)
	start := time.Now()

	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			if err := r.limiter.Wait(groupCtx); err != nil {
				return err
			}
			outcomes[i] = r.checkOne(groupCtx, u)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return outcomes, fmt.Errorf("batch aborted: %w", err)
	}

	r.logger.Info("Batch run complete.",
		zap.Int("urls", len(urls)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return outcomes, nil
}

func (r *Runner) checkOne(ctx context.Context, target string) detection.Outcome {
	if r.batchCfg.Mode == config.ModeSnapshot {
		return r.checkSnapshot(ctx, target)
	}
	return r.checkLive(ctx, target)
}

func (r *Runner) checkLive(ctx context.Context, target string) detection.Outcome {
	r.collectRobots(ctx, target)
	return r.checker.Check(ctx, target)
}

// collectRobots primes robots.txt evidence for the target's host. The
// evidence is optional; a failed collection only weakens confidence, it
// never fails the check.
func (r *Runner) collectRobots(ctx context.Context, target string) {
	if r.robots == nil {
		return
	}
	if err := r.robots.Collect(ctx, target); err != nil {
		r.logger.Debug("robots.txt collection failed.",
			zap.String("url", target), zap.Error(err))
	}
}

// checkSnapshot replays a previously captured snapshot of the URL. When none
// exists yet it captures one live, persists it, and judges the captured copy
// so replays of this batch are deterministic.
func (r *Runner) checkSnapshot(ctx context.Context, target string) detection.Outcome {
	path := snapshotPath(r.batchCfg.SnapshotDir, target)

	if snap, err := snapshot.Load(path); err == nil {
		page := snapshot.NewPageView(snap)
		return r.checker.CheckPage(ctx, page, page.NavigationMetadata())
	} else if !errors.Is(err, os.ErrNotExist) {
		r.logger.Warn("Discarding unreadable snapshot.",
			zap.String("path", path), zap.Error(err))
	}

	if r.provider == nil {
		return detection.Outcome{
			Technology:  detection.TechUnknown,
			OriginalURL: target,
			FinalURL:    target,
			Error:       "no snapshot available and live capture is disabled",
		}
	}

	return r.captureAndCheck(ctx, target, path)
}

func (r *Runner) captureAndCheck(ctx context.Context, target, path string) detection.Outcome {
	r.collectRobots(ctx, target)

	snap, err := r.capture(ctx, target)
	if err != nil {
		// Capture failure is not fatal for the URL; fall back to a plain
		// live check.
		r.logger.Warn("Snapshot capture failed, falling back to live detection.",
			zap.String("url", target), zap.Error(err))
		return r.checker.Check(ctx, target)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		r.logger.Warn("Failed to create snapshot directory.", zap.Error(err))
	}
	if err := snapshot.Save(snap, path); err != nil {
		r.logger.Warn("Failed to persist snapshot.",
			zap.String("path", path), zap.Error(err))
	}

	// Judge the captured copy, not the live page, so this run and every
	// replay of it agree.
	page := snapshot.NewPageView(snap)
	return r.checker.CheckPage(ctx, page, page.NavigationMetadata())
}

// capture navigates an isolated context to the target and drains its
// observable surface into a snapshot.
func (r *Runner) capture(ctx context.Context, target string) (*snapshot.Snapshot, error) {
	bc, err := r.provider.AcquireContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring browser context: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		if err := bc.Close(closeCtx); err != nil {
			r.logger.Warn("Failed to release browser context.", zap.Error(err))
		}
	}()

	meta, err := bc.Navigate(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("navigation failed: %w", err)
	}

	return snapshot.Capture(ctx, bc.Page(), meta, snapshot.DefaultProbePaths(), r.logger)
}

// snapshotPath maps a URL onto a stable file name inside the snapshot
// directory.
func snapshotPath(dir, rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return filepath.Join(dir, hex.EncodeToString(sum[:8])+".json")
}
