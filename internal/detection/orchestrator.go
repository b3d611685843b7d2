// internal/detection/orchestrator.go
package detection

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DecisionThreshold is the confidence at which a verdict is accepted and
// probing stops. Treated as a tunable constant, not a law.
const DecisionThreshold = 0.6

const contextReleaseTimeout = 15 * time.Second

// ErrValidation marks a malformed or unsupported input URL. It is returned
// before any browsing context is acquired.
var ErrValidation = errors.New("invalid target url")

// Orchestrator runs the priority-ordered detector list against one URL at a
// time inside an isolated browsing context.
type Orchestrator struct {
	provider  ContextProvider
	probers   []TechnologyProber
	threshold float64
	logger    *zap.Logger
}

func NewOrchestrator(provider ContextProvider, probers []TechnologyProber, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		provider:  provider,
		probers:   probers,
		threshold: DecisionThreshold,
		logger:    logger.Named("orchestrator"),
	}
}

// SetThreshold overrides the decision threshold.
func (o *Orchestrator) SetThreshold(t float64) {
	if t > 0 && t <= 1 {
		o.threshold = t
	}
}

// Check runs a full detection pass for one URL. It never returns a Go
// error: every failure mode is folded into the Outcome so a batch caller
// can keep going.
func (o *Orchestrator) Check(ctx context.Context, rawURL string) Outcome {
	started := time.Now()

	if err := validateTargetURL(rawURL); err != nil {
		// Fail fast: no context is acquired for garbage input.
		return Outcome{
			Technology:  TechUnknown,
			OriginalURL: rawURL,
			FinalURL:    rawURL,
			Error:       err.Error(),
		}
	}

	bc, err := o.provider.AcquireContext(ctx)
	if err != nil {
		return Outcome{
			Technology:      TechUnknown,
			OriginalURL:     rawURL,
			FinalURL:        rawURL,
			ExecutionTimeMs: time.Since(started).Milliseconds(),
			Error:           classifyNavigationError(err),
		}
	}
	// Release on every exit path, exactly once. The release context
	// inherits values but not cancellation so an aborted batch still
	// returns its browser contexts.
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), contextReleaseTimeout)
		defer cancel()
		if closeErr := bc.Close(closeCtx); closeErr != nil {
			o.logger.Warn("Failed to release browsing context.", zap.Error(closeErr))
		}
	}()

	meta, err := bc.Navigate(ctx, rawURL)
	if err != nil {
		return Outcome{
			Technology:      TechUnknown,
			OriginalURL:     rawURL,
			FinalURL:        rawURL,
			ExecutionTimeMs: time.Since(started).Milliseconds(),
			Error:           classifyNavigationError(err),
		}
	}

	outcome := o.probe(ctx, bc.Page())
	attachNavigationMetadata(&outcome, rawURL, meta)
	outcome.ExecutionTimeMs = time.Since(started).Milliseconds()
	return outcome
}

// CheckPage runs the detector sequence against an already materialized page
// surface. This is the offline replay path: snapshot-backed PageViews come
// through here without touching the browser.
func (o *Orchestrator) CheckPage(ctx context.Context, page PageView, meta *NavigationMetadata) Outcome {
	started := time.Now()
	outcome := o.probe(ctx, page)
	attachNavigationMetadata(&outcome, page.URL(), meta)
	outcome.ExecutionTimeMs = time.Since(started).Milliseconds()
	return outcome
}

// probe walks the detectors in priority order and stops at the first
// confident verdict. Early exit is a hard contract: once a detector
// decides, the remaining ones must not run.
func (o *Orchestrator) probe(ctx context.Context, page PageView) Outcome {
	for _, prober := range o.probers {
		verdict := prober.Detect(ctx, page)
		o.logger.Debug("Detector finished.",
			zap.String("technology", string(prober.Technology())),
			zap.Float64("confidence", verdict.Confidence),
		)
		if verdict.Confidence >= o.threshold && verdict.Technology != TechUnknown {
			return Outcome{
				Technology:  verdict.Technology,
				Confidence:  verdict.Confidence,
				Version:     verdict.Version,
				MethodsUsed: verdict.MethodsUsed,
			}
		}
	}
	return Outcome{Technology: TechUnknown}
}

func attachNavigationMetadata(outcome *Outcome, originalURL string, meta *NavigationMetadata) {
	outcome.OriginalURL = originalURL
	outcome.FinalURL = originalURL // fallback when no navigation metadata exists
	if meta == nil {
		return
	}
	if meta.FinalURL != "" {
		outcome.FinalURL = meta.FinalURL
	}
	outcome.RedirectCount = meta.RedirectCount
	outcome.ProtocolUpgraded = meta.ProtocolUpgraded
}

func validateTargetURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrValidation, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrValidation)
	}
	return nil
}

// classifyNavigationError sorts failures into the two buckets callers care
// about: network-level trouble versus everything else.
func classifyNavigationError(err error) string {
	msg := err.Error()
	lower := strings.ToLower(msg)
	for _, marker := range []string{
		"net::", "dns", "no such host", "connection refused",
		"connection reset", "timeout", "deadline exceeded",
	} {
		if strings.Contains(lower, marker) {
			return "network error: " + msg
		}
	}
	return "detection failed: " + msg
}
