// internal/detection/detector.go
package detection

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// defaultMethodWeight applies to any strategy name without an explicit
// entry in a detector's weight table.
const defaultMethodWeight = 0.5

// TechnologyProber is the orchestrator's view of one per-technology
// detector. Kept as an interface so probe ordering and early exit can be
// tested with call-counting fakes.
type TechnologyProber interface {
	Technology() Technology
	Detect(ctx context.Context, page PageView) Verdict
}

// Detector aggregates the evidence of an ordered strategy list into one
// verdict for a single technology. Strategies run concurrently; the fold is
// performed in declaration order so the published verdict does not depend
// on scheduling.
type Detector struct {
	tech       Technology
	strategies []EvidenceStrategy
	weights    map[string]float64
	logger     *zap.Logger
}

func NewDetector(tech Technology, strategies []EvidenceStrategy, weights map[string]float64, logger *zap.Logger) *Detector {
	if weights == nil {
		weights = map[string]float64{}
	}
	return &Detector{
		tech:       tech,
		strategies: strategies,
		weights:    weights,
		logger:     logger.Named("detector").With(zap.String("technology", string(tech))),
	}
}

func (d *Detector) Technology() Technology { return d.tech }

// Detect runs every strategy and folds their results into one verdict.
// A Detector cannot fail at runtime: strategies absorb their own errors.
func (d *Detector) Detect(ctx context.Context, page PageView) Verdict {
	results := make([]EvidenceResult, len(d.strategies))

	g, groupCtx := errgroup.WithContext(ctx)
	for i, strategy := range d.strategies {
		i, strategy := i, strategy
		g.Go(func() error {
			results[i] = strategy.Detect(groupCtx, page)
			return nil
		})
	}
	_ = g.Wait() // strategies never return errors

	return d.fold(results)
}

func (d *Detector) fold(results []EvidenceResult) Verdict {
	var (
		total       float64
		methods     []string
		version     string
		bestVersion float64 = -1
	)

	for _, res := range results {
		if res.Error != "" {
			d.logger.Debug("Strategy reported a failure.",
				zap.String("strategy", res.Source),
				zap.String("error", res.Error),
			)
			continue
		}
		if res.Confidence <= 0 {
			continue
		}
		total += res.Confidence * d.weight(res.Source)
		methods = append(methods, res.Source)
		// Highest-confidence reporter wins the version; declaration order
		// breaks ties because we only replace on a strictly greater value.
		if res.Version != "" && res.Confidence > bestVersion {
			version = res.Version
			bestVersion = res.Confidence
		}
	}

	verdict := Verdict{
		Technology:  d.tech,
		Confidence:  clampConfidence(total),
		Version:     version,
		MethodsUsed: methods,
	}
	if len(methods) == 0 {
		verdict.Technology = TechUnknown
	}
	return verdict
}

func (d *Detector) weight(method string) float64 {
	if w, ok := d.weights[method]; ok {
		return w
	}
	return defaultMethodWeight
}
