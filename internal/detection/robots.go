// internal/detection/robots.go
package detection

import (
	"context"
	"strings"
)

// RobotsData is the pre-collected robots.txt surface for one site. The
// fetch itself happens out of band (see internal/robots); by the time a
// strategy runs, the data either exists or it does not.
type RobotsData struct {
	Content         string
	DisallowedPaths []string
	SitemapURLs     []string
	Accessible      bool
}

// RobotsSource answers "what did robots.txt say for this page's site".
type RobotsSource interface {
	Lookup(pageURL string) (*RobotsData, bool)
}

// Categories a robots pattern can be scoped to.
const (
	RobotsCategoryDisallow = "disallow"
	RobotsCategorySitemap  = "sitemap"
	RobotsCategoryText     = "text"
)

// RobotsPattern contributes a fixed confidence when found in its category.
type RobotsPattern struct {
	Category   string
	Pattern    string
	Confidence float64
}

// RobotsStrategy matches configured patterns against collected robots.txt
// data. Contributions sum and are capped at 1.0. Missing data yields a
// zero-confidence "no data" result, never negative evidence.
type RobotsStrategy struct {
	Patterns []RobotsPattern
	Source   RobotsSource
}

func (s *RobotsStrategy) Name() string { return "robots-txt" }

func (s *RobotsStrategy) Detect(ctx context.Context, page PageView) EvidenceResult {
	if s.Source == nil {
		return EvidenceResult{Source: s.Name(), Error: "no robots.txt data collected"}
	}
	data, ok := s.Source.Lookup(page.URL())
	if !ok || data == nil || !data.Accessible {
		return EvidenceResult{Source: s.Name(), Error: "no robots.txt data collected"}
	}

	var (
		total float64
		notes []string
	)
	for _, p := range s.Patterns {
		if s.matches(data, p) {
			total += p.Confidence
			notes = append(notes, p.Category+":"+p.Pattern)
		}
	}
	if total == 0 {
		return EvidenceResult{Source: s.Name()}
	}
	return EvidenceResult{
		Source:     s.Name(),
		Confidence: clampConfidence(total),
		Notes:      notes,
	}
}

func (s *RobotsStrategy) matches(data *RobotsData, p RobotsPattern) bool {
	needle := strings.ToLower(p.Pattern)
	switch p.Category {
	case RobotsCategoryDisallow:
		for _, path := range data.DisallowedPaths {
			if strings.Contains(strings.ToLower(path), needle) {
				return true
			}
		}
	case RobotsCategorySitemap:
		for _, sm := range data.SitemapURLs {
			if strings.Contains(strings.ToLower(sm), needle) {
				return true
			}
		}
	case RobotsCategoryText:
		return strings.Contains(strings.ToLower(data.Content), needle)
	}
	return false
}
