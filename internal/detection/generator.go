// internal/detection/generator.go
package detection

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// generatorConfidence is what a matching generator meta tag is worth. Sites
// rarely fake this tag, so it is the strongest single signal we have.
const generatorConfidence = 0.95

// GeneratorTagStrategy inspects the page's <meta name="generator"> tag.
type GeneratorTagStrategy struct {
	TechName string
}

func NewGeneratorTagStrategy(techName string) *GeneratorTagStrategy {
	return &GeneratorTagStrategy{TechName: techName}
}

func (s *GeneratorTagStrategy) Name() string { return "meta-generator" }

func (s *GeneratorTagStrategy) Detect(ctx context.Context, page PageView) EvidenceResult {
	meta, err := page.MetaTags(ctx)
	if err != nil {
		return EvidenceResult{Source: s.Name(), Error: fmt.Sprintf("read meta tags: %v", err)}
	}

	content, ok := meta["generator"]
	if !ok || content == "" {
		// Absence of a generator tag is not a failure, just no evidence.
		return EvidenceResult{Source: s.Name()}
	}

	if !strings.Contains(strings.ToLower(content), strings.ToLower(s.TechName)) {
		return EvidenceResult{Source: s.Name()}
	}

	return EvidenceResult{
		Source:     s.Name(),
		Confidence: generatorConfidence,
		Version:    extractGeneratorVersion(content, s.TechName),
		Notes:      []string{fmt.Sprintf("generator=%q", content)},
	}
}

// extractGeneratorVersion pulls a version number out of a generator tag
// value. Patterns are tried in order of specificity; the first hit wins.
func extractGeneratorVersion(content, techName string) string {
	patterns := []*regexp.Regexp{
		regexp.MustCompile(`(?i)` + regexp.QuoteMeta(techName) + `[!\s]*v?(\d+(?:\.\d+)+)`),
		regexp.MustCompile(`(?i)version[:\s]+v?(\d+(?:\.\d+)+)`),
		regexp.MustCompile(`(\d+(?:\.\d+)+)`),
	}
	for _, re := range patterns {
		if m := re.FindStringSubmatch(content); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}
