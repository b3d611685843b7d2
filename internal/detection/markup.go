// internal/detection/markup.go
package detection

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MarkupSignature is one substring the rendered HTML is scanned for.
// URLShaped signatures describe platform-controlled asset paths (admin
// panels, plugin directories) and are only trusted when they appear in a
// same-origin URL; a WordPress path inside a third-party embed proves
// nothing about the page being inspected.
type MarkupSignature struct {
	Pattern   string
	Category  string
	URLShaped bool
}

// MarkupSignatureStrategy scans the rendered markup for known signatures.
type MarkupSignatureStrategy struct {
	TechName   string
	Signatures []MarkupSignature

	// BoostCategories enables a flat +0.2 bonus (capped at 0.8) once this
	// many distinct signature categories matched. Zero disables the bonus.
	// Independent markup families rarely co-occur by accident, so for some
	// platforms several weak families add up to more than their ratio.
	BoostCategories int
}

func (s *MarkupSignatureStrategy) Name() string { return "markup-signature" }

const (
	markupFloorConfidence = 0.5
	markupRatioWeight     = 0.8
	markupCategoryBonus   = 0.2
	markupBonusCap        = 0.8
)

func (s *MarkupSignatureStrategy) Detect(ctx context.Context, page PageView) EvidenceResult {
	html, err := page.HTML(ctx)
	if err != nil {
		return EvidenceResult{Source: s.Name(), Error: fmt.Sprintf("read html: %v", err)}
	}
	if len(s.Signatures) == 0 {
		return EvidenceResult{Source: s.Name()}
	}

	pageHost := hostOf(page.URL())
	candidates, err := extractDocumentURLs(html)
	if err != nil {
		return EvidenceResult{Source: s.Name(), Error: fmt.Sprintf("parse html: %v", err)}
	}

	lowerHTML := strings.ToLower(html)
	matched := 0
	categories := make(map[string]struct{})
	var notes []string

	for _, sig := range s.Signatures {
		var hit bool
		if sig.URLShaped {
			hit = matchSameOriginURL(candidates, pageHost, sig.Pattern)
		} else {
			hit = strings.Contains(lowerHTML, strings.ToLower(sig.Pattern))
		}
		if hit {
			matched++
			categories[sig.Category] = struct{}{}
			notes = append(notes, sig.Pattern)
		}
	}

	if matched == 0 {
		return EvidenceResult{Source: s.Name()}
	}

	ratio := markupRatioWeight * float64(matched) / float64(len(s.Signatures))
	confidence := markupFloorConfidence
	if ratio > confidence {
		confidence = ratio
	}
	if s.BoostCategories > 0 && len(categories) >= s.BoostCategories {
		confidence += markupCategoryBonus
		if confidence > markupBonusCap {
			confidence = markupBonusCap
		}
	}

	return EvidenceResult{
		Source:     s.Name(),
		Confidence: clampConfidence(confidence),
		Notes:      notes,
	}
}

// matchSameOriginURL reports whether the signature occurs in a URL that the
// target site itself controls: a relative reference, or an absolute one on
// exactly the page's hostname. Cross-origin hits (CDNs, embeds) are thrown
// away to suppress false positives.
func matchSameOriginURL(candidates []string, pageHost, pattern string) bool {
	lowerPattern := strings.ToLower(pattern)
	for _, raw := range candidates {
		if !strings.Contains(strings.ToLower(raw), lowerPattern) {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		if u.Host == "" {
			return true // relative reference
		}
		if strings.EqualFold(u.Hostname(), pageHost) {
			return true
		}
	}
	return false
}

// extractDocumentURLs collects every src/href attribute value in the markup.
func extractDocumentURLs(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	var urls []string
	doc.Find("[src], [href]").Each(func(_ int, sel *goquery.Selection) {
		if v, ok := sel.Attr("src"); ok && v != "" {
			urls = append(urls, v)
		}
		if v, ok := sel.Attr("href"); ok && v != "" {
			urls = append(urls, v)
		}
	})
	return urls, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
