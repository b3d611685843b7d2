// internal/detection/headers.go
package detection

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// HeaderMatchKind selects how a HeaderRule's pattern is interpreted.
type HeaderMatchKind int

const (
	// MatchContains treats the pattern as a literal, case-insensitive substring.
	MatchContains HeaderMatchKind = iota
	// MatchAny fires whenever the header is present, regardless of value.
	MatchAny
	// MatchRegex compiles the pattern as a case-insensitive regular expression.
	MatchRegex
)

// HeaderRule maps one response header observation to a fixed confidence.
type HeaderRule struct {
	Header         string
	Pattern        string
	Kind           HeaderMatchKind
	Confidence     float64
	ExtractVersion bool
}

// HeaderStrategy inspects the final response's headers against a rule list.
// Header names are matched case-insensitively; each matching rule adds its
// own fixed confidence.
type HeaderStrategy struct {
	Rules []HeaderRule
}

func (s *HeaderStrategy) Name() string { return "http-headers" }

func (s *HeaderStrategy) Detect(ctx context.Context, page PageView) EvidenceResult {
	headers := page.Headers()
	if len(headers) == 0 {
		return EvidenceResult{Source: s.Name(), Error: "no response headers collected"}
	}

	var (
		total   float64
		version string
		notes   []string
	)

	for _, rule := range s.Rules {
		for _, value := range headers.Values(rule.Header) {
			matched, extracted, err := rule.match(value)
			if err != nil {
				// A malformed rule pattern is a configuration bug; surface it
				// in the result rather than silently skipping the rule.
				return EvidenceResult{Source: s.Name(), Error: fmt.Sprintf("rule %s: %v", rule.Header, err)}
			}
			if !matched {
				continue
			}
			total += rule.Confidence
			notes = append(notes, fmt.Sprintf("%s: %s", rule.Header, value))
			if rule.ExtractVersion && version == "" {
				version = extracted
			}
			break // one contribution per rule
		}
	}

	if total == 0 {
		return EvidenceResult{Source: s.Name()}
	}
	return EvidenceResult{
		Source:     s.Name(),
		Confidence: clampConfidence(total),
		Version:    version,
		Notes:      notes,
	}
}

func (r HeaderRule) match(value string) (matched bool, version string, err error) {
	switch r.Kind {
	case MatchAny:
		return true, "", nil
	case MatchContains:
		if !strings.Contains(strings.ToLower(value), strings.ToLower(r.Pattern)) {
			return false, "", nil
		}
		if r.ExtractVersion {
			version = extractHeaderVersion(value)
		}
		return true, version, nil
	case MatchRegex:
		re, compileErr := regexp.Compile("(?i)" + r.Pattern)
		if compileErr != nil {
			return false, "", compileErr
		}
		m := re.FindStringSubmatch(value)
		if m == nil {
			return false, "", nil
		}
		if r.ExtractVersion && len(m) > 1 {
			version = m[1]
		}
		return true, version, nil
	default:
		return false, "", fmt.Errorf("unknown match kind %d", r.Kind)
	}
}

var headerVersionRe = regexp.MustCompile(`(\d+(?:\.\d+)+)`)

func extractHeaderVersion(value string) string {
	if m := headerVersionRe.FindStringSubmatch(value); len(m) > 1 {
		return m[1]
	}
	return ""
}
