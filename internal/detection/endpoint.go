// internal/detection/endpoint.go
package detection

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Confidence tiers for endpoint probes. A structurally valid JSON answer is
// near-proof; a plain body that merely mentions the platform is much weaker.
const (
	endpointJSONConfidence     = 0.9
	endpointTextHitConfidence  = 0.7
	endpointTextMissConfidence = 0.4
)

// APIEndpointStrategy probes a technology-specific well-known endpoint,
// resolved against the final (post-redirect) URL of the page. Non-200
// statuses are not treated as evidence in either direction: a 404 means the
// endpoint is absent, and a 403 or 5xx says nothing reliable at all.
type APIEndpointStrategy struct {
	TechName string
	// Path is resolved relative to the page's final URL, e.g. "/wp-json/".
	Path string
	// ExpectedKeys must all be present at the top level of a JSON response
	// for the structural check to pass.
	ExpectedKeys []string
	// VersionKey optionally names a top-level string field carrying a version.
	VersionKey string
}

func (s *APIEndpointStrategy) Name() string { return "api-endpoint" }

func (s *APIEndpointStrategy) Detect(ctx context.Context, page PageView) EvidenceResult {
	target, err := resolveEndpoint(page.URL(), s.Path)
	if err != nil {
		return EvidenceResult{Source: s.Name(), Error: fmt.Sprintf("resolve endpoint: %v", err)}
	}

	res, err := page.Fetch(ctx, target)
	if err != nil {
		return EvidenceResult{Source: s.Name(), Error: fmt.Sprintf("fetch %s: %v", target, err)}
	}

	switch {
	case res.Status == http.StatusOK:
		return s.scoreBody(res, target)
	case res.Status == http.StatusNotFound:
		// Endpoint simply absent; not evidence against the technology.
		return EvidenceResult{Source: s.Name()}
	default:
		// 403, 5xx, unexpected redirects: unreliable either way.
		return EvidenceResult{Source: s.Name(), Notes: []string{fmt.Sprintf("status %d from %s", res.Status, target)}}
	}
}

func (s *APIEndpointStrategy) scoreBody(res *FetchResult, target string) EvidenceResult {
	var parsed map[string]jsoniter.RawMessage
	if err := json.UnmarshalFromString(res.Body, &parsed); err == nil && len(parsed) > 0 {
		for _, key := range s.ExpectedKeys {
			if _, ok := parsed[key]; !ok {
				return EvidenceResult{
					Source: s.Name(),
					Notes:  []string{fmt.Sprintf("json at %s missing key %q", target, key)},
				}
			}
		}
		result := EvidenceResult{
			Source:     s.Name(),
			Confidence: endpointJSONConfidence,
			Notes:      []string{fmt.Sprintf("structural match at %s", target)},
		}
		if s.VersionKey != "" {
			var version string
			if raw, ok := parsed[s.VersionKey]; ok {
				_ = json.Unmarshal(raw, &version)
			}
			result.Version = version
		}
		return result
	}

	// Plain body: fall back to a name check.
	confidence := endpointTextMissConfidence
	if strings.Contains(strings.ToLower(res.Body), strings.ToLower(s.TechName)) {
		confidence = endpointTextHitConfidence
	}
	return EvidenceResult{
		Source:     s.Name(),
		Confidence: confidence,
		Notes:      []string{fmt.Sprintf("non-json body at %s", target)},
	}
}

func resolveEndpoint(base, path string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(ref).String(), nil
}
