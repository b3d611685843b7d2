// internal/detection/types.go
package detection

import (
	"context"
	"net/http"
)

// Technology is one of the publishing platforms this engine recognizes.
type Technology string

const (
	TechWordPress Technology = "WordPress"
	TechJoomla    Technology = "Joomla"
	TechDrupal    Technology = "Drupal"
	TechDuda      Technology = "Duda"
	TechUnknown   Technology = "Unknown"
)

// EvidenceResult is the output of a single strategy run. A strategy never
// fails loudly; anything that goes wrong inside it is reported here as a
// zero-confidence result with Error set.
type EvidenceResult struct {
	Source     string   `json:"source"`
	Confidence float64  `json:"confidence"`
	Version    string   `json:"version,omitempty"`
	Notes      []string `json:"notes,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// Verdict is one detector's aggregated belief about one technology.
type Verdict struct {
	Technology  Technology `json:"technology"`
	Confidence  float64    `json:"confidence"`
	Version     string     `json:"version,omitempty"`
	MethodsUsed []string   `json:"methods_used,omitempty"`
}

// Outcome is the externally visible result of one URL check.
type Outcome struct {
	Technology       Technology `json:"technology"`
	Confidence       float64    `json:"confidence"`
	Version          string     `json:"version,omitempty"`
	OriginalURL      string     `json:"original_url"`
	FinalURL         string     `json:"final_url"`
	RedirectCount    int        `json:"redirect_count"`
	ProtocolUpgraded bool       `json:"protocol_upgraded"`
	MethodsUsed      []string   `json:"methods_used,omitempty"`
	ExecutionTimeMs  int64      `json:"execution_time_ms"`
	Error            string     `json:"error,omitempty"`
}

// FetchResult is the observable part of a sub-resource probe (an API
// endpoint request issued from within the page's browsing context).
type FetchResult struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        string `json:"body"`
}

// PageView is the narrow surface strategies are allowed to touch. Two
// implementations exist: a live chromedp-backed page and a snapshot-backed
// replay page. Strategies must not care which one they were handed.
type PageView interface {
	// URL returns the final, post-redirect URL of the page.
	URL() string
	// Headers returns the response headers of the main document.
	Headers() http.Header
	// HTML returns the rendered markup of the page.
	HTML(ctx context.Context) (string, error)
	// MetaTags returns name -> content for all meta tags, names lowercased.
	MetaTags(ctx context.Context) (map[string]string, error)
	// Fetch retrieves a sub-resource. The target may be relative to URL().
	Fetch(ctx context.Context, target string) (*FetchResult, error)
}

// EvidenceStrategy is one independent heuristic probe of a single signal.
// Detect never panics and never returns an error value: failures come back
// as zero-confidence EvidenceResults.
type EvidenceStrategy interface {
	Name() string
	Detect(ctx context.Context, page PageView) EvidenceResult
}

// NavigationMetadata describes what happened between the requested URL and
// the page that finally rendered.
type NavigationMetadata struct {
	OriginalURL      string      `json:"original_url"`
	FinalURL         string      `json:"final_url"`
	RedirectCount    int         `json:"redirect_count"`
	ProtocolUpgraded bool        `json:"protocol_upgraded"`
	NavigationTimeMs int64       `json:"navigation_time_ms"`
	ResponseStatus   int         `json:"response_status"`
	ResponseHeaders  http.Header `json:"response_headers,omitempty"`
}

// BrowserContext is an isolated browsing session scoped to exactly one URL
// check. It is never reused; the orchestrator releases it on every exit path.
type BrowserContext interface {
	Navigate(ctx context.Context, url string) (*NavigationMetadata, error)
	Page() PageView
	Close(ctx context.Context) error
}

// ContextProvider hands out isolated browsing sessions. The browser manager
// implements this against a shared Chrome process; tests substitute mocks.
type ContextProvider interface {
	AcquireContext(ctx context.Context) (BrowserContext, error)
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
