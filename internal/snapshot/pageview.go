// internal/snapshot/pageview.go
package snapshot

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/xkilldash9x/stackscope/internal/detection"
)

// PageView adapts a Snapshot to the surface strategies expect from a live
// page. All answers come from the captured data; nothing touches the
// network, which is what makes offline detection repeatable.
type PageView struct {
	snap *Snapshot
}

var _ detection.PageView = (*PageView)(nil)

func NewPageView(snap *Snapshot) *PageView {
	return &PageView{snap: snap}
}

func (p *PageView) URL() string { return p.snap.FinalURL }

func (p *PageView) Headers() http.Header { return p.snap.HTTPHeaders() }

func (p *PageView) HTML(ctx context.Context) (string, error) {
	return p.snap.HTML, nil
}

func (p *PageView) MetaTags(ctx context.Context) (map[string]string, error) {
	return p.snap.MetaTags, nil
}

// Fetch answers from the captured resource set. A probe that was not part
// of the capture is reported as an error so the endpoint strategy degrades
// to a zero-confidence result instead of silently faking a 404.
func (p *PageView) Fetch(ctx context.Context, target string) (*detection.FetchResult, error) {
	key, err := p.canonicalize(target)
	if err != nil {
		return nil, err
	}
	res, ok := p.snap.Resources[key]
	if !ok {
		return nil, fmt.Errorf("resource %s not captured in snapshot", key)
	}
	return &detection.FetchResult{
		Status:      res.Status,
		ContentType: res.ContentType,
		Body:        res.Body,
	}, nil
}

func (p *PageView) canonicalize(target string) (string, error) {
	base, err := url.Parse(p.snap.FinalURL)
	if err != nil {
		return "", fmt.Errorf("snapshot final url: %w", err)
	}
	ref, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("resource url: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

// NavigationMetadata reconstructs the metadata the orchestrator attaches to
// an outcome, from the capture-time redirect trail.
func (p *PageView) NavigationMetadata() *detection.NavigationMetadata {
	return &detection.NavigationMetadata{
		OriginalURL:      p.snap.OriginalURL,
		FinalURL:         p.snap.FinalURL,
		RedirectCount:    p.snap.RedirectCount,
		ProtocolUpgraded: protocolUpgraded(p.snap.OriginalURL, p.snap.FinalURL),
		ResponseStatus:   p.snap.StatusCode,
		ResponseHeaders:  p.snap.HTTPHeaders(),
	}
}

func protocolUpgraded(original, final string) bool {
	o, err1 := url.Parse(original)
	f, err2 := url.Parse(final)
	if err1 != nil || err2 != nil {
		return false
	}
	return o.Scheme == "http" && f.Scheme == "https"
}
