// internal/detection/stub_test.go
package detection

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
)

// stubPage is a canned PageView for strategy tests.
type stubPage struct {
	url      string
	headers  http.Header
	html     string
	htmlErr  error
	meta     map[string]string
	metaErr  error
	fetches  map[string]*FetchResult
	fetchErr error
}

func (p *stubPage) URL() string          { return p.url }
func (p *stubPage) Headers() http.Header { return p.headers }

func (p *stubPage) HTML(ctx context.Context) (string, error) {
	return p.html, p.htmlErr
}

func (p *stubPage) MetaTags(ctx context.Context) (map[string]string, error) {
	return p.meta, p.metaErr
}

func (p *stubPage) Fetch(ctx context.Context, target string) (*FetchResult, error) {
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	if res, ok := p.fetches[target]; ok {
		return res, nil
	}
	return nil, fmt.Errorf("unexpected fetch of %s", target)
}

// stubStrategy returns a fixed result and counts invocations.
type stubStrategy struct {
	name   string
	result EvidenceResult
	calls  atomic.Int32
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Detect(ctx context.Context, page PageView) EvidenceResult {
	s.calls.Add(1)
	res := s.result
	res.Source = s.name
	return res
}

// stubProber returns a fixed verdict and counts invocations.
type stubProber struct {
	tech    Technology
	verdict Verdict
	calls   atomic.Int32
}

func (p *stubProber) Technology() Technology { return p.tech }

func (p *stubProber) Detect(ctx context.Context, page PageView) Verdict {
	p.calls.Add(1)
	return p.verdict
}

// stubBrowserContext records Navigate and Close calls.
type stubBrowserContext struct {
	page       PageView
	meta       *NavigationMetadata
	navErr     error
	closeCalls atomic.Int32
}

func (b *stubBrowserContext) Navigate(ctx context.Context, url string) (*NavigationMetadata, error) {
	if b.navErr != nil {
		return nil, b.navErr
	}
	return b.meta, nil
}

func (b *stubBrowserContext) Page() PageView { return b.page }

func (b *stubBrowserContext) Close(ctx context.Context) error {
	b.closeCalls.Add(1)
	return nil
}

// stubProvider hands out one context and counts acquisitions.
type stubProvider struct {
	bc         *stubBrowserContext
	acquireErr error
	calls      atomic.Int32
}

func (p *stubProvider) AcquireContext(ctx context.Context) (BrowserContext, error) {
	p.calls.Add(1)
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	return p.bc, nil
}

// stubRobotsSource serves fixed robots data for every lookup.
type stubRobotsSource struct {
	data *RobotsData
}

func (s *stubRobotsSource) Lookup(pageURL string) (*RobotsData, bool) {
	if s.data == nil {
		return nil, false
	}
	return s.data, true
}
