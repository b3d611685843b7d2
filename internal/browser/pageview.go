// internal/browser/pageview.go
package browser

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/stackscope/internal/detection"
)

var _ detection.PageView = (*livePageView)(nil)

// livePageView exposes the navigated document of an IsolatedContext to the
// detection strategies. All reads go through the live browser session.
type livePageView struct {
	ic *IsolatedContext
}

func newLivePageView(ic *IsolatedContext) *livePageView {
	return &livePageView{ic: ic}
}

// URL returns the final, post-redirect URL of the main document.
func (pv *livePageView) URL() string {
	meta := pv.ic.recorder.metadata()
	if meta.FinalURL != "" {
		return meta.FinalURL
	}
	return meta.OriginalURL
}

// Headers returns the response headers of the main document.
func (pv *livePageView) Headers() http.Header {
	return pv.ic.recorder.metadata().ResponseHeaders
}

// HTML returns the rendered markup, post-JavaScript.
func (pv *livePageView) HTML(ctx context.Context) (string, error) {
	runCtx, cancel, err := pv.runContext(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html)); err != nil {
		return "", fmt.Errorf("retrieving rendered markup: %w", err)
	}
	return html, nil
}

// MetaTags returns name -> content for every named meta tag in the rendered
// document, names lowercased. Later duplicates win.
func (pv *livePageView) MetaTags(ctx context.Context) (map[string]string, error) {
	html, err := pv.HTML(ctx)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing rendered markup: %w", err)
	}

	tags := make(map[string]string)
	doc.Find("meta[name]").Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok || name == "" {
			return
		}
		content, _ := s.Attr("content")
		tags[strings.ToLower(name)] = content
	})
	return tags, nil
}

// fetchScript issues a same-context request from within the page, so it
// carries the page's origin, cookies, and TLS session.
const fetchScript = `(async () => {
	const resp = await fetch(%q, { headers: { "Accept": "application/json, text/plain, */*" } });
	const body = await resp.text();
	return {
		status: resp.status,
		contentType: resp.headers.get("content-type") || "",
		body: body,
	};
})()`

type fetchEvalResult struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        string `json:"body"`
}

// Fetch retrieves a sub-resource from inside the page's browsing context.
// The target may be relative; the browser resolves it against the document.
func (pv *livePageView) Fetch(ctx context.Context, target string) (*detection.FetchResult, error) {
	runCtx, cancel, err := pv.runContext(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var res fetchEvalResult
	err = chromedp.Run(runCtx,
		chromedp.Evaluate(fmt.Sprintf(fetchScript, target), &res,
			func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
				return p.WithAwaitPromise(true)
			}),
	)
	if err != nil {
		return nil, fmt.Errorf("in-page fetch of %q: %w", target, err)
	}

	return &detection.FetchResult{
		Status:      res.Status,
		ContentType: res.ContentType,
		Body:        res.Body,
	}, nil
}

// runContext derives a bounded chromedp context for one read, wiring the
// caller's cancellation into it.
func (pv *livePageView) runContext(ctx context.Context) (context.Context, context.CancelFunc, error) {
	pv.ic.mu.Lock()
	if pv.ic.isClosed {
		pv.ic.mu.Unlock()
		return nil, nil, fmt.Errorf("session is already closed")
	}
	sessionCtx := pv.ic.sessionCtx
	pv.ic.mu.Unlock()

	runCtx, cancel := context.WithTimeout(sessionCtx, pv.ic.globalConfig.Network.FetchTimeout)
	stop := context.AfterFunc(ctx, cancel)
	combined := func() {
		stop()
		cancel()
	}
	return runCtx, combined, nil
}
