// internal/browser/context.go
package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stackscope/internal/config"
	"github.com/xkilldash9x/stackscope/internal/detection"
)

var _ detection.BrowserContext = (*IsolatedContext)(nil)

// IsolatedContext manages a single isolated browser context (incognito
// profile) with one tab. It is scoped to exactly one URL check and is never
// reused after Close.
type IsolatedContext struct {
	id           string
	logger       *zap.Logger
	globalConfig *config.Config

	// browserCtx is the manager's browser-level chromedp context, needed to
	// dispose the browser context after the session ends.
	browserCtx       context.Context
	browserContextID cdp.BrowserContextID
	targetID         target.ID

	sessionCtx    context.Context
	sessionCancel context.CancelFunc

	recorder *navigationRecorder
	page     *livePageView

	// onClose is invoked exactly once when the session is released.
	onClose func()

	isClosed bool
	mu       sync.Mutex
}

func newIsolatedContext(
	browserCtx context.Context,
	browserContextID cdp.BrowserContextID,
	targetID target.ID,
	cfg *config.Config,
	logger *zap.Logger,
) *IsolatedContext {
	id := uuid.New().String()
	return &IsolatedContext{
		id:               id,
		logger:           logger.Named("session").With(zap.String("session_id", id[:8])),
		globalConfig:     cfg,
		browserCtx:       browserCtx,
		browserContextID: browserContextID,
		targetID:         targetID,
		recorder:         newNavigationRecorder(),
	}
}

// attach connects a chromedp session to the pre-created tab and installs the
// navigation event listener.
func (ic *IsolatedContext) attach(ctx context.Context) error {
	sessionCtx, cancel := chromedp.NewContext(ic.browserCtx, chromedp.WithTargetID(ic.targetID))
	ic.sessionCtx = sessionCtx
	ic.sessionCancel = cancel

	// Listener must be installed before Run attaches to the target so no
	// early events are lost.
	chromedp.ListenTarget(sessionCtx, ic.recorder.handleEvent)

	if err := chromedp.Run(sessionCtx, network.Enable()); err != nil {
		return fmt.Errorf("enabling network domain: %w", err)
	}

	ic.page = newLivePageView(ic)

	ic.logger.Debug("Isolated browser session attached.",
		zap.String("browser_context_id", string(ic.browserContextID)))
	return nil
}

// Navigate loads the URL in the session's tab, waits for the document to be
// ready, and returns what was observed about redirects and the final response.
func (ic *IsolatedContext) Navigate(ctx context.Context, rawURL string) (*detection.NavigationMetadata, error) {
	ic.mu.Lock()
	if ic.isClosed {
		ic.mu.Unlock()
		return nil, fmt.Errorf("session is already closed")
	}
	sessionCtx := ic.sessionCtx
	ic.mu.Unlock()

	ic.logger.Debug("Navigating", zap.String("url", rawURL))
	ic.recorder.reset(rawURL)

	navCtx, cancel := context.WithTimeout(sessionCtx, ic.globalConfig.Network.NavigationTimeout)
	defer cancel()
	// Propagate caller cancellation into the chromedp-derived context.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	start := time.Now()
	err := chromedp.Run(navCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		// Let deferred scripts settle; several platforms inject their
		// fingerprintable runtime only after load.
		chromedp.Sleep(ic.globalConfig.Network.PostLoadWait),
	)
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("navigation failed: %w", err)
	}

	meta := ic.recorder.metadata()
	meta.NavigationTimeMs = time.Since(start).Milliseconds()

	// The recorder may miss the final URL if the document response arrived
	// through a cache path; fall back to asking the page itself.
	if meta.FinalURL == "" {
		var loc string
		if locErr := chromedp.Run(navCtx, chromedp.Location(&loc)); locErr == nil {
			meta.FinalURL = loc
		} else {
			meta.FinalURL = rawURL
		}
		meta.ProtocolUpgraded = protocolUpgraded(rawURL, meta.FinalURL)
	}

	return meta, nil
}

// Page returns the live view of the navigated document.
func (ic *IsolatedContext) Page() detection.PageView {
	return ic.page
}

// Close tears down the tab and disposes the isolated browser context. It is
// safe to call more than once; only the first call does any work.
func (ic *IsolatedContext) Close(ctx context.Context) error {
	ic.mu.Lock()
	if ic.isClosed {
		ic.mu.Unlock()
		return nil
	}
	ic.isClosed = true
	sessionCancel := ic.sessionCancel
	onClose := ic.onClose
	ic.mu.Unlock()

	if onClose != nil {
		defer onClose()
	}

	if sessionCancel != nil {
		sessionCancel()
	}

	// Dispose the browser context through the manager's browser session so
	// the incognito profile (cookies, cache, storage) is destroyed.
	disposeCtx, cancel := context.WithTimeout(ic.browserCtx, 10*time.Second)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(disposeCtx, chromedp.ActionFunc(func(runCtx context.Context) error {
		return target.DisposeBrowserContext(ic.browserContextID).Do(runCtx)
	}))
	if err != nil {
		ic.logger.Warn("Failed to dispose browser context.", zap.Error(err))
		return fmt.Errorf("disposing browser context: %w", err)
	}

	ic.logger.Debug("Isolated browser session closed.")
	return nil
}

// -- navigationRecorder --

// navigationRecorder listens to CDP network events and reconstructs the
// redirect chain of the main document request.
type navigationRecorder struct {
	mu sync.Mutex

	originalURL   string
	requestID     network.RequestID
	finalURL      string
	redirectCount int
	status        int
	headers       http.Header
}

func newNavigationRecorder() *navigationRecorder {
	return &navigationRecorder{headers: http.Header{}}
}

func (r *navigationRecorder) reset(originalURL string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.originalURL = originalURL
	r.requestID = ""
	r.finalURL = ""
	r.redirectCount = 0
	r.status = 0
	r.headers = http.Header{}
}

func (r *navigationRecorder) handleEvent(ev interface{}) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		if e.Type != network.ResourceTypeDocument {
			return
		}
		r.mu.Lock()
		if r.requestID == "" {
			r.requestID = e.RequestID
		}
		if e.RequestID == r.requestID && e.RedirectResponse != nil {
			r.redirectCount++
		}
		r.mu.Unlock()
	case *network.EventResponseReceived:
		if e.Type != network.ResourceTypeDocument {
			return
		}
		r.mu.Lock()
		if e.RequestID == r.requestID {
			r.finalURL = e.Response.URL
			r.status = int(e.Response.Status)
			r.headers = convertHeaders(e.Response.Headers)
		}
		r.mu.Unlock()
	}
}

func (r *navigationRecorder) metadata() *detection.NavigationMetadata {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &detection.NavigationMetadata{
		OriginalURL:      r.originalURL,
		FinalURL:         r.finalURL,
		RedirectCount:    r.redirectCount,
		ProtocolUpgraded: protocolUpgraded(r.originalURL, r.finalURL),
		ResponseStatus:   r.status,
		ResponseHeaders:  r.headers.Clone(),
	}
}

// convertHeaders maps CDP's loose header representation onto http.Header.
// CDP folds repeated headers into one newline-joined value.
func convertHeaders(h network.Headers) http.Header {
	out := http.Header{}
	for k, v := range h {
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprintf("%v", v)
		}
		for _, part := range strings.Split(s, "\n") {
			out.Add(k, part)
		}
	}
	return out
}

func protocolUpgraded(originalURL, finalURL string) bool {
	if finalURL == "" {
		return false
	}
	o, err := url.Parse(originalURL)
	if err != nil {
		return false
	}
	f, err := url.Parse(finalURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(o.Scheme, "http") && strings.EqualFold(f.Scheme, "https")
}
