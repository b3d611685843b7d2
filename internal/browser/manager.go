// Package browser owns the shared headless Chrome process and hands out
// isolated browsing sessions for individual URL checks.
package browser

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stackscope/internal/config"
	"github.com/xkilldash9x/stackscope/internal/detection"
)

var _ detection.ContextProvider = (*Manager)(nil)

// Manager handles the lifecycle of the headless browser process. A single
// Chrome instance is shared by all checks; isolation happens at the browser
// context level, one context per check.
type Manager struct {
	logger       *zap.Logger
	globalConfig *config.Config

	// allocatorCtx manages the entire browser process. All session contexts
	// are derived from this.
	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc

	// browserCtx is a long-lived chromedp context attached to the browser
	// itself, used to issue Target.* commands.
	browserCtx    context.Context
	browserCancel context.CancelFunc

	// contextCreationLock serializes browser context creation. Chrome handles
	// concurrent Target.createBrowserContext poorly under load.
	contextCreationLock sync.Mutex

	// wg tracks active sessions for a graceful shutdown.
	wg sync.WaitGroup
}

// NewManager initializes the browser manager and launches the browser process.
func NewManager(ctx context.Context, logger *zap.Logger, cfg *config.Config) (*Manager, error) {
	m := &Manager{
		logger:       logger.Named("browser_manager"),
		globalConfig: cfg,
	}

	if err := m.launchBrowser(ctx); err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return m, nil
}

// launchBrowser prepares allocator options and starts the headless browser
// process, verifying that it is responsive before returning.
func (m *Manager) launchBrowser(ctx context.Context) error {
	m.logger.Info("Initializing browser allocator...")

	opts := m.buildAllocatorOptions()

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	m.allocatorCtx = allocCtx
	m.allocatorCancel = cancel

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	m.browserCtx = browserCtx
	m.browserCancel = browserCancel

	// Run a simple task with a deadline to confirm the browser is alive.
	testCtx, cancelTest := context.WithTimeout(browserCtx, 30*time.Second)
	defer cancelTest()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		m.browserCancel()
		m.allocatorCancel()
		return fmt.Errorf("browser failed to start or respond: %w", err)
	}

	m.logger.Info("Browser launched successfully and is responsive.")
	return nil
}

// buildAllocatorOptions assembles the flags for a quiet, configurable browser
// instance.
func (m *Manager) buildAllocatorOptions() []chromedp.ExecAllocatorOption {
	// Start with chromedp defaults. Later flags overwrite earlier ones in the
	// allocator's flag map, so overrides are plain appends.
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		// Some platforms change their served markup when they see an
		// automated visitor.
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("headless", m.globalConfig.Browser.Headless),
		chromedp.Flag("ignore-certificate-errors", m.globalConfig.Browser.IgnoreTLSErrors),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", m.globalConfig.Browser.Headless),
		chromedp.UserAgent(m.globalConfig.Browser.UserAgent),
	)

	// Add custom arguments from the config file.
	for _, arg := range m.globalConfig.Browser.Args {
		parts := strings.SplitN(arg, "=", 2)
		flagName := strings.TrimPrefix(parts[0], "--")

		if len(parts) == 2 {
			opts = append(opts, chromedp.Flag(flagName, parts[1]))
		} else {
			opts = append(opts, chromedp.Flag(flagName, true))
		}
	}

	// Flags required for running inside containers (e.g., Docker on Linux).
	if runtime.GOOS == "linux" {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
		)
	}

	return opts
}

// AcquireContext creates a new, fully isolated browsing session backed by a
// dedicated browser context (incognito profile) in the shared process.
func (m *Manager) AcquireContext(ctx context.Context) (detection.BrowserContext, error) {
	m.contextCreationLock.Lock()
	defer m.contextCreationLock.Unlock()

	var browserContextID cdp.BrowserContextID
	var targetID target.ID

	err := chromedp.Run(m.browserCtx, chromedp.ActionFunc(func(runCtx context.Context) error {
		id, err := target.CreateBrowserContext().WithDisposeOnDetach(true).Do(runCtx)
		if err != nil {
			return fmt.Errorf("creating browser context: %w", err)
		}
		browserContextID = id

		tid, err := target.CreateTarget("about:blank").
			WithBrowserContextID(id).
			WithNewWindow(false).
			Do(runCtx)
		if err != nil {
			disposeErr := target.DisposeBrowserContext(id).Do(runCtx)
			if disposeErr != nil {
				m.logger.Warn("Failed to dispose orphaned browser context.", zap.Error(disposeErr))
			}
			return fmt.Errorf("creating target: %w", err)
		}
		targetID = tid
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize isolated session: %w", err)
	}

	ic := newIsolatedContext(m.browserCtx, browserContextID, targetID, m.globalConfig, m.logger)
	if err := ic.attach(ctx); err != nil {
		closeErr := ic.Close(ctx)
		if closeErr != nil {
			m.logger.Warn("Failed to close session after attach error.", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("failed to attach to isolated session: %w", err)
	}

	m.wg.Add(1)
	ic.onClose = m.wg.Done
	return ic, nil
}

// Shutdown waits for all active sessions to complete and then terminates the
// browser process.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Browser manager shutdown initiated. Waiting for active sessions to complete...")

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("All sessions have completed.")
	case <-ctx.Done():
		m.logger.Warn("Shutdown deadline exceeded. Forcing browser termination.", zap.Error(ctx.Err()))
	}

	if m.browserCancel != nil {
		m.browserCancel()
	}
	if m.allocatorCancel != nil {
		m.logger.Info("Shutting down main browser process...")
		m.allocatorCancel()
		<-m.allocatorCtx.Done()
	}
	return nil
}
