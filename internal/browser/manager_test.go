// internal/browser/manager_test.go
package browser

import (
	"context"
	"testing"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stackscope/internal/config"
)

func newTestManager(t *testing.T, mutate func(*config.Config)) *Manager {
	t.Helper()
	cfg := config.NewDefault()
	if mutate != nil {
		mutate(cfg)
	}
	return &Manager{
		logger:       zap.NewNop(),
		globalConfig: cfg,
	}
}

func TestBuildAllocatorOptions(t *testing.T) {
	t.Run("should extend the chromedp defaults with overrides", func(t *testing.T) {
		m := newTestManager(t, nil)

		opts := m.buildAllocatorOptions()

		require.Greater(t, len(opts), len(chromedp.DefaultExecAllocatorOptions))
		for _, opt := range opts {
			require.NotNil(t, opt)
		}

		// Setting up an allocator applies every option; a malformed one
		// would panic here. No browser is launched until first use.
		allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
		defer cancel()
		assert.NotNil(t, allocCtx)
	})

	t.Run("should append custom args from the config", func(t *testing.T) {
		base := newTestManager(t, nil)
		custom := newTestManager(t, func(cfg *config.Config) {
			cfg.Browser.Args = []string{"--proxy-server=socks5://127.0.0.1:9050", "no-zygote"}
		})

		assert.Len(t, custom.buildAllocatorOptions(), len(base.buildAllocatorOptions())+2)
	})
}
