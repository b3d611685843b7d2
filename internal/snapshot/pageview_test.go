// internal/snapshot/pageview_test.go
package snapshot

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotPageView(t *testing.T) {
	ctx := context.Background()
	pv := NewPageView(sampleSnapshot())

	t.Run("should answer from captured data", func(t *testing.T) {
		assert.Equal(t, "https://example.com/", pv.URL())
		assert.Equal(t, "https://example.com/xmlrpc.php", pv.Headers().Get("X-Pingback"))

		html, err := pv.HTML(ctx)
		require.NoError(t, err)
		assert.Contains(t, html, "WordPress 6.1")

		meta, err := pv.MetaTags(ctx)
		require.NoError(t, err)
		assert.Equal(t, "WordPress 6.1", meta["generator"])
	})

	t.Run("should resolve relative fetches against the final url", func(t *testing.T) {
		res, err := pv.Fetch(ctx, "/wp-json/")
		require.NoError(t, err)
		assert.Equal(t, 200, res.Status)
		assert.Contains(t, res.Body, "wp/v2")
	})

	t.Run("should serve absolute fetches of captured resources", func(t *testing.T) {
		res, err := pv.Fetch(ctx, "https://example.com/wp-json/")
		require.NoError(t, err)
		assert.Equal(t, "application/json", res.ContentType)
	})

	t.Run("should error on resources missing from the capture", func(t *testing.T) {
		_, err := pv.Fetch(ctx, "/jsonapi")
		assert.ErrorContains(t, err, "not captured")
	})

	t.Run("should be deterministic across repeated reads", func(t *testing.T) {
		first, err := pv.Fetch(ctx, "/wp-json/")
		require.NoError(t, err)
		second, err := pv.Fetch(ctx, "/wp-json/")
		require.NoError(t, err)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("repeated fetch diverged (-first +second):\n%s", diff)
		}
	})
}

func TestSnapshotNavigationMetadata(t *testing.T) {
	pv := NewPageView(sampleSnapshot())
	meta := pv.NavigationMetadata()

	assert.Equal(t, "http://example.com/", meta.OriginalURL)
	assert.Equal(t, "https://example.com/", meta.FinalURL)
	assert.Equal(t, 1, meta.RedirectCount)
	assert.True(t, meta.ProtocolUpgraded)
	assert.Equal(t, 200, meta.ResponseStatus)
}
