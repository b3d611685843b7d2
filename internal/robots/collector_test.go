// internal/robots/collector_test.go
package robots

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleRobots = `# Joomla! robots.txt
User-agent: *
Disallow: /administrator/
Disallow: /cache/ # inline comment
Disallow:
Sitemap: https://example.com/sitemap.xml
`

func TestParse(t *testing.T) {
	data := Parse(sampleRobots)

	assert.True(t, data.Accessible)
	assert.Equal(t, []string{"/administrator/", "/cache/"}, data.DisallowedPaths)
	assert.Equal(t, []string{"https://example.com/sitemap.xml"}, data.SitemapURLs)
	assert.Contains(t, data.Content, "Joomla!")
}

func TestParseDirectiveCase(t *testing.T) {
	data := Parse("DISALLOW: /wp-admin/\nsitemap: https://example.com/wp-sitemap.xml")

	assert.Equal(t, []string{"/wp-admin/"}, data.DisallowedPaths)
	assert.Equal(t, []string{"https://example.com/wp-sitemap.xml"}, data.SitemapURLs)
}

func TestCollector(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	t.Run("should collect, parse, and serve lookups", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/robots.txt", r.URL.Path)
			_, _ = w.Write([]byte(sampleRobots))
		}))
		defer srv.Close()

		c := NewCollector(5*time.Second, logger)
		require.NoError(t, c.Collect(ctx, srv.URL+"/some/page"))

		data, ok := c.Lookup(srv.URL + "/another/page")
		require.True(t, ok)
		assert.True(t, data.Accessible)
		assert.Contains(t, data.DisallowedPaths, "/administrator/")
	})

	t.Run("should fetch each host only once", func(t *testing.T) {
		var hits atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			_, _ = w.Write([]byte(sampleRobots))
		}))
		defer srv.Close()

		c := NewCollector(5*time.Second, logger)
		require.NoError(t, c.Collect(ctx, srv.URL+"/a"))
		require.NoError(t, c.Collect(ctx, srv.URL+"/b"))
		require.NoError(t, c.Collect(ctx, srv.URL+"/c"))

		assert.Equal(t, int32(1), hits.Load())
	})

	t.Run("should cache missing robots as inaccessible", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer srv.Close()

		c := NewCollector(5*time.Second, logger)
		require.NoError(t, c.Collect(ctx, srv.URL+"/page"))

		data, ok := c.Lookup(srv.URL + "/page")
		require.True(t, ok)
		assert.False(t, data.Accessible)
	})

	t.Run("should cache unreachable hosts as inaccessible", func(t *testing.T) {
		c := NewCollector(500*time.Millisecond, logger)
		require.NoError(t, c.Collect(ctx, "http://127.0.0.1:1/page"))

		data, ok := c.Lookup("http://127.0.0.1:1/other")
		require.True(t, ok)
		assert.False(t, data.Accessible)
	})

	t.Run("should reject urls without a host", func(t *testing.T) {
		c := NewCollector(time.Second, logger)
		assert.Error(t, c.Collect(ctx, "not-a-url"))

		_, ok := c.Lookup("not-a-url")
		assert.False(t, ok)
	})
}
