// internal/snapshot/capture_test.go
package snapshot

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stackscope/internal/detection"
)

// fakeLivePage stands in for a chromedp-backed page during capture tests.
type fakeLivePage struct {
	url     string
	headers http.Header
	html    string
	meta    map[string]string
	fetches map[string]*detection.FetchResult
}

func (p *fakeLivePage) URL() string          { return p.url }
func (p *fakeLivePage) Headers() http.Header { return p.headers }

func (p *fakeLivePage) HTML(ctx context.Context) (string, error) { return p.html, nil }

func (p *fakeLivePage) MetaTags(ctx context.Context) (map[string]string, error) {
	return p.meta, nil
}

func (p *fakeLivePage) Fetch(ctx context.Context, target string) (*detection.FetchResult, error) {
	if res, ok := p.fetches[target]; ok {
		return res, nil
	}
	return nil, fmt.Errorf("fetch of %s failed", target)
}

func TestCapture(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	live := &fakeLivePage{
		url:     "https://example.com/",
		headers: http.Header{"X-Generator": []string{"Drupal 10 (https://www.drupal.org)"}},
		html:    `<html><body data-drupal-selector="main"></body></html>`,
		meta:    map[string]string{"generator": "Drupal 10 (https://www.drupal.org)"},
		fetches: map[string]*detection.FetchResult{
			"https://example.com/jsonapi": {
				Status:      200,
				ContentType: "application/vnd.api+json",
				Body:        `{"jsonapi":{"version":"1.0"},"links":{}}`,
			},
		},
	}
	meta := &detection.NavigationMetadata{
		OriginalURL:    "http://example.com/",
		FinalURL:       "https://example.com/",
		RedirectCount:  1,
		ResponseStatus: 200,
	}

	snap, err := Capture(ctx, live, meta, DefaultProbePaths(), logger)
	require.NoError(t, err)

	t.Run("should record the page surface and redirect trail", func(t *testing.T) {
		assert.Equal(t, SchemaVersion, snap.SchemaVersion)
		assert.Equal(t, "http://example.com/", snap.OriginalURL)
		assert.Equal(t, "https://example.com/", snap.FinalURL)
		assert.Equal(t, 1, snap.RedirectCount)
		assert.Contains(t, snap.HTML, "data-drupal-selector")
		assert.Equal(t, "Drupal 10 (https://www.drupal.org)", snap.MetaTags["generator"])
	})

	t.Run("should record successful probes and skip failed ones", func(t *testing.T) {
		require.Contains(t, snap.Resources, "https://example.com/jsonapi")
		assert.NotContains(t, snap.Resources, "https://example.com/wp-json/")

		res := snap.Resources["https://example.com/jsonapi"]
		assert.Equal(t, 200, res.Status)
	})

	t.Run("captured snapshot should replay through the detection surface", func(t *testing.T) {
		pv := NewPageView(snap)
		res, err := pv.Fetch(ctx, "/jsonapi")
		require.NoError(t, err)
		assert.Contains(t, res.Body, "jsonapi")
	})
}

func TestDefaultProbePaths(t *testing.T) {
	paths := DefaultProbePaths()
	assert.Contains(t, paths, "/wp-json/")
	assert.Contains(t, paths, "/jsonapi")
	assert.Contains(t, paths, "/administrator/manifests/files/joomla.xml")
}
