// internal/snapshot/capture.go
package snapshot

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/stackscope/internal/detection"
)

// Capture materializes a Snapshot from a live page. probePaths lists the
// well-known endpoints to fetch alongside the page so the endpoint strategy
// can replay later; a probe that fails is recorded as absent, not fatal.
func Capture(ctx context.Context, page detection.PageView, meta *detection.NavigationMetadata, probePaths []string, logger *zap.Logger) (*Snapshot, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture html: %w", err)
	}
	metaTags, err := page.MetaTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture meta tags: %w", err)
	}

	snap := &Snapshot{
		SchemaVersion: SchemaVersion,
		CapturedAt:    time.Now().UTC(),
		OriginalURL:   page.URL(),
		FinalURL:      page.URL(),
		Headers:       page.Headers(),
		HTML:          html,
		MetaTags:      metaTags,
		Resources:     make(map[string]Resource),
	}
	if meta != nil {
		snap.OriginalURL = meta.OriginalURL
		snap.FinalURL = meta.FinalURL
		snap.RedirectCount = meta.RedirectCount
		snap.StatusCode = meta.ResponseStatus
	}

	view := &PageView{snap: snap}
	for _, path := range probePaths {
		key, err := view.canonicalize(path)
		if err != nil {
			logger.Debug("Skipping malformed probe path.", zap.String("path", path), zap.Error(err))
			continue
		}
		res, err := page.Fetch(ctx, key)
		if err != nil {
			logger.Debug("Probe not captured.", zap.String("url", key), zap.Error(err))
			continue
		}
		snap.Resources[key] = Resource{
			Status:      res.Status,
			ContentType: res.ContentType,
			Body:        res.Body,
		}
	}

	return snap, nil
}

// DefaultProbePaths are the endpoints the built-in detectors probe. Keeping
// the capture list in sync with the detector tables means a snapshot can
// always answer what live detection would have asked.
func DefaultProbePaths() []string {
	return []string{
		"/wp-json/",
		"/administrator/manifests/files/joomla.xml",
		"/jsonapi",
	}
}
