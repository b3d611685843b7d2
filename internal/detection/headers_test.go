// internal/detection/headers_test.go
package detection

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeaderStrategy(t *testing.T) {
	ctx := context.Background()

	t.Run("should match substring and extract version", func(t *testing.T) {
		s := &HeaderStrategy{Rules: []HeaderRule{
			{Header: "X-Generator", Pattern: "Drupal", Kind: MatchContains, Confidence: 0.9, ExtractVersion: true},
		}}
		page := &stubPage{headers: http.Header{
			"X-Generator": []string{"Drupal 10.1 (https://www.drupal.org)"},
		}}

		res := s.Detect(ctx, page)

		assert.Equal(t, 0.9, res.Confidence)
		assert.Equal(t, "10.1", res.Version)
	})

	t.Run("should fire MatchAny on mere presence", func(t *testing.T) {
		s := &HeaderStrategy{Rules: []HeaderRule{
			{Header: "X-Pingback", Kind: MatchAny, Confidence: 0.7},
		}}
		page := &stubPage{headers: http.Header{
			"X-Pingback": []string{"https://example.com/xmlrpc.php"},
		}}

		res := s.Detect(ctx, page)

		assert.Equal(t, 0.7, res.Confidence)
	})

	t.Run("should sum rule contributions capped at one", func(t *testing.T) {
		s := &HeaderStrategy{Rules: []HeaderRule{
			{Header: "X-Powered-By", Pattern: "WordPress", Kind: MatchContains, Confidence: 0.9},
			{Header: "Link", Pattern: "wp-json", Kind: MatchContains, Confidence: 0.8},
		}}
		page := &stubPage{headers: http.Header{
			"X-Powered-By": []string{"WordPress/6.1"},
			"Link":         []string{`<https://example.com/wp-json/>; rel="https://api.w.org/"`},
		}}

		res := s.Detect(ctx, page)

		assert.Equal(t, 1.0, res.Confidence)
		assert.Len(t, res.Notes, 2)
	})

	t.Run("should contribute once per rule across repeated headers", func(t *testing.T) {
		s := &HeaderStrategy{Rules: []HeaderRule{
			{Header: "Link", Pattern: "wp-json", Kind: MatchContains, Confidence: 0.8},
		}}
		page := &stubPage{headers: http.Header{
			"Link": []string{
				`<https://example.com/wp-json/>; rel="https://api.w.org/"`,
				`<https://example.com/wp-json/wp/v2/>; rel="alternate"`,
			},
		}}

		res := s.Detect(ctx, page)

		assert.Equal(t, 0.8, res.Confidence)
	})

	t.Run("should support regex rules with capture groups", func(t *testing.T) {
		s := &HeaderStrategy{Rules: []HeaderRule{
			{Header: "Server", Pattern: `example/(\d+\.\d+)`, Kind: MatchRegex, Confidence: 0.6, ExtractVersion: true},
		}}
		page := &stubPage{headers: http.Header{
			"Server": []string{"Example/2.4 (Unix)"},
		}}

		res := s.Detect(ctx, page)

		assert.Equal(t, 0.6, res.Confidence)
		assert.Equal(t, "2.4", res.Version)
	})

	t.Run("should surface malformed regex as an error", func(t *testing.T) {
		s := &HeaderStrategy{Rules: []HeaderRule{
			{Header: "Server", Pattern: `([`, Kind: MatchRegex, Confidence: 0.6},
		}}
		page := &stubPage{headers: http.Header{"Server": []string{"nginx"}}}

		res := s.Detect(ctx, page)

		assert.Zero(t, res.Confidence)
		assert.NotEmpty(t, res.Error)
	})

	t.Run("should report missing headers as an error", func(t *testing.T) {
		s := &HeaderStrategy{Rules: []HeaderRule{
			{Header: "X-Pingback", Kind: MatchAny, Confidence: 0.7},
		}}
		page := &stubPage{}

		res := s.Detect(ctx, page)

		assert.Zero(t, res.Confidence)
		assert.Equal(t, "no response headers collected", res.Error)
	})

	t.Run("should report no evidence when nothing matches", func(t *testing.T) {
		s := &HeaderStrategy{Rules: []HeaderRule{
			{Header: "X-Powered-By", Pattern: "WordPress", Kind: MatchContains, Confidence: 0.9},
		}}
		page := &stubPage{headers: http.Header{"Server": []string{"nginx"}}}

		res := s.Detect(ctx, page)

		assert.Zero(t, res.Confidence)
		assert.Empty(t, res.Error)
	})
}
