// internal/browser/context_test.go
package browser

import (
	"testing"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
)

func TestConvertHeaders(t *testing.T) {
	t.Run("should split newline-folded values", func(t *testing.T) {
		h := convertHeaders(network.Headers{
			"Set-Cookie":   "a=1\nb=2",
			"Content-Type": "text/html; charset=utf-8",
		})

		assert.Equal(t, []string{"a=1", "b=2"}, h.Values("Set-Cookie"))
		assert.Equal(t, "text/html; charset=utf-8", h.Get("Content-Type"))
	})

	t.Run("should stringify non-string values", func(t *testing.T) {
		h := convertHeaders(network.Headers{"Content-Length": float64(1234)})
		assert.Equal(t, "1234", h.Get("Content-Length"))
	})
}

func TestProtocolUpgraded(t *testing.T) {
	tests := []struct {
		name     string
		original string
		final    string
		want     bool
	}{
		{"http to https", "http://example.com/", "https://example.com/", true},
		{"already https", "https://example.com/", "https://example.com/", false},
		{"downgrade", "https://example.com/", "http://example.com/", false},
		{"no final url", "http://example.com/", "", false},
		{"scheme case insensitive", "HTTP://example.com/", "HTTPS://example.com/", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, protocolUpgraded(tc.original, tc.final))
		})
	}
}

func TestNavigationRecorder(t *testing.T) {
	docRequest := func(id network.RequestID, redirect bool) *network.EventRequestWillBeSent {
		ev := &network.EventRequestWillBeSent{
			RequestID: id,
			Type:      network.ResourceTypeDocument,
		}
		if redirect {
			ev.RedirectResponse = &network.Response{}
		}
		return ev
	}

	t.Run("should track the main document through redirects", func(t *testing.T) {
		r := newNavigationRecorder()
		r.reset("http://example.com/")

		r.handleEvent(docRequest("req-1", false))
		r.handleEvent(docRequest("req-1", true))
		r.handleEvent(&network.EventResponseReceived{
			RequestID: "req-1",
			Type:      network.ResourceTypeDocument,
			Response: &network.Response{
				URL:     "https://example.com/",
				Status:  200,
				Headers: network.Headers{"X-Generator": "Drupal 10"},
			},
		})

		meta := r.metadata()
		assert.Equal(t, "http://example.com/", meta.OriginalURL)
		assert.Equal(t, "https://example.com/", meta.FinalURL)
		assert.Equal(t, 1, meta.RedirectCount)
		assert.True(t, meta.ProtocolUpgraded)
		assert.Equal(t, 200, meta.ResponseStatus)
		assert.Equal(t, "Drupal 10", meta.ResponseHeaders.Get("X-Generator"))
	})

	t.Run("should ignore sub-resource events", func(t *testing.T) {
		r := newNavigationRecorder()
		r.reset("https://example.com/")

		r.handleEvent(docRequest("req-1", false))
		r.handleEvent(&network.EventRequestWillBeSent{
			RequestID: "req-2",
			Type:      network.ResourceTypeImage,
		})
		r.handleEvent(&network.EventResponseReceived{
			RequestID: "req-2",
			Type:      network.ResourceTypeImage,
			Response:  &network.Response{URL: "https://cdn.example.com/a.png", Status: 200},
		})

		meta := r.metadata()
		assert.Empty(t, meta.FinalURL)
		assert.Zero(t, meta.ResponseStatus)
	})

	t.Run("should drop stale state on reset", func(t *testing.T) {
		r := newNavigationRecorder()
		r.reset("https://one.example/")
		r.handleEvent(docRequest("req-1", false))
		r.handleEvent(docRequest("req-1", true))

		r.reset("https://two.example/")
		meta := r.metadata()
		assert.Equal(t, "https://two.example/", meta.OriginalURL)
		assert.Zero(t, meta.RedirectCount)
	})
}
