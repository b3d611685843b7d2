// Package robots fetches and parses robots.txt out of band, ahead of
// detection, so the robots strategy only ever consumes pre-collected data.
package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/stackscope/internal/detection"
)

// maxBodySize caps how much of a robots.txt we keep. Anything beyond this
// is noise for fingerprinting purposes.
const maxBodySize = 512 * 1024

// Collector fetches robots.txt per site and caches the parsed result by
// host, so many URLs on one site cost a single request.
type Collector struct {
	client *http.Client
	logger *zap.Logger
	mu     sync.RWMutex
	cache  map[string]*detection.RobotsData
}

var _ detection.RobotsSource = (*Collector)(nil)

func NewCollector(timeout time.Duration, logger *zap.Logger) *Collector {
	return &Collector{
		client: &http.Client{Timeout: timeout},
		logger: logger.Named("robots"),
		cache:  make(map[string]*detection.RobotsData),
	}
}

// Collect fetches and parses robots.txt for the site hosting pageURL. An
// unreachable or missing robots.txt is cached as inaccessible, which the
// strategy reports as "no data" rather than negative evidence.
func (c *Collector) Collect(ctx context.Context, pageURL string) error {
	host, robotsURL, err := robotsLocation(pageURL)
	if err != nil {
		return err
	}

	c.mu.RLock()
	_, cached := c.cache[host]
	c.mu.RUnlock()
	if cached {
		return nil
	}

	data := c.fetch(ctx, robotsURL)

	c.mu.Lock()
	c.cache[host] = data
	c.mu.Unlock()
	return nil
}

// Lookup implements detection.RobotsSource.
func (c *Collector) Lookup(pageURL string) (*detection.RobotsData, bool) {
	host, _, err := robotsLocation(pageURL)
	if err != nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.cache[host]
	return data, ok
}

func (c *Collector) fetch(ctx context.Context, robotsURL string) *detection.RobotsData {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return &detection.RobotsData{}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; stackscope/1.0)")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("robots.txt fetch failed.", zap.String("url", robotsURL), zap.Error(err))
		return &detection.RobotsData{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("robots.txt not available.", zap.String("url", robotsURL), zap.Int("status", resp.StatusCode))
		return &detection.RobotsData{}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return &detection.RobotsData{}
	}

	return Parse(string(body))
}

// Parse extracts the Disallow paths and Sitemap URLs from a robots.txt body.
func Parse(content string) *detection.RobotsData {
	data := &detection.RobotsData{
		Content:    content,
		Accessible: true,
	}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if i := strings.Index(line, "#"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" {
			continue
		}
		name, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "disallow":
			if value != "" {
				data.DisallowedPaths = append(data.DisallowedPaths, value)
			}
		case "sitemap":
			if value != "" {
				data.SitemapURLs = append(data.SitemapURLs, value)
			}
		}
	}
	return data
}

func robotsLocation(pageURL string) (host, robotsURL string, err error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", "", fmt.Errorf("parse url %s: %w", pageURL, err)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("url %s has no host", pageURL)
	}
	return u.Host, u.Scheme + "://" + u.Host + "/robots.txt", nil
}
