// Package snapshot captures the observable surface of a page once so
// detection can be re-run offline, deterministically, long after the live
// site has changed.
package snapshot

import (
	"fmt"
	"net/http"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SchemaVersion is bumped whenever the on-disk shape changes in a way old
// readers cannot tolerate. Loading rejects snapshots from a newer schema.
const SchemaVersion = 2

// Snapshot is a read-only copy of one page's observable surface. It is
// created once per URL and never mutated afterwards.
type Snapshot struct {
	SchemaVersion int                 `json:"schema_version"`
	CapturedAt    time.Time           `json:"captured_at"`
	OriginalURL   string              `json:"original_url"`
	FinalURL      string              `json:"final_url"`
	RedirectCount int                 `json:"redirect_count"`
	StatusCode    int                 `json:"status_code"`
	Headers       map[string][]string `json:"headers"`
	HTML          string              `json:"html"`
	MetaTags      map[string]string   `json:"meta_tags"`
	ScriptSrcs    []string            `json:"script_srcs,omitempty"`

	// Resources holds the bodies of sub-resource probes (well-known API
	// endpoints) captured alongside the page, keyed by absolute URL. They
	// are what lets the endpoint strategy replay without a network.
	Resources map[string]Resource `json:"resources,omitempty"`
}

// Resource is one captured sub-resource response.
type Resource struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        string `json:"body"`
}

// HTTPHeaders converts the serialized header map back to http.Header with
// canonical key casing.
func (s *Snapshot) HTTPHeaders() http.Header {
	h := http.Header{}
	for name, values := range s.Headers {
		for _, v := range values {
			h.Add(name, v)
		}
	}
	return h
}

// Encode serializes the snapshot.
func Encode(s *Snapshot) ([]byte, error) {
	s.SchemaVersion = SchemaVersion
	return json.MarshalIndent(s, "", "  ")
}

// Decode parses a snapshot and enforces schema compatibility: older
// versions are replayable, newer ones are not.
func Decode(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("snapshot schema v%d is newer than supported v%d", s.SchemaVersion, SchemaVersion)
	}
	return &s, nil
}

// Save writes the snapshot to disk.
func Save(s *Snapshot, path string) error {
	data, err := Encode(s)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	return nil
}

// Load reads a snapshot from disk.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	return Decode(data)
}
