// internal/report/writers.go
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/stackscope/internal/detection"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// -- JSON Lines --

// JSONLReporter writes one JSON object per outcome per line, the format most
// downstream tooling ingests.
type JSONLReporter struct {
	w io.WriteCloser
}

// NewJSONLReporter takes ownership of the writer.
func NewJSONLReporter(w io.WriteCloser) *JSONLReporter {
	return &JSONLReporter{w: w}
}

func (r *JSONLReporter) Write(outcomes []detection.Outcome) error {
	enc := json.NewEncoder(r.w)
	for i := range outcomes {
		if err := enc.Encode(&outcomes[i]); err != nil {
			return fmt.Errorf("encoding outcome for %s: %w", outcomes[i].OriginalURL, err)
		}
	}
	return nil
}

func (r *JSONLReporter) Close() error {
	return r.w.Close()
}

// -- CSV --

var csvHeader = []string{
	"original_url", "final_url", "technology", "confidence", "version",
	"redirect_count", "protocol_upgraded", "methods_used",
	"execution_time_ms", "error",
}

// CSVReporter writes outcomes as a flat CSV table for spreadsheet review.
type CSVReporter struct {
	w io.WriteCloser
}

// NewCSVReporter takes ownership of the writer.
func NewCSVReporter(w io.WriteCloser) *CSVReporter {
	return &CSVReporter{w: w}
}

func (r *CSVReporter) Write(outcomes []detection.Outcome) error {
	cw := csv.NewWriter(r.w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, o := range outcomes {
		record := []string{
			o.OriginalURL,
			o.FinalURL,
			string(o.Technology),
			strconv.FormatFloat(o.Confidence, 'f', 3, 64),
			o.Version,
			strconv.Itoa(o.RedirectCount),
			strconv.FormatBool(o.ProtocolUpgraded),
			strings.Join(o.MethodsUsed, ";"),
			strconv.FormatInt(o.ExecutionTimeMs, 10),
			o.Error,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing csv record for %s: %w", o.OriginalURL, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

func (r *CSVReporter) Close() error {
	return r.w.Close()
}

// -- Markdown --

// MarkdownReporter writes a summary table suitable for pasting into an issue
// or a wiki page.
type MarkdownReporter struct {
	w io.WriteCloser
}

// NewMarkdownReporter takes ownership of the writer.
func NewMarkdownReporter(w io.WriteCloser) *MarkdownReporter {
	return &MarkdownReporter{w: w}
}

func (r *MarkdownReporter) Write(outcomes []detection.Outcome) error {
	var b strings.Builder
	b.WriteString("| URL | Technology | Confidence | Version | Time (ms) | Error |\n")
	b.WriteString("| --- | --- | --- | --- | --- | --- |\n")
	for _, o := range outcomes {
		fmt.Fprintf(&b, "| %s | %s | %.2f | %s | %d | %s |\n",
			escapeCell(o.OriginalURL),
			o.Technology,
			o.Confidence,
			escapeCell(o.Version),
			o.ExecutionTimeMs,
			escapeCell(o.Error),
		)
	}
	if _, err := io.WriteString(r.w, b.String()); err != nil {
		return fmt.Errorf("writing markdown table: %w", err)
	}
	return nil
}

func (r *MarkdownReporter) Close() error {
	return r.w.Close()
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", "\\|")
}
