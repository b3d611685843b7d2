// Package report renders batch outcomes into machine and human readable
// formats.
package report

import (
	"fmt"
	"io"
	"os"

	"github.com/xkilldash9x/stackscope/internal/detection"
)

// Reporter writes a set of detection outcomes to an output.
type Reporter interface {
	// Write renders the outcomes.
	Write(outcomes []detection.Outcome) error
	// Close finalizes the report and closes any underlying resources.
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a reporter for the given format. An empty or "stdout" output
// path writes to standard output.
func New(format, outputPath string) (Reporter, error) {
	var writer io.WriteCloser
	isStdOut := outputPath == "" || outputPath == "stdout"

	if isStdOut {
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	cleanup := func() {
		if !isStdOut {
			writer.Close()
		}
	}

	switch format {
	case "jsonl":
		return NewJSONLReporter(writer), nil
	case "csv":
		return NewCSVReporter(writer), nil
	case "markdown", "md":
		return NewMarkdownReporter(writer), nil
	default:
		cleanup()
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
