// Package output provides output formatting for discovery results.
package output

import (
	"io"
	"strings"

	"github.com/PentesterFlow/LoadScope/internal/classify"
)

// Writer defines the interface for output writers.
type Writer interface {
	// WriteReport writes a complete report
	WriteReport(report *Report) error

	// Flush flushes any buffered output
	Flush() error

	// Close closes the writer
	Close() error
}

// Config holds output configuration.
type Config struct {
	Format string
	Pretty bool
	Stream bool // JSON only: one event per line
	Types  []classify.URLType
}

// NewWriter creates a new output writer.
func NewWriter(w io.Writer, config Config) Writer {
	var writer Writer
	switch strings.ToLower(config.Format) {
	case "text":
		writer = NewTextWriter(w)
	default:
		writer = NewJSONWriter(w, config.Pretty, config.Stream)
	}

	if len(config.Types) > 0 {
		writer = &filterWriter{Writer: writer, types: config.Types}
	}
	return writer
}

// filterWriter drops URLs whose type was not requested.
type filterWriter struct {
	Writer
	types []classify.URLType
}

func (f *filterWriter) WriteReport(report *Report) error {
	filtered := *report
	filtered.URLs = FilterTypes(report.URLs, f.types)
	return f.Writer.WriteReport(&filtered)
}
