package output

import (
	"fmt"
	"io"
	"sync"

	"github.com/PentesterFlow/LoadScope/internal/classify"
	"github.com/PentesterFlow/LoadScope/internal/netlog"
)

// TextWriter writes one line per URL: "[type] url <- referer".
type TextWriter struct {
	mu     sync.Mutex
	writer io.Writer
	closed bool
}

// NewTextWriter creates a new text writer.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{writer: w}
}

// WriteReport writes every URL followed by a per-type tally.
func (t *TextWriter) WriteReport(report *Report) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}

	for _, u := range report.URLs {
		if err := t.writeURL(u); err != nil {
			return err
		}
	}

	counts := CountByType(report.URLs)
	if _, err := fmt.Fprintf(t.writer, "# %s -> %s: %d urls", report.Target, report.FinalURL, len(report.URLs)); err != nil {
		return err
	}
	for _, typ := range classify.Types() {
		if counts[typ] > 0 {
			if _, err := fmt.Fprintf(t.writer, " %s=%d", typ, counts[typ]); err != nil {
				return err
			}
		}
	}
	if _, err := io.WriteString(t.writer, "\n"); err != nil {
		return err
	}

	for _, e := range report.Errors {
		if _, err := fmt.Fprintf(t.writer, "# error [%s] %s\n", e.Stage, e.Message); err != nil {
			return err
		}
	}
	return nil
}

func (t *TextWriter) writeURL(u netlog.DiscoveredURL) error {
	var err error
	if u.Referer != "" {
		_, err = fmt.Fprintf(t.writer, "[%s] %s <- %s\n", u.Type, u.URL, u.Referer)
	} else {
		_, err = fmt.Fprintf(t.writer, "[%s] %s\n", u.Type, u.URL)
	}
	return err
}

// Flush flushes the writer.
func (t *TextWriter) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if flusher, ok := t.writer.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}

// Close closes the writer.
func (t *TextWriter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true

	if closer, ok := t.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
