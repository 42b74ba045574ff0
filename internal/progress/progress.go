// Package progress shows a one-line status while a page is being loaded and
// a summary box once it is done.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/PentesterFlow/LoadScope/internal/classify"
	"github.com/PentesterFlow/LoadScope/internal/output"
)

// Display rewrites a single terminal line with the latest step.
// It satisfies loadscope.Logger, so it can stand in for a logger.
type Display struct {
	mu      sync.Mutex
	out     io.Writer
	started bool
	stopped bool

	// Timing
	startTime time.Time
	target    string

	// Display
	lastLine string
	steps    int
}

// New creates a display writing to w, or stderr when w is nil.
func New(w io.Writer) *Display {
	if w == nil {
		w = os.Stderr
	}
	return &Display{out: w}
}

// Start begins the progress display.
func (d *Display) Start(target string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return
	}

	d.started = true
	d.startTime = time.Now()
	d.target = target
}

// Log replaces the status line with msg.
func (d *Display) Log(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started || d.stopped {
		return
	}
	d.steps++

	line := fmt.Sprintf("\r[%s] %s | %s",
		formatDuration(time.Since(d.startTime)), truncate(d.target, 40), truncate(msg, 80))

	// Clear previous line and print new one
	if width := utf8.RuneCountInString(d.lastLine); utf8.RuneCountInString(line) < width {
		fmt.Fprint(d.out, "\r"+strings.Repeat(" ", width))
	}
	fmt.Fprint(d.out, line)
	d.lastLine = line
}

// Stop stops the progress display.
func (d *Display) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || !d.started {
		return
	}

	d.stopped = true

	// Print newline to move past the status line
	fmt.Fprintln(d.out)
}

// PrintSummary prints the outcome of a run.
func (d *Display) PrintSummary(report *output.Report) {
	d.mu.Lock()
	defer d.mu.Unlock()

	counts := output.CountByType(report.URLs)

	fmt.Fprintln(d.out)
	fmt.Fprintln(d.out, "╔══════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(d.out, "║                     Discovery Complete                       ║")
	fmt.Fprintln(d.out, "╚══════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(d.out)
	fmt.Fprintf(d.out, "  Target:      %s\n", truncate(report.Target, 60))
	fmt.Fprintf(d.out, "  Final URL:   %s\n", truncate(report.FinalURL, 60))
	fmt.Fprintf(d.out, "  Duration:    %s (%d steps)\n", formatDuration(report.Duration), d.steps)
	fmt.Fprintf(d.out, "  Log Entries: %d (%d malformed)\n", report.Summary.Entries, report.Summary.Malformed)
	fmt.Fprintf(d.out, "  URLs:        %d\n", len(report.URLs))
	for _, t := range classify.Types() {
		fmt.Fprintf(d.out, "    %-9s  %d\n", t, counts[t])
	}
	fmt.Fprintf(d.out, "  Errors:      %d\n", len(report.Errors))
	for _, e := range report.Errors {
		fmt.Fprintf(d.out, "    [%s] %s\n", e.Stage, truncate(e.Message, 70))
	}
	fmt.Fprintln(d.out)
}

// truncate shortens s to maxLen runes.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen-3]) + "..."
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
