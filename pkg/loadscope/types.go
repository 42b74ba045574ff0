package loadscope

import (
	"context"
	"time"

	"github.com/PentesterFlow/LoadScope/internal/classify"
	"github.com/PentesterFlow/LoadScope/internal/errors"
	"github.com/PentesterFlow/LoadScope/internal/netlog"
	"github.com/PentesterFlow/LoadScope/internal/output"
)

// DiscoveredURL is a classified URL requested while the target page loaded.
type DiscoveredURL = netlog.DiscoveredURL

// RawLogEntry is one record of the browser performance log.
type RawLogEntry = netlog.RawLogEntry

// URLType is the classification of a discovered URL.
type URLType = classify.URLType

// URL types.
const (
	TypeScript   = classify.Script
	TypeResource = classify.Resource
	TypeHTML     = classify.HTML
	TypeOther    = classify.Other
)

// Logger receives one human readable message per significant step.
type Logger interface {
	Log(msg string)
}

// Session is a live browser that has been recording network activity
// since it was opened.
type Session interface {
	// ApplyCookies parses "k1=v1; k2=v2" and sets each cookie for domain.
	ApplyCookies(ctx context.Context, cookies, domain string) (int, error)

	// Navigate loads url and returns the URL reached after redirects.
	Navigate(ctx context.Context, url string) (string, error)

	// PerformanceLog returns everything recorded so far.
	PerformanceLog() ([]RawLogEntry, error)

	// Close releases the browser.
	Close() error
}

// SessionProvider opens independent browser sessions.
type SessionProvider interface {
	Open(ctx context.Context) (Session, error)
}

// Result is the outcome of one discovery run.
type Result struct {
	Target    string               `json:"target"`
	FinalURL  string               `json:"final_url"`
	URLs      []DiscoveredURL      `json:"urls"`
	Summary   netlog.Summary       `json:"summary"`
	Errors    []*errors.StageError `json:"-"`
	StartedAt time.Time            `json:"started_at"`
	Duration  time.Duration        `json:"duration"`
}

func newResult(target string) *Result {
	return &Result{
		Target:    target,
		FinalURL:  target,
		URLs:      []DiscoveredURL{},
		Summary:   netlog.Summary{ByType: make(map[classify.URLType]int)},
		StartedAt: time.Now(),
	}
}

func (r *Result) addError(err *errors.StageError) {
	r.Errors = append(r.Errors, err)
}

// Failed reports whether a stage failed badly enough that no URLs could be
// collected.
func (r *Result) Failed() bool {
	for _, err := range r.Errors {
		if errors.IsFatal(err) {
			return true
		}
	}
	return false
}

// Err returns the first stage error, or nil.
func (r *Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[0]
}

// Report converts the result into its serialized form.
func (r *Result) Report() *output.Report {
	report := &output.Report{
		Target:    r.Target,
		FinalURL:  r.FinalURL,
		StartedAt: r.StartedAt,
		Duration:  r.Duration,
		Summary:   r.Summary,
		URLs:      r.URLs,
	}
	for _, err := range r.Errors {
		report.Errors = append(report.Errors, output.ReportError{
			Stage:   err.Stage.String(),
			Message: err.Error(),
		})
	}
	return report
}
