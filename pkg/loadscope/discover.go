// Package loadscope loads a page in a headless browser and reports the
// URLs it requested, classified by resource type.
package loadscope

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/PentesterFlow/LoadScope/internal/browser"
	"github.com/PentesterFlow/LoadScope/internal/errors"
	"github.com/PentesterFlow/LoadScope/internal/logger"
	"github.com/PentesterFlow/LoadScope/internal/metrics"
	"github.com/PentesterFlow/LoadScope/internal/netlog"
)

// Discoverer runs one browser session per call and classifies the
// requests it made.
type Discoverer struct {
	config   *Config
	log      Logger
	zlog     *logger.Logger
	provider SessionProvider
	metrics  *metrics.Collector
}

// New creates a new Discoverer with the given options.
func New(opts ...Option) (*Discoverer, error) {
	d := &Discoverer{
		config:  DefaultConfig(),
		metrics: metrics.New(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := d.config.Validate(); err != nil {
		return nil, err
	}

	switch l := d.log.(type) {
	case *logger.Logger:
		if l != nil {
			d.zlog = l
			break
		}
		d.log = nil
	case nil:
	default:
		d.zlog = logger.Nop()
	}
	if d.log == nil {
		cfg := d.config.LoggerConfig()
		cfg.Output = os.Stdout
		cfg.Component = "discover"
		d.zlog = logger.New(cfg)
		d.log = d.zlog
	}

	if d.provider == nil {
		d.provider = &rodProvider{browser.NewProvider(d.config.Browser, d.zlog)}
	}

	return d, nil
}

// Config returns a copy of the active configuration.
func (d *Discoverer) Config() *Config {
	return d.config.Clone()
}

// Metrics returns counters and stage timings for every run so far.
func (d *Discoverer) Metrics() *metrics.Snapshot {
	return d.metrics.Snapshot()
}

// Discover loads target with cookies applied and returns the URLs the page
// requested, in request order. It never fails: any problem yields an empty
// or partial list and a log message.
func (d *Discoverer) Discover(ctx context.Context, target, cookies string) []DiscoveredURL {
	return d.Run(ctx, target, cookies).URLs
}

// Run is Discover with the failed stages and extraction counts kept.
func (d *Discoverer) Run(ctx context.Context, target, cookies string) (result *Result) {
	if ctx == nil {
		ctx = context.Background()
	}
	result = newResult(target)

	var session Session
	defer func() {
		if r := recover(); r != nil {
			err := errors.NewPanicError(target, r)
			result.URLs = []DiscoveredURL{}
			result.addError(err)
			d.safeLog(fmt.Sprintf("Discovery aborted: %v", err))
		}
		if session != nil {
			d.timed("close", func() { d.closeSession(session) })
		}
		result.Duration = time.Since(result.StartedAt)
		for _, err := range result.Errors {
			d.metrics.RecordError(err.Stage.String())
			d.safe(func() { d.zlog.StageError(err, err.URL, err.Stage.String(), err.Stage.IsFatal()) })
		}
		d.metrics.RecordRun(result.Failed())
	}()

	var opened bool
	d.timed("open", func() { opened = d.open(ctx, result, &session) })
	if !opened {
		return result
	}

	d.timed("cookies", func() { d.applyCookies(ctx, session, result, cookies) })
	d.timed("navigate", func() { d.navigate(ctx, session, result) })

	entries, err := session.PerformanceLog()
	if err != nil {
		stageErr := errors.NewLogReadError(target, err)
		result.addError(stageErr)
		d.log.Log(fmt.Sprintf("Could not read performance log: %v", err))
		return result
	}

	urls, summary := netlog.ExtractWithSummary(entries)
	result.URLs = urls
	result.Summary = summary

	byType := make(map[string]int, len(summary.ByType))
	for t, n := range summary.ByType {
		byType[t.String()] = n
	}
	d.metrics.RecordExtraction(summary.Entries, summary.Malformed, byType)

	for _, u := range urls {
		d.zlog.DiscoveryEvent(u.Type.String(), u.URL, u.Referer)
	}
	if summary.Malformed > 0 {
		d.zlog.WithURL(target).Debugf("Skipped %d malformed log entries", summary.Malformed)
	}
	d.log.Log(fmt.Sprintf("Extracted %d urls from %d log entries", len(urls), summary.Entries))

	return result
}

// open stores the new session in *session before anything else runs, so the
// caller's deferred close sees it even if logging panics.
func (d *Discoverer) open(ctx context.Context, result *Result, session *Session) bool {
	s, err := d.provider.Open(ctx)
	if err == nil && s == nil {
		err = fmt.Errorf("provider returned no session")
	}
	if err != nil {
		stageErr, ok := err.(*errors.StageError)
		if !ok {
			stageErr = errors.NewDriverError("failed to open browser session", err)
		}
		result.addError(stageErr)
		d.log.Log(fmt.Sprintf("Browser driver unavailable: %v", stageErr))
		return false
	}
	*session = s

	if r, ok := s.(interface{ Resolution() browser.Resolution }); ok {
		res := r.Resolution()
		d.log.Log(fmt.Sprintf("Browser driver ready (%s): %s", res.Source, res.Path))
	} else {
		d.log.Log("Browser driver ready")
	}
	return true
}

func (d *Discoverer) applyCookies(ctx context.Context, session Session, result *Result, cookies string) {
	if strings.TrimSpace(cookies) == "" {
		return
	}

	domain := d.config.CookieDomain
	if domain == "" {
		domain = browser.DefaultCookieDomain(result.Target)
	}
	if domain == "" {
		stageErr := errors.NewCookieError(domain, fmt.Errorf("no cookie domain for %q", result.Target))
		result.addError(stageErr)
		d.log.Log(fmt.Sprintf("Cookie injection skipped: %v", stageErr))
		return
	}

	n, err := session.ApplyCookies(ctx, cookies, domain)
	if err != nil {
		result.addError(errors.NewCookieError(domain, err))
		d.log.Log(fmt.Sprintf("Cookie injection failed for %s: %v", domain, err))
		return
	}
	if n == 0 {
		d.log.Log("No usable cookies in cookie string")
		return
	}
	d.log.Log(fmt.Sprintf("Injected %d cookies for %s", n, domain))
}

func (d *Discoverer) navigate(ctx context.Context, session Session, result *Result) {
	final, err := session.Navigate(ctx, result.Target)
	if err != nil {
		result.addError(errors.NewNavigateError(result.Target, err))
		d.log.Log(fmt.Sprintf("Navigation failed: %v", err))
		final = result.Target
	}
	if final == "" {
		final = result.Target
	}
	result.FinalURL = final
	d.log.Log("Page final URL: " + final)
}

// timed runs fn and records its duration under stage.
func (d *Discoverer) timed(stage string, fn func()) {
	start := time.Now()
	defer func() {
		d.metrics.RecordStageTime(stage, time.Since(start))
	}()
	fn()
}

// closeSession closes session, containing anything it throws.
func (d *Discoverer) closeSession(session Session) {
	defer func() {
		if r := recover(); r != nil {
			d.safeLog(fmt.Sprintf("Browser close panicked: %v", r))
		}
	}()
	if err := session.Close(); err != nil {
		d.safe(func() { d.zlog.WithError(err).Debug("Browser close reported an error") })
	}
}

// safe runs fn and drops any panic. It guards logging on the cleanup path,
// where a failing logger must not escape Run.
func (d *Discoverer) safe(fn func()) {
	defer func() { _ = recover() }()
	fn()
}

func (d *Discoverer) safeLog(msg string) {
	d.safe(func() { d.log.Log(msg) })
}

// Discover runs a one-off discovery with the default configuration and
// LOADSCOPE_* environment overrides.
func Discover(target, cookies string) []DiscoveredURL {
	config := DefaultConfig()
	if err := config.ApplyEnv(nil); err != nil {
		logger.NewStdout().Log(fmt.Sprintf("Ignoring environment: %v", err))
		config = DefaultConfig()
	}

	d, err := New(WithConfig(config))
	if err != nil {
		logger.NewStdout().Log(fmt.Sprintf("Discovery not started: %v", err))
		return []DiscoveredURL{}
	}
	return d.Discover(context.Background(), target, cookies)
}

// rodProvider adapts the Rod browser provider to SessionProvider.
type rodProvider struct {
	provider *browser.Provider
}

func (p *rodProvider) Open(ctx context.Context) (Session, error) {
	s, err := p.provider.Open(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}
