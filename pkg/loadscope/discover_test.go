package loadscope

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PentesterFlow/LoadScope/internal/browser"
	"github.com/PentesterFlow/LoadScope/internal/errors"
	"github.com/PentesterFlow/LoadScope/internal/logger"
	"github.com/PentesterFlow/LoadScope/internal/netlog"
)

// recordingLogger collects every message.
type recordingLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *recordingLogger) Log(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
}

func (l *recordingLogger) contains(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.messages {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

// panickingLogger fails on every message.
type panickingLogger struct{}

func (panickingLogger) Log(msg string) {
	panic("logger down")
}

// fakeSession is a scripted Session.
type fakeSession struct {
	entries     []netlog.RawLogEntry
	finalURL    string
	navErr      error
	logErr      error
	cookieErr   error
	logPanic    interface{}
	closePanic  interface{}
	resolution  *browser.Resolution
	closeCalls  int
	cookies     string
	domain      string
	navigatedTo string
}

func (s *fakeSession) ApplyCookies(ctx context.Context, cookies, domain string) (int, error) {
	s.cookies = cookies
	s.domain = domain
	if s.cookieErr != nil {
		return 0, s.cookieErr
	}
	return len(browser.ParseCookies(cookies)), nil
}

func (s *fakeSession) Navigate(ctx context.Context, url string) (string, error) {
	s.navigatedTo = url
	if s.navErr != nil {
		return url, s.navErr
	}
	return s.finalURL, nil
}

func (s *fakeSession) PerformanceLog() ([]netlog.RawLogEntry, error) {
	if s.logPanic != nil {
		panic(s.logPanic)
	}
	return s.entries, s.logErr
}

func (s *fakeSession) Close() error {
	s.closeCalls++
	if s.closePanic != nil {
		panic(s.closePanic)
	}
	return nil
}

// resolvedSession also reports how its browser was found.
type resolvedSession struct {
	*fakeSession
}

func (s resolvedSession) Resolution() browser.Resolution {
	return *s.resolution
}

// fakeProvider hands out a single session or an error.
type fakeProvider struct {
	session   Session
	err       error
	openCalls int
}

func (p *fakeProvider) Open(ctx context.Context) (Session, error) {
	p.openCalls++
	if p.err != nil {
		return nil, p.err
	}
	return p.session, nil
}

func mustEntry(t *testing.T, method string, params interface{}) netlog.RawLogEntry {
	t.Helper()
	e, err := netlog.NewEntry(method, params, "W1", time.UnixMilli(1))
	if err != nil {
		t.Fatalf("NewEntry() error = %v", err)
	}
	return e
}

func requestEntry(t *testing.T, url, referer string) netlog.RawLogEntry {
	headers := map[string]string{}
	if referer != "" {
		headers["Referer"] = referer
	}
	return mustEntry(t, netlog.RequestWillBeSent, map[string]interface{}{
		"requestId": "1",
		"request": map[string]interface{}{
			"url":     url,
			"headers": headers,
		},
	})
}

func newTestDiscoverer(t *testing.T, p SessionProvider, log Logger, opts ...Option) *Discoverer {
	t.Helper()
	opts = append([]Option{WithProvider(p), WithLogger(log)}, opts...)
	d, err := New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return d
}

// =============================================================================
// Run Tests
// =============================================================================

func TestRun_EndToEnd(t *testing.T) {
	session := &fakeSession{
		finalURL: "https://site.com/",
		entries: []netlog.RawLogEntry{
			requestEntry(t, "https://site.com/app.js", "https://site.com/"),
			mustEntry(t, "Network.responseReceived", map[string]string{"requestId": "1"}),
			{Level: "INFO", Message: "{not json", Timestamp: 3},
		},
	}
	log := &recordingLogger{}
	d := newTestDiscoverer(t, &fakeProvider{session: session}, log)

	result := d.Run(context.Background(), "https://site.com", "")

	want := []DiscoveredURL{{URL: "https://site.com/app.js", Referer: "https://site.com/", Type: TypeScript}}
	if len(result.URLs) != 1 || result.URLs[0] != want[0] {
		t.Fatalf("URLs = %+v, want %+v", result.URLs, want)
	}
	if result.FinalURL != "https://site.com/" {
		t.Errorf("FinalURL = %q", result.FinalURL)
	}
	if result.Summary.Malformed != 1 || result.Summary.OtherEvent != 1 {
		t.Errorf("Summary = %+v", result.Summary)
	}
	if len(result.Errors) != 0 {
		t.Errorf("Errors = %v", result.Errors)
	}
	if session.closeCalls != 1 {
		t.Errorf("Close() called %d times, want 1", session.closeCalls)
	}
	if !log.contains("Page final URL: https://site.com/") {
		t.Errorf("final URL not logged: %v", log.messages)
	}
	if !log.contains("Browser driver ready") {
		t.Errorf("driver outcome not logged: %v", log.messages)
	}
}

func TestRun_OpenFailure(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantStage errors.Stage
	}{
		{"stage error kept", errors.NewSessionError("failed to connect", stderrors.New("refused")), errors.Session},
		{"plain error is driver", stderrors.New("no chrome"), errors.Driver},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &recordingLogger{}
			d := newTestDiscoverer(t, &fakeProvider{err: tt.err}, log)

			result := d.Run(context.Background(), "https://site.com", "a=1")

			if len(result.URLs) != 0 || result.URLs == nil {
				t.Errorf("URLs = %v, want empty non-nil", result.URLs)
			}
			if len(result.Errors) != 1 || result.Errors[0].Stage != tt.wantStage {
				t.Errorf("Errors = %v, want one %s", result.Errors, tt.wantStage)
			}
			if !result.Failed() {
				t.Error("Failed() should be true")
			}
			if !log.contains("Browser driver unavailable") {
				t.Errorf("driver failure not logged: %v", log.messages)
			}
		})
	}
}

func TestRun_NilSessionFromProvider(t *testing.T) {
	d := newTestDiscoverer(t, &fakeProvider{}, &recordingLogger{})

	result := d.Run(context.Background(), "https://site.com", "")

	if errors.GetStage(result.Err()) != errors.Driver {
		t.Errorf("Err() = %v, want driver stage", result.Err())
	}
}

func TestRun_NavigationFailure(t *testing.T) {
	session := &fakeSession{
		navErr:  context.DeadlineExceeded,
		entries: []netlog.RawLogEntry{requestEntry(t, "https://site.com/a.css", "")},
	}
	log := &recordingLogger{}
	d := newTestDiscoverer(t, &fakeProvider{session: session}, log)

	result := d.Run(context.Background(), "https://site.com/start", "")

	if result.FinalURL != "https://site.com/start" {
		t.Errorf("FinalURL = %q, want requested URL", result.FinalURL)
	}
	if len(result.URLs) != 1 || result.URLs[0].Type != TypeResource {
		t.Errorf("extraction should still run, URLs = %+v", result.URLs)
	}
	if errors.GetStage(result.Err()) != errors.Navigate {
		t.Errorf("Err() = %v, want navigate stage", result.Err())
	}
	if result.Failed() {
		t.Error("navigation failure should not be fatal")
	}
	if session.closeCalls != 1 {
		t.Errorf("Close() called %d times, want 1", session.closeCalls)
	}
	if !log.contains("Page final URL: https://site.com/start") {
		t.Errorf("fallback final URL not logged: %v", log.messages)
	}
}

func TestRun_EmptyFinalURL(t *testing.T) {
	session := &fakeSession{}
	d := newTestDiscoverer(t, &fakeProvider{session: session}, &recordingLogger{})

	result := d.Run(context.Background(), "https://site.com", "")

	if result.FinalURL != "https://site.com" {
		t.Errorf("FinalURL = %q, want target", result.FinalURL)
	}
}

func TestRun_LogReadFailure(t *testing.T) {
	session := &fakeSession{finalURL: "https://site.com", logErr: stderrors.New("target closed")}
	d := newTestDiscoverer(t, &fakeProvider{session: session}, &recordingLogger{})

	result := d.Run(context.Background(), "https://site.com", "")

	if len(result.URLs) != 0 {
		t.Errorf("URLs = %v, want empty", result.URLs)
	}
	if errors.GetStage(result.Err()) != errors.LogRead {
		t.Errorf("Err() = %v, want log_read stage", result.Err())
	}
	if session.closeCalls != 1 {
		t.Errorf("Close() called %d times, want 1", session.closeCalls)
	}
}

func TestRun_PanicRecovered(t *testing.T) {
	session := &fakeSession{finalURL: "https://site.com", logPanic: "boom"}
	log := &recordingLogger{}
	d := newTestDiscoverer(t, &fakeProvider{session: session}, log)

	result := d.Run(context.Background(), "https://site.com", "")

	if len(result.URLs) != 0 || result.URLs == nil {
		t.Errorf("URLs = %v, want empty non-nil", result.URLs)
	}
	if errors.GetStage(result.Err()) != errors.Panic {
		t.Errorf("Err() = %v, want panic stage", result.Err())
	}
	if session.closeCalls != 1 {
		t.Errorf("Close() called %d times, want 1", session.closeCalls)
	}
	if !log.contains("boom") {
		t.Errorf("panic not logged: %v", log.messages)
	}
	if result.StartedAt.IsZero() {
		t.Error("StartedAt should be recorded")
	}
}

func TestRun_ClosePanicContained(t *testing.T) {
	session := &fakeSession{finalURL: "https://site.com", closePanic: "close boom"}
	log := &recordingLogger{}
	d := newTestDiscoverer(t, &fakeProvider{session: session}, log)

	result := d.Run(context.Background(), "https://site.com", "")

	if result == nil {
		t.Fatal("Run() returned nil")
	}
	if !log.contains("close boom") {
		t.Errorf("close panic not logged: %v", log.messages)
	}
}

func TestRun_PanickingLoggerContained(t *testing.T) {
	session := &fakeSession{
		finalURL: "https://site.com",
		entries:  []netlog.RawLogEntry{requestEntry(t, "https://site.com/app.js", "")},
	}
	d := newTestDiscoverer(t, &fakeProvider{session: session}, panickingLogger{})

	var urls []DiscoveredURL
	func() {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("Discover() panicked: %v", r)
			}
		}()
		urls = d.Discover(context.Background(), "https://site.com", "")
	}()

	if urls == nil || len(urls) != 0 {
		t.Errorf("URLs = %v, want empty non-nil", urls)
	}
	if session.closeCalls != 1 {
		t.Errorf("Close() called %d times, want 1", session.closeCalls)
	}
}

func TestRun_TypedNilLogger(t *testing.T) {
	session := &fakeSession{
		finalURL: "https://site.com",
		entries:  []netlog.RawLogEntry{requestEntry(t, "https://site.com/app.js", "")},
	}
	var zl *logger.Logger
	d := newTestDiscoverer(t, &fakeProvider{session: session}, zl)

	result := d.Run(context.Background(), "https://site.com", "")

	if result.Failed() || len(result.URLs) != 1 {
		t.Errorf("Run() = %+v, errors %v", result, result.Errors)
	}
	if session.closeCalls != 1 {
		t.Errorf("Close() called %d times, want 1", session.closeCalls)
	}
}

func TestRun_ResolutionLogged(t *testing.T) {
	fs := &fakeSession{
		finalURL:   "https://site.com",
		resolution: &browser.Resolution{Path: "/usr/bin/chromium", Source: browser.SourceSystem},
	}
	log := &recordingLogger{}
	d := newTestDiscoverer(t, &fakeProvider{session: resolvedSession{fs}}, log)

	d.Run(context.Background(), "https://site.com", "")

	if !log.contains("Browser driver ready (system): /usr/bin/chromium") {
		t.Errorf("resolution not logged: %v", log.messages)
	}
	if fs.closeCalls != 1 {
		t.Errorf("Close() called %d times, want 1", fs.closeCalls)
	}
}

// =============================================================================
// Cookie Tests
// =============================================================================

func TestRun_Cookies(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		domain     string
		cookies    string
		cookieErr  error
		wantDomain string
		wantStage  errors.Stage
		wantLog    string
	}{
		{"derived domain", "https://edith.xiaohongshu.com/x", "", "a=1; b=2", nil, ".xiaohongshu.com", errors.Unknown, "Injected 2 cookies for .xiaohongshu.com"},
		{"configured domain", "https://www.example.com", ".other.com", "a=1", nil, ".other.com", errors.Unknown, "Injected 1 cookies for .other.com"},
		{"injection failure", "https://www.example.com", "", "a=1", stderrors.New("rejected"), ".example.com", errors.Cookies, "Cookie injection failed"},
		{"no usable cookies", "https://www.example.com", "", "junk", nil, ".example.com", errors.Unknown, "No usable cookies"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := &fakeSession{finalURL: tt.target, cookieErr: tt.cookieErr}
			log := &recordingLogger{}
			d := newTestDiscoverer(t, &fakeProvider{session: session}, log, WithCookieDomain(tt.domain))

			result := d.Run(context.Background(), tt.target, tt.cookies)

			if session.domain != tt.wantDomain {
				t.Errorf("cookie domain = %q, want %q", session.domain, tt.wantDomain)
			}
			if session.cookies != tt.cookies {
				t.Errorf("cookies = %q, want %q", session.cookies, tt.cookies)
			}
			if errors.GetStage(result.Err()) != tt.wantStage {
				t.Errorf("Err() = %v, want stage %s", result.Err(), tt.wantStage)
			}
			if !log.contains(tt.wantLog) {
				t.Errorf("expected log %q in %v", tt.wantLog, log.messages)
			}
			if session.navigatedTo != tt.target {
				t.Errorf("cookie outcome should not stop navigation")
			}
		})
	}
}

func TestRun_NoCookies(t *testing.T) {
	session := &fakeSession{finalURL: "https://site.com"}
	d := newTestDiscoverer(t, &fakeProvider{session: session}, &recordingLogger{})

	d.Run(context.Background(), "https://site.com", "   ")

	if session.domain != "" {
		t.Errorf("ApplyCookies() should not be called, got domain %q", session.domain)
	}
}

func TestRun_NoCookieDomain(t *testing.T) {
	session := &fakeSession{finalURL: "not a url"}
	d := newTestDiscoverer(t, &fakeProvider{session: session}, &recordingLogger{})

	result := d.Run(context.Background(), "not a url", "a=1")

	if errors.GetStage(result.Err()) != errors.Cookies {
		t.Errorf("Err() = %v, want cookies stage", result.Err())
	}
	if session.cookies != "" {
		t.Error("ApplyCookies() should not be called without a domain")
	}
}

// =============================================================================
// Discover / Report Tests
// =============================================================================

func TestDiscover_ReturnsURLs(t *testing.T) {
	session := &fakeSession{
		finalURL: "https://site.com",
		entries: []netlog.RawLogEntry{
			requestEntry(t, "https://site.com/", ""),
			requestEntry(t, "https://site.com/index.php", "https://site.com/"),
			requestEntry(t, "blob:https://site.com/1", ""),
		},
	}
	d := newTestDiscoverer(t, &fakeProvider{session: session}, &recordingLogger{})

	urls := d.Discover(context.Background(), "https://site.com", "")

	if len(urls) != 2 {
		t.Fatalf("Discover() returned %d urls, want 2: %+v", len(urls), urls)
	}
	if urls[0].URL != "https://site.com" || urls[0].Type != TypeOther {
		t.Errorf("urls[0] = %+v", urls[0])
	}
	if urls[1].Type != TypeHTML {
		t.Errorf("urls[1] = %+v", urls[1])
	}
}

func TestResult_Report(t *testing.T) {
	r := newResult("https://site.com")
	r.URLs = []DiscoveredURL{{URL: "https://site.com/a.js", Type: TypeScript}}
	r.addError(errors.NewCookieError(".site.com", stderrors.New("rejected")))

	report := r.Report()

	if report.Target != "https://site.com" || len(report.URLs) != 1 {
		t.Errorf("Report() = %+v", report)
	}
	if len(report.Errors) != 1 || report.Errors[0].Stage != "cookies" {
		t.Errorf("Report().Errors = %+v", report.Errors)
	}
	if r.Failed() {
		t.Error("cookie errors are not fatal")
	}
}

func TestDiscoverer_Metrics(t *testing.T) {
	ok := &fakeSession{
		finalURL: "https://site.com",
		entries:  []netlog.RawLogEntry{requestEntry(t, "https://site.com/a.js", "")},
	}
	p := &fakeProvider{session: ok}
	d := newTestDiscoverer(t, p, &recordingLogger{})

	d.Run(context.Background(), "https://site.com", "")
	p.session, p.err = nil, stderrors.New("no chrome")
	d.Run(context.Background(), "https://site.com", "")

	snap := d.Metrics()
	if snap.RunsTotal != 2 || snap.RunsFailed != 1 {
		t.Errorf("runs = %d/%d, want 2/1", snap.RunsTotal, snap.RunsFailed)
	}
	if snap.ErrorCounts["driver"] != 1 {
		t.Errorf("ErrorCounts = %v", snap.ErrorCounts)
	}
	if snap.URLTypes["script"] != 1 {
		t.Errorf("URLTypes = %v", snap.URLTypes)
	}
	if snap.Stages["open"].Count != 2 || snap.Stages["navigate"].Count != 1 || snap.Stages["close"].Count != 1 {
		t.Errorf("Stages = %+v", snap.Stages)
	}
}
