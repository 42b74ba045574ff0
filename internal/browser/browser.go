// Package browser provides headless Chrome sessions via Rod that record the
// network activity of a page load.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/PentesterFlow/LoadScope/internal/errors"
	"github.com/PentesterFlow/LoadScope/internal/logger"
	"github.com/PentesterFlow/LoadScope/internal/netlog"
)

// Config defines browser configuration.
type Config struct {
	Headless          bool              `json:"headless" yaml:"headless"`
	FallbackBinPath   string            `json:"fallback_bin_path" yaml:"fallback_bin_path"` // Used when no browser is found automatically
	AutoDownload      bool              `json:"auto_download" yaml:"auto_download"`
	Timeout           time.Duration     `json:"timeout" yaml:"timeout" validate:"gte=0"`
	SettleDelay       time.Duration     `json:"settle_delay" yaml:"settle_delay" validate:"gte=0"` // Extra wait after the load event
	UserAgent         string            `json:"user_agent" yaml:"user_agent"`
	ViewportWidth     int               `json:"viewport_width" yaml:"viewport_width" validate:"min=1"`
	ViewportHeight    int               `json:"viewport_height" yaml:"viewport_height" validate:"min=1"`
	IgnoreHTTPSErrors bool              `json:"ignore_https_errors" yaml:"ignore_https_errors"`
	NoSandbox         bool              `json:"no_sandbox" yaml:"no_sandbox"`
	DisableGPU        bool              `json:"disable_gpu" yaml:"disable_gpu"`
	DisableImages     bool              `json:"disable_images" yaml:"disable_images"`
	Headers           map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// DefaultConfig returns default browser configuration.
func DefaultConfig() Config {
	return Config{
		Headless:          true,
		AutoDownload:      true,
		Timeout:           30 * time.Second,
		SettleDelay:       500 * time.Millisecond,
		UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:     1920,
		ViewportHeight:    1080,
		IgnoreHTTPSErrors: true,
		NoSandbox:         true,
		DisableGPU:        true,
		DisableImages:     true,
	}
}

// Provider opens recording browser sessions.
type Provider struct {
	config   Config
	log      *logger.Logger
	resolver resolver
}

// NewProvider creates a session provider.
func NewProvider(config Config, log *logger.Logger) *Provider {
	if log == nil {
		log = logger.Nop()
	}
	return &Provider{
		config:   config,
		log:      log.WithComponent("browser"),
		resolver: defaultResolver(),
	}
}

// Config returns the provider configuration.
func (p *Provider) Config() Config {
	return p.config
}

// Session is one launched browser with a single recording page.
type Session struct {
	config     Config
	launcher   *launcher.Launcher
	browser    *rod.Browser
	page       *rod.Page
	recorder   *Recorder
	resolution Resolution
	log        *logger.Logger

	closeOnce sync.Once
	closeErr  error
}

// Open resolves a browser binary, launches it, and returns a session whose
// network activity is being recorded. Every call returns an independent
// session. Anything started before a failure is released before returning.
func (p *Provider) Open(ctx context.Context) (*Session, error) {
	res, err := p.resolver.resolve(p.config)
	if err != nil {
		return nil, errors.NewDriverError("no usable browser binary", err)
	}
	p.log.WithField("binary", res.Path).Debugf("Resolved browser via %s", res.Source)

	l := buildLauncher(p.config, res.Path).Context(ctx)
	controlURL, err := l.Launch()
	if err != nil {
		// No process was started, so there is nothing to clean up.
		return nil, errors.NewDriverError(fmt.Sprintf("failed to launch %s", res.Path), err)
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, errors.NewSessionError("failed to connect to browser", err)
	}

	s := &Session{
		config:     p.config,
		launcher:   l,
		browser:    b,
		resolution: res,
		log:        p.log,
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = s.Close()
		return nil, errors.NewSessionError("failed to create page", err)
	}
	s.page = page

	s.recorder = NewRecorder(string(page.TargetID))
	if err := s.recorder.Start(ctx, page); err != nil {
		_ = s.Close()
		return nil, errors.NewSessionError("failed to enable network recording", err)
	}

	s.preparePage()
	return s, nil
}

// preparePage applies viewport, user agent and extra headers. Failures here
// are not critical.
func (s *Session) preparePage() {
	if err := s.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  s.config.ViewportWidth,
		Height: s.config.ViewportHeight,
	}); err != nil {
		s.log.WithError(err).Warn("Failed to set viewport")
	}

	if s.config.UserAgent != "" {
		if err := (proto.NetworkSetUserAgentOverride{
			UserAgent: s.config.UserAgent,
		}).Call(s.page); err != nil {
			s.log.WithError(err).Warn("Failed to set user agent")
		}
	}

	if len(s.config.Headers) > 0 {
		networkHeaders := make(proto.NetworkHeaders)
		for k, v := range s.config.Headers {
			networkHeaders[k] = gson.New(v)
		}
		if err := (proto.NetworkSetExtraHTTPHeaders{Headers: networkHeaders}).Call(s.page); err != nil {
			s.log.WithError(err).Warn("Failed to set extra headers")
		}
	}
}

// Resolution reports how the browser binary was found.
func (s *Session) Resolution() Resolution {
	return s.resolution
}

// ApplyCookies parses a "k1=v1; k2=v2" cookie string and sets each cookie
// for domain. It returns the number of cookies set.
func (s *Session) ApplyCookies(ctx context.Context, cookies, domain string) (int, error) {
	params := CookieParams(ParseCookies(cookies), domain)
	if len(params) == 0 {
		return 0, nil
	}

	if err := s.page.Context(ctx).SetCookies(params); err != nil {
		return 0, fmt.Errorf("failed to set %d cookies: %w", len(params), err)
	}
	return len(params), nil
}

// Navigate loads url and returns the URL the page ended up on after
// redirects. On failure it returns url unchanged along with the error.
func (s *Session) Navigate(ctx context.Context, url string) (string, error) {
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}
	page := s.page.Context(ctx)

	s.resetLog()
	if err := page.Navigate(url); err != nil {
		return url, err
	}
	if err := page.WaitLoad(); err != nil {
		return url, err
	}

	if s.config.SettleDelay > 0 {
		select {
		case <-time.After(s.config.SettleDelay):
		case <-ctx.Done():
		}
	}
	if s.recorder != nil {
		s.log.Debugf("Recorded %d network events for %s", s.recorder.Len(), url)
	}

	info, err := s.page.Info()
	if err != nil {
		return url, err
	}
	if info == nil || info.URL == "" {
		return url, nil
	}
	return info.URL, nil
}

// resetLog drops anything recorded before a navigation starts.
func (s *Session) resetLog() {
	if s.recorder != nil {
		s.recorder.Clear()
	}
}

// PerformanceLog returns the entries recorded since the last navigation
// started, or since the session was opened if there was none.
func (s *Session) PerformanceLog() ([]netlog.RawLogEntry, error) {
	if s.recorder == nil {
		return nil, fmt.Errorf("session has no recorder")
	}
	if dropped := s.recorder.Dropped(); dropped > 0 {
		s.log.Debugf("Recorder dropped %d unencodable events", dropped)
	}
	return s.recorder.Entries(), nil
}

// Close stops recording and releases the browser. It is safe to call more
// than once; only the first call does any work.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.recorder != nil {
			s.recorder.Stop()
		}
		if s.browser != nil {
			s.closeErr = s.browser.Close()
		}
		if s.launcher != nil {
			s.launcher.Kill()
			s.launcher.Cleanup()
		}
	})
	return s.closeErr
}

// buildLauncher translates Config into Chrome command line flags.
func buildLauncher(config Config, bin string) *launcher.Launcher {
	l := launcher.New().Headless(config.Headless)

	if bin != "" {
		l = l.Bin(bin)
	}
	if config.NoSandbox {
		l = l.NoSandbox(true)
	}
	if config.DisableGPU {
		l = l.Set("disable-gpu")
	}
	if config.IgnoreHTTPSErrors {
		l = l.Set("ignore-certificate-errors")
	}
	if config.ViewportWidth > 0 && config.ViewportHeight > 0 {
		l = l.Set("window-size", fmt.Sprintf("%d,%d", config.ViewportWidth, config.ViewportHeight))
	}
	if config.DisableImages {
		l = l.Set("blink-settings", "imagesEnabled=false")
	}
	if config.UserAgent != "" {
		l = l.Set("user-agent", config.UserAgent)
	}

	return l
}
