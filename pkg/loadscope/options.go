package loadscope

import (
	"fmt"
	"time"
)

// Option is a functional option for configuring the Discoverer.
type Option func(*Discoverer) error

// WithConfig replaces the whole configuration.
func WithConfig(config *Config) Option {
	return func(d *Discoverer) error {
		if config == nil {
			return fmt.Errorf("config is nil")
		}
		d.config = config.Clone()
		return nil
	}
}

// WithLogger sets the logging collaborator. A nil logger keeps the default
// console logger.
func WithLogger(l Logger) Option {
	return func(d *Discoverer) error {
		d.log = l
		return nil
	}
}

// WithProvider sets the browser session provider.
func WithProvider(p SessionProvider) Option {
	return func(d *Discoverer) error {
		d.provider = p
		return nil
	}
}

// WithCookieDomain sets the domain injected cookies are scoped to.
func WithCookieDomain(domain string) Option {
	return func(d *Discoverer) error {
		d.config.CookieDomain = domain
		return nil
	}
}

// WithBrowserPath sets the browser binary used when none is found
// automatically.
func WithBrowserPath(path string) Option {
	return func(d *Discoverer) error {
		d.config.Browser.FallbackBinPath = path
		return nil
	}
}

// WithTimeout sets the navigation timeout. Zero disables it.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Discoverer) error {
		if timeout < 0 {
			timeout = 0
		}
		d.config.Browser.Timeout = timeout
		return nil
	}
}
