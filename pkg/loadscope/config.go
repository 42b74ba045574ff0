package loadscope

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mstoykov/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/PentesterFlow/LoadScope/internal/browser"
	"github.com/PentesterFlow/LoadScope/internal/classify"
	"github.com/PentesterFlow/LoadScope/internal/logger"
)

// Config holds all LoadScope configuration.
type Config struct {
	// Browser launch and page settings
	Browser browser.Config `json:"browser" yaml:"browser"`

	// Domain cookies are scoped to. Empty derives it from the target URL.
	CookieDomain string `json:"cookie_domain" yaml:"cookie_domain"`

	// Logging
	Log LogConfig `json:"log" yaml:"log"`

	// Output configuration
	Output OutputConfig `json:"output" yaml:"output"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `json:"level" yaml:"level" validate:"loglevel"`
	Pretty     bool   `json:"pretty" yaml:"pretty"`
	File       string `json:"file" yaml:"file"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups" validate:"gte=0"`
}

// OutputConfig holds output configuration.
type OutputConfig struct {
	Format   string   `json:"format" yaml:"format" validate:"outputformat"` // json, text
	Pretty   bool     `json:"pretty" yaml:"pretty"`
	Stream   bool     `json:"stream" yaml:"stream"` // JSON lines: one event per URL, then a summary
	FilePath string   `json:"file_path" yaml:"file_path"`
	Types    []string `json:"types,omitempty" yaml:"types,omitempty" validate:"dive,urltype"` // Only emit these URL types
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Browser: browser.DefaultConfig(),
		Log: LogConfig{
			Level:      "info",
			Pretty:     true,
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Output: OutputConfig{
			Format: "json",
			Pretty: true,
		},
	}
}

// LoadFromFile loads configuration from a file (JSON or YAML).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, config); err != nil {
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return config, nil
}

// SaveToFile saves configuration to a file.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// validations are the custom tags Config uses.
var validations = map[string]validator.Func{
	"loglevel": func(fl validator.FieldLevel) bool {
		if fl.Field().String() == "" {
			return true
		}
		_, err := logger.ParseLevel(strings.ToLower(fl.Field().String()))
		return err == nil
	},
	"outputformat": func(fl validator.FieldLevel) bool {
		switch strings.ToLower(fl.Field().String()) {
		case "", "json", "text":
			return true
		default:
			return false
		}
	},
	"urltype": func(fl validator.FieldLevel) bool {
		_, ok := classify.ParseType(fl.Field().String())
		return ok
	},
}

func newValidator() (*validator.Validate, error) {
	validate := validator.New()
	for tag, fn := range validations {
		if err := validate.RegisterValidation(tag, fn); err != nil {
			return nil, fmt.Errorf("failed to register %q validation: %w", tag, err)
		}
	}
	return validate, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate, err := newValidator()
	if err != nil {
		return err
	}

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Browser.Headers != nil {
		clone.Browser.Headers = make(map[string]string, len(c.Browser.Headers))
		for k, v := range c.Browser.Headers {
			clone.Browser.Headers[k] = v
		}
	}
	if c.Output.Types != nil {
		clone.Output.Types = append([]string(nil), c.Output.Types...)
	}
	return &clone
}

// LoggerConfig converts the log section into a logger configuration.
func (c *Config) LoggerConfig() logger.Config {
	cfg := logger.DefaultConfig()
	if level, err := logger.ParseLevel(strings.ToLower(c.Log.Level)); err == nil && c.Log.Level != "" {
		cfg.Level = level
	}
	cfg.Pretty = c.Log.Pretty
	cfg.File = c.Log.File
	if c.Log.MaxSizeMB > 0 {
		cfg.MaxSizeMB = c.Log.MaxSizeMB
	}
	if c.Log.MaxBackups > 0 {
		cfg.MaxBackups = c.Log.MaxBackups
	}
	return cfg
}

// envConfig lists the environment variables that override file settings.
// Unset variables leave the setting untouched.
type envConfig struct {
	BrowserPath  *string        `envconfig:"LOADSCOPE_BROWSER_PATH"`
	AutoDownload *bool          `envconfig:"LOADSCOPE_AUTO_DOWNLOAD"`
	Headless     *bool          `envconfig:"LOADSCOPE_HEADLESS"`
	Timeout      *time.Duration `envconfig:"LOADSCOPE_TIMEOUT"`
	UserAgent    *string        `envconfig:"LOADSCOPE_USER_AGENT"`
	CookieDomain *string        `envconfig:"LOADSCOPE_COOKIE_DOMAIN"`
	LogLevel     *string        `envconfig:"LOADSCOPE_LOG_LEVEL"`
	LogFile      *string        `envconfig:"LOADSCOPE_LOG_FILE"`
}

// ApplyEnv overrides settings from LOADSCOPE_* environment variables.
// lookup defaults to os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	env := envConfig{}
	if err := envconfig.Process("", &env, lookup); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}

	if env.BrowserPath != nil {
		c.Browser.FallbackBinPath = *env.BrowserPath
	}
	if env.AutoDownload != nil {
		c.Browser.AutoDownload = *env.AutoDownload
	}
	if env.Headless != nil {
		c.Browser.Headless = *env.Headless
	}
	if env.Timeout != nil {
		c.Browser.Timeout = *env.Timeout
	}
	if env.UserAgent != nil {
		c.Browser.UserAgent = *env.UserAgent
	}
	if env.CookieDomain != nil {
		c.CookieDomain = *env.CookieDomain
	}
	if env.LogLevel != nil {
		c.Log.Level = *env.LogLevel
	}
	if env.LogFile != nil {
		c.Log.File = *env.LogFile
	}

	return nil
}
