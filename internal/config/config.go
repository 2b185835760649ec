package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultURL      = "https://gamesdonequick.com/schedule"
	DefaultSelector = "#runTable tbody tr"
	DefaultInterval = 20 * time.Second
	DefaultFormat   = "{{.Current}} -> {{.Next}}"
	DefaultIcon     = "joystick"

	// MinInterval keeps a misconfigured interval from hammering the site.
	MinInterval = time.Second
)

// Source modes.
const (
	ModeHTTP     = "http"
	ModeChromium = "chromium"
)

// Output modes for the status line.
const (
	OutputText  = "text"
	OutputI3Bar = "i3bar"
	OutputNone  = "none"
)

// SourceConfig describes where the schedule page comes from.
type SourceConfig struct {
	// URL is the schedule page.
	URL string `yaml:"url" json:"url"`
	// Mode is "http" (plain GET) or "chromium" (headless browser).
	Mode string `yaml:"mode" json:"mode"`
	// Selector matches the schedule table body rows.
	Selector string `yaml:"selector" json:"selector"`
	// Timeout bounds a single fetch.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// CacheDir holds the conditional-GET cache. Empty disables it.
	CacheDir  string `yaml:"cache_dir" json:"cache_dir"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the HTTP API.
// PasswordHash (bcrypt) takes precedence over Password.
type BasicAuthConfig struct {
	Username     string `yaml:"username" json:"username"`
	Password     string `yaml:"password,omitempty" json:"password,omitempty"`
	PasswordHash string `yaml:"password_hash,omitempty" json:"password_hash,omitempty"`
}

// Config is the top-level application configuration.
type Config struct {
	Source SourceConfig `yaml:"source" json:"source"`

	// Interval is the delay between refresh passes.
	Interval time.Duration `yaml:"interval" json:"interval"`

	// RefreshCron, if set, replaces Interval with a standard 5-field cron
	// expression (e.g. "*/1 * * * *").
	RefreshCron string `yaml:"refresh,omitempty" json:"refresh,omitempty"`

	// Format is a text/template for the label. See internal/render.
	Format string `yaml:"format" json:"format"`
	Icon   string `yaml:"icon" json:"icon"`

	// Output selects the status line sink: text, i3bar or none.
	Output string `yaml:"output" json:"output"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// Listen is the HTTP listen address. Empty disables the HTTP API.
	Listen string `yaml:"listen" json:"listen"`

	// BasicAuth, if non-nil, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			URL:      DefaultURL,
			Mode:     ModeHTTP,
			Selector: DefaultSelector,
			Timeout:  15 * time.Second,
			CacheDir: "./var/schedule-cache",
		},
		Interval: DefaultInterval,
		Format:   DefaultFormat,
		Icon:     DefaultIcon,
		Output:   OutputText,
		LogLevel: "info",
		Listen:   "",
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave.
func (c *Config) Normalize() {
	if c.Source.URL == "" {
		c.Source.URL = DefaultURL
	}
	switch strings.ToLower(c.Source.Mode) {
	case ModeHTTP, ModeChromium:
		c.Source.Mode = strings.ToLower(c.Source.Mode)
	default:
		c.Source.Mode = ModeHTTP
	}
	if strings.TrimSpace(c.Source.Selector) == "" {
		c.Source.Selector = DefaultSelector
	}
	if c.Source.Timeout <= 0 {
		c.Source.Timeout = 15 * time.Second
	}

	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Interval < MinInterval {
		c.Interval = MinInterval
	}
	c.RefreshCron = strings.TrimSpace(c.RefreshCron)

	if strings.TrimSpace(c.Format) == "" {
		c.Format = DefaultFormat
	}
	if c.Icon == "" {
		c.Icon = DefaultIcon
	}
	switch c.Output {
	case OutputText, OutputI3Bar, OutputNone:
	default:
		c.Output = OutputText
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.BasicAuth != nil && c.BasicAuth.Username == "" {
		c.BasicAuth = nil
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written there with
//     0600 perms and returned.
//   - Otherwise the YAML is read and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".gdqnow-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method that delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
