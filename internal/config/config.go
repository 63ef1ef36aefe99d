package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "CALSHELL_"

const (
	defaultListen      = "127.0.0.1:8080"
	defaultTimezone    = "Asia/Seoul"
	defaultWeekStart   = "monday"
	defaultRefreshCron = "*/15 * * * *"
	defaultHorizonDays = 7
	defaultCacheDir    = "/var/lib/calshell"
	defaultBreakpoint  = 768
)

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	URL  string `yaml:"url" json:"url"`
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for every endpoint
// except /health.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// LayoutConfig tunes the responsive page shell.
type LayoutConfig struct {
	// MobileBreakpoint is the viewport width in CSS px below which the
	// mobile layout (header + info bar) is used.
	MobileBreakpoint int `yaml:"mobile_breakpoint" json:"mobile_breakpoint"`
}

// CaptureConfig controls the scheduled headless screenshot of the calendar page.
type CaptureConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// URL defaults to http://<listen>/calendar.
	URL string `yaml:"url" json:"url"`
	// Output defaults to <cache_dir>/preview.png.
	Output string `yaml:"output" json:"output"`
	// Mobile captures with mobile emulation and the mobile layout.
	Mobile         bool `yaml:"mobile" json:"mobile"`
	Width          int  `yaml:"width" json:"width"`
	Height         int  `yaml:"height" json:"height"`
	MobileWidth    int  `yaml:"mobile_width" json:"mobile_width"`
	MobileHeight   int  `yaml:"mobile_height" json:"mobile_height"`
	TimeoutSeconds int  `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// Config is the top-level application configuration.
type Config struct {
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used for display and for bare dates in URLs.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "monday" (default) or "sunday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron is a standard five-field cron spec for the refresh job.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	HorizonDays  int      `yaml:"horizon_days" json:"horizon_days"`
	ShowAllDay   bool     `yaml:"show_all_day" json:"show_all_day"`
	HighlightRed []string `yaml:"highlight_red" json:"highlight_red"`

	ICS []ICSConfig `yaml:"ics" json:"ics"`

	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// CacheDir holds the ICS cache and the preview image.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	Layout  LayoutConfig  `yaml:"layout" json:"layout"`
	Capture CaptureConfig `yaml:"capture" json:"capture"`
}

// envOverrides lists the settings that can be overridden per deployment.
type envOverrides struct {
	Listen        string `env:"LISTEN"`
	Timezone      string `env:"TIMEZONE"`
	LogLevel      string `env:"LOG_LEVEL"`
	RefreshCron   string `env:"REFRESH"`
	CacheDir      string `env:"CACHE_DIR"`
	CaptureOutput string `env:"CAPTURE_OUTPUT"`
	CaptureOn     *bool  `env:"CAPTURE_ENABLED"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       defaultListen,
		Timezone:     defaultTimezone,
		WeekStart:    defaultWeekStart,
		RefreshCron:  defaultRefreshCron,
		HorizonDays:  defaultHorizonDays,
		ShowAllDay:   true,
		HighlightRed: []string{"휴일", "휴가", "중요"},
		ICS:          []ICSConfig{},
		LogLevel:     "info",
		CacheDir:     defaultCacheDir,
		Layout:       LayoutConfig{MobileBreakpoint: defaultBreakpoint},
		Capture: CaptureConfig{
			Width:          984,
			Height:         1304,
			MobileWidth:    390,
			MobileHeight:   844,
			TimeoutSeconds: 30,
		},
	}
}

// Normalize fills in missing/zero values so that partially-filled configs
// still behave.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	switch c.WeekStart {
	case "monday", "sunday":
	default:
		c.WeekStart = d.WeekStart
	}
	if c.RefreshCron == "" {
		c.RefreshCron = d.RefreshCron
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = d.HorizonDays
	}
	if c.HighlightRed == nil {
		c.HighlightRed = d.HighlightRed
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.CacheDir == "" {
		c.CacheDir = d.CacheDir
	}
	if c.Layout.MobileBreakpoint <= 0 {
		c.Layout.MobileBreakpoint = d.Layout.MobileBreakpoint
	}
	cp := &c.Capture
	if cp.Width <= 0 {
		cp.Width = d.Capture.Width
	}
	if cp.Height <= 0 {
		cp.Height = d.Capture.Height
	}
	if cp.MobileWidth <= 0 {
		cp.MobileWidth = d.Capture.MobileWidth
	}
	if cp.MobileHeight <= 0 {
		cp.MobileHeight = d.Capture.MobileHeight
	}
	if cp.TimeoutSeconds <= 0 {
		cp.TimeoutSeconds = d.Capture.TimeoutSeconds
	}
}

// Validate reports settings that cannot be used as written.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		return fmt.Errorf("config: refresh %q: %w", c.RefreshCron, err)
	}
	for i, src := range c.ICS {
		if src.URL == "" {
			return fmt.Errorf("config: ics[%d]: url is empty", i)
		}
	}
	return nil
}

// Location loads the display timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil || c.Timezone == "" {
		return time.Local
	}
	return loc
}

// ICSCacheDir is where fetched feeds and their HTTP cache metadata live.
func (c *Config) ICSCacheDir() string {
	return filepath.Join(c.CacheDir, "ics-cache")
}

// PreviewPath is where the captured screenshot is written and served from.
func (c *Config) PreviewPath() string {
	if c.Capture.Output != "" {
		return c.Capture.Output
	}
	return filepath.Join(c.CacheDir, "preview.png")
}

// CaptureURL is the page the capture job screenshots.
func (c *Config) CaptureURL() string {
	if c.Capture.URL != "" {
		return c.Capture.URL
	}
	return "http://" + c.Listen + "/calendar"
}

// ApplyEnv overrides fields from CALSHELL_* variables. environ replaces the
// process environment when non-nil.
func (c *Config) ApplyEnv(environ map[string]string) error {
	var o envOverrides
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&o, opts); err != nil {
		return fmt.Errorf("config: env: %w", err)
	}
	if o.Listen != "" {
		c.Listen = o.Listen
	}
	if o.Timezone != "" {
		c.Timezone = o.Timezone
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	if o.RefreshCron != "" {
		c.RefreshCron = o.RefreshCron
	}
	if o.CacheDir != "" {
		c.CacheDir = o.CacheDir
	}
	if o.CaptureOutput != "" {
		c.Capture.Output = o.CaptureOutput
	}
	if o.CaptureOn != nil {
		c.Capture.Enabled = *o.CaptureOn
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, the defaults are written there with 0600
//     permissions and returned.
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
				// Callers may still run on the defaults.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory with 0700.
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

	tmp, err := os.CreateTemp(dir, ".calshell-config-*.tmp")
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

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
