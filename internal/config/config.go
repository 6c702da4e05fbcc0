package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	defaultListen   = "127.0.0.1:8080"
	defaultRefresh  = "*/15 * * * *"
	defaultCacheDir = "./var/ics-cache"
	defaultEngine   = "native"
	defaultLogLevel = "info"
	defaultTimeout  = 15 * time.Second
	envPrefix       = "CALFEED_"
)

// FeedConfig describes a single subscribed calendar feed.
type FeedConfig struct {
	// URL is an http(s) endpoint, file:// URL or local path.
	URL string `yaml:"url" json:"url"`
	// ID is used in logs and to tag events; defaults to Name, then URL.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// RefreshCron is a standard five-field cron expression for feed refreshes.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// CacheDir holds per-feed HTTP cache entries.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// FetchTimeout bounds a single feed download.
	FetchTimeout time.Duration `yaml:"fetch_timeout" json:"fetch_timeout"`

	// Engine selects the parser: "native" or "golang-ical".
	Engine string `yaml:"engine" json:"engine"`

	// LogLevel is one of debug, info, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Feeds is the list of subscribed calendars.
	Feeds []FeedConfig `yaml:"feeds" json:"feeds"`

	// BasicAuth, if set with both fields, protects every endpoint but /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       defaultListen,
		RefreshCron:  defaultRefresh,
		CacheDir:     defaultCacheDir,
		FetchTimeout: defaultTimeout,
		Engine:       defaultEngine,
		LogLevel:     defaultLogLevel,
		Feeds:        []FeedConfig{},
	}
}

// Normalize fills in missing values and derives feed IDs so that
// partially-filled configs still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = defaultTimeout
	}
	if c.Engine == "" {
		c.Engine = defaultEngine
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.Feeds == nil {
		c.Feeds = []FeedConfig{}
	}
	for i := range c.Feeds {
		f := &c.Feeds[i]
		if f.ID != "" {
			continue
		}
		if f.Name != "" {
			f.ID = f.Name
		} else {
			f.ID = f.URL
		}
	}
}

// Validate reports configuration that cannot run.
func (c *Config) Validate() error {
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", c.RefreshCron, err)
	}
	seen := make(map[string]bool, len(c.Feeds))
	for i, f := range c.Feeds {
		if strings.TrimSpace(f.URL) == "" {
			return fmt.Errorf("feed %d: url is empty", i)
		}
		if seen[f.ID] {
			return fmt.Errorf("feed %d: duplicate id %q", i, f.ID)
		}
		seen[f.ID] = true
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     permissions and returned.
//   - Otherwise the YAML is decoded and normalized.
//   - In both cases, a .env file in the working directory (if any) and
//     CALFEED_* environment variables are applied on top.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	cfg, err := loadFile(path)
	if err != nil {
		return cfg, err
	}

	// .env is optional.
	_ = godotenv.Load()
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
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

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// applyEnv overrides scalar settings from CALFEED_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(envPrefix + key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("LISTEN"); ok {
		c.Listen = v
	}
	if v, ok := get("REFRESH"); ok {
		c.RefreshCron = v
	}
	if v, ok := get("CACHE_DIR"); ok {
		c.CacheDir = v
	}
	if v, ok := get("ENGINE"); ok {
		c.Engine = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := get("FETCH_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			// Bare numbers are seconds.
			secs, aerr := strconv.Atoi(v)
			if aerr != nil {
				return fmt.Errorf("%sFETCH_TIMEOUT: %w", envPrefix, err)
			}
			d = time.Duration(secs) * time.Second
		}
		c.FetchTimeout = d
	}
	user, hasUser := get("BASIC_AUTH_USERNAME")
	pass, hasPass := get("BASIC_AUTH_PASSWORD")
	if hasUser && hasPass {
		c.BasicAuth = &BasicAuthConfig{Username: user, Password: pass}
	}
	return nil
}

// Save writes cfg to path atomically via a temp file and rename, leaving the
// final file with 0600 permissions.
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

	tmp, err := os.CreateTemp(dir, ".calfeed-config-*.tmp")
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
