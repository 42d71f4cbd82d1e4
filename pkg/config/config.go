// Package config loads PagePilot settings from a YAML file.
//
// Values of the form ${VAR_NAME} are replaced with environment variables
// before parsing. A missing file yields the defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/pagepilot/pkg/storage"
)

// EnvConfigPath overrides the default config file location.
const EnvConfigPath = "PAGEPILOT_CONFIG"

// Config is the complete PagePilot configuration.
type Config struct {
	Storage    StorageConfig    `yaml:"storage"`
	Auth       AuthConfig       `yaml:"auth"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Browser    BrowserConfig    `yaml:"browser"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// AuthConfig holds session settings.
type AuthConfig struct {
	SessionTTL time.Duration `yaml:"-"`

	// TokenSecret signs session tokens; empty means a generated, stored key.
	TokenSecret string `yaml:"token_secret"`

	SessionTTLRaw string `yaml:"session_ttl"`
}

// ClassifierConfig holds page analysis settings.
type ClassifierConfig struct {
	Debounce time.Duration `yaml:"-"`

	DebounceRaw string `yaml:"debounce"`
}

// BrowserConfig holds settings for live Playwright sessions.
type BrowserConfig struct {
	Headless    bool          `yaml:"headless"`
	MaxSessions int           `yaml:"max_sessions"`
	Timeout     time.Duration `yaml:"-"`
	IdleTimeout time.Duration `yaml:"-"`

	TimeoutRaw     string `yaml:"timeout"`
	IdleTimeoutRaw string `yaml:"idle_timeout"`
}

// LoggingConfig holds log file settings.
type LoggingConfig struct {
	// Dir overrides ~/.pagepilot/logs.
	Dir string `yaml:"dir"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: storage.BackendSQLite,
			Path:    "~/.pagepilot/pagepilot.db",
		},
		Auth: AuthConfig{
			SessionTTLRaw: "168h",
		},
		Classifier: ClassifierConfig{
			DebounceRaw: "500ms",
		},
		Browser: BrowserConfig{
			Headless:       true,
			MaxSessions:    5,
			TimeoutRaw:     "30s",
			IdleTimeoutRaw: "5m",
		},
	}
}

// DefaultPath returns $PAGEPILOT_CONFIG or ~/.pagepilot/config.yaml.
func DefaultPath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".pagepilot", "config.yaml"), nil
}

// Load reads the configuration at path. An empty path means DefaultPath.
// Fields absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// defaults only
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finalize parses durations, expands paths and validates.
func (c *Config) finalize() error {
	if err := parseDurations(c); err != nil {
		return fmt.Errorf("parsing durations: %w", err)
	}

	var err error
	if c.Storage.Path, err = expandHome(c.Storage.Path); err != nil {
		return err
	}
	if c.Logging.Dir, err = expandHome(c.Logging.Dir); err != nil {
		return err
	}

	if err := c.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case storage.BackendMemory:
	case storage.BackendFile, storage.BackendSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the %s backend", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("storage.backend must be one of memory, file, sqlite (got %q)", c.Storage.Backend)
	}

	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("auth.session_ttl must be positive")
	}
	if c.Classifier.Debounce <= 0 {
		return fmt.Errorf("classifier.debounce must be positive")
	}
	if c.Browser.MaxSessions < 1 {
		return fmt.Errorf("browser.max_sessions must be at least 1")
	}
	return nil
}

// StorageOptions converts the storage section for storage.Open.
func (c *Config) StorageOptions() storage.Options {
	return storage.Options{Backend: c.Storage.Backend, Path: c.Storage.Path}
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} with the variable's value, or "" when unset.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// expandHome resolves a leading ~/ against the user's home directory.
func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"auth.session_ttl", cfg.Auth.SessionTTLRaw, &cfg.Auth.SessionTTL},
		{"classifier.debounce", cfg.Classifier.DebounceRaw, &cfg.Classifier.Debounce},
		{"browser.timeout", cfg.Browser.TimeoutRaw, &cfg.Browser.Timeout},
		{"browser.idle_timeout", cfg.Browser.IdleTimeoutRaw, &cfg.Browser.IdleTimeout},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}
