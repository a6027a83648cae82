package shared

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Layouts and delivery modes accepted by the config.
const (
	LayoutFlat    = "flat"
	LayoutGrouped = "grouped"

	ModeHelper = "helper"
	ModeDirect = "direct"
)

// Environment variables overlaid on the file config.
const (
	EnvAccessToken = "SPOTX_ACCESS_TOKEN"
	EnvUsername    = "SPOTX_USERNAME"
	EnvHelper      = "SPOTX_HELPER"
	EnvOutputDir   = "SPOTX_OUTPUT_DIR"
	EnvProxyURL    = "SPOTX_PROXY_URL"
	EnvLogLevel    = "SPOTX_LOG_LEVEL"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Session  SessionConfig  `toml:"session"`
	Output   OutputConfig   `toml:"output"`
	Delivery DeliveryConfig `toml:"delivery"`
	Pacing   PacingConfig   `toml:"pacing"`
	Artwork  ArtworkConfig  `toml:"artwork"`
	Database DatabaseConfig `toml:"database"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Log      LogConfig      `toml:"log"`

	// Credentials supplied through the environment; never written to disk.
	AccessToken string `toml:"-"`
	Username    string `toml:"-"`
}

// SessionConfig locates the session proxy and the OAuth client.
type SessionConfig struct {
	ProxyURL          string  `toml:"proxy_url"`
	CacheDir          string  `toml:"cache_dir"`
	ClientID          string  `toml:"client_id"`
	RedirectURI       string  `toml:"redirect_uri"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// OutputConfig controls where delivered files land.
type OutputConfig struct {
	Dir    string `toml:"dir"`
	Layout string `toml:"layout"`
}

// DeliveryConfig selects direct writes or the tagging helper.
type DeliveryConfig struct {
	Mode         string `toml:"mode"`
	HelperPath   string `toml:"helper_path"`
	StageCover   bool   `toml:"stage_cover"`
	CoverMaxSize int    `toml:"cover_max_size"`
}

// PacingConfig spaces out items and bounds audio key retries.
type PacingConfig struct {
	Interval   time.Duration `toml:"interval"`
	KeyRetries int           `toml:"key_retries"`
}

// ArtworkConfig controls cover downloads.
type ArtworkConfig struct {
	Retries  int           `toml:"retries"`
	Cooldown time.Duration `toml:"cooldown"`
	Exponent float64       `toml:"exponent"`
	Timeout  time.Duration `toml:"timeout"`
}

// Backoff returns the retry policy for artwork downloads.
func (a ArtworkConfig) Backoff() Backoff {
	return Backoff{Retries: a.Retries, Cooldown: a.Cooldown, Exponent: a.Exponent}
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// MetricsConfig points at a node-exporter textfile; empty disables metrics output.
type MetricsConfig struct {
	Textfile string `toml:"textfile"`
}

// LogConfig sets the level and the output format (auto, text, json, logfmt).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// LoadConfigOrDefault loads path when it exists and falls back to [DefaultConfig] otherwise.
func LoadConfigOrDefault(path string) (*Config, error) {
	config, err := LoadConfig(path)
	if errors.Is(err, ErrMissingConfig) {
		return DefaultConfig(), nil
	}
	return config, err
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, exampleConf, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes config to path as TOML, replacing any existing file.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ApplyEnv overlays SPOTX_* variables onto the config.
//
// envFiles are loaded first with godotenv; missing files are ignored and
// variables already set in the process environment win.
func (c *Config) ApplyEnv(envFiles ...string) {
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}

	if v := os.Getenv(EnvAccessToken); v != "" {
		c.AccessToken = v
	}
	if v := os.Getenv(EnvUsername); v != "" {
		c.Username = v
	}
	if v := os.Getenv(EnvHelper); v != "" {
		c.Delivery.HelperPath = v
	}
	if v := os.Getenv(EnvOutputDir); v != "" {
		c.Output.Dir = v
	}
	if v := os.Getenv(EnvProxyURL); v != "" {
		c.Session.ProxyURL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Output.Layout {
	case LayoutFlat, LayoutGrouped:
	default:
		errs = append(errs, fmt.Errorf("output.layout must be %q or %q, got %q", LayoutFlat, LayoutGrouped, c.Output.Layout))
	}
	switch c.Delivery.Mode {
	case ModeDirect:
	case ModeHelper:
		if strings.TrimSpace(c.Delivery.HelperPath) == "" {
			errs = append(errs, fmt.Errorf("delivery.helper_path is required in helper mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("delivery.mode must be %q or %q, got %q", ModeHelper, ModeDirect, c.Delivery.Mode))
	}
	if c.Output.Dir == "" {
		errs = append(errs, fmt.Errorf("output.dir is required"))
	}
	if c.Session.ProxyURL == "" {
		errs = append(errs, fmt.Errorf("session.proxy_url is required"))
	}
	if c.Session.RequestsPerSecond <= 0 {
		errs = append(errs, fmt.Errorf("session.requests_per_second must be positive"))
	}
	if c.Pacing.Interval < 0 {
		errs = append(errs, fmt.Errorf("pacing.interval must not be negative"))
	}
	if c.Artwork.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("artwork.timeout must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// CredentialsPath is the cached credentials file inside the session cache directory.
func (c *Config) CredentialsPath() string {
	return filepath.Join(c.Session.CacheDir, "credentials.json")
}
