package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"predictivecoder/utils"
)

//go:embed default_config.toml
var defaultConfigTOML []byte

// ConfigEnv holds a JSON object the editor plugin passes to the daemon.
const ConfigEnv = "PREDICTIVECODER_CONFIG"

// EnvPrefix prefixes per-key environment overrides, e.g.
// PREDICTIVECODER_LOG_LEVEL=debug.
const EnvPrefix = "PREDICTIVECODER"

// Config is the daemon configuration, built once at startup and passed to
// the components that need it.
type Config struct {
	LogLevel  string `mapstructure:"log_level" toml:"log_level"`
	Namespace string `mapstructure:"namespace" toml:"namespace"`

	BaseURL           string `mapstructure:"base_url" toml:"base_url"`
	Model             string `mapstructure:"model" toml:"model"`
	APIKey            string `mapstructure:"api_key" toml:"api_key"` // explicit override
	CompressResponses bool   `mapstructure:"compress_responses" toml:"compress_responses"`

	CompletionTimeoutMs    int `mapstructure:"completion_timeout_ms" toml:"completion_timeout_ms"`
	LineBoundaryDebounceMs int `mapstructure:"line_boundary_debounce_ms" toml:"line_boundary_debounce_ms"`

	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds" toml:"cache_ttl_seconds"`
	CacheCapacity   int `mapstructure:"cache_capacity" toml:"cache_capacity"`

	IdleShutdownSeconds    int  `mapstructure:"idle_shutdown_seconds" toml:"idle_shutdown_seconds"`
	DebugImmediateShutdown bool `mapstructure:"debug_immediate_shutdown" toml:"debug_immediate_shutdown"`
}

type bundledDefaults struct {
	APIKey string `toml:"bundled_api_key"`
}

func (c Config) CompletionTimeout() time.Duration {
	return time.Duration(c.CompletionTimeoutMs) * time.Millisecond
}

func (c Config) LineBoundaryDebounce() time.Duration {
	return time.Duration(c.LineBoundaryDebounceMs) * time.Millisecond
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func (c Config) IdleShutdown() time.Duration {
	return time.Duration(c.IdleShutdownSeconds) * time.Second
}

// DefaultConfig decodes the embedded defaults.
func DefaultConfig() Config {
	var cfg Config
	if _, err := toml.NewDecoder(bytes.NewReader(defaultConfigTOML)).Decode(&cfg); err != nil {
		panic("predictivecoder: invalid embedded default_config.toml: " + err.Error())
	}
	return cfg
}

// BundledAPIKey is the credential compiled into the binary, usually empty.
func BundledAPIKey() string {
	var b bundledDefaults
	if _, err := toml.NewDecoder(bytes.NewReader(defaultConfigTOML)).Decode(&b); err != nil {
		return ""
	}
	return strings.TrimSpace(b.APIKey)
}

// Load reads configuration from path, layered as: embedded defaults, the
// TOML file, the ConfigEnv JSON blob, then PREDICTIVECODER_* variables.
// A missing file is not an error. If path is empty, uses ConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	path = utils.ExpandHome(path)

	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("namespace", cfg.Namespace)
	v.SetDefault("base_url", cfg.BaseURL)
	v.SetDefault("model", cfg.Model)
	v.SetDefault("api_key", cfg.APIKey)
	v.SetDefault("compress_responses", cfg.CompressResponses)
	v.SetDefault("completion_timeout_ms", cfg.CompletionTimeoutMs)
	v.SetDefault("line_boundary_debounce_ms", cfg.LineBoundaryDebounceMs)
	v.SetDefault("cache_ttl_seconds", cfg.CacheTTLSeconds)
	v.SetDefault("cache_capacity", cfg.CacheCapacity)
	v.SetDefault("idle_shutdown_seconds", cfg.IdleShutdownSeconds)
	v.SetDefault("debug_immediate_shutdown", cfg.DebugImmediateShutdown)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}

	if raw := strings.TrimSpace(os.Getenv(ConfigEnv)); raw != "" {
		var overrides map[string]any
		if err := json.Unmarshal([]byte(raw), &overrides); err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", ConfigEnv, err)
		}
		if err := v.MergeConfigMap(overrides); err != nil {
			return Config{}, fmt.Errorf("merge %s: %w", ConfigEnv, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the daemon cannot run with.
func (c Config) Validate() error {
	parsed, err := url.Parse(strings.TrimSpace(c.BaseURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("base_url must include scheme and host (e.g. https://api.openai.com/v1)")
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("model is required")
	}
	if c.CompletionTimeoutMs <= 0 {
		return fmt.Errorf("completion_timeout_ms must be positive")
	}
	if c.LineBoundaryDebounceMs < 0 {
		return fmt.Errorf("line_boundary_debounce_ms must not be negative")
	}
	if c.CacheCapacity <= 0 || c.CacheTTLSeconds <= 0 {
		return fmt.Errorf("cache_capacity and cache_ttl_seconds must be positive")
	}
	return nil
}

// StateDir is where the daemon keeps its socket, logs and settings.
// Priority: $PREDICTIVECODER_HOME > ~/.predictivecoder.
func StateDir() string {
	if dir := os.Getenv("PREDICTIVECODER_HOME"); dir != "" {
		return utils.ExpandHome(dir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "predictivecoder")
	}
	return filepath.Join(home, ".predictivecoder")
}

func ConfigPath() string { return filepath.Join(StateDir(), "config.toml") }

func SettingsPath() string { return filepath.Join(StateDir(), "settings.toml") }

// UserCredentialsPath is the per-user dotfile holding OPENAI_API_KEY=...
func UserCredentialsPath() string { return filepath.Join(StateDir(), "config") }

func SocketPath() string { return filepath.Join(StateDir(), "predictivecoder.sock") }

func PidPath() string { return filepath.Join(StateDir(), "predictivecoder.pid") }

func LogPath() string { return filepath.Join(StateDir(), "predictivecoder.log") }

// MetricsPath is the JSON-lines journal of suggestion events.
func MetricsPath() string { return filepath.Join(StateDir(), "metrics.jsonl") }
