// Package config loads the tokbridge configuration file and overlays the
// Hugging Face and tokbridge environment variables on top of it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath = "TOKBRIDGE_CONFIG"
	EnvLogLevel   = "TOKBRIDGE_LOG_LEVEL"
	EnvLogFile    = "TOKBRIDGE_LOG_FILE"
	EnvDebugLogs  = "TOKBRIDGE_DEBUG_LOGS"
	EnvHFToken    = "HF_TOKEN"
	EnvHFOffline  = "HF_HUB_OFFLINE"
	EnvHFEndpoint = "HF_ENDPOINT"
	EnvHFHubCache = "HF_HUB_CACHE"
	EnvHFHome     = "HF_HOME"

	DefaultModel         = "cl100k_base"
	DefaultHubEndpoint   = "https://huggingface.co"
	DefaultRevision      = "main"
	DefaultModelCacheCap = 8
)

// Config is the tokbridge configuration file (~/.config/tokbridge/config.yaml).
type Config struct {
	// DefaultModel is what the model name "default" resolves to.
	DefaultModel string `yaml:"default_model"`

	// Hub
	CacheDir    string `yaml:"cache_dir"`
	HubEndpoint string `yaml:"hub_endpoint"`
	Revision    string `yaml:"revision"`
	HFToken     string `yaml:"hf_token"`
	Offline     bool   `yaml:"offline"`

	// Engine
	ModelCacheSize   int               `yaml:"model_cache_size"`
	AddSpecialTokens bool              `yaml:"add_special_tokens"`
	Aliases          map[string]string `yaml:"aliases"`

	// Bridge
	DebugLogs        bool `yaml:"debug_logs"`
	TrackAllocations bool `yaml:"track_allocations"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	LogFile   string `yaml:"log_file"`

	// fileKeys holds the top-level keys present in the loaded file.
	fileKeys map[string]bool
}

// FromFile reports whether the config file set key (a yaml field name).
func (c Config) FromFile(key string) bool {
	return c.fileKeys[key]
}

// Defaults returns the configuration used when no file is present.
func Defaults() Config {
	return Config{
		DefaultModel:   DefaultModel,
		HubEndpoint:    DefaultHubEndpoint,
		Revision:       DefaultRevision,
		ModelCacheSize: DefaultModelCacheCap,
		LogLevel:       "warn",
		LogFormat:      "text",
	}
}

// Path returns the config file location: $TOKBRIDGE_CONFIG, else
// <UserConfigDir>/tokbridge/config.yaml. It is empty when neither is known.
func Path() string {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "tokbridge", "config.yaml")
}

// Load reads the config file at path (Path() when empty), applies the
// environment overlay and fills defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	if path == "" {
		path = Path()
	}
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
			var keys map[string]any
			if err := yaml.Unmarshal(data, &keys); err == nil {
				cfg.fileKeys = make(map[string]bool, len(keys))
				for k := range keys {
					cfg.fileKeys[k] = true
				}
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.LookupEnv)
	cfg.fillDefaults()
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvHFToken); ok && strings.TrimSpace(v) != "" && c.HFToken == "" {
		c.HFToken = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvHFOffline); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil && b {
			c.Offline = true
		}
	}
	if v, ok := lookup(EnvHFEndpoint); ok && strings.TrimSpace(v) != "" {
		c.HubEndpoint = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvLogLevel); ok && strings.TrimSpace(v) != "" {
		c.LogLevel = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvLogFile); ok && strings.TrimSpace(v) != "" {
		c.LogFile = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvDebugLogs); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			c.DebugLogs = b
		}
	}
	if c.CacheDir == "" {
		c.CacheDir = hubCacheFromEnv(lookup)
	}
}

func (c *Config) fillDefaults() {
	d := Defaults()
	if strings.TrimSpace(c.DefaultModel) == "" {
		c.DefaultModel = d.DefaultModel
	}
	if strings.TrimSpace(c.HubEndpoint) == "" {
		c.HubEndpoint = d.HubEndpoint
	}
	c.HubEndpoint = strings.TrimRight(c.HubEndpoint, "/")
	if strings.TrimSpace(c.Revision) == "" {
		c.Revision = d.Revision
	}
	if c.ModelCacheSize <= 0 {
		c.ModelCacheSize = d.ModelCacheSize
	}
	if c.CacheDir == "" {
		c.CacheDir = hubCacheFromEnv(func(string) (string, bool) { return "", false })
	}
}

// hubCacheFromEnv mirrors huggingface_hub: HF_HUB_CACHE, then HF_HOME/hub,
// then ~/.cache/huggingface/hub.
func hubCacheFromEnv(lookup func(string) (string, bool)) string {
	if v, ok := lookup(EnvHFHubCache); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvHFHome); ok && strings.TrimSpace(v) != "" {
		return filepath.Join(strings.TrimSpace(v), "hub")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cache", "huggingface", "hub")
}
