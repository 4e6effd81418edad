package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/CTAG07/Nepenthes/pkg/templating"
	"github.com/go-viper/mapstructure/v2"
	"github.com/natefinch/atomic"
	"github.com/spf13/viper"
)

// envPrefix namespaces environment overrides, e.g.
// NEPENTHES_TEMPLATE_CONFIG_THEME=dark.
const envPrefix = "NEPENTHES"

// AppConfig holds the settings of the host binary itself.
type AppConfig struct {
	LogLevel     string   `json:"log_level"`
	DataDir      string   `json:"data_dir"`
	DatabasePath string   `json:"database_path"`
	LangPacks    []string `json:"lang_packs"`
	Device       string   `json:"device"`
	WatchDelayMs int      `json:"watch_delay_ms"`
}

// Config is the top-level configuration struct that aggregates all other configs.
type Config struct {
	App       *AppConfig                 `json:"app_config"`
	Templates *templating.TemplateConfig `json:"template_config"`
}

// DefaultAppConfig creates an app configuration with default values.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		LogLevel:     "info",
		DataDir:      "./data",
		DatabasePath: "./data/nepenthes.db?_journal_mode=WAL&_busy_timeout=5000",
		LangPacks:    []string{},
		Device:       "",
		WatchDelayMs: 200,
	}
}

// DefaultConfiguration returns the configuration used when no file exists.
func DefaultConfiguration() *Config {
	tmpl := templating.DefaultConfig()
	return &Config{
		App:       DefaultAppConfig(),
		Templates: &tmpl,
	}
}

// LoadConfig reads the configuration from a JSON file at the given path.
// If the file doesn't exist, it creates one with default values.
// Every value can be overridden from the environment.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfiguration()
	defaults, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal default config: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only overrides keys viper already knows about.
	if err = v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	file, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err = atomic.WriteFile(path, bytes.NewReader(defaults)); err != nil {
			// Not fatal, the defaults are still usable.
			fmt.Fprintf(os.Stderr, "warning: failed to write default config file: %v\n", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err = v.MergeConfig(bytes.NewReader(file)); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err = v.Unmarshal(config, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "json"
	}); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return config, nil
}
