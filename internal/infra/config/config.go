// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Bot       BotConfig               `yaml:"bot"`
	History   HistoryConfig           `yaml:"history"`
	Recommend RecommendConfig         `yaml:"recommend"`
	Selection SelectionConfig         `yaml:"selection"`
	Library   LibraryConfig           `yaml:"library"`
	Playback  PlaybackConfig          `yaml:"playback"`
	Filters   map[string]FilterConfig `yaml:"filters"`
	Spotify   SpotifyConfig           `yaml:"spotify"`
}

// FilterConfig represents a queue admission filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// BotConfig represents chat gateway configuration.
type BotConfig struct {
	Token string `yaml:"token" validate:"required"`
}

// HistoryConfig represents play history configuration.
type HistoryConfig struct {
	MaxSize int `yaml:"max_size" default:"100" validate:"gte=1,lte=10000"`
}

// RecommendConfig represents recommendation configuration.
type RecommendConfig struct {
	MaxPerTrigger int              `yaml:"max_per_trigger" default:"10" validate:"gte=1,lte=50"`
	SampleAuthors int              `yaml:"sample_authors" default:"5" validate:"gte=1,lte=20"`
	Providers     []ProviderConfig `yaml:"providers" validate:"required,min=1"`
}

// ProviderConfig represents a single search provider configuration.
type ProviderConfig struct {
	Type        string         `yaml:"type" validate:"required"`
	DisplayName string         `yaml:"display_name" validate:"required"`
	Settings    map[string]any `yaml:"settings"`
}

// SelectionConfig represents track selection prompt configuration.
type SelectionConfig struct {
	TimeoutSec int `yaml:"timeout_sec" default:"60" validate:"gte=5,lte=600"`
}

// LibraryConfig represents saved library storage configuration.
type LibraryConfig struct {
	Dir string `yaml:"dir" default:"libraries"`
}

// PlaybackConfig represents playback control configuration.
type PlaybackConfig struct {
	DefaultVolume int `yaml:"default_volume" default:"100" validate:"gte=0,lte=1000"`
}

// SpotifyConfig represents Spotify API configuration.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id" validate:"required"`
	ClientSecret string `yaml:"client_secret" validate:"required"`
	RefreshToken string `yaml:"refresh_token" validate:"required"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"US"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("BOT_TOKEN"); v != "" {
		c.Bot.Token = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REFRESH_TOKEN"); v != "" {
		c.Spotify.RefreshToken = v
	}
}

// SelectionTimeout returns the selection prompt timeout as a duration.
func (c *Config) SelectionTimeout() time.Duration {
	return time.Duration(c.Selection.TimeoutSec) * time.Second
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}
