// Package config loads and validates clipdl configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Output    OutputConfig    `mapstructure:"output"`
	Watcher   WatcherConfig   `mapstructure:"watcher"`
	Transcode TranscodeConfig `mapstructure:"transcode"`
	Thumbnail ThumbnailConfig `mapstructure:"thumbnail"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Server    ServerConfig    `mapstructure:"server"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// OutputConfig controls where finished files land.
type OutputConfig struct {
	Dir       string `mapstructure:"dir"`
	Extension string `mapstructure:"extension"`
}

// WatcherConfig controls clipboard polling.
type WatcherConfig struct {
	PollIntervalMs int `mapstructure:"poll_interval_ms"`
}

// TranscodeConfig configures the ffmpeg invocation.
type TranscodeConfig struct {
	FFmpegPath         string `mapstructure:"ffmpeg_path"`
	DefaultBitrateKbps int    `mapstructure:"default_bitrate_kbps"`
}

// ThumbnailConfig configures cover art.
type ThumbnailConfig struct {
	Enabled     bool  `mapstructure:"enabled"`
	Size        int   `mapstructure:"size"`
	JPEGQuality int   `mapstructure:"jpeg_quality"`
	MaxBytes    int64 `mapstructure:"max_bytes"`
}

// HTTPConfig configures the outbound HTTP client.
type HTTPConfig struct {
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	UserAgent      string  `mapstructure:"user_agent"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// ServerConfig controls the status server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// FeedConfig sizes the recent-notification feed.
type FeedConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CLIPDL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Output.Dir = expandHome(cfg.Output.Dir)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("output.dir", defaultOutputDir())
	v.SetDefault("output.extension", ".mp3")
	v.SetDefault("watcher.poll_interval_ms", 500)
	v.SetDefault("transcode.ffmpeg_path", "ffmpeg")
	v.SetDefault("transcode.default_bitrate_kbps", 128)
	v.SetDefault("thumbnail.enabled", true)
	v.SetDefault("thumbnail.size", 500)
	v.SetDefault("thumbnail.jpeg_quality", 90)
	v.SetDefault("thumbnail.max_bytes", 8<<20)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.user_agent", "clipdl/0.1")
	v.SetDefault("http.rate_limit_rps", 2)
	v.SetDefault("http.rate_limit_burst", 4)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8000)
	v.SetDefault("feed.capacity", 256)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Output.Dir == "" {
		return errors.New("output.dir must be set")
	}
	if !strings.HasPrefix(c.Output.Extension, ".") || len(c.Output.Extension) < 2 {
		return fmt.Errorf("output.extension must start with a dot, got %q", c.Output.Extension)
	}
	if c.Watcher.PollIntervalMs <= 0 {
		return errors.New("watcher.poll_interval_ms must be > 0")
	}
	if c.Transcode.FFmpegPath == "" {
		return errors.New("transcode.ffmpeg_path must be set")
	}
	if c.Transcode.DefaultBitrateKbps < 32 || c.Transcode.DefaultBitrateKbps > 320 {
		return errors.New("transcode.default_bitrate_kbps must be within 32..320")
	}
	if c.Thumbnail.Enabled {
		if c.Thumbnail.Size <= 0 {
			return errors.New("thumbnail.size must be > 0")
		}
		if c.Thumbnail.JPEGQuality < 1 || c.Thumbnail.JPEGQuality > 100 {
			return errors.New("thumbnail.jpeg_quality must be within 1..100")
		}
		if c.Thumbnail.MaxBytes <= 0 {
			return errors.New("thumbnail.max_bytes must be > 0")
		}
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return errors.New("http.timeout_seconds must be > 0")
	}
	if c.HTTP.RateLimitRPS < 0 {
		return errors.New("http.rate_limit_rps must be >= 0")
	}
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return errors.New("server.port must be within 1..65535 when the server is enabled")
	}
	if c.Feed.Capacity <= 0 {
		return errors.New("feed.capacity must be > 0")
	}
	return nil
}

// PollInterval returns the watcher period as a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Watcher.PollIntervalMs) * time.Millisecond
}

// HTTPTimeout returns the outbound client timeout as a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

func defaultOutputDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "Downloads"
	}
	return filepath.Join(home, "Downloads")
}

func expandHome(dir string) string {
	if dir != "~" && !strings.HasPrefix(dir, "~/") {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return dir
	}
	return filepath.Join(home, strings.TrimPrefix(dir, "~"))
}
