// Package config provides configuration loading from YAML files and the environment.
package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Discord  DiscordConfig           `yaml:"discord"`
	Playback PlaybackConfig          `yaml:"playback"`
	Resolver ResolverConfig          `yaml:"resolver"`
	YouTube  YouTubeConfig           `yaml:"youtube"`
	Spotify  SpotifyConfig           `yaml:"spotify"`
	Audio    AudioConfig             `yaml:"audio"`
	Filters  map[string]FilterConfig `yaml:"filters"`
	Messages MessagesConfig          `yaml:"messages"`
}

// DiscordConfig represents bot account configuration.
type DiscordConfig struct {
	Token  string `yaml:"token" env:"DISCORD_TOKEN" validate:"required"`
	Prefix string `yaml:"prefix" env:"PREFIX" default:"!" validate:"required,max=5"`
	Status string `yaml:"status"` // Presence text, "<prefix>help" when empty
}

// PlaybackConfig represents playback control configuration.
type PlaybackConfig struct {
	IdleTimeoutSec  int `yaml:"idle_timeout_sec" default:"300" validate:"gte=1"`
	MaxPlaylistSize int `yaml:"max_playlist_size" default:"50" validate:"gte=1,lte=500"`
	DefaultVolume   int `yaml:"default_volume" default:"100" validate:"gte=1,lte=100"`
}

// ResolverConfig represents query resolution configuration.
type ResolverConfig struct {
	YtdlpPath    string  `yaml:"ytdlp_path" default:"yt-dlp"`
	SearchPrefix string  `yaml:"search_prefix" default:"ytsearch"`
	TimeoutSec   int     `yaml:"timeout_sec" default:"30" validate:"gte=1"`
	RatePerSec   float64 `yaml:"rate_per_sec" default:"2" validate:"gte=0"`
	Burst        int     `yaml:"burst" default:"4" validate:"gte=1"`
	MaxRetries   int     `yaml:"max_retries" default:"3" validate:"gte=1,lte=10"`
}

// YouTubeConfig represents the built-in YouTube client configuration.
type YouTubeConfig struct {
	Enabled *bool  `yaml:"enabled" default:"true"`
	Proxy   string `yaml:"proxy" env:"YOUTUBE_PROXY" validate:"omitempty,url"`
}

// SpotifyConfig represents Spotify API configuration.
// Spotify links are only handled when both credentials are set.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id" env:"SPOTIFY_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"SPOTIFY_CLIENT_SECRET" validate:"required_with=ClientID"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"US"`
}

// AudioConfig represents decoding and encoding configuration.
type AudioConfig struct {
	FFmpegPath string `yaml:"ffmpeg_path" default:"ffmpeg"`
	Bitrate    int    `yaml:"bitrate" default:"128000" validate:"gte=16000,lte=512000"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// MessagesConfig represents user-facing messages.
type MessagesConfig struct {
	QueuePageSize         int    `yaml:"queue_page_size" default:"10" validate:"gte=1,lte=25"`
	DefaultError          string `yaml:"default_error" default:"Something went wrong."`
	NotInVoiceChannel     string `yaml:"not_in_voice_channel" default:"You need to be in a voice channel."`
	EmptyQuery            string `yaml:"empty_query" default:"Tell me what to play."`
	NotConnected          string `yaml:"not_connected" default:"I'm not connected to a voice channel."`
	NotStreaming          string `yaml:"not_streaming" default:"Nothing is playing."`
	NotPaused             string `yaml:"not_paused" default:"Playback is not paused."`
	VolumeOutOfRange      string `yaml:"volume_out_of_range" default:"Volume must be between 1 and 100."`
	QueueEmpty            string `yaml:"queue_empty" default:"The queue is empty."`
	NoResults             string `yaml:"no_results" default:"No results found."`
	ResolutionFailed      string `yaml:"resolution_failed" default:"Could not load that track."`
	ConnectFailed         string `yaml:"connect_failed" default:"Could not join your voice channel."`
	DuplicateTrack        string `yaml:"duplicate_track" default:"That song is already in the queue."`
	DurationLimitExceeded string `yaml:"duration_limit_exceeded" default:"That song is too long or too short."`
}

// Load loads configuration from a YAML file, then applies environment
// overrides, defaults, and validation. A missing file is not an error.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, errors.Wrap(err, "failed to read config file")
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, errors.Wrap(err, "failed to parse config file")
			}
		}
	}

	// Override with environment variables
	if err := env.Parse(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to read environment")
	}

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

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// GetMessage returns the message for the given code.
func (c *Config) GetMessage(code string) string {
	m := c.Messages
	var msg string
	switch code {
	case "not_in_voice_channel":
		msg = m.NotInVoiceChannel
	case "empty_query":
		msg = m.EmptyQuery
	case "not_connected":
		msg = m.NotConnected
	case "not_streaming", "no_active_stream":
		msg = m.NotStreaming
	case "not_paused":
		msg = m.NotPaused
	case "volume_out_of_range":
		msg = m.VolumeOutOfRange
	case "queue_empty":
		msg = m.QueueEmpty
	case "no_results":
		msg = m.NoResults
	case "resolution_failed":
		msg = m.ResolutionFailed
	case "connect_failed":
		msg = m.ConnectFailed
	case "duplicate_track":
		msg = m.DuplicateTrack
	case "duration_limit_exceeded":
		msg = m.DurationLimitExceeded
	}
	if msg == "" {
		return m.DefaultError
	}
	return msg
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// FilterSettings returns the settings for a filter.
func (c *Config) FilterSettings(filterName string) map[string]any {
	if f, ok := c.Filters[filterName]; ok {
		return f.Settings
	}
	return nil
}

// YouTubeEnabled reports whether the built-in YouTube client is used.
func (c *Config) YouTubeEnabled() bool {
	return c.YouTube.Enabled == nil || *c.YouTube.Enabled
}

// SpotifyEnabled reports whether Spotify credentials are configured.
func (c *Config) SpotifyEnabled() bool {
	return c.Spotify.ClientID != "" && c.Spotify.ClientSecret != ""
}

// IdleTimeout returns the idle disconnect delay.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Playback.IdleTimeoutSec) * time.Second
}

// ResolveTimeout returns the per-query resolution deadline.
func (c *Config) ResolveTimeout() time.Duration {
	return time.Duration(c.Resolver.TimeoutSec) * time.Second
}

// StatusText returns the presence text shown by the bot.
func (c *Config) StatusText() string {
	if c.Discord.Status != "" {
		return c.Discord.Status
	}
	return c.Discord.Prefix + "help"
}
