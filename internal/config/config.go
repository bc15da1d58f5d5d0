// Package config holds the immutable process configuration: provider
// credentials, per-mode lighting settings and service tuning. It is loaded
// once at startup and never mutated afterwards.
package config

import (
	"time"

	"github.com/plexlights/plexlightsd/internal/mode"
)

// Config represents the application configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Log           LogConfig           `koanf:"log"`
	WebhookToken  string              `koanf:"webhook_token"`
	TVPlayerName  string              `koanf:"tv_player_name"`
	DryRun        bool                `koanf:"dry_run"`
	Hue           HueConfig           `koanf:"hue"`
	Govee         GoveeConfig         `koanf:"govee"`
	HomeAssistant HomeAssistantConfig `koanf:"home_assistant"`
	Modes         ModesConfig         `koanf:"modes"`
	Dispatch      DispatchConfig      `koanf:"dispatch"`
	History       HistoryConfig       `koanf:"history"`
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Host               string        `koanf:"host"`
	Port               int           `koanf:"port"`
	WebhookPath        string        `koanf:"webhook_path"`
	RateLimitPerMinute int           `koanf:"rate_limit_per_minute"` // 0 disables rate limiting
	ShutdownTimeout    time.Duration `koanf:"shutdown_timeout"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // console or json
	Colors bool   `koanf:"colors"`
	Dir    string `koanf:"dir"` // optional file sink directory, empty = stderr only
}

// HueConfig contains Philips Hue bridge settings.
type HueConfig struct {
	Enabled  bool   `koanf:"enabled"`
	BridgeIP string `koanf:"bridge_ip"`
	APIUser  string `koanf:"api_user"`
	Lights   []int  `koanf:"lights"`
}

// GoveeConfig contains Govee cloud API settings.
type GoveeConfig struct {
	Enabled           bool   `koanf:"enabled"`
	APIKey            string `koanf:"api_key"`
	Device            string `koanf:"device"`
	Model             string `koanf:"model"`
	RequestsPerMinute int    `koanf:"requests_per_minute"` // client-side cloud API limit, 0 = unlimited
}

// HomeAssistantConfig contains Home Assistant REST API settings. Lights are
// driven either directly through the entity list or through per-mode scenes;
// a configured scene takes the mode over entirely.
type HomeAssistantConfig struct {
	Enabled    bool     `koanf:"enabled"`
	BaseURL    string   `koanf:"base_url"`
	Token      string   `koanf:"token"`
	VerifyCert bool     `koanf:"verify_cert"`
	Entities   []string `koanf:"entities"`
	Scenes     SceneMap `koanf:"scenes"`
}

// SceneMap maps lighting modes to Home Assistant scene entity IDs.
type SceneMap struct {
	Movie  string `koanf:"movie"`
	Pause  string `koanf:"pause"`
	Normal string `koanf:"normal"`
}

// For returns the scene entity configured for a mode, or "" when none is.
func (s SceneMap) For(m mode.Mode) string {
	switch m {
	case mode.Movie:
		return s.Movie
	case mode.Pause:
		return s.Pause
	case mode.Normal:
		return s.Normal
	default:
		return ""
	}
}

// ModesConfig holds the lighting settings for each resolvable mode.
type ModesConfig struct {
	Movie  ModeSettings `koanf:"movie"`
	Pause  ModeSettings `koanf:"pause"`
	Normal ModeSettings `koanf:"normal"`
}

// For returns the settings for a mode.
func (m ModesConfig) For(md mode.Mode) ModeSettings {
	switch md {
	case mode.Movie:
		return m.Movie
	case mode.Pause:
		return m.Pause
	case mode.Normal:
		return m.Normal
	default:
		// Ignore never reaches a settings lookup; the dispatcher filters it.
		return ModeSettings{}
	}
}

// ModeSettings carries the per-provider lighting parameters for one mode.
// Ranges are enforced at config validation time, never at dispatch time.
type ModeSettings struct {
	HueBrightness     int  `koanf:"hue_brightness" validate:"min=1,max=254"`
	HueColorTemp      int  `koanf:"hue_color_temp" validate:"min=153,max=500"` // mired
	GoveeBrightness   int  `koanf:"govee_brightness" validate:"min=0,max=100"`
	GoveeColor        *RGB `koanf:"govee_color"`
	HABrightnessPct   int  `koanf:"ha_brightness_pct" validate:"min=0,max=100"`
	HAColorTempKelvin int  `koanf:"ha_color_temp_kelvin" validate:"omitempty,min=2000,max=6535"`
	HAColor           *RGB `koanf:"ha_color"` // when set, takes precedence over the Kelvin temperature
}

// RGB is a color triplet. Channels are plain ints so that out-of-range config
// values fail validation instead of silently wrapping.
type RGB struct {
	R int `koanf:"r" validate:"min=0,max=255"`
	G int `koanf:"g" validate:"min=0,max=255"`
	B int `koanf:"b" validate:"min=0,max=255"`
}

// DispatchConfig tunes provider fan-out behavior.
type DispatchConfig struct {
	Timeout    time.Duration `koanf:"timeout"`    // per provider call
	Concurrent bool          `koanf:"concurrent"` // fan out to providers in parallel
}

// HistoryConfig contains dispatch history storage settings.
type HistoryConfig struct {
	Path            string        `koanf:"path"` // sqlite file, empty disables history
	Retention       time.Duration `koanf:"retention"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
	QueueSize       int           `koanf:"queue_size"`
}

// defaultConfig returns the built-in defaults. They are applied first, then
// overridden by the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               32500,
			WebhookPath:        "/",
			RateLimitPerMinute: 0,
			ShutdownTimeout:    5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
			Colors: true,
		},
		Hue: HueConfig{
			Enabled: false,
		},
		Govee: GoveeConfig{
			Enabled:           false,
			RequestsPerMinute: 60,
		},
		HomeAssistant: HomeAssistantConfig{
			Enabled:    false,
			VerifyCert: true,
		},
		Modes: ModesConfig{
			Movie: ModeSettings{
				HueBrightness:     13,
				HueColorTemp:      500,
				GoveeBrightness:   5,
				GoveeColor:        &RGB{R: 255, G: 120, B: 20},
				HABrightnessPct:   5,
				HAColorTempKelvin: 2000,
			},
			Pause: ModeSettings{
				HueBrightness:     77,
				HueColorTemp:      400,
				GoveeBrightness:   25,
				GoveeColor:        &RGB{R: 255, G: 160, B: 60},
				HABrightnessPct:   30,
				HAColorTempKelvin: 2500,
			},
			Normal: ModeSettings{
				HueBrightness:     254,
				HueColorTemp:      366,
				GoveeBrightness:   100,
				GoveeColor:        &RGB{R: 255, G: 200, B: 120},
				HABrightnessPct:   100,
				HAColorTempKelvin: 2732,
			},
		},
		Dispatch: DispatchConfig{
			Timeout:    10 * time.Second,
			Concurrent: false,
		},
		History: HistoryConfig{
			Path:            "",
			Retention:       30 * 24 * time.Hour,
			CleanupInterval: 24 * time.Hour,
			QueueSize:       100,
		},
	}
}
