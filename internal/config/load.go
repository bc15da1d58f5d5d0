package config

import (
	"fmt"
	"os"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file location when no -c flag is given.
const ConfigPathEnvVar = "PLEX_LIGHTS_CONFIG"

// DefaultConfigPaths are probed in order when no explicit path is provided.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"config.json",
	"/etc/plexlightsd/config.yaml",
	"/etc/plexlightsd/config.json",
}

// Load builds the configuration from three layers: built-in defaults, an
// optional config file and environment variables, each layer overriding the
// previous one. The result is validated before being returned.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), parserFor(path)); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// findConfigFile returns the first config file that exists, checking the
// PLEX_LIGHTS_CONFIG environment variable before the default locations.
// An empty return means run on defaults and environment alone.
func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func parserFor(path string) koanf.Parser {
	if strings.HasSuffix(path, ".json") {
		return kjson.Parser()
	}
	return kyaml.Parser()
}

// envTransformFunc maps environment variable names to config keys. Only the
// names listed here are honored; everything else in the environment is
// ignored so unrelated variables cannot leak into the configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		"plex_lights_port":          "server.port",
		"plex_lights_host":          "server.host",
		"plex_lights_webhook_path":  "server.webhook_path",
		"plex_lights_rate_limit":    "server.rate_limit_per_minute",
		"plex_lights_webhook_token": "webhook_token",
		"plex_lights_log_dir":       "log.dir",
		"plex_lights_dry_run":       "dry_run",
		"tv_player_name":            "tv_player_name",

		"hue_enabled":   "hue.enabled",
		"hue_bridge_ip": "hue.bridge_ip",
		"hue_api_user":  "hue.api_user",
		"hue_lights":    "hue.lights",

		"govee_enabled":             "govee.enabled",
		"govee_api_key":             "govee.api_key",
		"govee_device":              "govee.device",
		"govee_model":               "govee.model",
		"govee_requests_per_minute": "govee.requests_per_minute",

		"ha_enabled":      "home_assistant.enabled",
		"ha_base_url":     "home_assistant.base_url",
		"ha_token":        "home_assistant.token",
		"ha_verify_cert":  "home_assistant.verify_cert",
		"ha_entities":     "home_assistant.entities",
		"ha_scene_movie":  "home_assistant.scenes.movie",
		"ha_scene_pause":  "home_assistant.scenes.pause",
		"ha_scene_normal": "home_assistant.scenes.normal",

		"log_level":  "log.level",
		"log_format": "log.format",

		"dispatch_timeout":    "dispatch.timeout",
		"dispatch_concurrent": "dispatch.concurrent",

		"history_path":      "history.path",
		"history_retention": "history.retention",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
