package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator returns the shared validator instance. Violations report koanf
// key names so messages point at the config file keys users actually write.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("koanf"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks the configuration and returns the first violation found.
// Disabled provider sections are not required to carry credentials, and a
// configuration with every provider disabled is still valid.
func (c *Config) Validate() error {
	if err := c.Server.validate(); err != nil {
		return err
	}
	if err := c.Log.validate(); err != nil {
		return err
	}
	if err := c.Hue.validate(); err != nil {
		return err
	}
	if err := c.Govee.validate(); err != nil {
		return err
	}
	if err := c.HomeAssistant.validate(); err != nil {
		return err
	}
	if err := c.Modes.validate(); err != nil {
		return err
	}
	if err := c.Dispatch.validate(); err != nil {
		return err
	}
	if err := c.History.validate(); err != nil {
		return err
	}
	return nil
}

func (s ServerConfig) validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", s.Port)
	}
	if s.RateLimitPerMinute < 0 {
		return fmt.Errorf("server.rate_limit_per_minute must not be negative, got %d", s.RateLimitPerMinute)
	}
	if !strings.HasPrefix(s.WebhookPath, "/") {
		return fmt.Errorf("server.webhook_path must start with /, got %q", s.WebhookPath)
	}
	if s.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive, got %s", s.ShutdownTimeout)
	}
	return nil
}

func (l LogConfig) validate() error {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", l.Level)
	}
	switch l.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", l.Format)
	}
	return nil
}

func (h HueConfig) validate() error {
	if !h.Enabled {
		return nil
	}
	if h.BridgeIP == "" {
		return errors.New("hue.bridge_ip is required when hue.enabled=true")
	}
	if h.APIUser == "" {
		return errors.New("hue.api_user is required when hue.enabled=true")
	}
	if len(h.Lights) == 0 {
		return errors.New("hue.lights must be a non-empty list when hue.enabled=true")
	}
	for i, id := range h.Lights {
		if id < 1 {
			return fmt.Errorf("hue.lights[%d] must be a positive light ID, got %d", i, id)
		}
	}
	return nil
}

func (g GoveeConfig) validate() error {
	if g.RequestsPerMinute < 0 {
		return fmt.Errorf("govee.requests_per_minute must not be negative, got %d", g.RequestsPerMinute)
	}
	if !g.Enabled {
		return nil
	}
	if g.APIKey == "" {
		return errors.New("govee.api_key is required when govee.enabled=true")
	}
	if g.Device == "" {
		return errors.New("govee.device is required when govee.enabled=true")
	}
	if g.Model == "" {
		return errors.New("govee.model is required when govee.enabled=true")
	}
	return nil
}

func (h HomeAssistantConfig) validate() error {
	if !h.Enabled {
		return nil
	}
	if h.BaseURL == "" {
		return errors.New("home_assistant.base_url is required when home_assistant.enabled=true")
	}
	if !strings.HasPrefix(h.BaseURL, "http://") && !strings.HasPrefix(h.BaseURL, "https://") {
		return fmt.Errorf("home_assistant.base_url must start with http:// or https://, got %q", h.BaseURL)
	}
	if h.Token == "" {
		return errors.New("home_assistant.token is required when home_assistant.enabled=true")
	}
	return nil
}

// validate checks the lighting parameter ranges for every mode. Ranges are
// enforced here regardless of which providers are enabled, so toggling a
// provider on later cannot surface a latent bad value.
func (m ModesConfig) validate() error {
	for _, entry := range []struct {
		name     string
		settings ModeSettings
	}{
		{"movie", m.Movie},
		{"pause", m.Pause},
		{"normal", m.Normal},
	} {
		if err := validateModeSettings(entry.name, entry.settings); err != nil {
			return err
		}
	}
	return nil
}

func validateModeSettings(name string, ms ModeSettings) error {
	err := getValidator().Struct(ms)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("modes.%s: %v", name, err)
	}
	fe := verrs[0]
	field := strings.TrimPrefix(fe.Namespace(), "ModeSettings.")
	return fmt.Errorf("modes.%s.%s %s", name, field, violationMessage(fe))
}

func violationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min", "gte":
		return fmt.Sprintf("must be at least %s, got %v", fe.Param(), fe.Value())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s, got %v", fe.Param(), fe.Value())
	case "required":
		return "is required"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func (d DispatchConfig) validate() error {
	if d.Timeout <= 0 {
		return fmt.Errorf("dispatch.timeout must be positive, got %s", d.Timeout)
	}
	return nil
}

func (h HistoryConfig) validate() error {
	if h.Retention < 0 {
		return fmt.Errorf("history.retention must not be negative, got %s", h.Retention)
	}
	if h.Path == "" {
		return nil
	}
	if h.CleanupInterval <= 0 {
		return fmt.Errorf("history.cleanup_interval must be positive, got %s", h.CleanupInterval)
	}
	if h.QueueSize < 1 {
		return fmt.Errorf("history.queue_size must be at least 1, got %d", h.QueueSize)
	}
	return nil
}
