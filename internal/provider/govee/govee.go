// Package govee drives a Govee device through the Govee cloud API.
package govee

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/plexlights/plexlightsd/internal/config"
	"github.com/plexlights/plexlightsd/internal/mode"
	"github.com/plexlights/plexlightsd/internal/provider"
)

const controlURL = "https://openapi.api.govee.com/router/api/v1/device/control"

// Adapter applies mode settings to one Govee device. Color and brightness are
// separate capability writes on the wire and are attempted independently.
type Adapter struct {
	apiKey  string
	device  string
	model   string
	url     string
	client  *http.Client
	limiter *rate.Limiter
}

// New creates a Govee adapter from validated provider config.
func New(cfg config.GoveeConfig) *Adapter {
	// The cloud API throttles per key; pace requests client-side so a burst
	// of webhooks cannot trip the server-side limit.
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 2)
	}

	return &Adapter{
		apiKey: cfg.APIKey,
		device: cfg.Device,
		model:  cfg.Model,
		url:    controlURL,
		// Request deadlines come from the dispatch context.
		client:  &http.Client{},
		limiter: limiter,
	}
}

// Kind identifies the adapter.
func (a *Adapter) Kind() provider.Kind {
	return provider.KindGovee
}

type capability struct {
	Type     string `json:"type"`
	Instance string `json:"instance"`
	Value    int    `json:"value"`
}

type controlPayload struct {
	SKU        string     `json:"sku"`
	Device     string     `json:"device"`
	Capability capability `json:"capability"`
}

type controlRequest struct {
	RequestID string         `json:"requestId"`
	Payload   controlPayload `json:"payload"`
}

// rgbValue packs a color into the single integer the Govee API expects.
func rgbValue(c config.RGB) int {
	return c.R<<16 | c.G<<8 | c.B
}

// capabilities returns the writes for one mode, color before brightness.
func capabilities(settings config.ModeSettings) []capability {
	var caps []capability
	if settings.GoveeColor != nil {
		caps = append(caps, capability{
			Type:     "devices.capabilities.color_setting",
			Instance: "colorRgb",
			Value:    rgbValue(*settings.GoveeColor),
		})
	}
	caps = append(caps, capability{
		Type:     "devices.capabilities.range",
		Instance: "brightness",
		Value:    settings.GoveeBrightness,
	})
	return caps
}

// Plan describes what Apply would do, for dry-run logging.
func (a *Adapter) Plan(_ mode.Mode, settings config.ModeSettings) string {
	if settings.GoveeColor != nil {
		c := settings.GoveeColor
		return fmt.Sprintf("set device %s (%s) to color=#%02X%02X%02X brightness=%d",
			a.device, a.model, c.R, c.G, c.B, settings.GoveeBrightness)
	}
	return fmt.Sprintf("set device %s (%s) to brightness=%d", a.device, a.model, settings.GoveeBrightness)
}

// Apply writes the mode's color and brightness to the device. The writes are
// independent: a failed color write does not stop the brightness write. The
// outcome fails if any write failed.
func (a *Adapter) Apply(ctx context.Context, _ mode.Mode, settings config.ModeSettings) provider.Outcome {
	var applied, failures []string
	for _, c := range capabilities(settings) {
		if err := a.control(ctx, c); err != nil {
			log.Error().Err(err).Str("instance", c.Instance).Msg("Govee capability write failed")
			failures = append(failures, fmt.Sprintf("%s: %v", c.Instance, err))
			continue
		}
		log.Debug().Str("instance", c.Instance).Int("value", c.Value).Msg("Govee capability applied")
		applied = append(applied, c.Instance)
	}

	if len(failures) > 0 {
		return provider.Outcome{
			Provider: provider.KindGovee,
			Success:  false,
			Detail:   strings.Join(failures, "; "),
		}
	}
	return provider.Outcome{
		Provider: provider.KindGovee,
		Success:  true,
		Detail:   strings.Join(applied, " and ") + " updated",
	}
}

// control performs one capability write against the cloud API.
func (a *Adapter) control(ctx context.Context, c capability) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	reqBody, err := json.Marshal(controlRequest{
		RequestID: uuid.NewString(),
		Payload: controlPayload{
			SKU:        a.model,
			Device:     a.device,
			Capability: c,
		},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Govee-API-Key", a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	// The API reports failures inside a 200 response. Absent and zero codes
	// both mean success, as does an explicit 200.
	var result struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Code != 0 && result.Code != 200 {
		return fmt.Errorf("govee code %d: %s", result.Code, result.Message)
	}
	return nil
}
