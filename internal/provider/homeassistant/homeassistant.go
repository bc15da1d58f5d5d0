// Package homeassistant drives lights through the Home Assistant REST API,
// either by activating a per-mode scene or by turning on entities directly.
package homeassistant

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/plexlights/plexlightsd/internal/config"
	"github.com/plexlights/plexlightsd/internal/mode"
	"github.com/plexlights/plexlightsd/internal/provider"
)

// Adapter applies mode settings through a Home Assistant instance.
type Adapter struct {
	baseURL  string
	token    string
	entities []string
	scenes   config.SceneMap
	client   *http.Client
}

// New creates a Home Assistant adapter from validated provider config.
func New(cfg config.HomeAssistantConfig) *Adapter {
	transport := &http.Transport{}
	if !cfg.VerifyCert {
		// Self-hosted instances commonly run on self-signed certs.
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Adapter{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		token:    cfg.Token,
		entities: cfg.Entities,
		scenes:   cfg.Scenes,
		client:   &http.Client{Transport: transport},
	}
}

// Kind identifies the adapter.
func (a *Adapter) Kind() provider.Kind {
	return provider.KindHomeAssistant
}

type turnOnData struct {
	EntityID        string `json:"entity_id"`
	BrightnessPct   int    `json:"brightness_pct"`
	RGBColor        []int  `json:"rgb_color,omitempty"`
	ColorTempKelvin int    `json:"color_temp_kelvin,omitempty"`
}

type sceneData struct {
	EntityID string `json:"entity_id"`
}

// dataFor builds the light.turn_on payload for one entity. An explicit color
// wins over the Kelvin temperature; a zero Kelvin means no temperature at all.
func dataFor(entity string, settings config.ModeSettings) turnOnData {
	data := turnOnData{
		EntityID:      entity,
		BrightnessPct: settings.HABrightnessPct,
	}
	if settings.HAColor != nil {
		data.RGBColor = []int{settings.HAColor.R, settings.HAColor.G, settings.HAColor.B}
	} else if settings.HAColorTempKelvin > 0 {
		data.ColorTempKelvin = settings.HAColorTempKelvin
	}
	return data
}

// Plan describes what Apply would do, for dry-run logging.
func (a *Adapter) Plan(m mode.Mode, settings config.ModeSettings) string {
	if scene := a.scenes.For(m); scene != "" {
		return fmt.Sprintf("activate scene %s", scene)
	}
	if settings.HAColor != nil {
		c := settings.HAColor
		return fmt.Sprintf("turn on %v at %d%% with rgb_color=[%d %d %d]",
			a.entities, settings.HABrightnessPct, c.R, c.G, c.B)
	}
	return fmt.Sprintf("turn on %v at %d%% with color_temp_kelvin=%d",
		a.entities, settings.HABrightnessPct, settings.HAColorTempKelvin)
}

// Apply activates the mode's scene when one is configured, otherwise turns on
// each configured entity with the mode's brightness and color. Entity failures
// are recorded and the remaining entities are still attempted.
func (a *Adapter) Apply(ctx context.Context, m mode.Mode, settings config.ModeSettings) provider.Outcome {
	if scene := a.scenes.For(m); scene != "" {
		if err := a.callService(ctx, "scene/turn_on", sceneData{EntityID: scene}); err != nil {
			log.Error().Err(err).Str("scene", scene).Msg("Failed to activate scene")
			return provider.Outcome{
				Provider: provider.KindHomeAssistant,
				Success:  false,
				Detail:   fmt.Sprintf("scene %s: %v", scene, err),
			}
		}
		log.Debug().Str("scene", scene).Msg("Scene activated")
		return provider.Outcome{
			Provider: provider.KindHomeAssistant,
			Success:  true,
			Detail:   fmt.Sprintf("scene %s activated", scene),
		}
	}

	var failures []string
	for _, entity := range a.entities {
		if err := a.callService(ctx, "light/turn_on", dataFor(entity, settings)); err != nil {
			log.Error().Err(err).Str("entity", entity).Msg("Failed to turn on entity")
			failures = append(failures, fmt.Sprintf("entity %s: %v", entity, err))
			continue
		}
		log.Debug().Str("entity", entity).Msg("Entity turned on")
	}

	if len(failures) > 0 {
		return provider.Outcome{
			Provider: provider.KindHomeAssistant,
			Success:  false,
			Detail:   strings.Join(failures, "; "),
		}
	}
	return provider.Outcome{
		Provider: provider.KindHomeAssistant,
		Success:  true,
		Detail:   fmt.Sprintf("%d entities updated", len(a.entities)),
	}
}

// callService POSTs to a Home Assistant service endpoint.
func (a *Adapter) callService(ctx context.Context, service string, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/services/%s", a.baseURL, service)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}
