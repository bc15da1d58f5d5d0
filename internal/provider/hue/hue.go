// Package hue drives Philips Hue lights through the bridge's local HTTP API.
package hue

import (
	"context"
	"fmt"
	"strings"

	"github.com/amimof/huego"
	"github.com/rs/zerolog/log"

	"github.com/plexlights/plexlightsd/internal/config"
	"github.com/plexlights/plexlightsd/internal/mode"
	"github.com/plexlights/plexlightsd/internal/provider"
)

// Adapter applies mode settings to a fixed set of Hue lights.
type Adapter struct {
	bridge *huego.Bridge
	lights []int
}

// New creates a Hue adapter from validated provider config.
func New(cfg config.HueConfig) *Adapter {
	return &Adapter{
		bridge: huego.New(cfg.BridgeIP, cfg.APIUser),
		lights: cfg.Lights,
	}
}

// Kind identifies the adapter.
func (a *Adapter) Kind() provider.Kind {
	return provider.KindHue
}

// stateFor maps mode settings onto a Hue light state. Lights are always
// turned on; dim modes are expressed through brightness, never power.
func stateFor(settings config.ModeSettings) huego.State {
	return huego.State{
		On:  true,
		Bri: uint8(settings.HueBrightness),
		Ct:  uint16(settings.HueColorTemp),
	}
}

// Plan describes what Apply would do, for dry-run logging.
func (a *Adapter) Plan(_ mode.Mode, settings config.ModeSettings) string {
	return fmt.Sprintf("set lights %v to on with bri=%d ct=%d",
		a.lights, settings.HueBrightness, settings.HueColorTemp)
}

// Apply sets every configured light to the mode's brightness and color
// temperature. A failing light is recorded and the rest are still attempted;
// the outcome fails if any light could not be updated.
func (a *Adapter) Apply(ctx context.Context, _ mode.Mode, settings config.ModeSettings) provider.Outcome {
	state := stateFor(settings)

	var failures []string
	for _, id := range a.lights {
		if _, err := a.bridge.SetLightStateContext(ctx, id, state); err != nil {
			log.Error().Err(err).Int("light", id).Msg("Failed to set light state")
			failures = append(failures, fmt.Sprintf("light %d: %v", id, err))
			continue
		}
		log.Debug().
			Int("light", id).
			Uint8("bri", state.Bri).
			Uint16("ct", state.Ct).
			Msg("Light state applied")
	}

	if len(failures) > 0 {
		return provider.Outcome{
			Provider: provider.KindHue,
			Success:  false,
			Detail:   strings.Join(failures, "; "),
		}
	}
	return provider.Outcome{
		Provider: provider.KindHue,
		Success:  true,
		Detail:   fmt.Sprintf("%d lights updated", len(a.lights)),
	}
}
