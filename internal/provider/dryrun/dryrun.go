// Package dryrun wraps a provider adapter so dispatches are logged instead of
// sent to devices.
package dryrun

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/plexlights/plexlightsd/internal/config"
	"github.com/plexlights/plexlightsd/internal/mode"
	"github.com/plexlights/plexlightsd/internal/provider"
)

// Adapter delegates planning to the wrapped adapter and reports success
// without ever calling it.
type Adapter struct {
	inner provider.Adapter
}

// Wrap returns a dry-run stand-in for inner.
func Wrap(inner provider.Adapter) *Adapter {
	return &Adapter{inner: inner}
}

// Kind identifies the wrapped adapter.
func (a *Adapter) Kind() provider.Kind {
	return a.inner.Kind()
}

// Plan delegates to the wrapped adapter.
func (a *Adapter) Plan(m mode.Mode, settings config.ModeSettings) string {
	return a.inner.Plan(m, settings)
}

// Apply logs what the wrapped adapter would do and succeeds without doing it.
func (a *Adapter) Apply(_ context.Context, m mode.Mode, settings config.ModeSettings) provider.Outcome {
	plan := a.inner.Plan(m, settings)
	log.Info().
		Str("provider", string(a.inner.Kind())).
		Str("mode", m.String()).
		Str("plan", plan).
		Msg("Dry run, skipping provider call")

	return provider.Outcome{
		Provider: a.inner.Kind(),
		Success:  true,
		Detail:   "dry-run: " + plan,
	}
}
