// Package provider defines the contract shared by all lighting backends.
package provider

import (
	"context"

	"github.com/plexlights/plexlightsd/internal/config"
	"github.com/plexlights/plexlightsd/internal/mode"
)

// Kind identifies a lighting backend.
type Kind string

const (
	KindHue           Kind = "hue"
	KindGovee         Kind = "govee"
	KindHomeAssistant Kind = "home_assistant"
)

// Outcome is the result of one adapter invocation. A failed outcome carries a
// human-readable detail; it never escalates into a request-level failure.
type Outcome struct {
	Provider Kind   `json:"provider"`
	Success  bool   `json:"success"`
	Detail   string `json:"detail"`
}

// Adapter translates an abstract lighting mode into one backend's wire calls.
//
// Apply must not panic or leak errors: every provider-side failure (timeout,
// HTTP status, malformed or error response) is converted into a failed Outcome.
// Plan describes the calls Apply would make with the same inputs, without
// performing them; the dry-run stand-in logs Plan output so simulated and live
// runs share the same parameter computation.
type Adapter interface {
	Kind() Kind
	Apply(ctx context.Context, m mode.Mode, settings config.ModeSettings) Outcome
	Plan(m mode.Mode, settings config.ModeSettings) string
}
