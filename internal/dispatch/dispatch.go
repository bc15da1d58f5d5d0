// Package dispatch fans a resolved lighting mode out to the enabled provider
// adapters and collects per-provider outcomes.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/plexlights/plexlightsd/internal/config"
	"github.com/plexlights/plexlightsd/internal/metrics"
	"github.com/plexlights/plexlightsd/internal/mode"
	"github.com/plexlights/plexlightsd/internal/provider"
)

// Dispatcher routes modes to a fixed adapter list. Adapter order is the
// outcome order, sequential or not.
type Dispatcher struct {
	adapters   []provider.Adapter
	modes      config.ModesConfig
	timeout    time.Duration
	concurrent bool
}

// New creates a dispatcher over the given adapters.
func New(adapters []provider.Adapter, modes config.ModesConfig, cfg config.DispatchConfig) *Dispatcher {
	return &Dispatcher{
		adapters:   adapters,
		modes:      modes,
		timeout:    cfg.Timeout,
		concurrent: cfg.Concurrent,
	}
}

// Dispatch applies the mode's settings through every adapter. Ignore
// dispatches nothing. A failing adapter never stops the others; each outcome
// stands on its own.
func (d *Dispatcher) Dispatch(ctx context.Context, m mode.Mode) []provider.Outcome {
	if m == mode.Ignore || len(d.adapters) == 0 {
		return nil
	}
	settings := d.modes.For(m)

	outcomes := make([]provider.Outcome, len(d.adapters))
	if d.concurrent {
		var wg sync.WaitGroup
		for i, a := range d.adapters {
			wg.Add(1)
			go func(i int, a provider.Adapter) {
				defer wg.Done()
				outcomes[i] = d.apply(ctx, a, m, settings)
			}(i, a)
		}
		wg.Wait()
	} else {
		for i, a := range d.adapters {
			outcomes[i] = d.apply(ctx, a, m, settings)
		}
	}
	return outcomes
}

// apply runs one adapter under the per-call timeout. A panicking adapter is
// converted into a failed outcome so the webhook handler keeps running.
func (d *Dispatcher) apply(ctx context.Context, a provider.Adapter, m mode.Mode, settings config.ModeSettings) (out provider.Outcome) {
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("provider", string(a.Kind())).
				Interface("panic", r).
				Msg("Provider adapter panicked")
			out = provider.Outcome{
				Provider: a.Kind(),
				Success:  false,
				Detail:   fmt.Sprintf("panic: %v", r),
			}
		}
		metrics.RecordDispatch(string(out.Provider), out.Success, time.Since(start))

		evt := log.Info()
		if !out.Success {
			evt = log.Warn()
		}
		evt.Str("provider", string(out.Provider)).
			Str("mode", m.String()).
			Bool("success", out.Success).
			Str("detail", out.Detail).
			Dur("elapsed", time.Since(start)).
			Msg("Provider dispatch finished")
	}()

	return a.Apply(callCtx, m, settings)
}
