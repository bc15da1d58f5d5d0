package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/plexlights/plexlightsd/internal/config"
	"github.com/plexlights/plexlightsd/internal/db"
	"github.com/plexlights/plexlightsd/internal/dispatch"
	"github.com/plexlights/plexlightsd/internal/history"
	"github.com/plexlights/plexlightsd/internal/provider"
	"github.com/plexlights/plexlightsd/internal/provider/dryrun"
	"github.com/plexlights/plexlightsd/internal/provider/govee"
	"github.com/plexlights/plexlightsd/internal/provider/homeassistant"
	"github.com/plexlights/plexlightsd/internal/provider/hue"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Dispatch history; all nil when history.path is unset
	DB       *db.DB
	History  *history.Store
	Recorder *history.Recorder

	Adapters   []provider.Adapter
	Dispatcher *dispatch.Dispatcher
	Webhook    *WebhookService
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	if cfg.History.Path != "" {
		database, err := db.Open(cfg.History.Path)
		if err != nil {
			return nil, err
		}
		s.DB = database
		s.History = history.New(database.DB)
		s.Recorder = history.NewRecorder(s.History, cfg.History)
		log.Info().Str("path", cfg.History.Path).Dur("retention", cfg.History.Retention).Msg("Dispatch history enabled")
	}

	s.Adapters = buildAdapters(cfg)
	s.Dispatcher = dispatch.New(s.Adapters, cfg.Modes, cfg.Dispatch)
	s.Webhook = NewWebhookService(cfg, s.Dispatcher, s.History, s.Recorder)

	return s, nil
}

// buildAdapters constructs one adapter per enabled provider. With dry_run set
// every adapter is wrapped at construction, so live and dry dispatches share
// the same parameter computation up to the final wire call.
func buildAdapters(cfg *config.Config) []provider.Adapter {
	var adapters []provider.Adapter

	if cfg.Hue.Enabled {
		log.Info().
			Str("bridge", cfg.Hue.BridgeIP).
			Ints("lights", cfg.Hue.Lights).
			Msg("Hue provider enabled")
		adapters = append(adapters, maybeDryRun(cfg, hue.New(cfg.Hue)))
	}

	if cfg.Govee.Enabled {
		log.Info().
			Str("device", cfg.Govee.Device).
			Str("model", cfg.Govee.Model).
			Msg("Govee provider enabled")
		adapters = append(adapters, maybeDryRun(cfg, govee.New(cfg.Govee)))
	}

	if cfg.HomeAssistant.Enabled {
		log.Info().
			Str("base_url", cfg.HomeAssistant.BaseURL).
			Int("entities", len(cfg.HomeAssistant.Entities)).
			Int("scenes", sceneCount(cfg.HomeAssistant.Scenes)).
			Msg("Home Assistant provider enabled")
		adapters = append(adapters, maybeDryRun(cfg, homeassistant.New(cfg.HomeAssistant)))
	}

	if len(adapters) == 0 {
		log.Warn().Msg("No providers enabled, webhooks will be accepted but change nothing")
	}

	return adapters
}

func maybeDryRun(cfg *config.Config, a provider.Adapter) provider.Adapter {
	if cfg.DryRun {
		return dryrun.Wrap(a)
	}
	return a
}

func sceneCount(scenes config.SceneMap) int {
	count := 0
	for _, scene := range []string{scenes.Movie, scenes.Pause, scenes.Normal} {
		if scene != "" {
			count++
		}
	}
	return count
}

// Start starts all services in the correct order.
// The onFatalError callback is called when a service fails irrecoverably.
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	if s.cfg.WebhookToken != "" {
		log.Info().Msg("Webhook token auth is enabled")
	}

	if s.cfg.TVPlayerName != "" {
		log.Info().Str("player", s.cfg.TVPlayerName).Msg("Filtering for TV player")
	} else {
		log.Info().Msg("No player filter. Will trigger on ALL players.")
		log.Info().Msg("Set tv_player_name in the config after discovering your player name.")
	}

	if s.cfg.DryRun {
		log.Info().Msg("Dry run enabled, provider calls are logged but never sent")
	}

	s.Webhook.Start(ctx, onFatalError)

	return nil
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	s.Close()
	return nil
}

// Close releases all resources. The recorder drains before the database
// closes so queued outcomes are not lost on shutdown.
func (s *Services) Close() {
	if s.Recorder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		s.Recorder.Close(ctx)
		cancel()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
