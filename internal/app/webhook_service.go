package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/plexlights/plexlightsd/internal/config"
	"github.com/plexlights/plexlightsd/internal/dispatch"
	"github.com/plexlights/plexlightsd/internal/history"
	"github.com/plexlights/plexlightsd/internal/webhook"
)

// WebhookService wraps the webhook HTTP server.
type WebhookService struct {
	server *webhook.Server
}

// NewWebhookService creates a new WebhookService.
func NewWebhookService(cfg *config.Config, dispatcher *dispatch.Dispatcher, store *history.Store, recorder *history.Recorder) *WebhookService {
	return &WebhookService{
		server: webhook.NewServer(cfg, dispatcher, store, recorder),
	}
}

// Start begins serving in the background. A listener failure is fatal: the
// daemon is useless without its webhook endpoint.
func (s *WebhookService) Start(ctx context.Context, onFatalError func(error)) {
	go func() {
		if err := s.server.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Webhook server error")
			onFatalError(err)
		}
	}()
}
