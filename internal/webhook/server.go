package webhook

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/plexlights/plexlightsd/internal/config"
	"github.com/plexlights/plexlightsd/internal/dispatch"
	"github.com/plexlights/plexlightsd/internal/history"
	"github.com/plexlights/plexlightsd/internal/metrics"
	"github.com/plexlights/plexlightsd/internal/mode"
)

// TokenHeader carries the shared webhook token. The token query parameter is
// accepted as an alternative for senders that cannot set headers.
const TokenHeader = "X-Plex-Lights-Token"

const (
	maxBodyBytes        = 1 << 20
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Server is the HTTP surface of the daemon: the webhook route plus health,
// history and metrics.
type Server struct {
	addr            string
	webhookPath     string
	token           string
	playerFilter    string
	dryRun          bool
	rateLimit       int
	shutdownTimeout time.Duration

	dispatcher *dispatch.Dispatcher
	store      *history.Store
	recorder   *history.Recorder

	httpServer *http.Server
}

// NewServer creates a webhook server. store and recorder are nil when dispatch
// history is disabled; the history route is then not registered.
func NewServer(cfg *config.Config, dispatcher *dispatch.Dispatcher, store *history.Store, recorder *history.Recorder) *Server {
	return &Server{
		addr:            fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		webhookPath:     cfg.Server.WebhookPath,
		token:           cfg.WebhookToken,
		playerFilter:    cfg.TVPlayerName,
		dryRun:          cfg.DryRun,
		rateLimit:       cfg.Server.RateLimitPerMinute,
		shutdownTimeout: cfg.Server.ShutdownTimeout,
		dispatcher:      dispatcher,
		store:           store,
		recorder:        recorder,
	}
}

// Handler builds the route tree. Exposed so tests can drive the full
// middleware stack through httptest without binding a listener.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(requestID)
	r.Use(chimiddleware.Recoverer)

	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleNotFound)

	r.Get("/health", handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	if s.store != nil {
		r.Get("/history", s.handleHistory)
	}

	r.Group(func(r chi.Router) {
		if s.rateLimit > 0 {
			r.Use(httprate.LimitByIP(s.rateLimit, time.Minute))
		}
		r.Post(s.webhookPath, s.handleWebhook)
	})

	return r
}

// Run starts the webhook server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	log.Info().Str("addr", s.addr).Str("webhook_path", s.webhookPath).Msg("Starting webhook server")

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Webhook server shutdown error")
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// handleWebhook authenticates, parses and resolves a playback notification,
// then dispatches the resolved mode. Provider failures never change the
// response: the sender retrying would not fix a lamp.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.token != "" && !s.authorized(r) {
		log.Warn().Str("remote", r.RemoteAddr).Msg("Rejected webhook with invalid token")
		metrics.RecordWebhook("forbidden")
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid token"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		// Oversized or truncated bodies degrade to an empty payload and
		// resolve to an ignored event.
		log.Warn().Err(err).Msg("Failed to read webhook body")
		body = nil
	}

	ev := EventFromPayload(ParsePayload(body))
	log.Info().
		Str("event", ev.Event).
		Str("player", ev.Player).
		Str("title", ev.Title).
		Str("media_type", ev.MediaType).
		Msg("Webhook event received")

	m := mode.Resolve(ev, s.playerFilter)
	if m == mode.Ignore {
		status := s.ignoreStatus(ev)
		log.Info().Str("status", status).Str("event", ev.Event).Msg("Webhook ignored")
		metrics.RecordWebhook(status)
		writeJSON(w, http.StatusOK, map[string]string{"status": status})
		return
	}

	// The lights must settle even when the sender hangs up early; adapter
	// calls are bounded by the dispatcher's per-call timeout instead.
	dispatchID := requestIDFrom(r.Context())
	outcomes := s.dispatcher.Dispatch(context.WithoutCancel(r.Context()), m)

	failed := 0
	for _, out := range outcomes {
		if !out.Success {
			failed++
		}
	}
	log.Info().
		Str("dispatch_id", dispatchID).
		Str("mode", m.String()).
		Int("providers", len(outcomes)).
		Int("failed", failed).
		Msg("Dispatch finished")

	if s.recorder != nil {
		s.recorder.Record(dispatchID, m, outcomes, s.dryRun)
	}

	metrics.RecordWebhook("ok")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ignoreStatus names the first resolution rule that discarded the event,
// mirroring the rule order of mode.Resolve.
func (s *Server) ignoreStatus(ev mode.Event) string {
	if !mode.SupportedMediaType(ev.MediaType) {
		return "ignored_media_type"
	}
	if s.playerFilter != "" && ev.Player != s.playerFilter {
		return "ignored_player"
	}
	return "ignored_event"
}

func (s *Server) authorized(r *http.Request) bool {
	if strings.TrimSpace(r.Header.Get(TokenHeader)) == s.token {
		return true
	}
	return strings.TrimSpace(r.URL.Query().Get("token")) == s.token
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.token != "" && !s.authorized(r) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid token"})
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := s.store.Recent(limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read dispatch history")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "history unavailable"})
		return
	}
	if records == nil {
		records = []*history.Record{}
	}
	writeJSON(w, http.StatusOK, map[string][]*history.Record{"history": records})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}

type ctxKey int

const requestIDKey ctxKey = 0

// requestID tags every request with a fresh uuid, echoed in the X-Request-ID
// response header. Webhook dispatches reuse it as their dispatch ID, so a
// response can be matched to its history rows.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
