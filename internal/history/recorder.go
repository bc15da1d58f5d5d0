package history

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/plexlights/plexlightsd/internal/config"
	"github.com/plexlights/plexlightsd/internal/metrics"
	"github.com/plexlights/plexlightsd/internal/mode"
	"github.com/plexlights/plexlightsd/internal/provider"
)

// job is one dispatch waiting to be persisted.
type job struct {
	dispatchID string
	mode       mode.Mode
	outcomes   []provider.Outcome
	dryRun     bool
}

// Recorder persists dispatches off the webhook request path. Writes go
// through a bounded queue; a full queue drops records rather than blocking
// the handler.
type Recorder struct {
	store *Store
	queue chan job
	wg    sync.WaitGroup

	// Shutdown signaling - closing this channel signals producers to stop.
	// Using a channel in select is race-free (unlike mutex + bool).
	closing   chan struct{}
	closeOnce sync.Once

	retention       time.Duration
	cleanupInterval time.Duration
}

// NewRecorder starts the write worker and, when retention is set, the
// periodic cleanup.
func NewRecorder(store *Store, cfg config.HistoryConfig) *Recorder {
	r := &Recorder{
		store:           store,
		queue:           make(chan job, cfg.QueueSize),
		closing:         make(chan struct{}),
		retention:       cfg.Retention,
		cleanupInterval: cfg.CleanupInterval,
	}

	r.wg.Add(1)
	go r.worker()

	if r.retention > 0 {
		r.wg.Add(1)
		go r.pruner()
	}

	log.Debug().Int("queue_size", cfg.QueueSize).Msg("History recorder started")
	return r
}

// worker writes queued dispatches to the store. On shutdown it drains what
// is already queued before exiting.
func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case j := <-r.queue:
			r.write(j)
		case <-r.closing:
			for {
				select {
				case j := <-r.queue:
					r.write(j)
				default:
					return
				}
			}
		}
	}
}

// write persists one dispatch, containing storage panics.
func (r *Recorder) write(j job) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Interface("panic", rec).
				Str("dispatch_id", j.dispatchID).
				Msg("History write panicked")
		}
	}()
	if err := r.store.Append(j.dispatchID, j.mode, j.outcomes, j.dryRun); err != nil {
		log.Error().Err(err).Str("dispatch_id", j.dispatchID).Msg("Failed to record dispatch history")
	}
}

// pruner applies the retention policy on the cleanup interval.
func (r *Recorder) pruner() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.closing:
			return
		case <-ticker.C:
			deleted, err := r.store.DeleteOlderThan(r.retention)
			if err != nil {
				log.Error().Err(err).Msg("History retention cleanup failed")
				continue
			}
			if deleted > 0 {
				log.Debug().Int64("deleted", deleted).Msg("Old history records deleted")
			}
		}
	}
}

// Record queues one dispatch for persistence.
// Non-blocking: if the queue is full or the recorder is closing, the record
// is dropped with a warning.
func (r *Recorder) Record(dispatchID string, m mode.Mode, outcomes []provider.Outcome, dryRun bool) {
	if len(outcomes) == 0 {
		return
	}

	select {
	case <-r.closing:
		log.Warn().Str("dispatch_id", dispatchID).Msg("History recorder closing, dropping record")
		metrics.RecordHistoryDrop()
	case r.queue <- job{dispatchID: dispatchID, mode: m, outcomes: outcomes, dryRun: dryRun}:
		// Successfully queued
	default:
		// Queue full - drop record with warning
		log.Warn().Str("dispatch_id", dispatchID).Msg("History queue full, dropping record")
		metrics.RecordHistoryDrop()
	}
}

// Close shuts down the recorder gracefully.
// Signals producers to stop, then waits for the worker to drain the queue
// until ctx expires. The queue channel stays open so a straggling Record can
// never hit a closed channel.
func (r *Recorder) Close(ctx context.Context) {
	r.closeOnce.Do(func() {
		close(r.closing)
	})

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Debug().Msg("History recorder stopped gracefully")
	case <-ctx.Done():
		log.Warn().Msg("History recorder shutdown timed out, some records may be lost")
	}
}
