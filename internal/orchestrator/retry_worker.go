package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/socialagent/internal/integrations"
	"github.com/nextlevelbuilder/socialagent/internal/worldstate"
)

// MaxUndecryptableRetries bounds how many times the retry worker
// re-requests a room key for one event before giving up on it
// entirely, per spec.md §8's "retry to max_retries then delete"
// testable scenario, generalizing the original bot's encryption.py
// retry loop.
const MaxUndecryptableRetries = 5

// RetryWorker periodically re-requests room keys for undecryptable
// events, independent of the orchestrator's own cycle so a slow or
// stalled decision cycle never delays key-request retries. It only
// calls read/mutate methods on worldstate.Store that are safe to use
// concurrently with the Orchestrator's own cycle goroutine, per
// spec.md §5's concurrency model (the store's mutex is the only shared
// state between them).
type RetryWorker struct {
	store     *worldstate.Store
	requester integrations.KeyRequester
	interval  time.Duration
}

// NewRetryWorker constructs a RetryWorker. interval defaults to 5
// minutes, matching spec.md §5's periodic undecryptable-event retry task.
func NewRetryWorker(store *worldstate.Store, requester integrations.KeyRequester, interval time.Duration) *RetryWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &RetryWorker{store: store, requester: requester, interval: interval}
}

// Run loops until ctx is canceled, retrying unresolved undecryptable
// events once per tick.
func (w *RetryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.retryOnce(ctx)
		}
	}
}

func (w *RetryWorker) retryOnce(ctx context.Context) {
	for _, ev := range w.store.UnresolvedUndecryptable() {
		if ev.RetryCount >= MaxUndecryptableRetries {
			slog.Warn("undecryptable event exceeded max retries, dropping",
				"event_id", ev.EventID, "channel_id", ev.ChannelID, "retry_count", ev.RetryCount)
			w.store.DeleteUndecryptable(ev.EventID)
			continue
		}
		reqCtx, cancel := context.WithTimeout(ctx, integrations.CallTimeout)
		err := w.requester.RequestRoomKey(reqCtx, ev.ChannelID, ev.EventID)
		cancel()
		if err != nil {
			slog.Warn("room key request failed", "event_id", ev.EventID, "error", err)
			continue
		}
		w.store.MarkUndecryptable(ev)
	}
}
