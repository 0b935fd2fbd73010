package engine

import (
	"context"
	"log/slog"

	"github.com/alejandrodnm/potbot/internal/domain"
	"github.com/alejandrodnm/potbot/internal/ports"
)

// reconcile checks every queued transfer against the external system's
// authoritative state and clears the ones that are no longer active.
// It runs on startup and on a timer, and is idempotent throughout.
// A round stuck in drawing (a previous dispatch exhausted its retries)
// is also re-settled here, so the standing alert resolves itself once
// the gateway recovers.
func (e *Engine) reconcile(ctx context.Context) {
	entries, err := e.store.ListTransfers(ctx)
	if err != nil {
		slog.Warn("reconcile: listing transfers failed", "err", err)
		return
	}

	for _, entry := range entries {
		if entry.OfferID == "" {
			// Dispatch never completed; the settlement retry below (or
			// recovery) re-sends with the same key and fills this in.
			continue
		}
		state, err := e.offerState(ctx, entry.OfferID)
		if err != nil {
			slog.Warn("reconcile: state check failed", "offer", entry.OfferID, "err", err)
			continue
		}
		if state.Active() {
			continue
		}
		if err := e.persist(ctx, "store.dequeueTransfer", func(ctx context.Context) error {
			return e.store.DequeueTransfer(ctx, entry.ID)
		}); err != nil {
			return
		}
		slog.Info("transfer confirmed",
			"offer", entry.OfferID,
			"direction", entry.Direction,
			"state", state,
			"round", entry.RoundID,
		)
	}

	if e.round.Status == domain.StatusDrawing {
		if err := e.settle(ctx); err != nil {
			slog.Error("settlement retry incomplete", "round", e.round.ID, "err", err)
		}
	}
}

func (e *Engine) offerState(ctx context.Context, offerID string) (ports.OfferState, error) {
	var state ports.OfferState
	err := e.cfg.Retry.Do(ctx, "trade.offerState", func(ctx context.Context) error {
		var serr error
		state, serr = e.trade.OfferState(ctx, offerID)
		return serr
	})
	return state, err
}
