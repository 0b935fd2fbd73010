package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/potbot/internal/domain"
)

// recover reloads persisted state and re-enters the handler graph at
// the point the process died. The set of accepted contributions is
// never lost or duplicated: the ledger is the source of truth and the
// draw replays deterministically from the persisted reveal.
func (e *Engine) recover(ctx context.Context) error {
	var current *domain.Round
	if err := e.persist(ctx, "store.loadCurrentRound", func(ctx context.Context) error {
		var lerr error
		current, lerr = e.store.LoadCurrentRound(ctx)
		return lerr
	}); err != nil {
		return err
	}

	if current == nil {
		slog.Info("no persisted round, opening the first one")
		return e.openNextRound(ctx, 1)
	}

	var ledger domain.Ledger
	if err := e.persist(ctx, "store.loadLedger", func(ctx context.Context) error {
		var lerr error
		ledger, lerr = e.store.LoadLedger(ctx, current.ID)
		return lerr
	}); err != nil {
		return err
	}

	// A ledger/bank mismatch means the store is corrupt; refuse to
	// resume rather than guess a repair.
	if err := ledger.Validate(current.ID, current.Bank); err != nil {
		return err
	}

	e.setRound(*current, ledger)
	slog.Info("round restored",
		"round", current.ID,
		"status", current.Status,
		"bank", current.Bank,
		"contributions", len(ledger),
	)
	if current.Status != domain.StatusSettled && len(ledger) > 0 {
		e.checkInventory(ctx, ledger)
	}

	switch current.Status {
	case domain.StatusCollecting:
		// The crash may have landed between admitting the threshold
		// contribution and persisting the lock, so re-run the admission
		// checks. A lock taken here gets a fresh deadline.
		e.afterAdmission(ctx)
		return nil

	case domain.StatusLocked:
		if !time.Now().UTC().Before(current.LockDeadline) {
			slog.Info("lock deadline already passed, drawing now", "round", current.ID)
			e.startDraw(ctx)
			return nil
		}
		e.armLockTimer(current.LockDeadline)
		return nil

	case domain.StatusDrawing:
		// Repeat the draw from the persisted reveal (never re-randomized)
		// and retry settlement.
		if err := e.settle(ctx); err != nil {
			slog.Error("settlement retry incomplete after restart", "round", current.ID, "err", err)
		}
		return nil

	case domain.StatusSettled:
		// Crashed between settling and opening the successor.
		return e.openNextRound(ctx, current.ID+1)

	default:
		return fmt.Errorf("engine.recover: round %d has unknown status %q", current.ID, current.Status)
	}
}

// checkInventory warns about ledgered assets missing from the bot's
// inventory, which points at outside interference while the process was
// down. Best effort, never fatal.
func (e *Engine) checkInventory(ctx context.Context, ledger domain.Ledger) {
	inv, err := e.trade.LoadInventory(ctx, e.cfg.CatalogID)
	if err != nil {
		slog.Warn("inventory check skipped", "err", err)
		return
	}
	held := make(map[string]bool, len(inv))
	for _, it := range inv {
		held[it.AssetID] = true
	}
	for _, c := range ledger {
		for _, it := range c.Items {
			if !held[it.AssetID] {
				slog.Warn("ledgered asset missing from inventory",
					"asset", it.AssetID, "round", c.RoundID, "owner", c.OwnerID)
			}
		}
	}
}
