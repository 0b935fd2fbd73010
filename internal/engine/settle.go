package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/potbot/internal/domain"
)

// onCountdownExpired closes the round when the lock countdown fires.
func (e *Engine) onCountdownExpired(ctx context.Context) {
	if e.round.Status != domain.StatusLocked {
		return
	}
	slog.Info("countdown expired", "round", e.round.ID, "bank", e.round.Bank)
	e.startDraw(ctx)
}

// startDraw advances the round to drawing and runs settlement. Once
// here there is no cancellation: the pipeline either completes or is
// resumed from persisted state after a restart.
func (e *Engine) startDraw(ctx context.Context) {
	e.stopLockTimer()
	if err := e.persist(ctx, "store.setRoundStatus", func(ctx context.Context) error {
		return e.store.SetRoundStatus(ctx, e.round.ID, domain.StatusDrawing)
	}); err != nil {
		return
	}
	e.setStatus(domain.StatusDrawing)

	if err := e.settle(ctx); err != nil {
		slog.Error("settlement incomplete, will retry", "round", e.round.ID, "err", err)
	}
}

// settle runs the draw and the payout. Every step is idempotent, so it
// can re-run after a crash or a failed dispatch: the draw re-evaluates
// to the same winner from the persisted reveal, the queue entry insert
// is keyed, and dispatch reuses the entry's idempotency key.
func (e *Engine) settle(ctx context.Context) error {
	e.mu.RLock()
	r := e.round
	ledger := make(domain.Ledger, len(e.ledger))
	copy(ledger, e.ledger)
	e.mu.RUnlock()

	pos, err := domain.DrawPosition(r.Bank, r.Reveal)
	if err != nil {
		return fmt.Errorf("engine.settle: round %d: %w", r.ID, err)
	}
	win, err := ledger.WinnerAt(pos)
	if err != nil {
		return fmt.Errorf("engine.settle: round %d: %w", r.ID, err)
	}

	var winTotal int64
	for _, agg := range ledger.Aggregates() {
		if agg.OwnerID == win.OwnerID {
			winTotal = agg.Value
			break
		}
	}
	share := float64(winTotal) / float64(r.Bank)

	slog.Info("winner drawn",
		"round", r.ID,
		"position", pos,
		"winner", win.OwnerID,
		"share", fmt.Sprintf("%.4f", share),
		"reveal", r.Reveal,
	)

	if err := e.persist(ctx, "store.recordWinner", func(ctx context.Context) error {
		return e.store.RecordWinner(ctx, r.ID, win.OwnerID, share)
	}); err != nil {
		return err
	}

	plan := domain.PlanFee(ledger, win.OwnerID, domain.FeeBudget(r.Bank, e.cfg.FeePercent))
	payout := payoutValue(plan)

	if err := e.dispatchPayout(ctx, r, win.OwnerID, plan); err != nil {
		e.notify(ctx, fmt.Sprintf("ALERT round #%d: payout dispatch failed, manual attention needed: %v", r.ID, err))
		return err
	}

	if err := e.persist(ctx, "store.updateUserStats", func(ctx context.Context) error {
		return e.store.UpdateUserStats(ctx, r.ID, win.OwnerID, domain.StatsDelta{
			RoundsWon: 1,
			Income:    payout,
			WinValue:  payout,
		})
	}); err != nil {
		return err
	}

	if err := e.persist(ctx, "store.setRoundStatus", func(ctx context.Context) error {
		return e.store.SetRoundStatus(ctx, r.ID, domain.StatusSettled)
	}); err != nil {
		return err
	}
	e.setStatus(domain.StatusSettled)

	e.notify(ctx, fmt.Sprintf("round #%d settled: %s won $%.2f of $%.2f (fee $%.2f), reveal %s",
		r.ID, winnerName(win), float64(payout)/100, float64(r.Bank)/100, float64(plan.FeeTaken)/100, r.Reveal))

	return e.openNextRound(ctx, r.ID+1)
}

// dispatchPayout records the outbound transfer intent, then sends the
// offer. The queue entry is written first so a crash between dispatch
// and confirmation never loses it; its ID doubles as the dispatch
// idempotency key so a resumed settlement cannot send twice.
func (e *Engine) dispatchPayout(ctx context.Context, r domain.Round, winnerID string, plan domain.FeePlan) error {
	entry, err := e.outboundEntry(ctx, r.ID)
	if err != nil {
		return err
	}
	if entry == nil {
		entry = &domain.TransferEntry{
			ID:        uuid.NewString(),
			RoundID:   r.ID,
			Direction: domain.TransferOutbound,
			AssetIDs:  payoutAssets(plan),
			CreatedAt: time.Now().UTC(),
		}
		if err := e.persist(ctx, "store.enqueueTransfer", func(ctx context.Context) error {
			return e.store.EnqueueTransfer(ctx, *entry)
		}); err != nil {
			return err
		}
	}

	msg := fmt.Sprintf("You won round #%d! Payout $%.2f. Reveal: %s",
		r.ID, float64(payoutValue(plan))/100, r.Reveal)

	var offerID string
	err = e.cfg.Retry.Do(ctx, "trade.sendOffer", func(ctx context.Context) error {
		var serr error
		offerID, serr = e.trade.SendOffer(ctx, winnerID, entry.AssetIDs, msg, entry.ID)
		return serr
	})
	if err != nil {
		return fmt.Errorf("engine.dispatchPayout: round %d: %w", r.ID, err)
	}

	return e.persist(ctx, "store.setTransferOffer", func(ctx context.Context) error {
		return e.store.SetTransferOffer(ctx, entry.ID, offerID)
	})
}

// outboundEntry finds an already-queued payout intent for a round, so
// a resumed settlement reuses its dispatch key.
func (e *Engine) outboundEntry(ctx context.Context, roundID int64) (*domain.TransferEntry, error) {
	entries, err := e.store.ListTransfers(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine.outboundEntry: %w", err)
	}
	for _, entry := range entries {
		if entry.RoundID == roundID && entry.Direction == domain.TransferOutbound {
			found := entry
			return &found, nil
		}
	}
	return nil, nil
}

// openNextRound creates and announces the successor round. A new round
// exists only after the prior one settled.
func (e *Engine) openNextRound(ctx context.Context, id int64) error {
	next, err := domain.NewRound(id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("engine.openNextRound: %w", err)
	}
	if err := e.persist(ctx, "store.createRound", func(ctx context.Context) error {
		return e.store.CreateRound(ctx, next)
	}); err != nil {
		return err
	}

	e.setRound(next, nil)
	e.stopLockTimer()

	slog.Info("round opened", "round", next.ID, "commitment", next.Commitment)
	e.notify(ctx, fmt.Sprintf("round #%d open, commitment %s", next.ID, next.Commitment))
	return nil
}

func payoutValue(plan domain.FeePlan) int64 {
	var total int64
	for _, it := range plan.Payout {
		total += it.Value
	}
	return total
}

func payoutAssets(plan domain.FeePlan) []string {
	ids := make([]string, 0, len(plan.Payout))
	for _, it := range plan.Payout {
		ids = append(ids, it.AssetID)
	}
	return ids
}

func winnerName(c domain.Contribution) string {
	if c.OwnerName != "" {
		return c.OwnerName
	}
	return c.OwnerID
}
