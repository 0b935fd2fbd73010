package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/potbot/internal/domain"
	"github.com/alejandrodnm/potbot/internal/ports"
)

// pollOffers fetches pending incoming offers and runs each through the
// intake pipeline. While the round is drawing or settling, offers stay
// pending on the gateway and are picked up by a later poll.
func (e *Engine) pollOffers(ctx context.Context) {
	if !e.round.Open() {
		return
	}

	var offers []ports.TradeOffer
	err := e.cfg.Retry.Do(ctx, "trade.listIncomingOffers", func(ctx context.Context) error {
		var lerr error
		offers, lerr = e.trade.ListIncomingOffers(ctx)
		return lerr
	})
	if err != nil {
		slog.Warn("offer poll failed", "err", err)
		return
	}

	for _, offer := range offers {
		if !e.round.Open() {
			return // round closed mid-batch; leave the rest pending
		}
		e.handleOffer(ctx, offer)
	}
}

// handleOffer admits or declines one offer. Re-delivery of an
// already-ledgered offer is acknowledged again without crediting.
func (e *Engine) handleOffer(ctx context.Context, offer ports.TradeOffer) {
	ledgered := e.ledger.HasOffer(offer.ID)
	if !ledgered {
		var err error
		ledgered, err = e.store.HasContribution(ctx, offer.ID)
		if err != nil {
			slog.Warn("intake: contribution lookup failed, leaving offer pending", "offer", offer.ID, "err", err)
			return
		}
	}
	if ledgered {
		// Crash window: contribution persisted but the accept never
		// went out. Acknowledge again; the ledger is untouched.
		if err := e.acceptOffer(ctx, offer.ID); err != nil {
			slog.Warn("intake: re-acknowledge failed", "offer", offer.ID, "err", err)
		}
		return
	}

	items, rej, err := e.validateOffer(ctx, offer)
	if err != nil {
		slog.Warn("intake: transient failure, leaving offer pending", "offer", offer.ID, "err", err)
		return
	}
	if rej != nil {
		e.declineOffer(ctx, offer, rej.Reason)
		return
	}
	e.admit(ctx, offer, items)
}

// validateOffer applies the admission rules in fixed order; the first
// failure wins. A non-nil error means a transient dependency failure,
// not a rejection.
func (e *Engine) validateOffer(ctx context.Context, offer ports.TradeOffer) ([]domain.Item, *domain.RejectionError, error) {
	// 1. Pure deposit only.
	if len(offer.ItemsToGive) > 0 {
		return nil, &domain.RejectionError{Reason: domain.RejectItemsToGive}, nil
	}

	// 2. Public profile.
	var profile ports.Profile
	err := e.cfg.Retry.Do(ctx, "trade.getProfile", func(ctx context.Context) error {
		var perr error
		profile, perr = e.trade.GetProfile(ctx, offer.PartnerID)
		return perr
	})
	if err != nil {
		return nil, nil, fmt.Errorf("profile lookup: %w", err)
	}
	if !profile.Public {
		return nil, &domain.RejectionError{Reason: domain.RejectPrivateProfile}, nil
	}

	// 3. Catalog match.
	for _, it := range offer.ItemsToReceive {
		if it.CatalogID != e.cfg.CatalogID {
			return nil, &domain.RejectionError{Reason: domain.RejectCatalogMismatch}, nil
		}
	}

	// 4. Fresh valuation with enough liquidity; prices each item.
	if err := e.prices.EnsureFresh(ctx); err != nil {
		return nil, nil, fmt.Errorf("valuation refresh: %w", err)
	}
	now := time.Now().UTC()
	items := make([]domain.Item, 0, len(offer.ItemsToReceive))
	var total int64
	for _, it := range offer.ItemsToReceive {
		v, ok := e.prices.Value(it.Kind)
		if !ok || !v.Fresh(e.cfg.PriceFreshness, now) {
			return nil, &domain.RejectionError{Reason: domain.RejectNoMarketLots}, nil
		}
		if v.Liquidity < e.cfg.MinLiquidity {
			return nil, &domain.RejectionError{Reason: domain.RejectFewMarketLots}, nil
		}
		it.Value = v.Value
		items = append(items, it)
		total += v.Value
	}

	// 5. Minimum bet.
	if total < e.cfg.MinBet {
		return nil, &domain.RejectionError{Reason: domain.RejectLowBet}, nil
	}

	// 6. Per-trade ceiling.
	if len(items) > e.cfg.MaxItemsPerTrade {
		return nil, &domain.RejectionError{Reason: domain.RejectTradeItemCeiling}, nil
	}

	// 7. Global ceiling.
	if e.ledger.ItemCount()+len(items) > e.cfg.MaxItemsTotal {
		return nil, &domain.RejectionError{Reason: domain.RejectGlobalItemCeiling}, nil
	}

	// 8. Per-owner ceiling.
	if e.ledger.OwnerItemCount(offer.PartnerID)+len(items) > e.cfg.MaxItemsPerUser {
		return nil, &domain.RejectionError{Reason: domain.RejectOwnerItemCeiling}, nil
	}

	return items, nil, nil
}

// admit appends the contribution, acknowledges the transfer, and runs
// the lock-threshold and item-ceiling transitions.
func (e *Engine) admit(ctx context.Context, offer ports.TradeOffer, items []domain.Item) {
	now := time.Now().UTC()
	c := e.ledger.NextContribution(uuid.NewString(), e.round.ID, offer.ID, offer.PartnerID, offer.PartnerName, items, now)

	if err := e.persist(ctx, "store.appendContribution", func(ctx context.Context) error {
		return e.store.AppendContribution(ctx, c)
	}); err != nil {
		return // context canceled
	}

	entry := domain.TransferEntry{
		ID:        uuid.NewString(),
		OfferID:   offer.ID,
		RoundID:   e.round.ID,
		Direction: domain.TransferInbound,
		AssetIDs:  assetIDs(items),
		CreatedAt: now,
	}
	if err := e.persist(ctx, "store.enqueueTransfer", func(ctx context.Context) error {
		return e.store.EnqueueTransfer(ctx, entry)
	}); err != nil {
		return
	}

	e.mu.Lock()
	e.ledger = append(e.ledger, c)
	e.round.Bank += c.Value
	e.mu.Unlock()

	if err := e.acceptOffer(ctx, offer.ID); err != nil {
		// Already ledgered; the next poll re-acknowledges.
		slog.Warn("intake: accept failed after admission", "offer", offer.ID, "err", err)
	}

	slog.Info("contribution accepted",
		"round", e.round.ID,
		"offer", offer.ID,
		"owner", offer.PartnerID,
		"items", len(items),
		"value", c.Value,
		"bank", e.round.Bank,
	)
	e.notify(ctx, fmt.Sprintf("round #%d: %s bet $%.2f (%d items), bank $%.2f",
		e.round.ID, displayName(offer), float64(c.Value)/100, len(items), float64(e.round.Bank)/100))

	e.afterAdmission(ctx)
}

// afterAdmission applies the collecting→locked threshold and the
// item-ceiling early close.
func (e *Engine) afterAdmission(ctx context.Context) {
	if e.round.Status == domain.StatusCollecting && e.ledger.DistinctOwners() >= e.cfg.MinBettors {
		e.lockRound(ctx)
	}
	if e.round.Status == domain.StatusLocked && e.ledger.ItemCount() >= e.cfg.MaxItemsTotal {
		slog.Info("item ceiling reached, closing round early", "round", e.round.ID)
		e.startDraw(ctx)
	}
}

// lockRound starts the fixed countdown. The threshold is checked only
// here, at the transition moment; it is not re-validated at expiry.
func (e *Engine) lockRound(ctx context.Context) {
	deadline := time.Now().UTC().Add(e.cfg.LockDuration)
	if err := e.persist(ctx, "store.lockRound", func(ctx context.Context) error {
		return e.store.LockRound(ctx, e.round.ID, deadline)
	}); err != nil {
		return
	}

	e.mu.Lock()
	e.round.Status = domain.StatusLocked
	e.round.LockDeadline = deadline
	e.mu.Unlock()
	e.armLockTimer(deadline)

	slog.Info("round locked", "round", e.round.ID, "deadline", deadline, "bank", e.round.Bank)
	e.notify(ctx, fmt.Sprintf("round #%d locked: %d bettors, bank $%.2f, draw in %s",
		e.round.ID, e.ledger.DistinctOwners(), float64(e.round.Bank)/100, e.cfg.LockDuration))
}

func (e *Engine) acceptOffer(ctx context.Context, offerID string) error {
	return e.cfg.Retry.Do(ctx, "trade.acceptOffer", func(ctx context.Context) error {
		return e.trade.AcceptOffer(ctx, offerID)
	})
}

// declineOffer reports the rejection reason to the counterparty.
// Rejections are deterministic: failures to deliver the decline are
// logged, never retried beyond the bounded policy.
func (e *Engine) declineOffer(ctx context.Context, offer ports.TradeOffer, reason domain.RejectReason) {
	slog.Info("offer rejected", "offer", offer.ID, "owner", offer.PartnerID, "reason", reason)
	err := e.cfg.Retry.Do(ctx, "trade.declineOffer", func(ctx context.Context) error {
		return e.trade.DeclineOffer(ctx, offer.ID, reason.Message())
	})
	if err != nil {
		slog.Warn("intake: decline failed", "offer", offer.ID, "err", err)
	}
}

func assetIDs(items []domain.Item) []string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.AssetID)
	}
	return ids
}

func displayName(offer ports.TradeOffer) string {
	if offer.PartnerName != "" {
		return offer.PartnerName
	}
	return offer.PartnerID
}
