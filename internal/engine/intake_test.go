package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/potbot/internal/domain"
	"github.com/alejandrodnm/potbot/internal/ports"
)

func TestIntake_AcceptsAndAssignsRanges(t *testing.T) {
	ctx := context.Background()
	h := newHarness(testEngineConfig())
	require.NoError(t, h.start(ctx))

	h.eng.handleOffer(ctx, depositOffer("o1", "A", "hat"))          // 200
	h.eng.handleOffer(ctx, depositOffer("o2", "B", "hat", "sword")) // 800

	round, ledger := h.eng.Snapshot()
	assert.Equal(t, int64(1000), round.Bank)
	require.Len(t, ledger, 2)
	assert.Equal(t, int64(1), ledger[0].RangeStart)
	assert.Equal(t, int64(200), ledger[0].RangeEnd)
	assert.Equal(t, int64(201), ledger[1].RangeStart)
	assert.Equal(t, int64(1000), ledger[1].RangeEnd)
	assert.NoError(t, ledger.Validate(round.ID, round.Bank))

	assert.ElementsMatch(t, []string{"o1", "o2"}, h.trade.accepted)

	// Both deposits are tracked in the confirmation queue.
	entries, err := h.store.ListTransfers(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, domain.TransferInbound, e.Direction)
	}
}

func TestIntake_ReplayDoesNotDoubleCredit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(testEngineConfig())
	require.NoError(t, h.start(ctx))

	offer := depositOffer("o1", "A", "hat")
	h.eng.handleOffer(ctx, offer)
	h.eng.handleOffer(ctx, offer) // re-delivery

	round, ledger := h.eng.Snapshot()
	assert.Equal(t, int64(200), round.Bank)
	assert.Len(t, ledger, 1)
	// The replay is re-acknowledged, not re-credited.
	assert.Equal(t, []string{"o1", "o1"}, h.trade.accepted)
}

func TestIntake_RejectsItemsToGive(t *testing.T) {
	ctx := context.Background()
	h := newHarness(testEngineConfig())
	require.NoError(t, h.start(ctx))

	offer := depositOffer("o1", "A", "hat")
	offer.ItemsToGive = []domain.Item{{AssetID: "ours", CatalogID: "570", Kind: "hat"}}
	h.eng.handleOffer(ctx, offer)

	round, ledger := h.eng.Snapshot()
	assert.Equal(t, int64(0), round.Bank)
	assert.Empty(t, ledger)
	assert.Equal(t, domain.RejectItemsToGive.Message(), h.trade.declined["o1"])
}

func TestIntake_RejectsPrivateProfile(t *testing.T) {
	ctx := context.Background()
	h := newHarness(testEngineConfig())
	require.NoError(t, h.start(ctx))

	h.trade.profiles["A"] = ports.Profile{ID: "A", Public: false}
	h.eng.handleOffer(ctx, depositOffer("o1", "A", "hat"))

	assert.Equal(t, domain.RejectPrivateProfile.Message(), h.trade.declined["o1"])
	_, ledger := h.eng.Snapshot()
	assert.Empty(t, ledger)
}

func TestIntake_RejectsCatalogMismatch(t *testing.T) {
	ctx := context.Background()
	h := newHarness(testEngineConfig())
	require.NoError(t, h.start(ctx))

	offer := depositOffer("o1", "A", "hat")
	offer.ItemsToReceive[0].CatalogID = "730"
	h.eng.handleOffer(ctx, offer)

	assert.Equal(t, domain.RejectCatalogMismatch.Message(), h.trade.declined["o1"])
}

func TestIntake_RejectsUnknownAndIlliquidKinds(t *testing.T) {
	ctx := context.Background()
	h := newHarness(testEngineConfig())
	require.NoError(t, h.start(ctx))

	h.eng.handleOffer(ctx, depositOffer("o1", "A", "mystery"))
	assert.Equal(t, domain.RejectNoMarketLots.Message(), h.trade.declined["o1"])

	h.vals.vals["rare"] = domain.Valuation{Kind: "rare", Value: 5000, Liquidity: 1, UpdatedAt: time.Now().UTC()}
	h.eng.handleOffer(ctx, depositOffer("o2", "A", "rare"))
	assert.Equal(t, domain.RejectFewMarketLots.Message(), h.trade.declined["o2"])
}

func TestIntake_RejectsStaleValuation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(testEngineConfig())
	require.NoError(t, h.start(ctx))

	h.vals.vals["old"] = domain.Valuation{
		Kind: "old", Value: 300, Liquidity: 10,
		UpdatedAt: time.Now().UTC().Add(-48 * time.Hour),
	}
	h.eng.handleOffer(ctx, depositOffer("o1", "A", "old"))

	assert.Equal(t, domain.RejectNoMarketLots.Message(), h.trade.declined["o1"])
}

func TestIntake_RejectsLowBet(t *testing.T) {
	ctx := context.Background()
	cfg := testEngineConfig()
	cfg.MinBet = 500
	h := newHarness(cfg)
	require.NoError(t, h.start(ctx))

	h.eng.handleOffer(ctx, depositOffer("o1", "A", "hat")) // 200 < 500

	assert.Equal(t, domain.RejectLowBet.Message(), h.trade.declined["o1"])
}

func TestIntake_RejectsTooManyItemsInTrade(t *testing.T) {
	ctx := context.Background()
	cfg := testEngineConfig()
	cfg.MaxItemsPerTrade = 2
	h := newHarness(cfg)
	require.NoError(t, h.start(ctx))

	h.eng.handleOffer(ctx, depositOffer("o1", "A", "hat", "hat", "hat"))

	assert.Equal(t, domain.RejectTradeItemCeiling.Message(), h.trade.declined["o1"])
}

func TestIntake_RejectsPerOwnerCeiling(t *testing.T) {
	ctx := context.Background()
	cfg := testEngineConfig()
	cfg.MaxItemsPerUser = 2
	h := newHarness(cfg)
	require.NoError(t, h.start(ctx))

	h.eng.handleOffer(ctx, depositOffer("o1", "A", "hat", "hat"))
	h.eng.handleOffer(ctx, depositOffer("o2", "A", "hat"))

	_, ledger := h.eng.Snapshot()
	assert.Len(t, ledger, 1)
	assert.Equal(t, domain.RejectOwnerItemCeiling.Message(), h.trade.declined["o2"])
}

func TestIntake_RejectsGlobalCeiling(t *testing.T) {
	ctx := context.Background()
	cfg := testEngineConfig()
	cfg.MaxItemsTotal = 2
	cfg.MaxItemsPerUser = 10
	h := newHarness(cfg)
	require.NoError(t, h.start(ctx))

	h.eng.handleOffer(ctx, depositOffer("o1", "A", "hat", "hat"))
	h.eng.handleOffer(ctx, depositOffer("o2", "B", "hat"))

	assert.Equal(t, domain.RejectGlobalItemCeiling.Message(), h.trade.declined["o2"])
}

func TestEngine_LocksAtTwoDistinctOwners(t *testing.T) {
	ctx := context.Background()
	h := newHarness(testEngineConfig())
	require.NoError(t, h.start(ctx))

	h.eng.handleOffer(ctx, depositOffer("o1", "A", "hat"))
	round, _ := h.eng.Snapshot()
	assert.Equal(t, domain.StatusCollecting, round.Status, "one owner is not enough")

	h.eng.handleOffer(ctx, depositOffer("o2", "B", "hat"))
	round, _ = h.eng.Snapshot()
	assert.Equal(t, domain.StatusLocked, round.Status)
	assert.False(t, round.LockDeadline.IsZero())

	// Persisted too, so a restart honors the same deadline.
	stored := h.store.round(round.ID)
	assert.Equal(t, domain.StatusLocked, stored.Status)
	assert.True(t, stored.LockDeadline.Equal(round.LockDeadline))
}

func TestEngine_SameOwnerNeverLocks(t *testing.T) {
	ctx := context.Background()
	h := newHarness(testEngineConfig())
	require.NoError(t, h.start(ctx))

	h.eng.handleOffer(ctx, depositOffer("o1", "A", "hat"))
	h.eng.handleOffer(ctx, depositOffer("o2", "A", "sword"))

	round, ledger := h.eng.Snapshot()
	assert.Len(t, ledger, 2)
	assert.Equal(t, domain.StatusCollecting, round.Status)
}

func TestEngine_LockedKeepsAcceptingWithoutResettingCountdown(t *testing.T) {
	ctx := context.Background()
	h := newHarness(testEngineConfig())
	require.NoError(t, h.start(ctx))

	h.eng.handleOffer(ctx, depositOffer("o1", "A", "hat"))
	h.eng.handleOffer(ctx, depositOffer("o2", "B", "hat"))
	round, _ := h.eng.Snapshot()
	deadline := round.LockDeadline

	h.eng.handleOffer(ctx, depositOffer("o3", "C", "sword"))
	round, ledger := h.eng.Snapshot()
	assert.Len(t, ledger, 3)
	assert.Equal(t, domain.StatusLocked, round.Status)
	assert.True(t, round.LockDeadline.Equal(deadline), "countdown must not reset")
}

func TestEngine_ItemCeilingClosesLockedRoundEarly(t *testing.T) {
	ctx := context.Background()
	cfg := testEngineConfig()
	cfg.MaxItemsTotal = 3
	cfg.MaxItemsPerUser = 3
	h := newHarness(cfg)
	require.NoError(t, h.start(ctx))

	h.eng.handleOffer(ctx, depositOffer("o1", "A", "hat"))
	h.eng.handleOffer(ctx, depositOffer("o2", "B", "hat"))
	h.eng.handleOffer(ctx, depositOffer("o3", "C", "sword"))

	// Ceiling hit while locked: the round draws and settles without
	// waiting for the countdown, and a successor opens.
	round, _ := h.eng.Snapshot()
	assert.Equal(t, int64(2), round.ID)
	assert.Equal(t, domain.StatusSettled, h.store.round(1).Status)
}
