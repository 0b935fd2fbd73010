package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alejandrodnm/potbot/internal/domain"
	"github.com/alejandrodnm/potbot/internal/ports"
	"github.com/alejandrodnm/potbot/internal/retry"
)

// In-memory fakes for the engine's collaborators.

type memStore struct {
	mu           sync.Mutex
	rounds       map[int64]*domain.Round
	contribs     []domain.Contribution
	transfers    []domain.TransferEntry
	stats        map[string]domain.UserStats
	statsApplied map[int64]bool
}

func newMemStore() *memStore {
	return &memStore{
		rounds:       map[int64]*domain.Round{},
		stats:        map[string]domain.UserStats{},
		statsApplied: map[int64]bool{},
	}
}

func (m *memStore) LoadCurrentRound(ctx context.Context) (*domain.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var current *domain.Round
	for _, r := range m.rounds {
		if current == nil || r.ID > current.ID {
			current = r
		}
	}
	if current == nil {
		return nil, nil
	}
	cp := *current
	return &cp, nil
}

func (m *memStore) CreateRound(ctx context.Context, r domain.Round) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rounds[r.ID]; ok {
		return fmt.Errorf("round %d exists", r.ID)
	}
	m.rounds[r.ID] = &r
	return nil
}

func (m *memStore) LoadLedger(ctx context.Context, roundID int64) (domain.Ledger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ledger domain.Ledger
	for _, c := range m.contribs {
		if c.RoundID == roundID {
			ledger = append(ledger, c)
		}
	}
	return ledger, nil
}

func (m *memStore) AppendContribution(ctx context.Context, c domain.Contribution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.contribs {
		if existing.OfferID == c.OfferID {
			return nil // idempotent replay
		}
	}
	m.contribs = append(m.contribs, c)
	if r, ok := m.rounds[c.RoundID]; ok {
		r.Bank += c.Value
	}
	return nil
}

func (m *memStore) HasContribution(ctx context.Context, offerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.contribs {
		if c.OfferID == offerID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) SetRoundStatus(ctx context.Context, roundID int64, status domain.RoundStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rounds[roundID]; ok {
		r.Status = status
	}
	return nil
}

func (m *memStore) LockRound(ctx context.Context, roundID int64, deadline time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rounds[roundID]; ok {
		r.Status = domain.StatusLocked
		r.LockDeadline = deadline
	}
	return nil
}

func (m *memStore) RecordWinner(ctx context.Context, roundID int64, winnerID string, share float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rounds[roundID]; ok {
		r.WinnerID = winnerID
		r.WinnerShare = share
	}
	return nil
}

func (m *memStore) EnqueueTransfer(ctx context.Context, e domain.TransferEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.transfers {
		if existing.ID == e.ID {
			return nil
		}
	}
	m.transfers = append(m.transfers, e)
	return nil
}

func (m *memStore) SetTransferOffer(ctx context.Context, id, offerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.transfers {
		if m.transfers[i].ID == id {
			m.transfers[i].OfferID = offerID
		}
	}
	return nil
}

func (m *memStore) DequeueTransfer(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.transfers[:0]
	for _, e := range m.transfers {
		if e.ID != id {
			out = append(out, e)
		}
	}
	m.transfers = out
	return nil
}

func (m *memStore) ListTransfers(ctx context.Context) ([]domain.TransferEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.TransferEntry, len(m.transfers))
	copy(out, m.transfers)
	return out, nil
}

func (m *memStore) UpdateUserStats(ctx context.Context, roundID int64, userID string, delta domain.StatsDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statsApplied[roundID] {
		return nil
	}
	m.statsApplied[roundID] = true
	s := m.stats[userID]
	s.UserID = userID
	s.RoundsWon += delta.RoundsWon
	s.Income += delta.Income
	if delta.WinValue > s.PeakWin {
		s.PeakWin = delta.WinValue
	}
	m.stats[userID] = s
	return nil
}

func (m *memStore) LoadUserStats(ctx context.Context, userID string) (domain.UserStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats[userID], nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) round(id int64) domain.Round {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.rounds[id]
}

type sentOffer struct {
	TargetID   string
	AssetIDs   []string
	DispatchID string
}

type fakeTrade struct {
	mu       sync.Mutex
	offers   []ports.TradeOffer
	profiles map[string]ports.Profile
	states   map[string]ports.OfferState

	accepted []string
	declined map[string]string
	sent     []sentOffer
	sendErr  error
	stateErr error
}

func newFakeTrade() *fakeTrade {
	return &fakeTrade{
		profiles: map[string]ports.Profile{},
		states:   map[string]ports.OfferState{},
		declined: map[string]string{},
	}
}

func (f *fakeTrade) ListIncomingOffers(ctx context.Context) ([]ports.TradeOffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ports.TradeOffer, len(f.offers))
	copy(out, f.offers)
	return out, nil
}

func (f *fakeTrade) AcceptOffer(ctx context.Context, offerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accepted = append(f.accepted, offerID)
	return nil
}

func (f *fakeTrade) DeclineOffer(ctx context.Context, offerID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.declined[offerID] = reason
	return nil
}

func (f *fakeTrade) SendOffer(ctx context.Context, targetID string, assetIDs []string, message, dispatchID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	// The gateway dedupes on the dispatch key: a replay returns the
	// original offer instead of creating a second one.
	for _, s := range f.sent {
		if s.DispatchID == dispatchID {
			return "sent-" + dispatchID, nil
		}
	}
	f.sent = append(f.sent, sentOffer{TargetID: targetID, AssetIDs: assetIDs, DispatchID: dispatchID})
	return "sent-" + dispatchID, nil
}

func (f *fakeTrade) OfferState(ctx context.Context, offerID string) (ports.OfferState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stateErr != nil {
		return ports.OfferUnknown, f.stateErr
	}
	if s, ok := f.states[offerID]; ok {
		return s, nil
	}
	return ports.OfferUnknown, nil
}

func (f *fakeTrade) LoadInventory(ctx context.Context, catalogID string) ([]domain.Item, error) {
	return nil, nil
}

func (f *fakeTrade) GetProfile(ctx context.Context, userID string) (ports.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.profiles[userID]; ok {
		return p, nil
	}
	return ports.Profile{ID: userID, Public: true}, nil
}

type fakeVals struct {
	vals map[string]domain.Valuation
}

func (f *fakeVals) Value(kind string) (domain.Valuation, bool) {
	v, ok := f.vals[kind]
	return v, ok
}

func (f *fakeVals) EnsureFresh(ctx context.Context) error { return nil }

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *recordingNotifier) Notify(ctx context.Context, msg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return nil
}

func (n *recordingNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.msgs))
	copy(out, n.msgs)
	return out
}

// Test harness.

type harness struct {
	eng    *Engine
	store  *memStore
	trade  *fakeTrade
	vals   *fakeVals
	notify *recordingNotifier
}

func testEngineConfig() Config {
	cfg := DefaultConfig()
	cfg.CatalogID = "570"
	cfg.MinBet = 100
	cfg.MaxItemsPerTrade = 5
	cfg.MaxItemsTotal = 20
	cfg.MaxItemsPerUser = 8
	cfg.MinLiquidity = 3
	cfg.FeePercent = 0.10
	cfg.LockDuration = time.Hour // tests trigger transitions directly
	cfg.Retry = retry.Policy{MaxAttempts: 2, Backoff: time.Millisecond}
	cfg.PersistBackoff = time.Millisecond
	return cfg
}

func newHarness(cfg Config) *harness {
	h := &harness{
		store: newMemStore(),
		trade: newFakeTrade(),
		vals: &fakeVals{vals: map[string]domain.Valuation{
			"hat":   {Kind: "hat", Value: 200, Liquidity: 10, UpdatedAt: time.Now().UTC()},
			"sword": {Kind: "sword", Value: 600, Liquidity: 10, UpdatedAt: time.Now().UTC()},
		}},
		notify: &recordingNotifier{},
	}
	h.eng = New(cfg, h.store, h.trade, h.vals, h.notify)
	return h
}

// start opens round 1 through the normal recovery path.
func (h *harness) start(ctx context.Context) error {
	return h.eng.recover(ctx)
}

func depositOffer(id, owner string, kinds ...string) ports.TradeOffer {
	items := make([]domain.Item, 0, len(kinds))
	for i, k := range kinds {
		items = append(items, domain.Item{
			AssetID:   fmt.Sprintf("%s-%d", id, i),
			CatalogID: "570",
			Kind:      k,
		})
	}
	return ports.TradeOffer{
		ID:             id,
		PartnerID:      owner,
		PartnerName:    owner,
		ItemsToReceive: items,
		CreatedAt:      time.Now().UTC(),
	}
}
