// Package engine is the round state machine: it owns the current round
// and its ledger, ingests offers through the intake pipeline, runs the
// fair draw when the countdown expires, and drives settlement and
// confirmation-queue reconciliation.
//
// All state mutation happens on the Run goroutine. Timers and pollers
// serialize into that single path; Snapshot is the only concurrent
// read surface.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/potbot/internal/domain"
	"github.com/alejandrodnm/potbot/internal/ports"
	"github.com/alejandrodnm/potbot/internal/retry"
)

// Valuations is the slice of the pricing cache the engine reads.
type Valuations interface {
	Value(kind string) (domain.Valuation, bool)
	EnsureFresh(ctx context.Context) error
}

// Config holds the round rules and engine cadences.
type Config struct {
	CatalogID        string
	MinBet           int64 // cents
	MaxItemsPerTrade int
	MaxItemsTotal    int
	MaxItemsPerUser  int
	MinBettors       int
	MinLiquidity     int
	LockDuration     time.Duration
	FeePercent       float64
	PriceFreshness   time.Duration

	PollInterval      time.Duration
	ReconcileInterval time.Duration

	// Retry bounds transient trading calls; PersistBackoff paces the
	// indefinite retries on persistence writes.
	Retry          retry.Policy
	PersistBackoff time.Duration
}

// DefaultConfig returns sane production values.
func DefaultConfig() Config {
	return Config{
		MinBet:            50,
		MaxItemsPerTrade:  10,
		MaxItemsTotal:     100,
		MaxItemsPerUser:   30,
		MinBettors:        2,
		MinLiquidity:      3,
		LockDuration:      2 * time.Minute,
		FeePercent:        0.05,
		PriceFreshness:    time.Hour,
		PollInterval:      10 * time.Second,
		ReconcileInterval: time.Minute,
		Retry:             retry.DefaultPolicy(),
		PersistBackoff:    2 * time.Second,
	}
}

// Engine orchestrates the round lifecycle.
type Engine struct {
	cfg      Config
	store    ports.Storage
	trade    ports.TradeClient
	prices   Valuations
	notifier ports.Notifier

	mu     sync.RWMutex
	round  domain.Round
	ledger domain.Ledger

	lockTimer *time.Timer
}

// New creates an Engine with all dependencies injected.
func New(cfg Config, store ports.Storage, trade ports.TradeClient, prices Valuations, notifier ports.Notifier) *Engine {
	if cfg.MinBettors < 2 {
		cfg.MinBettors = 2
	}
	if cfg.PersistBackoff <= 0 {
		cfg.PersistBackoff = 2 * time.Second
	}
	return &Engine{
		cfg:      cfg,
		store:    store,
		trade:    trade,
		prices:   prices,
		notifier: notifier,
	}
}

// Run recovers persisted state and then drives the engine until the
// context is canceled. An invariant violation on load is fatal.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.recover(ctx); err != nil {
		e.notify(ctx, fmt.Sprintf("FATAL: refusing to resume: %v", err))
		return fmt.Errorf("engine.Run: %w", err)
	}
	e.reconcile(ctx)

	poll := time.NewTicker(e.cfg.PollInterval)
	defer poll.Stop()
	recon := time.NewTicker(e.cfg.ReconcileInterval)
	defer recon.Stop()
	defer e.stopLockTimer()

	slog.Info("engine running",
		"round", e.round.ID,
		"status", e.round.Status,
		"poll", e.cfg.PollInterval,
		"reconcile", e.cfg.ReconcileInterval,
	)

	for {
		select {
		case <-ctx.Done():
			slog.Info("engine stopped")
			return nil
		case <-e.lockExpiry():
			e.onCountdownExpired(ctx)
		case <-poll.C:
			e.pollOffers(ctx)
		case <-recon.C:
			e.reconcile(ctx)
		}
	}
}

// Snapshot returns a copy of the current round and ledger for
// read-only consumers (status output, tests).
func (e *Engine) Snapshot() (domain.Round, domain.Ledger) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ledger := make(domain.Ledger, len(e.ledger))
	copy(ledger, e.ledger)
	return e.round, ledger
}

// lockExpiry returns the countdown channel, or nil (never ready) when
// no countdown is armed.
func (e *Engine) lockExpiry() <-chan time.Time {
	if e.lockTimer == nil {
		return nil
	}
	return e.lockTimer.C
}

func (e *Engine) armLockTimer(deadline time.Time) {
	e.stopLockTimer()
	d := time.Until(deadline)
	if d < 0 {
		d = 0
	}
	e.lockTimer = time.NewTimer(d)
}

func (e *Engine) stopLockTimer() {
	if e.lockTimer != nil {
		e.lockTimer.Stop()
		e.lockTimer = nil
	}
}

// setRound swaps the in-memory round and ledger under the read lock.
func (e *Engine) setRound(r domain.Round, ledger domain.Ledger) {
	e.mu.Lock()
	e.round = r
	e.ledger = ledger
	e.mu.Unlock()
}

func (e *Engine) setStatus(status domain.RoundStatus) {
	e.mu.Lock()
	e.round.Status = status
	e.mu.Unlock()
}

// notify sends an operator message, never failing the caller.
func (e *Engine) notify(ctx context.Context, msg string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, msg); err != nil {
		slog.Warn("notifier error", "err", err)
	}
}

// persist retries a persistence write until it lands or the context
// dies; round consistency cannot survive an abandoned write.
func (e *Engine) persist(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return retry.Forever(ctx, op, e.cfg.PersistBackoff, fn)
}
