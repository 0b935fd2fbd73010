// Package pricing holds the valuation cache: the latest market value
// and liquidity per item kind, refreshed on a timer and read-only to
// the round engine.
package pricing

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

// Config controls refresh cadence and trust window.
type Config struct {
	CatalogID       string
	RefreshInterval time.Duration // timer cadence
	MaxAge          time.Duration // entries older than this are stale
	Retry           retry.Policy
}

// Cache holds the latest fetched valuations. A failed refresh keeps the
// previous (stale but present) map, so Value always returns the best
// available data.
type Cache struct {
	cfg  Config
	feed ports.PriceFeed

	mu        sync.RWMutex
	vals      map[string]domain.Valuation
	fetchedAt time.Time
}

// NewCache creates an empty cache; call Refresh or Run before trusting it.
func NewCache(cfg Config, feed ports.PriceFeed) *Cache {
	return &Cache{cfg: cfg, feed: feed, vals: map[string]domain.Valuation{}}
}

// Value returns the cached valuation for an item kind.
func (c *Cache) Value(kind string) (domain.Valuation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.vals[kind]
	return v, ok
}

// Fresh reports whether the last successful refresh is inside MaxAge.
func (c *Cache) Fresh(now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.vals) > 0 && now.Sub(c.fetchedAt) <= c.cfg.MaxAge
}

// Refresh fetches all valuations with bounded retry. On failure the
// existing map is left untouched.
func (c *Cache) Refresh(ctx context.Context) error {
	var vals map[string]domain.Valuation
	err := c.cfg.Retry.Do(ctx, "pricing.refresh", func(ctx context.Context) error {
		var ferr error
		vals, ferr = c.feed.FetchAllValuations(ctx, c.cfg.CatalogID)
		return ferr
	})
	if err != nil {
		return fmt.Errorf("pricing.Refresh: %w", err)
	}

	c.mu.Lock()
	c.vals = vals
	c.fetchedAt = time.Now().UTC()
	c.mu.Unlock()

	slog.Info("valuations refreshed", "kinds", len(vals), "catalog", c.cfg.CatalogID)
	return nil
}

// EnsureFresh refreshes only if the cache is empty or past MaxAge.
func (c *Cache) EnsureFresh(ctx context.Context) error {
	if c.Fresh(time.Now().UTC()) {
		return nil
	}
	return c.Refresh(ctx)
}

// Run refreshes on a recurring timer until the context is canceled.
// Refresh errors are logged, never fatal.
func (c *Cache) Run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				slog.Warn("valuation refresh failed, keeping previous data", "err", err)
			}
		}
	}
}
