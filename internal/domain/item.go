package domain

import "time"

// Item is a single tradable asset accepted into a round.
// Value is fixed in minor currency units (cents) at acceptance time.
type Item struct {
	AssetID   string `json:"asset_id"`
	CatalogID string `json:"catalog_id"`
	Kind      string `json:"kind"`
	Value     int64  `json:"value"`
}

// Valuation is the latest market data for one item kind.
type Valuation struct {
	Kind      string
	Value     int64 // cents
	Liquidity int   // active market listings for this kind
	UpdatedAt time.Time
}

// Fresh reports whether the valuation is recent enough to base
// an acceptance decision on.
func (v Valuation) Fresh(maxAge time.Duration, now time.Time) bool {
	return now.Sub(v.UpdatedAt) <= maxAge
}
