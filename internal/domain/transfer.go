package domain

import "time"

// TransferDirection distinguishes deposits from payouts in the
// confirmation queue.
type TransferDirection string

const (
	TransferInbound  TransferDirection = "inbound"
	TransferOutbound TransferDirection = "outbound"
)

// TransferEntry is one locally-intended transfer awaiting external
// confirmation. Entries are written before the transfer is considered
// durable and removed only once the external offer is no longer active.
//
// ID is a local idempotency key: payout dispatch reuses it across
// restarts so a crash mid-dispatch never sends a second offer. OfferID
// stays empty until the external system has assigned one.
type TransferEntry struct {
	ID        string
	OfferID   string
	RoundID   int64
	Direction TransferDirection
	AssetIDs  []string
	CreatedAt time.Time
}

// StatsDelta is one increment applied to a user's lifetime stats.
type StatsDelta struct {
	RoundsWon int
	Income    int64 // cents added to lifetime income
	WinValue  int64 // candidate for a new peak win
}

// UserStats is the persisted per-user lifetime record.
type UserStats struct {
	UserID    string
	RoundsWon int
	Income    int64
	PeakWin   int64
}
