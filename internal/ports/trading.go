package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/potbot/internal/domain"
)

// OfferState is the external system's view of a trade offer.
type OfferState string

const (
	OfferActive    OfferState = "active"
	OfferAccepted  OfferState = "accepted"
	OfferDeclined  OfferState = "declined"
	OfferCanceled  OfferState = "canceled"
	OfferExpired   OfferState = "expired"
	OfferInvalid   OfferState = "invalid"
	OfferUnknown   OfferState = "unknown"
)

// Active reports whether the offer can still change hands. Queue entries
// are cleared only once their offer is no longer active.
func (s OfferState) Active() bool {
	return s == OfferActive || s == OfferUnknown
}

// TradeOffer is an incoming offer as reported by the trade gateway.
// Item values are unknown at this point; intake prices them from the
// valuation cache.
type TradeOffer struct {
	ID             string
	PartnerID      string
	PartnerName    string
	ItemsToGive    []domain.Item // items the offer asks us to hand over
	ItemsToReceive []domain.Item
	CreatedAt      time.Time
}

// Profile is the counterparty's external profile.
type Profile struct {
	ID     string
	Name   string
	Public bool
}

// TradeClient is the trading-protocol collaborator. Every call may fail
// transiently; the engine wraps each with bounded retry.
type TradeClient interface {
	ListIncomingOffers(ctx context.Context) ([]TradeOffer, error)
	AcceptOffer(ctx context.Context, offerID string) error
	DeclineOffer(ctx context.Context, offerID, reason string) error

	// SendOffer dispatches an outbound offer. dispatchID is an
	// idempotency key: re-sending with the same key returns the
	// original offer instead of creating a second one.
	SendOffer(ctx context.Context, targetID string, assetIDs []string, message, dispatchID string) (offerID string, err error)

	OfferState(ctx context.Context, offerID string) (OfferState, error)
	LoadInventory(ctx context.Context, catalogID string) ([]domain.Item, error)
	GetProfile(ctx context.Context, userID string) (Profile, error)
}
