package domain

import "fmt"

// RejectReason is a deterministic intake rejection code. These are
// reported to the counterparty verbatim and never retried.
type RejectReason string

const (
	RejectItemsToGive       RejectReason = "items_to_give"
	RejectPrivateProfile    RejectReason = "private_profile"
	RejectCatalogMismatch   RejectReason = "catalog_mismatch"
	RejectNoMarketLots      RejectReason = "no_market_lots"
	RejectFewMarketLots     RejectReason = "not_enough_market_lots"
	RejectLowBet            RejectReason = "low_bet"
	RejectTradeItemCeiling  RejectReason = "too_many_items_in_trade"
	RejectGlobalItemCeiling RejectReason = "too_many_items"
	RejectOwnerItemCeiling  RejectReason = "too_many_items_from_user"
)

// Message is the human-readable form sent back with a decline.
func (r RejectReason) Message() string {
	switch r {
	case RejectItemsToGive:
		return "offer must be a pure deposit: remove the items you are asking for"
	case RejectPrivateProfile:
		return "your profile must be public to take part in a round"
	case RejectCatalogMismatch:
		return "one or more items are not from the accepted catalog"
	case RejectNoMarketLots:
		return "one or more items have no market listings"
	case RejectFewMarketLots:
		return "one or more items have too few market listings"
	case RejectLowBet:
		return "total value is below the minimum bet"
	case RejectTradeItemCeiling:
		return "too many items in one trade"
	case RejectGlobalItemCeiling:
		return "the round cannot hold that many more items"
	case RejectOwnerItemCeiling:
		return "you already have the maximum number of items in this round"
	default:
		return string(r)
	}
}

// RejectionError carries a rejection through the intake pipeline.
type RejectionError struct {
	Reason RejectReason
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("offer rejected: %s", e.Reason)
}
