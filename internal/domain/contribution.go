package domain

import (
	"fmt"
	"sort"
	"time"
)

// Contribution is one accepted batch of items from one owner, with its
// cumulative range over the bank. Ranges are inclusive, 1-based, and
// assigned in insertion order so they partition [1, bank].
type Contribution struct {
	ID         string // local uuid
	RoundID    int64
	OfferID    string
	OwnerID    string
	OwnerName  string
	Items      []Item
	Value      int64
	RangeStart int64
	RangeEnd   int64
	AcceptedAt time.Time
}

// BettorAggregate is the derived per-owner view of a ledger.
type BettorAggregate struct {
	OwnerID   string
	OwnerName string
	Value     int64
	Items     int
	Chance    float64 // Value / bank
}

// Ledger is the append-only record of accepted contributions for one round.
type Ledger []Contribution

// NextContribution builds the contribution that would follow the current
// ledger tail: the range continues where the bank left off.
func (l Ledger) NextContribution(id string, roundID int64, offerID, ownerID, ownerName string, items []Item, now time.Time) Contribution {
	var value int64
	for _, it := range items {
		value += it.Value
	}
	bank := l.Bank()
	return Contribution{
		ID:         id,
		RoundID:    roundID,
		OfferID:    offerID,
		OwnerID:    ownerID,
		OwnerName:  ownerName,
		Items:      items,
		Value:      value,
		RangeStart: bank + 1,
		RangeEnd:   bank + value,
		AcceptedAt: now,
	}
}

// Bank returns the sum of all contribution values.
func (l Ledger) Bank() int64 {
	var total int64
	for _, c := range l {
		total += c.Value
	}
	return total
}

// ItemCount returns the total number of items across all contributions.
func (l Ledger) ItemCount() int {
	n := 0
	for _, c := range l {
		n += len(c.Items)
	}
	return n
}

// OwnerItemCount returns the number of items contributed by one owner.
func (l Ledger) OwnerItemCount(ownerID string) int {
	n := 0
	for _, c := range l {
		if c.OwnerID == ownerID {
			n += len(c.Items)
		}
	}
	return n
}

// DistinctOwners returns the number of distinct contributing owners.
func (l Ledger) DistinctOwners() int {
	seen := make(map[string]bool, len(l))
	for _, c := range l {
		seen[c.OwnerID] = true
	}
	return len(seen)
}

// HasOffer reports whether an offer identifier is already ledgered.
// Used to make intake idempotent on offer re-delivery.
func (l Ledger) HasOffer(offerID string) bool {
	for _, c := range l {
		if c.OfferID == offerID {
			return true
		}
	}
	return false
}

// Aggregates computes the per-bettor totals, sorted by value descending
// (ties by first appearance in the ledger).
func (l Ledger) Aggregates() []BettorAggregate {
	bank := l.Bank()
	idx := make(map[string]int)
	var aggs []BettorAggregate
	for _, c := range l {
		i, ok := idx[c.OwnerID]
		if !ok {
			i = len(aggs)
			idx[c.OwnerID] = i
			aggs = append(aggs, BettorAggregate{OwnerID: c.OwnerID, OwnerName: c.OwnerName})
		}
		aggs[i].Value += c.Value
		aggs[i].Items += len(c.Items)
	}
	if bank > 0 {
		for i := range aggs {
			aggs[i].Chance = float64(aggs[i].Value) / float64(bank)
		}
	}
	sort.SliceStable(aggs, func(i, j int) bool { return aggs[i].Value > aggs[j].Value })
	return aggs
}

// WinnerAt returns the unique contribution whose range contains pos.
func (l Ledger) WinnerAt(pos int64) (Contribution, error) {
	i := sort.Search(len(l), func(i int) bool { return l[i].RangeEnd >= pos })
	if i >= len(l) || l[i].RangeStart > pos {
		return Contribution{}, fmt.Errorf("domain.WinnerAt: position %d outside ledger ranges", pos)
	}
	return l[i], nil
}

// Validate checks the ledger against a persisted bank value: ranges must
// be contiguous from 1 in insertion order and sum to the bank.
func (l Ledger) Validate(roundID, bank int64) error {
	var prev int64
	for i, c := range l {
		if c.RangeStart != prev+1 {
			return &InvariantError{RoundID: roundID, Detail: fmt.Sprintf("contribution %d range starts at %d, want %d", i, c.RangeStart, prev+1)}
		}
		if c.RangeEnd != c.RangeStart+c.Value-1 {
			return &InvariantError{RoundID: roundID, Detail: fmt.Sprintf("contribution %d range width %d does not match value %d", i, c.RangeEnd-c.RangeStart+1, c.Value)}
		}
		prev = c.RangeEnd
	}
	if prev != bank {
		return &InvariantError{RoundID: roundID, Detail: fmt.Sprintf("ledger sums to %d, round bank is %d", prev, bank)}
	}
	return nil
}
