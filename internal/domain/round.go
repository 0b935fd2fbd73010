package domain

import (
	"fmt"
	"time"
)

// RoundStatus is the lifecycle state of a round.
type RoundStatus string

const (
	StatusCollecting RoundStatus = "collecting"
	StatusLocked     RoundStatus = "locked"
	StatusDrawing    RoundStatus = "drawing"
	StatusSettled    RoundStatus = "settled"
)

// Round is one complete betting cycle. Exactly one round is non-terminal
// at any time; Reveal is chosen at creation, persisted immediately, and
// disclosed only once the round reaches drawing.
type Round struct {
	ID           int64
	Status       RoundStatus
	Bank         int64 // total accepted value, cents
	Commitment   string
	Reveal       string
	WinnerID     string
	WinnerShare  float64
	OpenedAt     time.Time
	LockDeadline time.Time // zero until the round locks
}

// NewRound creates a fresh collecting round with a new fairness ticket.
func NewRound(id int64, now time.Time) (Round, error) {
	t, err := NewTicket()
	if err != nil {
		return Round{}, fmt.Errorf("domain.NewRound: %w", err)
	}
	return Round{
		ID:         id,
		Status:     StatusCollecting,
		Commitment: t.Commitment,
		Reveal:     t.Reveal,
		OpenedAt:   now,
	}, nil
}

// Open reports whether the round still accepts contributions.
func (r Round) Open() bool {
	return r.Status == StatusCollecting || r.Status == StatusLocked
}

// InvariantError marks persisted state that violates a round invariant.
// It is fatal: the engine refuses to resume rather than guess a repair.
type InvariantError struct {
	RoundID int64
	Detail  string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("round %d: invariant violation: %s", e.RoundID, e.Detail)
}
