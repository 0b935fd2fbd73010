package domain

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
)

// Ticket is the commit/reveal pair for one round. The commitment is
// published at round creation; the reveal stays server-side until the
// round reaches drawing, so the draw cannot be adjusted after bets are
// visible.
type Ticket struct {
	Reveal     string // canonical decimal string of a fraction in [0, 1)
	Commitment string // hex(sha256(Reveal))
}

// NewTicket draws a secret fraction and commits to it.
func NewTicket() (Ticket, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return Ticket{}, fmt.Errorf("domain.NewTicket: %w", err)
	}
	f := float64(binary.BigEndian.Uint64(buf[:])>>11) / (1 << 53)
	reveal := formatReveal(f)
	return Ticket{Reveal: reveal, Commitment: CommitmentOf(reveal)}, nil
}

// formatReveal pins the string form of the fraction so the commitment
// and the draw replay byte-identically after a restart.
func formatReveal(f float64) string {
	return strconv.FormatFloat(f, 'f', 18, 64)
}

// CommitmentOf returns the published hash for a reveal string.
func CommitmentOf(reveal string) string {
	sum := sha256.Sum256([]byte(reveal))
	return hex.EncodeToString(sum[:])
}

// RevealFraction parses a persisted reveal back into its fraction.
func RevealFraction(reveal string) (float64, error) {
	f, err := strconv.ParseFloat(reveal, 64)
	if err != nil {
		return 0, fmt.Errorf("domain.RevealFraction: parse %q: %w", reveal, err)
	}
	if f < 0 || f >= 1 {
		return 0, fmt.Errorf("domain.RevealFraction: %q outside [0, 1)", reveal)
	}
	return f, nil
}

// DrawPosition maps the revealed fraction onto [1, bank]. It is a pure
// function of its inputs and always re-evaluates to the same position.
func DrawPosition(bank int64, reveal string) (int64, error) {
	if bank <= 0 {
		return 0, fmt.Errorf("domain.DrawPosition: bank %d must be positive", bank)
	}
	f, err := RevealFraction(reveal)
	if err != nil {
		return 0, err
	}
	pos := int64(f * float64(bank))
	if pos < 1 {
		pos = 1
	}
	if pos > bank {
		pos = bank
	}
	return pos, nil
}
