package notify

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/potbot/internal/domain"
)

func TestConsole_Notify(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf)

	require.NoError(t, c.Notify(context.Background(), "round #1 open"))
	assert.Contains(t, buf.String(), "round #1 open")
}

func TestRenderRound_EmptyLedger(t *testing.T) {
	r := domain.Round{ID: 4, Status: domain.StatusCollecting}

	out := RenderRound(r, nil)
	assert.Contains(t, out, "round #4")
	assert.Contains(t, out, "no bets yet")
}

func TestRenderRound_ListsBettorsByValue(t *testing.T) {
	now := time.Now().UTC()
	var ledger domain.Ledger
	c1 := ledger.NextContribution("c1", 4, "o1", "A", "alice", []domain.Item{{AssetID: "1", Value: 2500}}, now)
	ledger = append(ledger, c1)
	c2 := ledger.NextContribution("c2", 4, "o2", "B", "bob", []domain.Item{{AssetID: "2", Value: 7500}}, now)
	ledger = append(ledger, c2)

	r := domain.Round{ID: 4, Status: domain.StatusLocked, Bank: 10000, LockDeadline: now.Add(time.Minute)}

	out := RenderRound(r, ledger)
	assert.Contains(t, out, "bank $100.00")
	assert.Contains(t, out, "closes in")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "bob")
	assert.Contains(t, out, "75.0%")
	assert.Contains(t, out, "25.0%")

	// Highest value listed first.
	assert.Less(t, indexOf(t, out, "bob"), indexOf(t, out, "alice"))
}

func indexOf(t *testing.T, s, sub string) int {
	t.Helper()
	idx := bytes.Index([]byte(s), []byte(sub))
	require.GreaterOrEqual(t, idx, 0, "%q not found", sub)
	return idx
}
