package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alejandrodnm/potbot/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Notifier escribiendo mensajes de operador a
// un writer (stdout en producción).
type Console struct {
	out io.Writer
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Notify imprime un mensaje de operador.
func (c *Console) Notify(_ context.Context, msg string) error {
	fmt.Fprintf(c.out, "[%s] %s\n", time.Now().Format("15:04:05"), msg)
	return nil
}

// RenderRound formatea el estado de la ronda como tabla: una fila por
// apostador con sus items, valor y probabilidad de ganar.
func RenderRound(r domain.Round, ledger domain.Ledger) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "round #%d [%s] bank $%.2f", r.ID, r.Status, cents(r.Bank))
	if r.Status == domain.StatusLocked && !r.LockDeadline.IsZero() {
		fmt.Fprintf(&sb, " closes in %s", time.Until(r.LockDeadline).Round(time.Second))
	}
	sb.WriteString("\n")

	aggs := ledger.Aggregates()
	if len(aggs) == 0 {
		sb.WriteString("  no bets yet\n")
		return sb.String()
	}

	table := tablewriter.NewWriter(&sb)
	table.Header("#", "Bettor", "Items", "Value", "Chance")
	for i, a := range aggs {
		name := a.OwnerName
		if name == "" {
			name = a.OwnerID
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			name,
			fmt.Sprintf("%d", a.Items),
			fmt.Sprintf("$%.2f", cents(a.Value)),
			fmt.Sprintf("%.1f%%", a.Chance*100),
		)
	}
	table.Render()
	return sb.String()
}

func cents(v int64) float64 {
	return float64(v) / 100
}
