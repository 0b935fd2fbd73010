package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/potbot/internal/domain"
)

// Storage es la puerta de persistencia para rondas, entradas del ledger,
// la cola de transferencias y stats de usuario. Las operaciones no son
// transaccionales entre llamadas; el recovery del motor tolera secuencias
// aplicadas a medias y reintenta los fallos de persistencia sin límite.
type Storage interface {
	// LoadCurrentRound devuelve la ronda más reciente, o nil si no hay ninguna.
	LoadCurrentRound(ctx context.Context) (*domain.Round, error)

	// CreateRound persiste una ronda nueva, reveal incluido.
	CreateRound(ctx context.Context, r domain.Round) error

	// LoadLedger devuelve las contribuciones de una ronda en orden de inserción.
	LoadLedger(ctx context.Context, roundID int64) (domain.Ledger, error)

	// AppendContribution guarda una contribución y suma al bank de la ronda.
	// Repetir un offer id ya guardado es un no-op.
	AppendContribution(ctx context.Context, c domain.Contribution) error

	// HasContribution indica si un offer id ya figura en el ledger de
	// alguna ronda.
	HasContribution(ctx context.Context, offerID string) (bool, error)

	SetRoundStatus(ctx context.Context, roundID int64, status domain.RoundStatus) error

	// LockRound avanza la ronda a locked y fija el deadline absoluto de
	// la cuenta atrás en una sola escritura.
	LockRound(ctx context.Context, roundID int64, deadline time.Time) error

	RecordWinner(ctx context.Context, roundID int64, winnerID string, share float64) error

	// Cola de transferencias
	EnqueueTransfer(ctx context.Context, e domain.TransferEntry) error
	SetTransferOffer(ctx context.Context, id, offerID string) error
	DequeueTransfer(ctx context.Context, id string) error
	ListTransfers(ctx context.Context) ([]domain.TransferEntry, error)

	// Stats. UpdateUserStats aplica el incremento como máximo una vez
	// por ronda: repetir una ronda ya aplicada es un no-op, así una
	// liquidación reanudada no puede contar doble.
	UpdateUserStats(ctx context.Context, roundID int64, userID string, delta domain.StatsDelta) error
	LoadUserStats(ctx context.Context, userID string) (domain.UserStats, error)

	Close() error
}
