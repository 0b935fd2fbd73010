package storage

// sqlite.go — la puerta de persistencia detrás de ports.Storage.
//
// Estrategia:
//   - `rounds`: una fila por ronda; la más reciente es la ronda actual.
//     El bank se actualiza en la misma transacción que cada inserción de
//     contribución, así el invariante bank == sum(ledger) también vale en disco.
//   - `contributions`: ledger append-only, UNIQUE sobre offer_id para que
//     una oferta re-entregada nunca acredite dos veces.
//   - `transfers`: la cola de confirmación. Las filas se escriben antes de
//     despachar la oferta y se borran solo cuando el estado externo ya no
//     está activo.
//   - `user_stats`: stats históricas del ganador, upsert por liquidación.

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alejandrodnm/potbot/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS rounds (
    id            INTEGER PRIMARY KEY,
    status        TEXT    NOT NULL,
    bank          INTEGER NOT NULL DEFAULT 0,
    commitment    TEXT    NOT NULL,
    reveal        TEXT    NOT NULL,
    winner_id     TEXT,
    winner_share  REAL,
    opened_at     DATETIME NOT NULL,
    lock_deadline DATETIME
);

-- Ledger append-only; seq preserva el orden de inserción por ronda
CREATE TABLE IF NOT EXISTS contributions (
    id          TEXT PRIMARY KEY,
    round_id    INTEGER NOT NULL,
    seq         INTEGER NOT NULL,
    offer_id    TEXT    NOT NULL UNIQUE,
    owner_id    TEXT    NOT NULL,
    owner_name  TEXT    NOT NULL DEFAULT '',
    items       TEXT    NOT NULL,
    value       INTEGER NOT NULL,
    range_start INTEGER NOT NULL,
    range_end   INTEGER NOT NULL,
    accepted_at DATETIME NOT NULL
);

-- Cola de confirmación
CREATE TABLE IF NOT EXISTS transfers (
    id         TEXT PRIMARY KEY,
    offer_id   TEXT    NOT NULL DEFAULT '',
    round_id   INTEGER NOT NULL DEFAULT 0,
    direction  TEXT    NOT NULL,
    asset_ids  TEXT    NOT NULL,
    created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS user_stats (
    user_id      TEXT PRIMARY KEY,
    rounds_won   INTEGER NOT NULL DEFAULT 0,
    total_income INTEGER NOT NULL DEFAULT 0,
    peak_win     INTEGER NOT NULL DEFAULT 0
);

-- Una fila por ronda cuyo incremento de stats ya aterrizó; la PK hace
-- que una liquidación repetida sea un no-op
CREATE TABLE IF NOT EXISTS stats_events (
    round_id INTEGER PRIMARY KEY,
    user_id  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_contrib_round ON contributions(round_id, seq);
CREATE INDEX IF NOT EXISTS idx_transfer_offer ON transfers(offer_id);
`

// SQLiteStorage implementa ports.Storage usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada y
// aplica el schema.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// LoadCurrentRound devuelve la ronda con el id más alto, o nil si la
// base está vacía.
func (s *SQLiteStorage) LoadCurrentRound(ctx context.Context) (*domain.Round, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, bank, commitment, reveal, winner_id, winner_share, opened_at, lock_deadline
		FROM rounds ORDER BY id DESC LIMIT 1`)

	var (
		r        domain.Round
		status   string
		winner   sql.NullString
		share    sql.NullFloat64
		deadline sql.NullTime
	)
	err := row.Scan(&r.ID, &status, &r.Bank, &r.Commitment, &r.Reveal, &winner, &share, &r.OpenedAt, &deadline)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage.LoadCurrentRound: %w", err)
	}
	r.Status = domain.RoundStatus(status)
	r.WinnerID = winner.String
	r.WinnerShare = share.Float64
	if deadline.Valid {
		r.LockDeadline = deadline.Time
	}
	return &r, nil
}

// CreateRound persiste una ronda nueva, reveal incluido.
func (s *SQLiteStorage) CreateRound(ctx context.Context, r domain.Round) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rounds (id, status, bank, commitment, reveal, opened_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Status), r.Bank, r.Commitment, r.Reveal, r.OpenedAt.UTC())
	if err != nil {
		return fmt.Errorf("storage.CreateRound: round %d: %w", r.ID, err)
	}
	return nil
}

// LoadLedger devuelve las contribuciones de una ronda en orden de inserción.
func (s *SQLiteStorage) LoadLedger(ctx context.Context, roundID int64) (domain.Ledger, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, offer_id, owner_id, owner_name, items, value, range_start, range_end, accepted_at
		FROM contributions WHERE round_id = ? ORDER BY seq ASC`, roundID)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadLedger: round %d: %w", roundID, err)
	}
	defer rows.Close()

	var ledger domain.Ledger
	for rows.Next() {
		var (
			c     domain.Contribution
			items string
		)
		c.RoundID = roundID
		if err := rows.Scan(&c.ID, &c.OfferID, &c.OwnerID, &c.OwnerName, &items, &c.Value, &c.RangeStart, &c.RangeEnd, &c.AcceptedAt); err != nil {
			return nil, fmt.Errorf("storage.LoadLedger: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(items), &c.Items); err != nil {
			return nil, fmt.Errorf("storage.LoadLedger: items for %s: %w", c.ID, err)
		}
		ledger = append(ledger, c)
	}
	return ledger, rows.Err()
}

// AppendContribution guarda una contribución y suma al bank de la ronda
// en una transacción. Un offer_id duplicado deja ambos intactos.
func (s *SQLiteStorage) AppendContribution(ctx context.Context, c domain.Contribution) error {
	items, err := json.Marshal(c.Items)
	if err != nil {
		return fmt.Errorf("storage.AppendContribution: marshal items: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.AppendContribution: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO contributions
		(id, round_id, seq, offer_id, owner_id, owner_name, items, value, range_start, range_end, accepted_at)
		VALUES (?, ?, (SELECT COUNT(*) FROM contributions WHERE round_id = ?), ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.RoundID, c.RoundID, c.OfferID, c.OwnerID, c.OwnerName, string(items),
		c.Value, c.RangeStart, c.RangeEnd, c.AcceptedAt.UTC())
	if err != nil {
		return fmt.Errorf("storage.AppendContribution: insert: %w", err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE rounds SET bank = bank + ? WHERE id = ?`, c.Value, c.RoundID); err != nil {
			return fmt.Errorf("storage.AppendContribution: bump bank: %w", err)
		}
	}
	return tx.Commit()
}

// HasContribution indica si una oferta ya figura en el ledger de alguna ronda.
func (s *SQLiteStorage) HasContribution(ctx context.Context, offerID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM contributions WHERE offer_id = ?`, offerID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("storage.HasContribution: %w", err)
	}
	return n > 0, nil
}

// SetRoundStatus avanza el estado del ciclo de vida de la ronda.
func (s *SQLiteStorage) SetRoundStatus(ctx context.Context, roundID int64, status domain.RoundStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE rounds SET status = ? WHERE id = ?`, string(status), roundID)
	if err != nil {
		return fmt.Errorf("storage.SetRoundStatus: round %d: %w", roundID, err)
	}
	return nil
}

// LockRound pone el estado en locked y fija el deadline absoluto de la
// cuenta atrás en una sola escritura, para que el recovery lo respete
// tras un crash.
func (s *SQLiteStorage) LockRound(ctx context.Context, roundID int64, deadline time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE rounds SET status = ?, lock_deadline = ? WHERE id = ?`,
		string(domain.StatusLocked), deadline.UTC(), roundID)
	if err != nil {
		return fmt.Errorf("storage.LockRound: round %d: %w", roundID, err)
	}
	return nil
}

// RecordWinner guarda el ganador sorteado y su porción del bank.
func (s *SQLiteStorage) RecordWinner(ctx context.Context, roundID int64, winnerID string, share float64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE rounds SET winner_id = ?, winner_share = ? WHERE id = ?`,
		winnerID, share, roundID)
	if err != nil {
		return fmt.Errorf("storage.RecordWinner: round %d: %w", roundID, err)
	}
	return nil
}

// EnqueueTransfer registra la intención de transferencia. Re-encolar el
// mismo ID es un no-op.
func (s *SQLiteStorage) EnqueueTransfer(ctx context.Context, e domain.TransferEntry) error {
	assets, err := json.Marshal(e.AssetIDs)
	if err != nil {
		return fmt.Errorf("storage.EnqueueTransfer: marshal assets: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO transfers (id, offer_id, round_id, direction, asset_ids, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.OfferID, e.RoundID, string(e.Direction), string(assets), e.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("storage.EnqueueTransfer: %w", err)
	}
	return nil
}

// SetTransferOffer completa el offer ID externo cuando el despacho responde.
func (s *SQLiteStorage) SetTransferOffer(ctx context.Context, id, offerID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE transfers SET offer_id = ? WHERE id = ?`, offerID, id)
	if err != nil {
		return fmt.Errorf("storage.SetTransferOffer: %s: %w", id, err)
	}
	return nil
}

// DequeueTransfer elimina una entrada confirmada. Eliminar una entrada
// ausente es un no-op, así la reconciliación queda idempotente.
func (s *SQLiteStorage) DequeueTransfer(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM transfers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("storage.DequeueTransfer: %s: %w", id, err)
	}
	return nil
}

// ListTransfers devuelve todas las entradas en cola, las más viejas primero.
func (s *SQLiteStorage) ListTransfers(ctx context.Context) ([]domain.TransferEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, offer_id, round_id, direction, asset_ids, created_at
		FROM transfers ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("storage.ListTransfers: %w", err)
	}
	defer rows.Close()

	var entries []domain.TransferEntry
	for rows.Next() {
		var (
			e         domain.TransferEntry
			direction string
			assets    string
		)
		if err := rows.Scan(&e.ID, &e.OfferID, &e.RoundID, &direction, &assets, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage.ListTransfers: scan: %w", err)
		}
		e.Direction = domain.TransferDirection(direction)
		if err := json.Unmarshal([]byte(assets), &e.AssetIDs); err != nil {
			return nil, fmt.Errorf("storage.ListTransfers: assets for %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpdateUserStats aplica un incremento de stats y trackea el peak win.
// El incremento aterriza como máximo una vez por ronda: el insert en
// stats_events y el upsert comparten transacción, y una ronda ya
// registrada deja las stats intactas.
func (s *SQLiteStorage) UpdateUserStats(ctx context.Context, roundID int64, userID string, delta domain.StatsDelta) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.UpdateUserStats: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO stats_events (round_id, user_id) VALUES (?, ?)`,
		roundID, userID)
	if err != nil {
		return fmt.Errorf("storage.UpdateUserStats: round %d: %w", roundID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil // ya aplicado para esta ronda
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO user_stats (user_id, rounds_won, total_income, peak_win)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			rounds_won   = rounds_won + excluded.rounds_won,
			total_income = total_income + excluded.total_income,
			peak_win     = MAX(peak_win, excluded.peak_win)`,
		userID, delta.RoundsWon, delta.Income, delta.WinValue); err != nil {
		return fmt.Errorf("storage.UpdateUserStats: %s: %w", userID, err)
	}
	return tx.Commit()
}

// LoadUserStats devuelve el histórico del usuario (valor cero si no existe).
func (s *SQLiteStorage) LoadUserStats(ctx context.Context, userID string) (domain.UserStats, error) {
	stats := domain.UserStats{UserID: userID}
	err := s.db.QueryRowContext(ctx, `
		SELECT rounds_won, total_income, peak_win FROM user_stats WHERE user_id = ?`,
		userID).Scan(&stats.RoundsWon, &stats.Income, &stats.PeakWin)
	if err == sql.ErrNoRows {
		return stats, nil
	}
	if err != nil {
		return stats, fmt.Errorf("storage.LoadUserStats: %s: %w", userID, err)
	}
	return stats, nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
