// internal/database/game.go
package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mbeaudry/quarte/internal/game"
)

// Store implements game.Persistence on the shared pgx pool.
//
// Schema:
//
//	CREATE TABLE sessions (
//	    id         uuid PRIMARY KEY,
//	    status     text NOT NULL,
//	    state      jsonb,
//	    updated_at timestamptz NOT NULL DEFAULT now()
//	);
//	CREATE TABLE session_results (
//	    session_id   uuid REFERENCES sessions (id),
//	    seat_name    text NOT NULL,
//	    team         int NOT NULL,
//	    did_win      bool NOT NULL,
//	    tricks_won   int NOT NULL,
//	    points_won   int NOT NULL,
//	    PRIMARY KEY (session_id, seat_name)
//	);
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps the given pool, defaulting to the global DB.
func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		pool = DB
	}
	return &Store{pool: pool}
}

// SaveSnapshot upserts the full session state as jsonb. Called from the
// debounced snapshot path.
func (s *Store) SaveSnapshot(ctx context.Context, snap *game.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	status := "in_progress"
	if snap.Concluded {
		status = "completed"
	}
	q := `
		INSERT INTO sessions (id, status, state, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id)
		DO UPDATE SET status = EXCLUDED.status, state = EXCLUDED.state, updated_at = NOW()
	`
	if _, err := s.pool.Exec(ctx, q, snap.SessionID, status, data); err != nil {
		return fmt.Errorf("upsert session snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads a previously saved session state.
func (s *Store) LoadSnapshot(ctx context.Context, sessionID uuid.UUID) (*game.Snapshot, error) {
	var data []byte
	q := `SELECT state FROM sessions WHERE id = $1`
	if err := s.pool.QueryRow(ctx, q, sessionID).Scan(&data); err != nil {
		return nil, fmt.Errorf("load session snapshot: %w", err)
	}
	var snap game.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal session snapshot: %w", err)
	}
	return &snap, nil
}

// RecordFinishedMatch writes the final snapshot and the per-seat results in
// one transaction.
func (s *Store) RecordFinishedMatch(ctx context.Context, snap *game.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal final snapshot: %w", err)
	}
	err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		upsert := `
			INSERT INTO sessions (id, status, state, updated_at)
			VALUES ($1, 'completed', $2, NOW())
			ON CONFLICT (id)
			DO UPDATE SET status = 'completed', state = EXCLUDED.state, updated_at = NOW()
		`
		if _, e := tx.Exec(ctx, upsert, snap.SessionID, data); e != nil {
			return e
		}
		for _, seat := range snap.Seats {
			q := `
				INSERT INTO session_results (session_id, seat_name, team, did_win, tricks_won, points_won)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (session_id, seat_name)
				DO UPDATE SET team=$3, did_win=$4, tricks_won=$5, points_won=$6
			`
			didWin := seat.Team == snap.WinningTeam
			if _, e := tx.Exec(ctx, q, snap.SessionID, seat.Name, seat.Team, didWin, seat.TricksWon, seat.PointsWon); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx record finished match: %w", err)
	}
	return nil
}
