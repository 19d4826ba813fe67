package rounds

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit      = 200
)

// Repository is the Postgres-backed Round Repository. One row per
// round, keyed by round_id, with the bets stored as a JSONB column —
// this service has no teacher equivalent (the teacher never persists
// rounds durably), so the schema follows spec.md §3/§4.5 directly.
type Repository struct {
	db *sql.DB
}

// New builds a Repository over db (internal/database.Service.DB()).
func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Save idempotently upserts round, per spec.md §4.5 ("save(round) —
// idempotent on round_id"): a round_id that already exists is updated
// in place rather than duplicated, so the engine can persist the same
// round multiple times as it moves WAITING → RUNNING → CRASHED without
// ever producing two rows for one round_id.
func (r *Repository) Save(ctx context.Context, round Round) error {
	betsJSON, err := json.Marshal(round.Bets)
	if err != nil {
		return fmt.Errorf("marshal bets: %w", err)
	}

	const query = `
INSERT INTO rounds (round_id, round_number, seed, hash, crash_point, status, created_at, started_at, crashed_at, bets)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (round_id) DO UPDATE SET
	crash_point = EXCLUDED.crash_point,
	status      = EXCLUDED.status,
	started_at  = EXCLUDED.started_at,
	crashed_at  = EXCLUDED.crashed_at,
	bets        = EXCLUDED.bets`

	_, err = r.db.ExecContext(ctx, query,
		round.RoundID, round.RoundNumber, round.Seed, round.Hash, round.CrashPoint,
		round.Status, round.CreatedAt, round.StartedAt, round.CrashedAt, betsJSON)
	if err != nil {
		return fmt.Errorf("save round: %w", err)
	}
	return nil
}

// Recent returns the last limit crashed rounds, newest first. limit is
// clamped to [1, 200] with a default of 50 (spec.md §4.5).
func (r *Repository) Recent(ctx context.Context, limit int) ([]Round, error) {
	switch {
	case limit <= 0:
		limit = defaultRecentLimit
	case limit > maxRecentLimit:
		limit = maxRecentLimit
	}

	const query = `
SELECT round_id, round_number, seed, hash, crash_point, status, created_at, started_at, crashed_at, bets
FROM rounds
WHERE status = $1
ORDER BY created_at DESC
LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, StatusCrashed, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent rounds: %w", err)
	}
	defer rows.Close()

	var out []Round
	for rows.Next() {
		var round Round
		var betsJSON []byte
		if err := rows.Scan(
			&round.RoundID, &round.RoundNumber, &round.Seed, &round.Hash, &round.CrashPoint,
			&round.Status, &round.CreatedAt, &round.StartedAt, &round.CrashedAt, &betsJSON,
		); err != nil {
			return nil, fmt.Errorf("scan round row: %w", err)
		}
		if err := json.Unmarshal(betsJSON, &round.Bets); err != nil {
			return nil, fmt.Errorf("unmarshal bets: %w", err)
		}
		out = append(out, round)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent rounds: %w", err)
	}
	return out, nil
}
