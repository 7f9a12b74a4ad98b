package paywall

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresReplayStore backs the used-reference set with a durable,
// queryable settlement audit log. The claim uses INSERT ... ON CONFLICT
// DO NOTHING and inspects RowsAffected to get the same atomic
// check-and-insert semantics as the other backends.
type PostgresReplayStore struct {
	db *sql.DB
}

// NewPostgresReplayStore wraps an existing *sql.DB opened with the
// "postgres" driver (github.com/lib/pq). The caller owns the DB's
// lifecycle; Init creates the backing table if it does not yet exist.
func NewPostgresReplayStore(db *sql.DB) *PostgresReplayStore {
	return &PostgresReplayStore{db: db}
}

// Init creates the settlement_references table if it does not exist.
func (s *PostgresReplayStore) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS settlement_references (
			tx_hash    TEXT NOT NULL,
			chain_id   BIGINT NOT NULL,
			log_index  BIGINT NOT NULL,
			claimed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			expires_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (tx_hash, chain_id, log_index)
		)
	`)
	if err != nil {
		return fmt.Errorf("paywall: init settlement_references table: %w", err)
	}
	return nil
}

func (s *PostgresReplayStore) Claim(ctx context.Context, ref Reference, expiry time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO settlement_references (tx_hash, chain_id, log_index, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tx_hash, chain_id, log_index) DO NOTHING
	`, ref.TxHash.Hex(), ref.ChainID, ref.LogIndex, expiry)
	if err != nil {
		return false, fmt.Errorf("paywall: postgres replay claim: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("paywall: postgres replay claim rows affected: %w", err)
	}
	return affected == 1, nil
}
