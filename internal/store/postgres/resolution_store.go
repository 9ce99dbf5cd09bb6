package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/pnlcore/internal/domain"
)

// ResolutionStore implements domain.ResolutionStore using PostgreSQL.
type ResolutionStore struct {
	pool *pgxpool.Pool
}

// NewResolutionStore creates a new ResolutionStore backed by the given
// connection pool.
func NewResolutionStore(pool *pgxpool.Pool) *ResolutionStore {
	return &ResolutionStore{pool: pool}
}

// UpsertBatch writes resolutions keyed on condition_id. Oracle payout
// vectors are immutable once reported, but replace-on-conflict keeps
// re-ingestion of an overlap window harmless.
func (s *ResolutionStore) UpsertBatch(ctx context.Context, resolutions []domain.Resolution) error {
	if len(resolutions) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO resolutions (
			condition_id, payout_numerators, payout_denominator, resolved_at
		) VALUES ($1, $2, $3, $4)
		ON CONFLICT (condition_id) DO UPDATE SET
			payout_numerators = EXCLUDED.payout_numerators,
			payout_denominator = EXCLUDED.payout_denominator,
			resolved_at = EXCLUDED.resolved_at`

	for _, r := range resolutions {
		batch.Queue(query, r.ConditionID, r.PayoutNumerators, r.PayoutDenominator, r.ResolvedAt)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range resolutions {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert resolution batch item %d: %w", i, err)
		}
	}
	return nil
}

// Get returns the resolution for one condition.
func (s *ResolutionStore) Get(ctx context.Context, conditionID string) (domain.Resolution, error) {
	var r domain.Resolution
	err := s.pool.QueryRow(ctx, `
		SELECT condition_id, payout_numerators, payout_denominator, resolved_at
		FROM resolutions WHERE condition_id = $1`, conditionID,
	).Scan(&r.ConditionID, &r.PayoutNumerators, &r.PayoutDenominator, &r.ResolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Resolution{}, domain.ErrNotFound
		}
		return domain.Resolution{}, fmt.Errorf("postgres: get resolution for %s: %w", conditionID, err)
	}
	return r, nil
}

// ListAll returns every resolution.
func (s *ResolutionStore) ListAll(ctx context.Context) ([]domain.Resolution, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT condition_id, payout_numerators, payout_denominator, resolved_at
		FROM resolutions ORDER BY resolved_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list resolutions: %w", err)
	}
	defer rows.Close()

	var resolutions []domain.Resolution
	for rows.Next() {
		var r domain.Resolution
		if err := rows.Scan(&r.ConditionID, &r.PayoutNumerators, &r.PayoutDenominator, &r.ResolvedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan resolution: %w", err)
		}
		resolutions = append(resolutions, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate resolutions: %w", err)
	}
	return resolutions, nil
}

// LatestResolvedAt returns the most recent resolution time, or the zero
// time when no resolutions exist.
func (s *ResolutionStore) LatestResolvedAt(ctx context.Context) (time.Time, error) {
	var ts *time.Time
	if err := s.pool.QueryRow(ctx, `SELECT MAX(resolved_at) FROM resolutions`).Scan(&ts); err != nil {
		return time.Time{}, fmt.Errorf("postgres: latest resolved_at: %w", err)
	}
	if ts == nil {
		return time.Time{}, nil
	}
	return *ts, nil
}
