package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/pnlcore/internal/domain"
)

// WatermarkStore implements domain.WatermarkStore using PostgreSQL.
type WatermarkStore struct {
	pool *pgxpool.Pool
}

// NewWatermarkStore creates a new WatermarkStore backed by the given
// connection pool.
func NewWatermarkStore(pool *pgxpool.Pool) *WatermarkStore {
	return &WatermarkStore{pool: pool}
}

// Get returns the watermark for one source, or domain.ErrNotFound for a
// source that has never ingested.
func (s *WatermarkStore) Get(ctx context.Context, source string) (domain.Watermark, error) {
	var w domain.Watermark
	err := s.pool.QueryRow(ctx, `
		SELECT source, last_block_number, last_event_time, updated_at
		FROM watermarks WHERE source = $1`, source,
	).Scan(&w.Source, &w.LastBlockNumber, &w.LastEventTime, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Watermark{}, domain.ErrNotFound
		}
		return domain.Watermark{}, fmt.Errorf("postgres: get watermark for %s: %w", source, err)
	}
	return w, nil
}

// Upsert writes the watermark for one source.
func (s *WatermarkStore) Upsert(ctx context.Context, w domain.Watermark) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO watermarks (source, last_block_number, last_event_time, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source) DO UPDATE SET
			last_block_number = EXCLUDED.last_block_number,
			last_event_time = EXCLUDED.last_event_time,
			updated_at = EXCLUDED.updated_at`,
		w.Source, w.LastBlockNumber, w.LastEventTime, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert watermark for %s: %w", w.Source, err)
	}
	return nil
}

// List returns every watermark row.
func (s *WatermarkStore) List(ctx context.Context) ([]domain.Watermark, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT source, last_block_number, last_event_time, updated_at
		FROM watermarks ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list watermarks: %w", err)
	}
	defer rows.Close()

	var watermarks []domain.Watermark
	for rows.Next() {
		var w domain.Watermark
		if err := rows.Scan(&w.Source, &w.LastBlockNumber, &w.LastEventTime, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan watermark: %w", err)
		}
		watermarks = append(watermarks, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate watermarks: %w", err)
	}
	return watermarks, nil
}
