package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/pnlcore/internal/domain"
)

// FillStore implements domain.FillStore using PostgreSQL.
type FillStore struct {
	pool *pgxpool.Pool
}

// NewFillStore creates a new FillStore backed by the given connection pool.
func NewFillStore(pool *pgxpool.Pool) *FillStore {
	return &FillStore{pool: pool}
}

const fillSelectCols = `fill_id, event_time, block_number, wallet,
	condition_id, outcome_index, tokens_delta, usdc_delta,
	source, is_self_fill, is_maker, tx_hash`

func scanFillRows(rows pgx.Rows) ([]domain.Fill, error) {
	var fills []domain.Fill
	for rows.Next() {
		var f domain.Fill
		if err := rows.Scan(
			&f.FillID, &f.EventTime, &f.BlockNumber, &f.Wallet,
			&f.ConditionID, &f.OutcomeIndex, &f.TokensDelta, &f.USDCDelta,
			&f.Source, &f.IsSelfFill, &f.IsMaker, &f.TxHash,
		); err != nil {
			return nil, err
		}
		fills = append(fills, f)
	}
	return fills, rows.Err()
}

// UpsertBatch writes fills keyed on fill_id with replace-on-conflict
// semantics, so re-ingesting an overlap window is idempotent.
func (s *FillStore) UpsertBatch(ctx context.Context, fills []domain.Fill) error {
	if len(fills) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO fills (
			fill_id, event_time, block_number, wallet,
			condition_id, outcome_index, tokens_delta, usdc_delta,
			source, is_self_fill, is_maker, tx_hash
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12
		) ON CONFLICT (fill_id) DO UPDATE SET
			event_time = EXCLUDED.event_time,
			block_number = EXCLUDED.block_number,
			wallet = EXCLUDED.wallet,
			condition_id = EXCLUDED.condition_id,
			outcome_index = EXCLUDED.outcome_index,
			tokens_delta = EXCLUDED.tokens_delta,
			usdc_delta = EXCLUDED.usdc_delta,
			source = EXCLUDED.source,
			is_self_fill = EXCLUDED.is_self_fill,
			is_maker = EXCLUDED.is_maker,
			tx_hash = EXCLUDED.tx_hash`

	for _, f := range fills {
		batch.Queue(query,
			f.FillID, f.EventTime, f.BlockNumber, f.Wallet,
			f.ConditionID, f.OutcomeIndex, f.TokensDelta, f.USDCDelta,
			string(f.Source), f.IsSelfFill, f.IsMaker, f.TxHash,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range fills {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert fill batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListAll returns every fill ordered by event time then fill id.
func (s *FillStore) ListAll(ctx context.Context) ([]domain.Fill, error) {
	query := `SELECT ` + fillSelectCols + ` FROM fills ORDER BY event_time ASC, fill_id ASC`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list fills: %w", err)
	}
	defer rows.Close()

	fills, err := scanFillRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan fills: %w", err)
	}
	return fills, nil
}

// ListByWallet returns fills for a wallet with pagination and optional time
// filtering.
func (s *FillStore) ListByWallet(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.Fill, error) {
	query := `SELECT ` + fillSelectCols + ` FROM fills WHERE wallet = $1`
	args := []any{wallet}

	query, args = applyListOpts(query, args, opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list fills by wallet: %w", err)
	}
	defer rows.Close()

	fills, err := scanFillRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan fills by wallet: %w", err)
	}
	return fills, nil
}

// ListByCondition returns fills for a condition with pagination and
// optional time filtering.
func (s *FillStore) ListByCondition(ctx context.Context, conditionID string, opts domain.ListOpts) ([]domain.Fill, error) {
	query := `SELECT ` + fillSelectCols + ` FROM fills WHERE condition_id = $1`
	args := []any{conditionID}

	query, args = applyListOpts(query, args, opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list fills by condition: %w", err)
	}
	defer rows.Close()

	fills, err := scanFillRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan fills by condition: %w", err)
	}
	return fills, nil
}

// Count returns the total number of ledger rows.
func (s *FillStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM fills`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count fills: %w", err)
	}
	return n, nil
}

// CountBySource returns row counts grouped by event source.
func (s *FillStore) CountBySource(ctx context.Context) (map[domain.FillSource]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT source, COUNT(*) FROM fills GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("postgres: count fills by source: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.FillSource]int64)
	for rows.Next() {
		var source string
		var n int64
		if err := rows.Scan(&source, &n); err != nil {
			return nil, fmt.Errorf("postgres: scan source count: %w", err)
		}
		counts[domain.FillSource(source)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate source counts: %w", err)
	}
	return counts, nil
}

// applyListOpts appends time filters, ordering, and pagination to a fill
// list query whose args already hold one positional parameter.
func applyListOpts(query string, args []any, opts domain.ListOpts) (string, []any) {
	argIdx := len(args) + 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND event_time >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND event_time <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY event_time DESC, fill_id DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}
	return query, args
}
