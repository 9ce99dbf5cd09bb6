package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/pnlcore/internal/domain"
)

// SummaryStore implements domain.SummaryStore using PostgreSQL.
type SummaryStore struct {
	pool *pgxpool.Pool
}

// NewSummaryStore creates a new SummaryStore backed by the given connection
// pool.
func NewSummaryStore(pool *pgxpool.Pool) *SummaryStore {
	return &SummaryStore{pool: pool}
}

const summarySelectCols = `wallet, realized_pnl, unrealized_pnl,
	total_positions, open_positions, resolved_positions,
	confidence, confidence_reason, last_updated`

func scanSummaryRow(row pgx.Row) (domain.WalletSummary, error) {
	var s domain.WalletSummary
	err := row.Scan(
		&s.Wallet, &s.RealizedPnL, &s.UnrealizedPnL,
		&s.TotalPositions, &s.OpenPositions, &s.ResolvedPositions,
		&s.Confidence, &s.ConfidenceReason, &s.LastUpdated,
	)
	return s, err
}

// ReplaceAll swaps the wallet summary table for the given set inside a
// single transaction.
func (s *SummaryStore) ReplaceAll(ctx context.Context, summaries []domain.WalletSummary) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin summary replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM wallet_summaries`); err != nil {
		return fmt.Errorf("postgres: clear summaries: %w", err)
	}

	if len(summaries) > 0 {
		rows := make([][]any, 0, len(summaries))
		for _, ws := range summaries {
			rows = append(rows, []any{
				ws.Wallet, ws.RealizedPnL, ws.UnrealizedPnL,
				ws.TotalPositions, ws.OpenPositions, ws.ResolvedPositions,
				string(ws.Confidence), ws.ConfidenceReason, ws.LastUpdated,
			})
		}
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"wallet_summaries"},
			[]string{
				"wallet", "realized_pnl", "unrealized_pnl",
				"total_positions", "open_positions", "resolved_positions",
				"confidence", "confidence_reason", "last_updated",
			},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("postgres: copy %d summaries: %w", len(summaries), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit summary replace: %w", err)
	}
	return nil
}

// Get returns the summary for one wallet.
func (s *SummaryStore) Get(ctx context.Context, wallet string) (domain.WalletSummary, error) {
	query := `SELECT ` + summarySelectCols + ` FROM wallet_summaries WHERE wallet = $1`
	summary, err := scanSummaryRow(s.pool.QueryRow(ctx, query, wallet))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.WalletSummary{}, domain.ErrNotFound
		}
		return domain.WalletSummary{}, fmt.Errorf("postgres: get summary for %s: %w", wallet, err)
	}
	return summary, nil
}

// List returns summaries ordered by realized PnL descending.
func (s *SummaryStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.WalletSummary, error) {
	query := `SELECT ` + summarySelectCols + ` FROM wallet_summaries
		ORDER BY realized_pnl DESC, wallet ASC`
	args := []any{}
	argIdx := 1

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list summaries: %w", err)
	}
	defer rows.Close()

	var summaries []domain.WalletSummary
	for rows.Next() {
		var ws domain.WalletSummary
		if err := rows.Scan(
			&ws.Wallet, &ws.RealizedPnL, &ws.UnrealizedPnL,
			&ws.TotalPositions, &ws.OpenPositions, &ws.ResolvedPositions,
			&ws.Confidence, &ws.ConfidenceReason, &ws.LastUpdated,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan summary: %w", err)
		}
		summaries = append(summaries, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate summaries: %w", err)
	}
	return summaries, nil
}

// Count returns the total number of wallet summaries.
func (s *SummaryStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM wallet_summaries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count summaries: %w", err)
	}
	return n, nil
}
