package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/pnlcore/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PositionStore backed by the given
// connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionSelectCols = `wallet, condition_id, outcome_index, net_tokens,
	cash_flow, trade_count, has_conversions, first_trade, last_trade`

func scanPositionRows(rows pgx.Rows) ([]domain.Position, error) {
	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		if err := rows.Scan(
			&p.Wallet, &p.ConditionID, &p.OutcomeIndex, &p.NetTokens,
			&p.CashFlow, &p.TradeCount, &p.HasConversions,
			&p.FirstTrade, &p.LastTrade,
		); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// ReplaceAll swaps the positions table for the given set inside a single
// transaction, so a partially written aggregation run is never observable.
func (s *PositionStore) ReplaceAll(ctx context.Context, positions []domain.Position) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin position replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM positions`); err != nil {
		return fmt.Errorf("postgres: clear positions: %w", err)
	}

	if len(positions) > 0 {
		rows := make([][]any, 0, len(positions))
		for _, p := range positions {
			rows = append(rows, []any{
				p.Wallet, p.ConditionID, p.OutcomeIndex, p.NetTokens,
				p.CashFlow, p.TradeCount, p.HasConversions,
				p.FirstTrade, p.LastTrade,
			})
		}
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"positions"},
			[]string{
				"wallet", "condition_id", "outcome_index", "net_tokens",
				"cash_flow", "trade_count", "has_conversions",
				"first_trade", "last_trade",
			},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("postgres: copy %d positions: %w", len(positions), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit position replace: %w", err)
	}
	return nil
}

// ListAll returns every position ordered by wallet, condition, outcome.
func (s *PositionStore) ListAll(ctx context.Context) ([]domain.Position, error) {
	query := `SELECT ` + positionSelectCols + ` FROM positions
		ORDER BY wallet, condition_id, outcome_index`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions: %w", err)
	}
	defer rows.Close()

	positions, err := scanPositionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan positions: %w", err)
	}
	return positions, nil
}

// ListByWallet returns the positions of one wallet.
func (s *PositionStore) ListByWallet(ctx context.Context, wallet string) ([]domain.Position, error) {
	query := `SELECT ` + positionSelectCols + ` FROM positions
		WHERE wallet = $1 ORDER BY condition_id, outcome_index`
	rows, err := s.pool.Query(ctx, query, wallet)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions by wallet: %w", err)
	}
	defer rows.Close()

	positions, err := scanPositionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan positions by wallet: %w", err)
	}
	return positions, nil
}

// Count returns the total number of positions.
func (s *PositionStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM positions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count positions: %w", err)
	}
	return n, nil
}
