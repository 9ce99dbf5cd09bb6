package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/pnlcore/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection
// pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketSelectCols = `condition_id, question, slug, outcomes, neg_risk,
	status, created_at, updated_at`

func scanMarketRow(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	err := row.Scan(
		&m.ConditionID, &m.Question, &m.Slug, &m.Outcomes,
		&m.NegRisk, &m.Status, &m.CreatedAt, &m.UpdatedAt,
	)
	return m, err
}

// UpsertMarket writes one market keyed on condition_id.
func (s *MarketStore) UpsertMarket(ctx context.Context, m domain.Market) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO markets (
			condition_id, question, slug, outcomes, neg_risk,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (condition_id) DO UPDATE SET
			question = EXCLUDED.question,
			slug = EXCLUDED.slug,
			outcomes = EXCLUDED.outcomes,
			neg_risk = EXCLUDED.neg_risk,
			updated_at = EXCLUDED.updated_at`,
		m.ConditionID, m.Question, m.Slug, m.Outcomes, m.NegRisk,
		string(m.Status), m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert market %s: %w", m.ConditionID, err)
	}
	return nil
}

// UpsertMappings writes token mappings. The mapping is append-only; a
// conflict on token_id means the same derivation re-ran and is a no-op.
func (s *MarketStore) UpsertMappings(ctx context.Context, mappings []domain.TokenMapping) error {
	if len(mappings) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO token_mappings (token_id, condition_id, outcome_index, outcome)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token_id) DO NOTHING`

	for _, tm := range mappings {
		batch.Queue(query, tm.TokenID, tm.ConditionID, tm.OutcomeIndex, tm.Outcome)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range mappings {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert mapping batch item %d: %w", i, err)
		}
	}
	return nil
}

// GetMarket returns one market by condition id.
func (s *MarketStore) GetMarket(ctx context.Context, conditionID string) (domain.Market, error) {
	query := `SELECT ` + marketSelectCols + ` FROM markets WHERE condition_id = $1`
	m, err := scanMarketRow(s.pool.QueryRow(ctx, query, conditionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", conditionID, err)
	}
	return m, nil
}

// GetMappingByToken returns the mapping for one token id.
func (s *MarketStore) GetMappingByToken(ctx context.Context, tokenID string) (domain.TokenMapping, error) {
	var tm domain.TokenMapping
	err := s.pool.QueryRow(ctx, `
		SELECT token_id, condition_id, outcome_index, outcome
		FROM token_mappings WHERE token_id = $1`, tokenID,
	).Scan(&tm.TokenID, &tm.ConditionID, &tm.OutcomeIndex, &tm.Outcome)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TokenMapping{}, domain.ErrNotFound
		}
		return domain.TokenMapping{}, fmt.Errorf("postgres: get mapping for token %s: %w", tokenID, err)
	}
	return tm, nil
}

// ListMarkets returns markets ordered by creation time descending.
func (s *MarketStore) ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketSelectCols + ` FROM markets ORDER BY created_at DESC`
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
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		var m domain.Market
		if err := rows.Scan(
			&m.ConditionID, &m.Question, &m.Slug, &m.Outcomes,
			&m.NegRisk, &m.Status, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate markets: %w", err)
	}
	return markets, nil
}

// SetStatus updates the lifecycle status of one market.
func (s *MarketStore) SetStatus(ctx context.Context, conditionID string, status domain.MarketStatus) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE markets SET status = $2, updated_at = NOW()
		WHERE condition_id = $1`,
		conditionID, string(status),
	)
	if err != nil {
		return fmt.Errorf("postgres: set status for %s: %w", conditionID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: set status for %s: %w", conditionID, domain.ErrNotFound)
	}
	return nil
}
