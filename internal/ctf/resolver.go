package ctf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/pnlcore/internal/domain"
)

// Resolver maps opaque token ids to (condition, outcome index) pairs. Reads
// go through the cache first, then the market store; a token with no known
// mapping returns domain.ErrUnresolvedToken and is never guessed into an
// arbitrary outcome.
type Resolver struct {
	cache  domain.TokenCache
	store  domain.MarketStore
	logger *slog.Logger
}

// NewResolver creates a Resolver backed by the given cache and store.
func NewResolver(cache domain.TokenCache, store domain.MarketStore, logger *slog.Logger) *Resolver {
	return &Resolver{
		cache:  cache,
		store:  store,
		logger: logger,
	}
}

// Resolve returns the mapping for the given token id. Cache misses fall
// through to the store and backfill the cache.
func (r *Resolver) Resolve(ctx context.Context, tokenID string) (domain.TokenMapping, error) {
	m, err := r.cache.Get(ctx, tokenID)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		// Cache trouble is not fatal; the store is authoritative.
		r.logger.Warn("token cache read failed",
			slog.String("token_id", tokenID),
			slog.String("error", err.Error()),
		)
	}

	m, err = r.store.GetMappingByToken(ctx, tokenID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.TokenMapping{}, fmt.Errorf("ctf: token %s: %w", tokenID, domain.ErrUnresolvedToken)
		}
		return domain.TokenMapping{}, fmt.Errorf("ctf: resolve token %s: %w", tokenID, err)
	}

	if err := r.cache.Set(ctx, m); err != nil {
		r.logger.Warn("token cache backfill failed",
			slog.String("token_id", tokenID),
			slog.String("error", err.Error()),
		)
	}
	return m, nil
}

// SyncMarket derives the token id for every outcome of the market and
// persists the market plus its mappings. The derivation is deterministic,
// so syncing an existing market is a no-op upsert.
func (r *Resolver) SyncMarket(ctx context.Context, m domain.Market) error {
	if len(m.Outcomes) == 0 {
		return fmt.Errorf("ctf: market %s has no outcomes: %w", m.ConditionID, domain.ErrMalformedCondition)
	}

	mappings := make([]domain.TokenMapping, 0, len(m.Outcomes))
	for i, outcome := range m.Outcomes {
		tokenID, err := OutcomeTokenID(m.ConditionID, i)
		if err != nil {
			return fmt.Errorf("ctf: derive token for %s outcome %d: %w", m.ConditionID, i, err)
		}
		mappings = append(mappings, domain.TokenMapping{
			TokenID:      tokenID,
			ConditionID:  m.ConditionID,
			OutcomeIndex: i,
			Outcome:      outcome,
		})
	}

	if err := r.store.UpsertMarket(ctx, m); err != nil {
		return fmt.Errorf("ctf: upsert market %s: %w", m.ConditionID, err)
	}
	if err := r.store.UpsertMappings(ctx, mappings); err != nil {
		return fmt.Errorf("ctf: upsert mappings for %s: %w", m.ConditionID, err)
	}

	for _, tm := range mappings {
		if err := r.cache.Set(ctx, tm); err != nil {
			r.logger.Warn("token cache write failed",
				slog.String("token_id", tm.TokenID),
				slog.String("error", err.Error()),
			)
		}
	}

	r.logger.Info("market synced",
		slog.String("condition_id", m.ConditionID),
		slog.Int("outcomes", len(mappings)),
	)
	return nil
}
