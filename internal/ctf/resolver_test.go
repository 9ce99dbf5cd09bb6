package ctf

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/pnlcore/internal/domain"
)

type memCache struct {
	entries map[string]domain.TokenMapping
	getErr  error
}

func (c *memCache) Set(_ context.Context, m domain.TokenMapping) error {
	if c.entries == nil {
		c.entries = make(map[string]domain.TokenMapping)
	}
	c.entries[m.TokenID] = m
	return nil
}

func (c *memCache) Get(_ context.Context, tokenID string) (domain.TokenMapping, error) {
	if c.getErr != nil {
		return domain.TokenMapping{}, c.getErr
	}
	m, ok := c.entries[tokenID]
	if !ok {
		return domain.TokenMapping{}, domain.ErrNotFound
	}
	return m, nil
}

type memMarketStore struct {
	domain.MarketStore
	markets  map[string]domain.Market
	mappings map[string]domain.TokenMapping
}

func newMemMarketStore() *memMarketStore {
	return &memMarketStore{
		markets:  make(map[string]domain.Market),
		mappings: make(map[string]domain.TokenMapping),
	}
}

func (s *memMarketStore) UpsertMarket(_ context.Context, m domain.Market) error {
	s.markets[m.ConditionID] = m
	return nil
}

func (s *memMarketStore) UpsertMappings(_ context.Context, mappings []domain.TokenMapping) error {
	for _, m := range mappings {
		s.mappings[m.TokenID] = m
	}
	return nil
}

func (s *memMarketStore) GetMappingByToken(_ context.Context, tokenID string) (domain.TokenMapping, error) {
	m, ok := s.mappings[tokenID]
	if !ok {
		return domain.TokenMapping{}, domain.ErrNotFound
	}
	return m, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolve_CacheHit(t *testing.T) {
	cache := &memCache{entries: map[string]domain.TokenMapping{
		"42": {TokenID: "42", ConditionID: testCondition, OutcomeIndex: 1},
	}}
	r := NewResolver(cache, newMemMarketStore(), testLogger())

	m, err := r.Resolve(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, 1, m.OutcomeIndex)
}

func TestResolve_MissBackfillsCache(t *testing.T) {
	cache := &memCache{}
	store := newMemMarketStore()
	store.mappings["42"] = domain.TokenMapping{TokenID: "42", ConditionID: testCondition, OutcomeIndex: 0}
	r := NewResolver(cache, store, testLogger())

	m, err := r.Resolve(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, testCondition, m.ConditionID)
	assert.Contains(t, cache.entries, "42")
}

func TestResolve_CacheFailureFallsThroughToStore(t *testing.T) {
	cache := &memCache{getErr: errors.New("redis down")}
	store := newMemMarketStore()
	store.mappings["42"] = domain.TokenMapping{TokenID: "42", ConditionID: testCondition}
	r := NewResolver(cache, store, testLogger())

	m, err := r.Resolve(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, testCondition, m.ConditionID)
}

func TestResolve_UnknownToken(t *testing.T) {
	r := NewResolver(&memCache{}, newMemMarketStore(), testLogger())

	_, err := r.Resolve(context.Background(), "404")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnresolvedToken)
}

func TestSyncMarket_DerivesMappingForEveryOutcome(t *testing.T) {
	cache := &memCache{}
	store := newMemMarketStore()
	r := NewResolver(cache, store, testLogger())

	market := domain.Market{
		ConditionID: testCondition,
		Outcomes:    []string{"outcome-0", "outcome-1"},
		Status:      domain.MarketStatusActive,
	}
	require.NoError(t, r.SyncMarket(context.Background(), market))

	assert.Contains(t, store.markets, testCondition)
	require.Len(t, store.mappings, 2)
	for tokenID, m := range store.mappings {
		assert.Equal(t, testCondition, m.ConditionID)
		assert.Contains(t, cache.entries, tokenID)
	}

	// Resolution round trip: every derived token id resolves back.
	for i := range market.Outcomes {
		tokenID, err := OutcomeTokenID(testCondition, i)
		require.NoError(t, err)
		m, err := r.Resolve(context.Background(), tokenID)
		require.NoError(t, err)
		assert.Equal(t, i, m.OutcomeIndex)
	}
}

func TestSyncMarket_RejectsEmptyOutcomes(t *testing.T) {
	r := NewResolver(&memCache{}, newMemMarketStore(), testLogger())
	err := r.SyncMarket(context.Background(), domain.Market{ConditionID: testCondition})
	assert.Error(t, err)
}
