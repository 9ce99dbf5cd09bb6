package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/pnlcore/internal/domain"
)

const testCond = "0x1111111111111111111111111111111111111111111111111111111111111111"

type fakeResolutionFetcher struct {
	raws      []domain.RawResolution
	lastSince time.Time
}

func (f *fakeResolutionFetcher) FetchResolutions(_ context.Context, since time.Time, _ int) ([]domain.RawResolution, error) {
	f.lastSince = since
	return f.raws, nil
}

type memResolutionStore struct {
	domain.ResolutionStore
	rows map[string]domain.Resolution
}

func newMemResolutionStore() *memResolutionStore {
	return &memResolutionStore{rows: make(map[string]domain.Resolution)}
}

func (s *memResolutionStore) UpsertBatch(_ context.Context, resolutions []domain.Resolution) error {
	for _, r := range resolutions {
		s.rows[r.ConditionID] = r
	}
	return nil
}

type memMarketStore struct {
	domain.MarketStore
	markets   map[string]domain.Market
	mappings  map[string]domain.TokenMapping
	upsertErr map[string]error
}

func newMemMarketStoreP() *memMarketStore {
	return &memMarketStore{
		markets:  make(map[string]domain.Market),
		mappings: make(map[string]domain.TokenMapping),
	}
}

func (s *memMarketStore) UpsertMarket(_ context.Context, m domain.Market) error {
	if err := s.upsertErr[m.ConditionID]; err != nil {
		return err
	}
	s.markets[m.ConditionID] = m
	return nil
}

func (s *memMarketStore) UpsertMappings(_ context.Context, mappings []domain.TokenMapping) error {
	for _, m := range mappings {
		s.mappings[m.TokenID] = m
	}
	return nil
}

func (s *memMarketStore) SetStatus(_ context.Context, conditionID string, status domain.MarketStatus) error {
	m, ok := s.markets[conditionID]
	if !ok {
		return domain.ErrNotFound
	}
	m.Status = status
	s.markets[conditionID] = m
	return nil
}

func TestResolutionSync_UpsertsAndMarksResolved(t *testing.T) {
	fetcher := &fakeResolutionFetcher{raws: []domain.RawResolution{{
		ConditionID:       testCond,
		PayoutNumerators:  []int64{1, 0},
		PayoutDenominator: 1,
		Timestamp:         1700000000,
		BlockNumber:       500,
	}}}
	store := newMemResolutionStore()
	markets := newMemMarketStoreP()
	markets.markets[testCond] = domain.Market{ConditionID: testCond, Status: domain.MarketStatusActive}
	wms := newMemWatermarks()

	s := NewResolutionSyncer(fetcher, store, markets, wms, 10*time.Minute, 100, noopLogger())
	require.NoError(t, s.Run(context.Background()))

	res, ok := store.rows[testCond]
	require.True(t, ok)
	assert.Equal(t, []int64{1, 0}, res.PayoutNumerators)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), res.ResolvedAt)

	assert.Equal(t, domain.MarketStatusResolved, markets.markets[testCond].Status)

	wm, err := wms.Get(context.Background(), domain.WatermarkSourceResolution)
	require.NoError(t, err)
	assert.Equal(t, int64(500), wm.LastBlockNumber)
}

func TestResolutionSync_UnknownMarketIsNotFatal(t *testing.T) {
	fetcher := &fakeResolutionFetcher{raws: []domain.RawResolution{{
		ConditionID:       testCond,
		PayoutNumerators:  []int64{0, 1},
		PayoutDenominator: 1,
		Timestamp:         1700000000,
	}}}
	store := newMemResolutionStore()

	s := NewResolutionSyncer(fetcher, store, newMemMarketStoreP(), newMemWatermarks(), 10*time.Minute, 100, noopLogger())
	require.NoError(t, s.Run(context.Background()))
	assert.Contains(t, store.rows, testCond, "payout vector persists even when the market row is missing")
}

func TestResolutionSync_EmptyWindowLeavesWatermark(t *testing.T) {
	wms := newMemWatermarks()
	s := NewResolutionSyncer(&fakeResolutionFetcher{}, newMemResolutionStore(), newMemMarketStoreP(), wms, 10*time.Minute, 100, noopLogger())

	require.NoError(t, s.Run(context.Background()))
	_, err := wms.Get(context.Background(), domain.WatermarkSourceResolution)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolutionSync_AppliesOverlap(t *testing.T) {
	last := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	wms := newMemWatermarks()
	wms.rows[domain.WatermarkSourceResolution] = domain.Watermark{
		Source:        domain.WatermarkSourceResolution,
		LastEventTime: last,
	}
	fetcher := &fakeResolutionFetcher{}

	s := NewResolutionSyncer(fetcher, newMemResolutionStore(), newMemMarketStoreP(), wms, 10*time.Minute, 100, noopLogger())
	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, last.Add(-10*time.Minute), fetcher.lastSince)
}
