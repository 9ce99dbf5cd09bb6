package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/pnlcore/internal/domain"
)

type fakeFetcher struct {
	orderFills  []domain.RawOrderFill
	splitMerges []domain.RawSplitMerge
	cashLegs    []domain.RawCashLeg
	conversions []domain.RawConversion

	lastSince time.Time
	lastFirst int
}

func (f *fakeFetcher) FetchOrderFills(_ context.Context, since time.Time, first int) ([]domain.RawOrderFill, error) {
	f.lastSince, f.lastFirst = since, first
	return f.orderFills, nil
}

func (f *fakeFetcher) FetchSplitMerges(_ context.Context, since time.Time, first int) ([]domain.RawSplitMerge, error) {
	f.lastSince, f.lastFirst = since, first
	return f.splitMerges, nil
}

func (f *fakeFetcher) FetchCashLegs(_ context.Context, since time.Time, first int) ([]domain.RawCashLeg, error) {
	f.lastSince, f.lastFirst = since, first
	return f.cashLegs, nil
}

func (f *fakeFetcher) FetchConversions(_ context.Context, since time.Time, first int) ([]domain.RawConversion, error) {
	f.lastSince, f.lastFirst = since, first
	return f.conversions, nil
}

type fakeFillStore struct {
	domain.FillStore
	upserted [][]domain.Fill
}

func (s *fakeFillStore) UpsertBatch(_ context.Context, fills []domain.Fill) error {
	s.upserted = append(s.upserted, fills)
	return nil
}

func TestBuildSource_StatsCoverFetchedWindow(t *testing.T) {
	fetcher := &fakeFetcher{
		splitMerges: []domain.RawSplitMerge{
			{EventID: "sm-1", Timestamp: 1700001000, BlockNumber: 110, Wallet: "0xw", ConditionID: condA, Amount: 1_000_000, TransactionHash: "0xt1"},
			// Dropped during normalization (unknown condition) but still
			// part of the fetched window, so its cursor fields count.
			{EventID: "sm-2", Timestamp: 1700009999, BlockNumber: 999, Wallet: "0xw", ConditionID: condB, Amount: 1_000_000, TransactionHash: "0xt2"},
		},
	}
	store := &fakeFillStore{}
	b := NewBuilder(fetcher, newTestNormalizer(), store, 500, discardLogger())

	stats, err := b.BuildSource(context.Background(), domain.SourceMintBurn, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Fetched)
	assert.Equal(t, 2, stats.Rows) // condA has two outcomes
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, int64(999), stats.MaxBlock)
	assert.Equal(t, time.Unix(1700009999, 0).UTC(), stats.MaxEventTime)
	assert.Equal(t, 500, fetcher.lastFirst)
	require.Len(t, store.upserted, 1)
	assert.Len(t, store.upserted[0], 2)
}

func TestBuildSource_EmptyWindowWritesNothing(t *testing.T) {
	fetcher := &fakeFetcher{}
	store := &fakeFillStore{}
	b := NewBuilder(fetcher, newTestNormalizer(), store, 100, discardLogger())

	stats, err := b.BuildSource(context.Background(), domain.SourceOrderFill, time.Now())
	require.NoError(t, err)
	assert.Zero(t, stats.Fetched)
	assert.Zero(t, stats.Rows)
	assert.Empty(t, store.upserted)
}

func TestBuildSource_UnknownSource(t *testing.T) {
	b := NewBuilder(&fakeFetcher{}, newTestNormalizer(), &fakeFillStore{}, 100, discardLogger())

	_, err := b.BuildSource(context.Background(), domain.FillSource("bogus"), time.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source")
}

func TestBuildSource_PassesSinceThrough(t *testing.T) {
	fetcher := &fakeFetcher{}
	b := NewBuilder(fetcher, newTestNormalizer(), &fakeFillStore{}, 100, discardLogger())

	since := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	_, err := b.BuildSource(context.Background(), domain.SourceCashLeg, since)
	require.NoError(t, err)
	assert.Equal(t, since, fetcher.lastSince)
}
