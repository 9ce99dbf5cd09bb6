package pipeline

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/pnlcore/internal/domain"
)

type fakeBlobReader struct {
	objects []domain.BlobInfo
}

func (r *fakeBlobReader) Get(_ context.Context, _ string) (io.ReadCloser, error) {
	return nil, domain.ErrNotFound
}

func (r *fakeBlobReader) List(_ context.Context, _ string) ([]domain.BlobInfo, error) {
	return r.objects, nil
}

func TestStalled_SplitsByThreshold(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	wms := newMemWatermarks()
	wms.rows["fresh"] = domain.Watermark{Source: "fresh", UpdatedAt: now.Add(-10 * time.Minute)}
	wms.rows["stale"] = domain.Watermark{Source: "stale", UpdatedAt: now.Add(-2 * time.Hour)}

	m := NewMonitor(wms, &fakeBlobReader{}, nil, 30*time.Minute, noopLogger())

	stalled, err := m.Stalled(context.Background(), 30*time.Minute, now)
	require.NoError(t, err)
	require.Len(t, stalled, 1)
	assert.Equal(t, "stale", stalled[0].Source)
}

func TestStalled_ExactThresholdIsNotStalled(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	wms := newMemWatermarks()
	wms.rows["edge"] = domain.Watermark{Source: "edge", UpdatedAt: now.Add(-30 * time.Minute)}

	m := NewMonitor(wms, &fakeBlobReader{}, nil, 30*time.Minute, noopLogger())

	stalled, err := m.Stalled(context.Background(), 30*time.Minute, now)
	require.NoError(t, err)
	assert.Empty(t, stalled)
}

func TestRun_CompletesWithFreshSnapshot(t *testing.T) {
	today := time.Now().UTC().Format("2006-01-02")
	wms := newMemWatermarks()
	wms.rows["order_fill"] = domain.Watermark{Source: "order_fill", UpdatedAt: time.Now().UTC()}

	blobs := &fakeBlobReader{objects: []domain.BlobInfo{
		{Path: "ledger/" + today + ".csv", Size: 1024},
	}}
	m := NewMonitor(wms, blobs, nil, 30*time.Minute, noopLogger())

	assert.NoError(t, m.Run(context.Background()))
}

func TestRun_CompletesWithNoSnapshots(t *testing.T) {
	// Missing snapshots are alerts, not failures: the pass still succeeds.
	m := NewMonitor(newMemWatermarks(), &fakeBlobReader{}, nil, 30*time.Minute, noopLogger())
	assert.NoError(t, m.Run(context.Background()))
}

type fakeHead struct {
	block int64
	err   error
}

func (h *fakeHead) FetchLatestBlock(_ context.Context) (int64, error) {
	return h.block, h.err
}

func TestRun_LagCheckTolerantOfHeadFailure(t *testing.T) {
	wms := newMemWatermarks()
	wms.rows["order_fill"] = domain.Watermark{Source: "order_fill", LastBlockNumber: 100, UpdatedAt: time.Now().UTC()}

	m := NewMonitor(wms, &fakeBlobReader{}, &fakeHead{err: assert.AnError}, 30*time.Minute, noopLogger())
	assert.NoError(t, m.Run(context.Background()))

	m = NewMonitor(wms, &fakeBlobReader{}, &fakeHead{block: 150}, 30*time.Minute, noopLogger())
	assert.NoError(t, m.Run(context.Background()))
}
