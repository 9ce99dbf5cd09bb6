package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/pnlcore/internal/domain"
)

// BlockFetcher reports the latest block the event source has indexed.
type BlockFetcher interface {
	FetchLatestBlock(ctx context.Context) (int64, error)
}

// Monitor watches pipeline health: watermarks that stopped advancing,
// ingestion lag behind the source's indexed head, and snapshot exports
// that stopped landing. Findings are surfaced as structured log alerts
// for the operator.
type Monitor struct {
	watermarks     domain.WatermarkStore
	blobs          domain.BlobReader
	head           BlockFetcher // nil when no source endpoint is configured
	stallThreshold time.Duration
	logger         *slog.Logger
}

// NewMonitor creates a Monitor. head may be nil; the lag check is skipped.
func NewMonitor(watermarks domain.WatermarkStore, blobs domain.BlobReader, head BlockFetcher, stallThreshold time.Duration, logger *slog.Logger) *Monitor {
	return &Monitor{
		watermarks:     watermarks,
		blobs:          blobs,
		head:           head,
		stallThreshold: stallThreshold,
		logger:         logger,
	}
}

// Stalled returns the watermarks that have not advanced within the given
// threshold.
func (m *Monitor) Stalled(ctx context.Context, threshold time.Duration, now time.Time) ([]domain.Watermark, error) {
	all, err := m.watermarks.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("monitor: list watermarks: %w", err)
	}

	var stalled []domain.Watermark
	for _, wm := range all {
		if now.Sub(wm.UpdatedAt) > threshold {
			stalled = append(stalled, wm)
		}
	}
	return stalled, nil
}

// Run executes one health check pass. A stalled watermark is reported per
// source; the pass itself fails only when the checks cannot run.
func (m *Monitor) Run(ctx context.Context) error {
	now := time.Now().UTC()

	stalled, err := m.Stalled(ctx, m.stallThreshold, now)
	if err != nil {
		return err
	}
	for _, wm := range stalled {
		m.logger.Warn("watermark stalled",
			slog.String("source", wm.Source),
			slog.Time("last_event", wm.LastEventTime),
			slog.Time("last_advanced", wm.UpdatedAt),
			slog.Duration("lag", now.Sub(wm.UpdatedAt)),
			slog.String("error", domain.ErrWatermarkStalled.Error()),
		)
	}
	if len(stalled) == 0 {
		m.logger.Info("all watermarks advancing", slog.Duration("threshold", m.stallThreshold))
	}

	if err := m.checkIngestionLag(ctx); err != nil {
		return err
	}
	if err := m.checkSnapshots(ctx, now); err != nil {
		return err
	}
	return nil
}

// checkIngestionLag compares each watermark's block cursor against the
// latest block the source has indexed. Lag is reported, never fatal: the
// ingestion loops close the gap on their own.
func (m *Monitor) checkIngestionLag(ctx context.Context) error {
	if m.head == nil {
		return nil
	}

	head, err := m.head.FetchLatestBlock(ctx)
	if err != nil {
		m.logger.Warn("could not fetch source head block", slog.String("error", err.Error()))
		return nil
	}

	all, err := m.watermarks.List(ctx)
	if err != nil {
		return fmt.Errorf("monitor: list watermarks: %w", err)
	}
	for _, wm := range all {
		m.logger.Info("ingestion lag",
			slog.String("source", wm.Source),
			slog.Int64("head_block", head),
			slog.Int64("watermark_block", wm.LastBlockNumber),
			slog.Int64("lag_blocks", head-wm.LastBlockNumber),
		)
	}
	return nil
}

// checkSnapshots verifies a ledger snapshot landed within the last two
// days. The exporter runs daily, so a missing object for both today and
// yesterday means the cron is broken.
func (m *Monitor) checkSnapshots(ctx context.Context, now time.Time) error {
	keys, err := m.blobs.List(ctx, "ledger/")
	if err != nil {
		return fmt.Errorf("monitor: list snapshots: %w", err)
	}

	fresh := map[string]bool{
		fmt.Sprintf("ledger/%s.csv", now.Format("2006-01-02")):                    true,
		fmt.Sprintf("ledger/%s.csv", now.Add(-24*time.Hour).Format("2006-01-02")): true,
	}
	for _, k := range keys {
		if fresh[k.Path] {
			m.logger.Info("snapshot export fresh",
				slog.String("path", k.Path),
				slog.Int64("size", k.Size),
			)
			return nil
		}
	}

	m.logger.Warn("no recent ledger snapshot found",
		slog.Int("objects", len(keys)),
	)
	return nil
}

// RunLoop runs health checks on a repeating interval until the context is
// cancelled.
func (m *Monitor) RunLoop(ctx context.Context, interval time.Duration) error {
	if err := m.Run(ctx); err != nil {
		m.logger.Error("health check failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := m.Run(ctx); err != nil {
				m.logger.Error("health check failed", slog.String("error", err.Error()))
			}
		}
	}
}
