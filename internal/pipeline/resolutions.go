package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/pnlcore/internal/domain"
)

// ResolutionFetcher retrieves oracle resolution events at or after the
// given time, ordered ascending.
type ResolutionFetcher interface {
	FetchResolutions(ctx context.Context, since time.Time, first int) ([]domain.RawResolution, error)
}

// ResolutionSyncer ingests oracle payout vectors incrementally, tracked by
// its own watermark row so settlement never waits on a full rescan. Each
// ingested resolution also flips its market to resolved status.
type ResolutionSyncer struct {
	fetcher    ResolutionFetcher
	store      domain.ResolutionStore
	markets    domain.MarketStore
	watermarks domain.WatermarkStore
	overlap    time.Duration
	fetchLimit int
	logger     *slog.Logger
}

// NewResolutionSyncer creates a ResolutionSyncer.
func NewResolutionSyncer(
	fetcher ResolutionFetcher,
	store domain.ResolutionStore,
	markets domain.MarketStore,
	watermarks domain.WatermarkStore,
	overlap time.Duration,
	fetchLimit int,
	logger *slog.Logger,
) *ResolutionSyncer {
	return &ResolutionSyncer{
		fetcher:    fetcher,
		store:      store,
		markets:    markets,
		watermarks: watermarks,
		overlap:    overlap,
		fetchLimit: fetchLimit,
		logger:     logger,
	}
}

// Run executes one resolution sync pass.
func (s *ResolutionSyncer) Run(ctx context.Context) error {
	wm, err := s.watermarks.Get(ctx, domain.WatermarkSourceResolution)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("pipeline: load resolution watermark: %w", err)
	}

	since := time.Time{}
	if !wm.LastEventTime.IsZero() {
		since = wm.LastEventTime.Add(-s.overlap)
	}

	raws, err := s.fetcher.FetchResolutions(ctx, since, s.fetchLimit)
	if err != nil {
		return fmt.Errorf("pipeline: fetch resolutions since %v: %w", since, err)
	}
	if len(raws) == 0 {
		return nil
	}

	resolutions := make([]domain.Resolution, 0, len(raws))
	maxTime := wm.LastEventTime
	maxBlock := wm.LastBlockNumber
	for _, r := range raws {
		resolvedAt := time.Unix(r.Timestamp, 0).UTC()
		resolutions = append(resolutions, domain.Resolution{
			ConditionID:       r.ConditionID,
			PayoutNumerators:  r.PayoutNumerators,
			PayoutDenominator: r.PayoutDenominator,
			ResolvedAt:        resolvedAt,
		})
		if resolvedAt.After(maxTime) {
			maxTime = resolvedAt
		}
		if r.BlockNumber > maxBlock {
			maxBlock = r.BlockNumber
		}
	}

	if err := s.store.UpsertBatch(ctx, resolutions); err != nil {
		return fmt.Errorf("pipeline: upsert %d resolutions: %w", len(resolutions), err)
	}

	for _, r := range resolutions {
		if err := s.markets.SetStatus(ctx, r.ConditionID, domain.MarketStatusResolved); err != nil {
			// The payout vector is persisted; a stale status only softens
			// the confidence label until the next pass.
			s.logger.Warn("could not mark market resolved",
				slog.String("condition_id", r.ConditionID),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.watermarks.Upsert(ctx, domain.Watermark{
		Source:          domain.WatermarkSourceResolution,
		LastBlockNumber: maxBlock,
		LastEventTime:   maxTime,
		UpdatedAt:       time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("pipeline: advance resolution watermark: %w", err)
	}

	s.logger.Info("resolution sync complete",
		slog.Int("resolutions", len(resolutions)),
		slog.Time("watermark", maxTime),
	)
	return nil
}

// RunLoop runs resolution sync passes on a repeating interval until the
// context is cancelled.
func (s *ResolutionSyncer) RunLoop(ctx context.Context, interval time.Duration) error {
	if err := s.Run(ctx); err != nil {
		s.logger.Error("resolution sync failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("resolution sync loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.Run(ctx); err != nil {
				s.logger.Error("resolution sync failed", slog.String("error", err.Error()))
			}
		}
	}
}
