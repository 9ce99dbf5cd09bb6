package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/alanyoungcy/pnlcore/internal/ctf"
	"github.com/alanyoungcy/pnlcore/internal/domain"
)

// ConditionFetcher retrieves market-creation events at or after the given
// time, ordered ascending.
type ConditionFetcher interface {
	FetchConditions(ctx context.Context, since time.Time, first int) ([]domain.RawCondition, error)
}

// MarketSyncer ingests market-creation events and pre-derives their token
// mappings so the normalizers can resolve outcome tokens from the first
// trade onward.
type MarketSyncer struct {
	fetcher    ConditionFetcher
	resolver   *ctf.Resolver
	watermarks domain.WatermarkStore
	overlap    time.Duration
	fetchLimit int
	logger     *slog.Logger
}

// NewMarketSyncer creates a MarketSyncer.
func NewMarketSyncer(
	fetcher ConditionFetcher,
	resolver *ctf.Resolver,
	watermarks domain.WatermarkStore,
	overlap time.Duration,
	fetchLimit int,
	logger *slog.Logger,
) *MarketSyncer {
	return &MarketSyncer{
		fetcher:    fetcher,
		resolver:   resolver,
		watermarks: watermarks,
		overlap:    overlap,
		fetchLimit: fetchLimit,
		logger:     logger,
	}
}

// Run executes one market sync pass.
func (s *MarketSyncer) Run(ctx context.Context) error {
	wm, err := s.watermarks.Get(ctx, domain.WatermarkSourceMarket)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("pipeline: load market watermark: %w", err)
	}

	since := time.Time{}
	if !wm.LastEventTime.IsZero() {
		since = wm.LastEventTime.Add(-s.overlap)
	}

	conditions, err := s.fetcher.FetchConditions(ctx, since, s.fetchLimit)
	if err != nil {
		return fmt.Errorf("pipeline: fetch conditions since %v: %w", since, err)
	}
	if len(conditions) == 0 {
		return nil
	}

	// The watermark only advances over conditions that were actually
	// handled, so a transient sync failure halts the pass and the failed
	// condition is retried next run. Malformed preparation data can never
	// become syncable and is dropped so it cannot wedge the cursor.
	synced := 0
	processed := 0
	maxTime := wm.LastEventTime
	maxBlock := wm.LastBlockNumber
	var syncErr error
	for _, c := range conditions {
		createdAt := time.Unix(c.Timestamp, 0).UTC()

		// On-chain preparation events carry no labels; slots are named by
		// index until richer metadata arrives through a later sync.
		outcomes := make([]string, c.OutcomeSlotCount)
		for i := range outcomes {
			outcomes[i] = "outcome-" + strconv.Itoa(i)
		}

		err := s.resolver.SyncMarket(ctx, domain.Market{
			ConditionID: c.ConditionID,
			Outcomes:    outcomes,
			Status:      domain.MarketStatusActive,
			CreatedAt:   createdAt,
			UpdatedAt:   time.Now().UTC(),
		})
		switch {
		case err == nil:
			synced++
		case errors.Is(err, domain.ErrMalformedCondition):
			s.logger.Warn("dropping malformed condition",
				slog.String("condition_id", c.ConditionID),
				slog.String("error", err.Error()),
			)
		default:
			s.logger.Warn("market sync failed for condition",
				slog.String("condition_id", c.ConditionID),
				slog.String("error", err.Error()),
			)
			syncErr = err
		}
		if syncErr != nil {
			break
		}

		processed++
		if createdAt.After(maxTime) {
			maxTime = createdAt
		}
		if c.BlockNumber > maxBlock {
			maxBlock = c.BlockNumber
		}
	}

	if processed > 0 {
		if err := s.watermarks.Upsert(ctx, domain.Watermark{
			Source:          domain.WatermarkSourceMarket,
			LastBlockNumber: maxBlock,
			LastEventTime:   maxTime,
			UpdatedAt:       time.Now().UTC(),
		}); err != nil {
			return fmt.Errorf("pipeline: advance market watermark: %w", err)
		}
	}

	if syncErr != nil {
		return fmt.Errorf("pipeline: market sync halted after %d of %d conditions: %w", processed, len(conditions), syncErr)
	}

	s.logger.Info("market sync complete",
		slog.Int("conditions", len(conditions)),
		slog.Int("synced", synced),
		slog.Time("watermark", maxTime),
	)
	return nil
}

// RunLoop runs market sync passes on a repeating interval until the context
// is cancelled.
func (s *MarketSyncer) RunLoop(ctx context.Context, interval time.Duration) error {
	if err := s.Run(ctx); err != nil {
		s.logger.Error("market sync failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("market sync loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.Run(ctx); err != nil {
				s.logger.Error("market sync failed", slog.String("error", err.Error()))
			}
		}
	}
}
