package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/pnlcore/internal/domain"
)

// EventFetcher retrieves raw events for each ledger source, ordered by
// timestamp ascending, at or after the given time.
type EventFetcher interface {
	FetchOrderFills(ctx context.Context, since time.Time, first int) ([]domain.RawOrderFill, error)
	FetchSplitMerges(ctx context.Context, since time.Time, first int) ([]domain.RawSplitMerge, error)
	FetchCashLegs(ctx context.Context, since time.Time, first int) ([]domain.RawCashLeg, error)
	FetchConversions(ctx context.Context, since time.Time, first int) ([]domain.RawConversion, error)
}

// BuildStats summarizes one ledger build pass over a single source window.
// MaxEventTime and MaxBlock cover the fetched raw window (including
// deliberately dropped events) and drive the watermark advance.
type BuildStats struct {
	Source           domain.FillSource
	Fetched          int
	Rows             int
	Skipped          int
	SelfFillsDropped int
	MaxEventTime     time.Time
	MaxBlock         int64
}

// Builder runs the fetch → normalize → upsert pass for one source window.
type Builder struct {
	fetcher    EventFetcher
	normalizer *Normalizer
	fills      domain.FillStore
	fetchLimit int
	logger     *slog.Logger
}

// NewBuilder creates a Builder. fetchLimit bounds how many raw events one
// pass requests from the source.
func NewBuilder(fetcher EventFetcher, normalizer *Normalizer, fills domain.FillStore, fetchLimit int, logger *slog.Logger) *Builder {
	return &Builder{
		fetcher:    fetcher,
		normalizer: normalizer,
		fills:      fills,
		fetchLimit: fetchLimit,
		logger:     logger,
	}
}

// BuildSource fetches raw events for the given source since the given time,
// normalizes them into canonical fills, and upserts them keyed on fill_id.
// Nothing is written on error, and the write itself is idempotent, so a
// failed pass can simply be retried over the same window.
func (b *Builder) BuildSource(ctx context.Context, source domain.FillSource, since time.Time) (BuildStats, error) {
	stats := BuildStats{Source: source}

	var (
		fills  []domain.Fill
		nstats NormalizeStats
		err    error
	)

	switch source {
	case domain.SourceOrderFill:
		var raws []domain.RawOrderFill
		raws, err = b.fetcher.FetchOrderFills(ctx, since, b.fetchLimit)
		if err == nil {
			stats.Fetched = len(raws)
			for _, r := range raws {
				stats.observe(r.Timestamp, r.BlockNumber)
			}
			fills, nstats, err = b.normalizer.OrderFills(ctx, raws)
		}
	case domain.SourceMintBurn:
		var raws []domain.RawSplitMerge
		raws, err = b.fetcher.FetchSplitMerges(ctx, since, b.fetchLimit)
		if err == nil {
			stats.Fetched = len(raws)
			for _, r := range raws {
				stats.observe(r.Timestamp, r.BlockNumber)
			}
			fills, nstats, err = b.normalizer.SplitMerges(ctx, raws)
		}
	case domain.SourceCashLeg:
		var raws []domain.RawCashLeg
		raws, err = b.fetcher.FetchCashLegs(ctx, since, b.fetchLimit)
		if err == nil {
			stats.Fetched = len(raws)
			for _, r := range raws {
				stats.observe(r.Timestamp, r.BlockNumber)
			}
			fills, nstats = b.normalizer.CashLegs(raws)
		}
	case domain.SourceConversion:
		var raws []domain.RawConversion
		raws, err = b.fetcher.FetchConversions(ctx, since, b.fetchLimit)
		if err == nil {
			stats.Fetched = len(raws)
			for _, r := range raws {
				stats.observe(r.Timestamp, r.BlockNumber)
			}
			fills, nstats, err = b.normalizer.Conversions(ctx, raws)
		}
	default:
		return stats, fmt.Errorf("ledger: unknown source %q", source)
	}

	if err != nil {
		return stats, fmt.Errorf("ledger: build %s since %v: %w", source, since, err)
	}

	stats.Rows = nstats.Out
	stats.Skipped = nstats.Skipped
	stats.SelfFillsDropped = nstats.SelfFillsDropped

	if len(fills) == 0 {
		b.logger.Debug("no ledger rows for source window",
			slog.String("source", string(source)),
			slog.Time("since", since),
			slog.Int("fetched", stats.Fetched),
		)
		return stats, nil
	}

	if err := b.fills.UpsertBatch(ctx, fills); err != nil {
		return stats, fmt.Errorf("ledger: upsert %d fills for %s: %w", len(fills), source, err)
	}

	b.logger.Info("ledger build pass complete",
		slog.String("source", string(source)),
		slog.Int("fetched", stats.Fetched),
		slog.Int("rows", stats.Rows),
		slog.Int("skipped", stats.Skipped),
		slog.Int("self_fill_legs_dropped", stats.SelfFillsDropped),
		slog.Time("max_event_time", stats.MaxEventTime),
	)
	return stats, nil
}

// observe folds one raw event's cursor fields into the stats maxima.
func (s *BuildStats) observe(timestamp, block int64) {
	ts := time.Unix(timestamp, 0).UTC()
	if ts.After(s.MaxEventTime) {
		s.MaxEventTime = ts
	}
	if block > s.MaxBlock {
		s.MaxBlock = block
	}
}
