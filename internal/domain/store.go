package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// FillStore persists the canonical fill ledger. UpsertBatch must be keyed
// on fill_id with replace-on-conflict semantics so re-ingestion of the
// same window is idempotent.
type FillStore interface {
	UpsertBatch(ctx context.Context, fills []Fill) error
	ListAll(ctx context.Context) ([]Fill, error)
	ListByWallet(ctx context.Context, wallet string, opts ListOpts) ([]Fill, error)
	ListByCondition(ctx context.Context, conditionID string, opts ListOpts) ([]Fill, error)
	Count(ctx context.Context) (int64, error)
	CountBySource(ctx context.Context) (map[FillSource]int64, error)
}

// PositionStore persists aggregated positions. ReplaceAll swaps the entire
// table atomically; a partially written aggregation run is never observable.
type PositionStore interface {
	ReplaceAll(ctx context.Context, positions []Position) error
	ListAll(ctx context.Context) ([]Position, error)
	ListByWallet(ctx context.Context, wallet string) ([]Position, error)
	Count(ctx context.Context) (int64, error)
}

// SummaryStore persists wallet summaries, replaced atomically per
// settlement run.
type SummaryStore interface {
	ReplaceAll(ctx context.Context, summaries []WalletSummary) error
	Get(ctx context.Context, wallet string) (WalletSummary, error)
	List(ctx context.Context, opts ListOpts) ([]WalletSummary, error)
	Count(ctx context.Context) (int64, error)
}

// ResolutionStore persists oracle payout vectors.
type ResolutionStore interface {
	UpsertBatch(ctx context.Context, resolutions []Resolution) error
	Get(ctx context.Context, conditionID string) (Resolution, error)
	ListAll(ctx context.Context) ([]Resolution, error)
	LatestResolvedAt(ctx context.Context) (time.Time, error)
}

// WatermarkStore persists per-source ingestion progress.
type WatermarkStore interface {
	Get(ctx context.Context, source string) (Watermark, error)
	Upsert(ctx context.Context, w Watermark) error
	List(ctx context.Context) ([]Watermark, error)
}

// MarketStore persists market metadata and the append-only token mapping.
type MarketStore interface {
	UpsertMarket(ctx context.Context, m Market) error
	UpsertMappings(ctx context.Context, mappings []TokenMapping) error
	GetMarket(ctx context.Context, conditionID string) (Market, error)
	GetMappingByToken(ctx context.Context, tokenID string) (TokenMapping, error)
	ListMarkets(ctx context.Context, opts ListOpts) ([]Market, error)
	SetStatus(ctx context.Context, conditionID string, status MarketStatus) error
}
