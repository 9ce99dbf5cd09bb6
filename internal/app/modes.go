package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/pnlcore/internal/aggregate"
	"github.com/alanyoungcy/pnlcore/internal/domain"
	"github.com/alanyoungcy/pnlcore/internal/ledger"
	"github.com/alanyoungcy/pnlcore/internal/pipeline"
	"github.com/alanyoungcy/pnlcore/internal/settle"
)

// buildIngestion constructs the ledger build chain: normalizer, builder,
// watermark controller, and the auxiliary market and resolution syncers.
func (a *App) buildIngestion(deps *Dependencies) (*pipeline.Controller, *pipeline.MarketSyncer, *pipeline.ResolutionSyncer) {
	pcfg := a.cfg.Pipeline

	normalizer := ledger.NewNormalizer(deps.Resolver, deps.MarketStore, a.logger)
	builder := ledger.NewBuilder(deps.Goldsky, normalizer, deps.FillStore, pcfg.FetchLimit, a.logger)

	controller := pipeline.NewController(
		builder,
		deps.WatermarkStore,
		deps.LockManager,
		pcfg.OverlapWindow.Duration,
		pcfg.LockTTL.Duration,
		a.logger,
	)
	markets := pipeline.NewMarketSyncer(
		deps.Goldsky,
		deps.Resolver,
		deps.WatermarkStore,
		pcfg.OverlapWindow.Duration,
		pcfg.FetchLimit,
		a.logger,
	)
	resolutions := pipeline.NewResolutionSyncer(
		deps.Goldsky,
		deps.ResolutionStore,
		deps.MarketStore,
		deps.WatermarkStore,
		pcfg.OverlapWindow.Duration,
		pcfg.FetchLimit,
		a.logger,
	)
	return controller, markets, resolutions
}

// IngestMode runs the per-source ledger build loops plus the market and
// resolution syncs, without aggregation or settlement.
func (a *App) IngestMode(ctx context.Context, deps *Dependencies) error {
	controller, markets, resolutions := a.buildIngestion(deps)
	interval := a.cfg.Pipeline.IngestInterval.Duration

	g, ctx := errgroup.WithContext(ctx)

	for _, source := range domain.Sources {
		source := source
		g.Go(func() error {
			err := controller.RunSourceLoop(ctx, source, interval)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("app: ingest %s: %w", source, err)
		})
	}
	g.Go(func() error {
		err := markets.RunLoop(ctx, interval)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("app: market sync: %w", err)
	})
	g.Go(func() error {
		err := resolutions.RunLoop(ctx, interval)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("app: resolution sync: %w", err)
	})

	return g.Wait()
}

// AggregateMode runs the position aggregation loop on its own.
func (a *App) AggregateMode(ctx context.Context, deps *Dependencies) error {
	job := aggregate.NewJob(deps.FillStore, deps.PositionStore, a.logger)
	err := job.RunLoop(ctx, a.cfg.Pipeline.AggregateInterval.Duration)
	if ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("app: aggregation: %w", err)
}

// SettleMode runs the settlement loop on its own.
func (a *App) SettleMode(ctx context.Context, deps *Dependencies) error {
	job := settle.NewJob(deps.PositionStore, deps.ResolutionStore, deps.MarketStore, deps.SummaryStore, a.logger)
	err := job.RunLoop(ctx, a.cfg.Pipeline.SettleInterval.Duration)
	if ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("app: settlement: %w", err)
}

// MonitorMode runs only the health checks: watermark stall detection and
// snapshot freshness.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	var head pipeline.BlockFetcher
	if deps.Goldsky != nil {
		head = deps.Goldsky
	}
	monitor := pipeline.NewMonitor(
		deps.WatermarkStore,
		deps.BlobReader,
		head,
		a.cfg.Pipeline.StallAfter.Duration,
		a.logger,
	)
	err := monitor.RunLoop(ctx, a.cfg.Pipeline.MonitorInterval.Duration)
	if ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("app: monitor: %w", err)
}

// FullMode runs the entire pipeline: ingestion, syncs, aggregation,
// settlement, snapshots, and monitoring under one orchestrator.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	pcfg := a.cfg.Pipeline
	controller, markets, resolutions := a.buildIngestion(deps)

	aggJob := aggregate.NewJob(deps.FillStore, deps.PositionStore, a.logger)
	settleJob := settle.NewJob(deps.PositionStore, deps.ResolutionStore, deps.MarketStore, deps.SummaryStore, a.logger)
	snapshotter := pipeline.NewSnapshotter(deps.FillStore, deps.SummaryStore, deps.BlobWriter, a.logger)
	monitor := pipeline.NewMonitor(deps.WatermarkStore, deps.BlobReader, deps.Goldsky, pcfg.StallAfter.Duration, a.logger)

	orchestrator := pipeline.NewOrchestrator(
		controller,
		markets,
		resolutions,
		aggJob,
		settleJob,
		snapshotter,
		monitor,
		pipeline.Intervals{
			Ingest:    pcfg.IngestInterval.Duration,
			Aggregate: pcfg.AggregateInterval.Duration,
			Settle:    pcfg.SettleInterval.Duration,
			Monitor:   pcfg.MonitorInterval.Duration,
		},
		pcfg.SnapshotCron,
		a.logger,
	)
	return orchestrator.Run(ctx)
}
