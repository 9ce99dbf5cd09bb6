package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/pnlcore/internal/domain"
)

// IntervalJob is a batch job that runs on a repeating interval.
type IntervalJob interface {
	RunLoop(ctx context.Context, interval time.Duration) error
}

// Intervals holds the cadence of each recurring pipeline job.
type Intervals struct {
	Ingest    time.Duration
	Aggregate time.Duration
	Settle    time.Duration
	Monitor   time.Duration
}

// Orchestrator runs the full pipeline: one ingestion loop per event
// source, the resolution syncer, position aggregation, settlement, the
// snapshot cron, and health monitoring.
type Orchestrator struct {
	controller   *Controller
	markets      *MarketSyncer
	resolutions  *ResolutionSyncer
	aggregator   IntervalJob
	settler      IntervalJob
	snapshotter  *Snapshotter
	monitor      *Monitor
	intervals    Intervals
	snapshotCron string
	logger       *slog.Logger
}

// NewOrchestrator creates an Orchestrator coordinating all pipeline jobs.
func NewOrchestrator(
	controller *Controller,
	markets *MarketSyncer,
	resolutions *ResolutionSyncer,
	aggregator IntervalJob,
	settler IntervalJob,
	snapshotter *Snapshotter,
	monitor *Monitor,
	intervals Intervals,
	snapshotCron string,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		controller:   controller,
		markets:      markets,
		resolutions:  resolutions,
		aggregator:   aggregator,
		settler:      settler,
		snapshotter:  snapshotter,
		monitor:      monitor,
		intervals:    intervals,
		snapshotCron: snapshotCron,
		logger:       logger,
	}
}

// Run starts every pipeline job as a goroutine in a shared errgroup. A
// non-context error from any job cancels the group and is returned;
// context cancellation shuts everything down cleanly.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline orchestrator starting",
		slog.Duration("ingest_interval", o.intervals.Ingest),
		slog.Duration("aggregate_interval", o.intervals.Aggregate),
		slog.Duration("settle_interval", o.intervals.Settle),
		slog.String("snapshot_cron", o.snapshotCron),
	)

	g, ctx := errgroup.WithContext(ctx)

	for _, source := range domain.Sources {
		source := source
		g.Go(func() error {
			err := o.controller.RunSourceLoop(ctx, source, o.intervals.Ingest)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("ingest %s: %w", source, err)
		})
	}

	g.Go(func() error {
		err := o.markets.RunLoop(ctx, o.intervals.Ingest)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("market sync: %w", err)
	})

	g.Go(func() error {
		err := o.resolutions.RunLoop(ctx, o.intervals.Ingest)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("resolution sync: %w", err)
	})

	g.Go(func() error {
		err := o.aggregator.RunLoop(ctx, o.intervals.Aggregate)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("aggregation: %w", err)
	})

	g.Go(func() error {
		err := o.settler.RunLoop(ctx, o.intervals.Settle)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("settlement: %w", err)
	})

	g.Go(func() error {
		err := o.snapshotter.RunCron(ctx, o.snapshotCron)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("snapshotter: %w", err)
	})

	g.Go(func() error {
		err := o.monitor.RunLoop(ctx, o.intervals.Monitor)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("monitor: %w", err)
	})

	if err := g.Wait(); err != nil {
		o.logger.Error("pipeline orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}

	o.logger.Info("pipeline orchestrator stopped cleanly")
	return nil
}
