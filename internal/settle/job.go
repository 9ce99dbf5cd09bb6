package settle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/pnlcore/internal/domain"
)

// Job runs the settlement pass: read positions, resolutions, and market
// statuses, rebuild every wallet summary, and atomically replace the
// summary table.
type Job struct {
	positions   domain.PositionStore
	resolutions domain.ResolutionStore
	markets     domain.MarketStore
	summaries   domain.SummaryStore
	logger      *slog.Logger
}

// NewJob creates a settlement Job.
func NewJob(
	positions domain.PositionStore,
	resolutions domain.ResolutionStore,
	markets domain.MarketStore,
	summaries domain.SummaryStore,
	logger *slog.Logger,
) *Job {
	return &Job{
		positions:   positions,
		resolutions: resolutions,
		markets:     markets,
		summaries:   summaries,
		logger:      logger,
	}
}

// Run executes a single settlement pass.
func (j *Job) Run(ctx context.Context) error {
	started := time.Now()

	positions, err := j.positions.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("settle: list positions: %w", err)
	}

	resolutionRows, err := j.resolutions.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("settle: list resolutions: %w", err)
	}
	resolutions := make(map[string]domain.Resolution, len(resolutionRows))
	for _, r := range resolutionRows {
		resolutions[r.ConditionID] = r
	}

	markets, err := j.markets.ListMarkets(ctx, domain.ListOpts{})
	if err != nil {
		return fmt.Errorf("settle: list markets: %w", err)
	}
	statuses := make(map[string]domain.MarketStatus, len(markets))
	for _, m := range markets {
		statuses[m.ConditionID] = m.Status
	}

	missing := 0
	for _, pos := range positions {
		if _, ok := resolutions[pos.ConditionID]; !ok && pos.NetTokens != 0 && marketEnded(statuses[pos.ConditionID]) {
			missing++
		}
	}
	if missing > 0 {
		j.logger.Warn("positions in ended markets lack settlement data",
			slog.Int("positions", missing),
			slog.String("error", domain.ErrMissingResolution.Error()),
		)
	}

	summaries := BuildSummaries(positions, resolutions, statuses, time.Now().UTC())

	if err := j.summaries.ReplaceAll(ctx, summaries); err != nil {
		return fmt.Errorf("settle: replace %d summaries: %w", len(summaries), err)
	}

	j.logger.Info("settlement run complete",
		slog.Int("positions", len(positions)),
		slog.Int("resolutions", len(resolutions)),
		slog.Int("wallets", len(summaries)),
		slog.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// RunLoop runs the settlement job on a repeating interval until the context
// is cancelled.
func (j *Job) RunLoop(ctx context.Context, interval time.Duration) error {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("settlement run failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("settlement loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("settlement run failed", slog.String("error", err.Error()))
			}
		}
	}
}
