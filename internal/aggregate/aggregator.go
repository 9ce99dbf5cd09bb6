// Package aggregate reduces the canonical fill ledger into one position row
// per (wallet, condition, outcome) key. The reduction is a pure full
// recompute: the deduplicated ledger is small, so recomputing from scratch
// each run is cheaper and safer than tracking incremental deltas.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alanyoungcy/pnlcore/internal/domain"
)

// Reduce folds the given fills into positions. Output is sorted by
// (wallet, condition, outcome) so repeated runs over the same ledger
// produce identical output.
func Reduce(fills []domain.Fill) []domain.Position {
	byKey := make(map[domain.PositionKey]*domain.Position)

	for _, f := range fills {
		k := domain.PositionKey{
			Wallet:       f.Wallet,
			ConditionID:  f.ConditionID,
			OutcomeIndex: f.OutcomeIndex,
		}
		p, ok := byKey[k]
		if !ok {
			p = &domain.Position{
				Wallet:       f.Wallet,
				ConditionID:  f.ConditionID,
				OutcomeIndex: f.OutcomeIndex,
				FirstTrade:   f.EventTime,
				LastTrade:    f.EventTime,
			}
			byKey[k] = p
		}

		p.NetTokens += f.TokensDelta
		p.CashFlow += f.USDCDelta
		p.TradeCount++
		if f.Source == domain.SourceConversion {
			p.HasConversions = true
		}
		if f.EventTime.Before(p.FirstTrade) {
			p.FirstTrade = f.EventTime
		}
		if f.EventTime.After(p.LastTrade) {
			p.LastTrade = f.EventTime
		}
	}

	positions := make([]domain.Position, 0, len(byKey))
	for _, p := range byKey {
		positions = append(positions, *p)
	}
	sort.Slice(positions, func(i, j int) bool {
		a, b := positions[i], positions[j]
		if a.Wallet != b.Wallet {
			return a.Wallet < b.Wallet
		}
		if a.ConditionID != b.ConditionID {
			return a.ConditionID < b.ConditionID
		}
		return a.OutcomeIndex < b.OutcomeIndex
	})
	return positions
}

// Job wires the reduction to storage: read the full ledger, reduce it, and
// atomically replace the positions table.
type Job struct {
	fills     domain.FillStore
	positions domain.PositionStore
	logger    *slog.Logger
}

// NewJob creates an aggregation Job.
func NewJob(fills domain.FillStore, positions domain.PositionStore, logger *slog.Logger) *Job {
	return &Job{
		fills:     fills,
		positions: positions,
		logger:    logger,
	}
}

// Run executes a single aggregation pass.
func (j *Job) Run(ctx context.Context) error {
	started := time.Now()

	fills, err := j.fills.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("aggregate: list fills: %w", err)
	}

	positions := Reduce(fills)

	if err := j.positions.ReplaceAll(ctx, positions); err != nil {
		return fmt.Errorf("aggregate: replace %d positions: %w", len(positions), err)
	}

	j.logger.Info("aggregation run complete",
		slog.Int("fills", len(fills)),
		slog.Int("positions", len(positions)),
		slog.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// RunLoop runs the aggregation job on a repeating interval until the
// context is cancelled.
func (j *Job) RunLoop(ctx context.Context, interval time.Duration) error {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("aggregation run failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("aggregation loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("aggregation run failed", slog.String("error", err.Error()))
			}
		}
	}
}
