package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/alanyoungcy/pnlcore/internal/domain"
)

// Snapshotter exports the canonical fill ledger and the wallet summaries as
// dated CSV objects to cold storage. The snapshots are the audit-trail form
// of the pipeline's outputs: downstream consumers and operators can replay
// or reconcile against them without touching the live tables.
type Snapshotter struct {
	fills     domain.FillStore
	summaries domain.SummaryStore
	writer    domain.BlobWriter
	logger    *slog.Logger
}

// NewSnapshotter creates a Snapshotter.
func NewSnapshotter(fills domain.FillStore, summaries domain.SummaryStore, writer domain.BlobWriter, logger *slog.Logger) *Snapshotter {
	return &Snapshotter{
		fills:     fills,
		summaries: summaries,
		writer:    writer,
		logger:    logger,
	}
}

// Run executes a single snapshot export.
func (s *Snapshotter) Run(ctx context.Context) error {
	day := time.Now().UTC().Format("2006-01-02")

	fills, err := s.fills.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: list fills: %w", err)
	}
	ledgerCSV, err := fillsToCSV(fills)
	if err != nil {
		return fmt.Errorf("snapshot: encode ledger: %w", err)
	}
	ledgerPath := fmt.Sprintf("ledger/%s.csv", day)
	if err := s.writer.Put(ctx, ledgerPath, bytes.NewReader(ledgerCSV), "text/csv"); err != nil {
		return fmt.Errorf("snapshot: upload %s: %w", ledgerPath, err)
	}

	summaries, err := s.summaries.List(ctx, domain.ListOpts{})
	if err != nil {
		return fmt.Errorf("snapshot: list summaries: %w", err)
	}
	summaryCSV, err := summariesToCSV(summaries)
	if err != nil {
		return fmt.Errorf("snapshot: encode summaries: %w", err)
	}
	summaryPath := fmt.Sprintf("summaries/%s.csv", day)
	if err := s.writer.Put(ctx, summaryPath, bytes.NewReader(summaryCSV), "text/csv"); err != nil {
		return fmt.Errorf("snapshot: upload %s: %w", summaryPath, err)
	}

	s.logger.Info("snapshot export complete",
		slog.Int("fills", len(fills)),
		slog.Int("summaries", len(summaries)),
		slog.String("ledger_path", ledgerPath),
		slog.String("summary_path", summaryPath),
	)
	return nil
}

// RunCron runs the snapshotter on a 5-field cron schedule
// ("minute hour day-of-month month day-of-week") until the context is
// cancelled.
func (s *Snapshotter) RunCron(ctx context.Context, cronExpr string) error {
	s.logger.Info("snapshotter cron started", slog.String("cron", cronExpr))

	for {
		next, err := nextCronTime(cronExpr, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("snapshot: parse cron %q: %w", cronExpr, err)
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("snapshotter cron stopped")
			return ctx.Err()
		case <-timer.C:
			if err := s.Run(ctx); err != nil {
				s.logger.Error("snapshot export failed", slog.String("error", err.Error()))
			}
		}
	}
}

// fillsToCSV encodes canonical fills as CSV with a header row.
func fillsToCSV(fills []domain.Fill) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"fill_id", "event_time", "block_number", "wallet",
		"condition_id", "outcome_index", "tokens_delta", "usdc_delta",
		"source", "is_self_fill", "is_maker", "tx_hash",
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("writing CSV header: %w", err)
	}

	for _, f := range fills {
		row := []string{
			f.FillID,
			f.EventTime.UTC().Format(time.RFC3339),
			strconv.FormatInt(f.BlockNumber, 10),
			f.Wallet,
			f.ConditionID,
			strconv.Itoa(f.OutcomeIndex),
			strconv.FormatFloat(f.TokensDelta, 'f', -1, 64),
			strconv.FormatFloat(f.USDCDelta, 'f', -1, 64),
			string(f.Source),
			strconv.FormatBool(f.IsSelfFill),
			strconv.FormatBool(f.IsMaker),
			f.TxHash,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("writing CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing CSV writer: %w", err)
	}
	return buf.Bytes(), nil
}

// summariesToCSV encodes wallet summaries as CSV with a header row.
func summariesToCSV(summaries []domain.WalletSummary) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"wallet", "realized_pnl", "unrealized_pnl",
		"total_positions", "open_positions", "resolved_positions",
		"confidence", "confidence_reason", "last_updated",
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("writing CSV header: %w", err)
	}

	for _, s := range summaries {
		row := []string{
			s.Wallet,
			strconv.FormatFloat(s.RealizedPnL, 'f', -1, 64),
			strconv.FormatFloat(s.UnrealizedPnL, 'f', -1, 64),
			strconv.FormatInt(s.TotalPositions, 10),
			strconv.FormatInt(s.OpenPositions, 10),
			strconv.FormatInt(s.ResolvedPositions, 10),
			string(s.Confidence),
			s.ConfidenceReason,
			s.LastUpdated.UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("writing CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing CSV writer: %w", err)
	}
	return buf.Bytes(), nil
}
