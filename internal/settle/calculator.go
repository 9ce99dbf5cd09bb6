// Package settle joins aggregated positions to oracle resolutions, computes
// realized PnL, and rebuilds per-wallet summaries with a confidence label.
package settle

import (
	"fmt"
	"time"

	"github.com/alanyoungcy/pnlcore/internal/domain"
)

// SettlementValue returns the payout credited to a resolved position:
// net_tokens × numerator/denominator. A negative net token balance is a
// merge-only reduction rather than a true short and settles to zero value.
func SettlementValue(pos domain.Position, res domain.Resolution) float64 {
	if pos.NetTokens <= 0 {
		return 0
	}
	return pos.NetTokens * res.PayoutRatio(pos.OutcomeIndex)
}

// PositionPnL returns the realized PnL of a single position: cash flow plus
// settlement value when resolved, cash flow alone otherwise. Open positions
// receive no settlement credit.
func PositionPnL(pos domain.Position, res *domain.Resolution) float64 {
	if res == nil {
		return pos.CashFlow
	}
	return pos.CashFlow + SettlementValue(pos, *res)
}

// BuildSummaries rebuilds the per-wallet summary set from the current
// positions, resolutions, and market statuses. Wallet realized PnL sums
// over resolved positions only.
//
// Condition-level cash rows (outcome index domain.CashLegOutcomeIndex)
// carry the collateral side of splits and merges. Their cash flow counts
// toward realized PnL but they are bookkeeping rows, not holdings, so they
// are excluded from the position counts.
//
// Confidence is a conservative heuristic surfacing known gaps, not a
// correctness proof:
//   - low: any position touched an internal-conversion event, or a market
//     has ended without an ingested payout vector while the wallet holds
//     nonzero net tokens in it;
//   - medium: positions are clean but at least one is still open;
//   - high: every position resolved and none touched conversions.
//
// An unresolved position in a market that is still active is an ordinary
// open position and caps confidence at medium rather than low.
func BuildSummaries(
	positions []domain.Position,
	resolutions map[string]domain.Resolution,
	marketStatus map[string]domain.MarketStatus,
	now time.Time,
) []domain.WalletSummary {
	type walletAcc struct {
		realized          float64
		total             int64
		open              int64
		resolved          int64
		hasConversions    bool
		missingResolution bool
	}

	order := make([]string, 0)
	accs := make(map[string]*walletAcc)

	for _, pos := range positions {
		acc, ok := accs[pos.Wallet]
		if !ok {
			acc = &walletAcc{}
			accs[pos.Wallet] = acc
			order = append(order, pos.Wallet)
		}

		cashRow := pos.OutcomeIndex == domain.CashLegOutcomeIndex
		if !cashRow {
			acc.total++
		}
		if pos.HasConversions {
			acc.hasConversions = true
		}

		res, resolved := resolutions[pos.ConditionID]
		if resolved {
			if !cashRow {
				acc.resolved++
			}
			acc.realized += PositionPnL(pos, &res)
			continue
		}

		if !cashRow {
			acc.open++
		}
		if pos.NetTokens != 0 && marketEnded(marketStatus[pos.ConditionID]) {
			acc.missingResolution = true
		}
	}

	summaries := make([]domain.WalletSummary, 0, len(order))
	for _, wallet := range order {
		acc := accs[wallet]
		confidence, reason := classify(acc.hasConversions, acc.missingResolution, acc.open)
		summaries = append(summaries, domain.WalletSummary{
			Wallet:            wallet,
			RealizedPnL:       acc.realized,
			UnrealizedPnL:     0, // mark-to-market of open positions is a known gap
			TotalPositions:    acc.total,
			OpenPositions:     acc.open,
			ResolvedPositions: acc.resolved,
			Confidence:        confidence,
			ConfidenceReason:  reason,
			LastUpdated:       now,
		})
	}
	return summaries
}

// marketEnded reports whether a market can no longer trade, meaning a
// resolution should exist for it.
func marketEnded(status domain.MarketStatus) bool {
	return status == domain.MarketStatusClosed || status == domain.MarketStatusResolved
}

func classify(hasConversions, missingResolution bool, open int64) (domain.Confidence, string) {
	switch {
	case hasConversions && missingResolution:
		return domain.ConfidenceLow, "internal conversion exposure; resolution missing for ended market"
	case hasConversions:
		return domain.ConfidenceLow, "position includes internal conversion events"
	case missingResolution:
		return domain.ConfidenceLow, "resolution missing for ended market with nonzero net tokens"
	case open > 0:
		return domain.ConfidenceMedium, fmt.Sprintf("%d open position(s) without settlement", open)
	default:
		return domain.ConfidenceHigh, "all positions resolved"
	}
}
