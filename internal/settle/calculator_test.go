package settle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/pnlcore/internal/domain"
)

const (
	condA = "0x1111111111111111111111111111111111111111111111111111111111111111"
	condB = "0x2222222222222222222222222222222222222222222222222222222222222222"
)

var now = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

func binaryResolution(cond string, winner int) domain.Resolution {
	nums := []int64{0, 0}
	nums[winner] = 1
	return domain.Resolution{
		ConditionID:       cond,
		PayoutNumerators:  nums,
		PayoutDenominator: 1,
		ResolvedAt:        now,
	}
}

func TestSettlementValue_WinningPosition(t *testing.T) {
	pos := domain.Position{OutcomeIndex: 0, NetTokens: 20}
	res := binaryResolution(condA, 0)
	assert.InDelta(t, 20.0, SettlementValue(pos, res), 1e-9)
}

func TestSettlementValue_LosingPosition(t *testing.T) {
	pos := domain.Position{OutcomeIndex: 1, NetTokens: 20}
	res := binaryResolution(condA, 0)
	assert.Zero(t, SettlementValue(pos, res))
}

func TestSettlementValue_NegativeNetTokensSettleToZero(t *testing.T) {
	pos := domain.Position{OutcomeIndex: 0, NetTokens: -5}
	res := binaryResolution(condA, 0)
	assert.Zero(t, SettlementValue(pos, res))
}

func TestSettlementValue_FractionalPayout(t *testing.T) {
	pos := domain.Position{OutcomeIndex: 0, NetTokens: 10}
	res := domain.Resolution{
		ConditionID:       condA,
		PayoutNumerators:  []int64{1, 1},
		PayoutDenominator: 2,
	}
	assert.InDelta(t, 5.0, SettlementValue(pos, res), 1e-9)
}

func TestSettlementValue_MalformedResolution(t *testing.T) {
	pos := domain.Position{OutcomeIndex: 3, NetTokens: 10}
	res := binaryResolution(condA, 0)
	assert.Zero(t, SettlementValue(pos, res))

	zeroDenom := domain.Resolution{ConditionID: condA, PayoutNumerators: []int64{1, 0}}
	pos.OutcomeIndex = 0
	assert.Zero(t, SettlementValue(pos, zeroDenom))
}

func TestPositionPnL_BuyAndWin(t *testing.T) {
	// Buy 20 tokens at 0.20 (cash flow -4), outcome pays 1: pnl = 16.
	pos := domain.Position{OutcomeIndex: 0, NetTokens: 20, CashFlow: -4}
	res := binaryResolution(condA, 0)
	assert.InDelta(t, 16.0, PositionPnL(pos, &res), 1e-9)
}

func TestPositionPnL_OpenPositionIsCashFlowOnly(t *testing.T) {
	pos := domain.Position{OutcomeIndex: 0, NetTokens: 20, CashFlow: -4}
	assert.InDelta(t, -4.0, PositionPnL(pos, nil), 1e-9)
}

func TestPositionPnL_CounterpartyMirror(t *testing.T) {
	// Buyer pays 7 for 20 tokens of the winning outcome; the seller is the
	// exact mirror. The buyer realizes 13; the seller's negative balance
	// settles to zero value, so they keep just the 7 cash.
	buyer := domain.Position{OutcomeIndex: 0, NetTokens: 20, CashFlow: -7}
	seller := domain.Position{OutcomeIndex: 0, NetTokens: -20, CashFlow: 7}
	res := binaryResolution(condA, 0)

	assert.InDelta(t, 13.0, PositionPnL(buyer, &res), 1e-9)
	assert.InDelta(t, 7.0, PositionPnL(seller, &res), 1e-9)
}

func TestBuildSummaries_AllResolvedIsHighConfidence(t *testing.T) {
	positions := []domain.Position{
		{Wallet: "0xa", ConditionID: condA, OutcomeIndex: 0, NetTokens: 20, CashFlow: -4},
		{Wallet: "0xa", ConditionID: condA, OutcomeIndex: 1, NetTokens: 0, CashFlow: 1},
	}
	resolutions := map[string]domain.Resolution{condA: binaryResolution(condA, 0)}

	summaries := BuildSummaries(positions, resolutions, nil, now)
	require.Len(t, summaries, 1)

	s := summaries[0]
	assert.Equal(t, "0xa", s.Wallet)
	assert.InDelta(t, 17.0, s.RealizedPnL, 1e-9)
	assert.Equal(t, int64(2), s.TotalPositions)
	assert.Equal(t, int64(2), s.ResolvedPositions)
	assert.Zero(t, s.OpenPositions)
	assert.Equal(t, domain.ConfidenceHigh, s.Confidence)
	assert.Zero(t, s.UnrealizedPnL)
	assert.Equal(t, now, s.LastUpdated)
}

func TestBuildSummaries_CashRowPnLCountedButNotAPosition(t *testing.T) {
	positions := []domain.Position{
		{Wallet: "0xa", ConditionID: condA, OutcomeIndex: 0, NetTokens: 20, CashFlow: -4},
		{Wallet: "0xa", ConditionID: condA, OutcomeIndex: domain.CashLegOutcomeIndex, NetTokens: 0, CashFlow: -10},
	}
	resolutions := map[string]domain.Resolution{condA: binaryResolution(condA, 0)}

	summaries := BuildSummaries(positions, resolutions, nil, now)
	require.Len(t, summaries, 1)

	s := summaries[0]
	// The split's collateral leg flows into realized PnL...
	assert.InDelta(t, 6.0, s.RealizedPnL, 1e-9)
	// ...but the bookkeeping row is not a holding.
	assert.Equal(t, int64(1), s.TotalPositions)
	assert.Equal(t, int64(1), s.ResolvedPositions)
	assert.Zero(t, s.OpenPositions)
	assert.Equal(t, domain.ConfidenceHigh, s.Confidence)
}

func TestBuildSummaries_OpenPositionCapsAtMedium(t *testing.T) {
	positions := []domain.Position{
		{Wallet: "0xa", ConditionID: condA, OutcomeIndex: 0, NetTokens: 20, CashFlow: -4},
		{Wallet: "0xa", ConditionID: condB, OutcomeIndex: 0, NetTokens: 5, CashFlow: -2},
	}
	resolutions := map[string]domain.Resolution{condA: binaryResolution(condA, 0)}
	statuses := map[string]domain.MarketStatus{condB: domain.MarketStatusActive}

	summaries := BuildSummaries(positions, resolutions, statuses, now)
	require.Len(t, summaries, 1)

	s := summaries[0]
	assert.Equal(t, domain.ConfidenceMedium, s.Confidence)
	assert.Equal(t, int64(1), s.OpenPositions)
	// Open positions contribute nothing to realized PnL.
	assert.InDelta(t, 16.0, s.RealizedPnL, 1e-9)
}

func TestBuildSummaries_ConversionsForceLow(t *testing.T) {
	positions := []domain.Position{
		{Wallet: "0xa", ConditionID: condA, OutcomeIndex: 0, NetTokens: 20, CashFlow: -4, HasConversions: true},
	}
	resolutions := map[string]domain.Resolution{condA: binaryResolution(condA, 0)}

	summaries := BuildSummaries(positions, resolutions, nil, now)
	require.Len(t, summaries, 1)
	assert.Equal(t, domain.ConfidenceLow, summaries[0].Confidence)
	assert.Contains(t, summaries[0].ConfidenceReason, "conversion")
}

func TestBuildSummaries_EndedMarketWithoutResolutionIsLow(t *testing.T) {
	positions := []domain.Position{
		{Wallet: "0xa", ConditionID: condA, OutcomeIndex: 0, NetTokens: 20, CashFlow: -4},
	}
	statuses := map[string]domain.MarketStatus{condA: domain.MarketStatusClosed}

	summaries := BuildSummaries(positions, nil, statuses, now)
	require.Len(t, summaries, 1)
	assert.Equal(t, domain.ConfidenceLow, summaries[0].Confidence)
	assert.Contains(t, summaries[0].ConfidenceReason, "resolution missing")
}

func TestBuildSummaries_EndedMarketZeroTokensStaysMedium(t *testing.T) {
	// The wallet exited before close; the missing resolution cannot change
	// its PnL, so it is an ordinary open position.
	positions := []domain.Position{
		{Wallet: "0xa", ConditionID: condA, OutcomeIndex: 0, NetTokens: 0, CashFlow: 3},
	}
	statuses := map[string]domain.MarketStatus{condA: domain.MarketStatusResolved}

	summaries := BuildSummaries(positions, nil, statuses, now)
	require.Len(t, summaries, 1)
	assert.Equal(t, domain.ConfidenceMedium, summaries[0].Confidence)
}

func TestBuildSummaries_MultipleWallets(t *testing.T) {
	positions := []domain.Position{
		{Wallet: "0xa", ConditionID: condA, OutcomeIndex: 0, NetTokens: 20, CashFlow: -4},
		{Wallet: "0xb", ConditionID: condA, OutcomeIndex: 1, NetTokens: 20, CashFlow: -16},
	}
	resolutions := map[string]domain.Resolution{condA: binaryResolution(condA, 0)}

	summaries := BuildSummaries(positions, resolutions, nil, now)
	require.Len(t, summaries, 2)

	assert.InDelta(t, 16.0, summaries[0].RealizedPnL, 1e-9)
	assert.InDelta(t, -16.0, summaries[1].RealizedPnL, 1e-9)
}

func TestBuildSummaries_Empty(t *testing.T) {
	assert.Empty(t, BuildSummaries(nil, nil, nil, now))
}
