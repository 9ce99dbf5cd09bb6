package settle

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/pnlcore/internal/aggregate"
	"github.com/alanyoungcy/pnlcore/internal/domain"
	"github.com/alanyoungcy/pnlcore/internal/ledger"
)

type flowResolver struct {
	mappings map[string]domain.TokenMapping
}

func (r *flowResolver) Resolve(_ context.Context, tokenID string) (domain.TokenMapping, error) {
	m, ok := r.mappings[tokenID]
	if !ok {
		return domain.TokenMapping{}, domain.ErrUnresolvedToken
	}
	return m, nil
}

type flowMarkets struct {
	markets map[string]domain.Market
}

func (m *flowMarkets) GetMarket(_ context.Context, conditionID string) (domain.Market, error) {
	mk, ok := m.markets[conditionID]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return mk, nil
}

// A closed loop of trading activity is a zero-sum game net of fees: tokens
// are minted from collateral, change hands, and settle against the oracle
// payout, so across all wallets realized PnL must equal minus the fees
// charged. This drives the raw events through normalization, aggregation,
// and settlement end to end.
func TestRealizedPnLClosedLoopSumsToFeesPaid(t *testing.T) {
	const (
		token0 = "501"
		token1 = "502"
	)
	n := ledger.NewNormalizer(
		&flowResolver{mappings: map[string]domain.TokenMapping{
			token0: {TokenID: token0, ConditionID: condA, OutcomeIndex: 0},
			token1: {TokenID: token1, ConditionID: condA, OutcomeIndex: 1},
		}},
		&flowMarkets{markets: map[string]domain.Market{
			condA: {ConditionID: condA, Outcomes: []string{"outcome-0", "outcome-1"}},
		}},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	ctx := context.Background()

	var fills []domain.Fill

	// 0xminter splits 100 USDC into 100 tokens of each outcome.
	splitFills, _, err := n.SplitMerges(ctx, []domain.RawSplitMerge{{
		EventID: "sm-1", Timestamp: 1000, BlockNumber: 1,
		Wallet: "0xminter", ConditionID: condA,
		Amount: 100_000_000, TransactionHash: "0xtx-split",
	}})
	require.NoError(t, err)
	fills = append(fills, splitFills...)

	// The collateral side of the split arrives as two mirrored legs.
	cashFills, _ := n.CashLegs([]domain.RawCashLeg{
		{EventID: "cl-1a", Timestamp: 1000, BlockNumber: 1, Wallet: "0xminter",
			ConditionID: condA, CashDelta: -100_000_000, TransactionHash: "0xtx-split"},
		{EventID: "cl-1b", Timestamp: 1000, BlockNumber: 1, Wallet: "0xminter",
			ConditionID: condA, CashDelta: -100_000_000, TransactionHash: "0xtx-split"},
	})
	fills = append(fills, cashFills...)

	// Both sides are sold on the book; takers pay the fees.
	orderFills, _, err := n.OrderFills(ctx, []domain.RawOrderFill{
		{
			EventID: "of-1", Timestamp: 2000, BlockNumber: 2,
			Maker: "0xminter", MakerAssetID: token0, MakerAmountFilled: 100_000_000,
			Taker: "0xbull", TakerAssetID: "0", TakerAmountFilled: 60_000_000,
			Fee: 1_000_000, TransactionHash: "0xtx-buy0",
		},
		{
			EventID: "of-2", Timestamp: 2100, BlockNumber: 3,
			Maker: "0xminter", MakerAssetID: token1, MakerAmountFilled: 100_000_000,
			Taker: "0xbear", TakerAssetID: "0", TakerAmountFilled: 40_000_000,
			Fee: 500_000, TransactionHash: "0xtx-buy1",
		},
	})
	require.NoError(t, err)
	fills = append(fills, orderFills...)

	positions := aggregate.Reduce(fills)
	resolutions := map[string]domain.Resolution{condA: binaryResolution(condA, 0)}
	summaries := BuildSummaries(positions, resolutions, nil, now)
	require.Len(t, summaries, 3)

	var total float64
	for _, s := range summaries {
		assert.Equal(t, domain.ConfidenceHigh, s.Confidence, "wallet %s", s.Wallet)
		total += s.RealizedPnL
	}
	assert.InDelta(t, -1.5, total, 1e-9, "closed loop must sum to minus the fees charged")
}
