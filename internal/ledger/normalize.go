package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alanyoungcy/pnlcore/internal/domain"
)

// usdcAssetID identifies the collateral side of an order fill. When the
// maker asset is USDC the maker is buying tokens; when the taker asset is
// USDC the taker is buying.
const usdcAssetID = "0"

// microUnit converts 6-decimal fixed-point on-chain amounts to whole
// tokens / whole USDC.
const microUnit = 1e6

// TokenResolver maps a token id to its (condition, outcome index) pair.
type TokenResolver interface {
	Resolve(ctx context.Context, tokenID string) (domain.TokenMapping, error)
}

// MarketLookup returns condition-level market metadata.
type MarketLookup interface {
	GetMarket(ctx context.Context, conditionID string) (domain.Market, error)
}

// NormalizeStats counts what happened to a batch of raw events during
// normalization. Skipped events were dropped deliberately (unmapped token,
// unknown condition) and logged, never guessed.
type NormalizeStats struct {
	In               int
	Out              int
	Skipped          int
	SelfFillsDropped int
}

// Normalizer converts raw source events into canonical fills.
type Normalizer struct {
	resolver TokenResolver
	markets  MarketLookup
	logger   *slog.Logger
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(resolver TokenResolver, markets MarketLookup, logger *slog.Logger) *Normalizer {
	return &Normalizer{
		resolver: resolver,
		markets:  markets,
		logger:   logger,
	}
}

type legKey struct {
	wallet string
	tx     string
}

// OrderFills normalizes order-book fills. Each raw fill contributes a maker
// leg and a taker leg. Wash-trade dedup is structural: legs are grouped by
// (wallet, transaction), and when a wallet appears as both maker and taker
// within one transaction its maker legs are dropped and the surviving taker
// legs are flagged as self-fills. This slightly understates maker-side fee
// accounting for wash trades, a documented trade-off.
func (n *Normalizer) OrderFills(ctx context.Context, raws []domain.RawOrderFill) ([]domain.Fill, NormalizeStats, error) {
	stats := NormalizeStats{In: len(raws)}

	takers := make(map[legKey]bool, len(raws))
	makers := make(map[legKey]bool, len(raws))
	for _, r := range raws {
		takers[legKey{r.Taker, r.TransactionHash}] = true
		makers[legKey{r.Maker, r.TransactionHash}] = true
	}

	fills := make([]domain.Fill, 0, 2*len(raws))
	for _, r := range raws {
		if err := ctx.Err(); err != nil {
			return nil, stats, fmt.Errorf("ledger: order fill normalization cancelled: %w", err)
		}

		// The non-USDC asset identifies the outcome token being traded.
		tokenID := r.MakerAssetID
		makerBuys := false
		if tokenID == usdcAssetID {
			tokenID = r.TakerAssetID
			makerBuys = true
		}

		mapping, err := n.resolver.Resolve(ctx, tokenID)
		if err != nil {
			if errors.Is(err, domain.ErrUnresolvedToken) {
				stats.Skipped++
				n.logger.Warn("dropping order fill: unresolved token",
					slog.String("token_id", tokenID),
					slog.String("tx_hash", r.TransactionHash),
				)
				continue
			}
			return nil, stats, fmt.Errorf("ledger: resolve token %s: %w", tokenID, err)
		}

		// When the maker buys: the maker pays MakerAmountFilled USDC and
		// receives TakerAmountFilled tokens; the taker is the mirror.
		var tokenAmt, usdAmt float64
		if makerBuys {
			usdAmt = float64(r.MakerAmountFilled) / microUnit
			tokenAmt = float64(r.TakerAmountFilled) / microUnit
		} else {
			usdAmt = float64(r.TakerAmountFilled) / microUnit
			tokenAmt = float64(r.MakerAmountFilled) / microUnit
		}
		fee := float64(r.Fee) / microUnit
		eventTime := time.Unix(r.Timestamp, 0).UTC()

		selfFill := makers[legKey{r.Taker, r.TransactionHash}]

		// Maker leg, unless this maker also takes in the same transaction.
		if !takers[legKey{r.Maker, r.TransactionHash}] {
			maker := domain.Fill{
				FillID:       FillID(domain.SourceOrderFill, r.EventID+":maker"),
				EventTime:    eventTime,
				BlockNumber:  r.BlockNumber,
				Wallet:       r.Maker,
				ConditionID:  mapping.ConditionID,
				OutcomeIndex: mapping.OutcomeIndex,
				Source:       domain.SourceOrderFill,
				IsMaker:      true,
				TxHash:       r.TransactionHash,
			}
			if makerBuys {
				maker.TokensDelta = tokenAmt
				maker.USDCDelta = -usdAmt
			} else {
				maker.TokensDelta = -tokenAmt
				maker.USDCDelta = usdAmt
			}
			fills = append(fills, maker)
		} else {
			stats.SelfFillsDropped++
		}

		// Taker leg always survives. The fee is charged to the taker, who
		// crosses the spread.
		taker := domain.Fill{
			FillID:       FillID(domain.SourceOrderFill, r.EventID+":taker"),
			EventTime:    eventTime,
			BlockNumber:  r.BlockNumber,
			Wallet:       r.Taker,
			ConditionID:  mapping.ConditionID,
			OutcomeIndex: mapping.OutcomeIndex,
			Source:       domain.SourceOrderFill,
			IsSelfFill:   selfFill,
			TxHash:       r.TransactionHash,
		}
		if makerBuys {
			taker.TokensDelta = -tokenAmt
			taker.USDCDelta = usdAmt - fee
		} else {
			taker.TokensDelta = tokenAmt
			taker.USDCDelta = -usdAmt - fee
		}
		fills = append(fills, taker)
	}

	stats.Out = len(fills)
	return fills, stats, nil
}

// SplitMerges normalizes collateral splits and merges. One raw event fans
// out into one fill per outcome of the condition: a split mints the same
// token amount on every outcome, a merge burns it. The cash side of the
// same transaction arrives separately through the cash-leg stream, so
// usdc_delta here is always zero.
func (n *Normalizer) SplitMerges(ctx context.Context, raws []domain.RawSplitMerge) ([]domain.Fill, NormalizeStats, error) {
	stats := NormalizeStats{In: len(raws)}

	var fills []domain.Fill
	for _, r := range raws {
		if err := ctx.Err(); err != nil {
			return nil, stats, fmt.Errorf("ledger: split/merge normalization cancelled: %w", err)
		}

		market, err := n.markets.GetMarket(ctx, r.ConditionID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				stats.Skipped++
				n.logger.Warn("dropping split/merge: unknown condition",
					slog.String("condition_id", r.ConditionID),
					slog.String("tx_hash", r.TransactionHash),
				)
				continue
			}
			return nil, stats, fmt.Errorf("ledger: lookup condition %s: %w", r.ConditionID, err)
		}

		eventTime := time.Unix(r.Timestamp, 0).UTC()
		tokens := float64(r.Amount) / microUnit
		for i := range market.Outcomes {
			fills = append(fills, domain.Fill{
				FillID:       FillID(domain.SourceMintBurn, fmt.Sprintf("%s:%d", r.EventID, i)),
				EventTime:    eventTime,
				BlockNumber:  r.BlockNumber,
				Wallet:       r.Wallet,
				ConditionID:  r.ConditionID,
				OutcomeIndex: i,
				TokensDelta:  tokens,
				Source:       domain.SourceMintBurn,
				TxHash:       r.TransactionHash,
			})
		}
	}

	stats.Out = len(fills)
	return fills, stats, nil
}

// CashLegs normalizes the USDC side of splits and merges. The raw stream
// records both the contribution and the distribution leg of one economic
// transfer, so legs are grouped by (wallet, condition, transaction) and the
// summed delta is halved to avoid double counting. The resulting fill is
// recorded at condition level.
func (n *Normalizer) CashLegs(raws []domain.RawCashLeg) ([]domain.Fill, NormalizeStats) {
	stats := NormalizeStats{In: len(raws)}

	type groupKey struct {
		wallet    string
		condition string
		tx        string
	}
	type group struct {
		sum       int64
		firstTime int64
		maxBlock  int64
	}

	groups := make(map[groupKey]*group)
	for _, r := range raws {
		k := groupKey{r.Wallet, r.ConditionID, r.TransactionHash}
		g, ok := groups[k]
		if !ok {
			g = &group{firstTime: r.Timestamp}
			groups[k] = g
		}
		g.sum += r.CashDelta
		if r.Timestamp < g.firstTime {
			g.firstTime = r.Timestamp
		}
		if r.BlockNumber > g.maxBlock {
			g.maxBlock = r.BlockNumber
		}
	}

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.tx != b.tx {
			return a.tx < b.tx
		}
		if a.wallet != b.wallet {
			return a.wallet < b.wallet
		}
		return a.condition < b.condition
	})

	fills := make([]domain.Fill, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		fills = append(fills, domain.Fill{
			FillID:       FillID(domain.SourceCashLeg, k.wallet+":"+k.condition+":"+k.tx),
			EventTime:    time.Unix(g.firstTime, 0).UTC(),
			BlockNumber:  g.maxBlock,
			Wallet:       k.wallet,
			ConditionID:  k.condition,
			OutcomeIndex: domain.CashLegOutcomeIndex,
			USDCDelta:    float64(g.sum) / 2 / microUnit,
			Source:       domain.SourceCashLeg,
			TxHash:       k.tx,
		})
	}

	stats.Out = len(fills)
	return fills, stats
}

// Conversions normalizes internal neg-risk conversions: signed share flow
// between a market's tokens and its linked pool, no cash movement. The
// source tag marks these rows as lower-confidence input for settlement.
func (n *Normalizer) Conversions(ctx context.Context, raws []domain.RawConversion) ([]domain.Fill, NormalizeStats, error) {
	stats := NormalizeStats{In: len(raws)}

	fills := make([]domain.Fill, 0, len(raws))
	for _, r := range raws {
		if err := ctx.Err(); err != nil {
			return nil, stats, fmt.Errorf("ledger: conversion normalization cancelled: %w", err)
		}

		mapping, err := n.resolver.Resolve(ctx, r.TokenID)
		if err != nil {
			if errors.Is(err, domain.ErrUnresolvedToken) {
				stats.Skipped++
				n.logger.Warn("dropping conversion: unresolved token",
					slog.String("token_id", r.TokenID),
					slog.String("tx_hash", r.TransactionHash),
				)
				continue
			}
			return nil, stats, fmt.Errorf("ledger: resolve token %s: %w", r.TokenID, err)
		}

		fills = append(fills, domain.Fill{
			FillID:       FillID(domain.SourceConversion, r.EventID),
			EventTime:    time.Unix(r.Timestamp, 0).UTC(),
			BlockNumber:  r.BlockNumber,
			Wallet:       r.Wallet,
			ConditionID:  mapping.ConditionID,
			OutcomeIndex: mapping.OutcomeIndex,
			TokensDelta:  float64(r.Amount) / microUnit,
			Source:       domain.SourceConversion,
			TxHash:       r.TransactionHash,
		})
	}

	stats.Out = len(fills)
	return fills, stats, nil
}
