// Package domain defines the core ledger types shared by every component:
// canonical fills, positions, resolutions, summaries, and watermarks, plus
// the store and cache interfaces their persistence layers implement.
package domain

import "time"

// FillSource identifies which raw event stream a canonical fill was
// normalized from.
type FillSource string

const (
	SourceOrderFill  FillSource = "order_fill"
	SourceMintBurn   FillSource = "token_mint_burn"
	SourceCashLeg    FillSource = "token_cash_leg"
	SourceConversion FillSource = "internal_conversion"
)

// Sources lists every ledger event source in ingestion order.
var Sources = []FillSource{
	SourceOrderFill,
	SourceMintBurn,
	SourceCashLeg,
	SourceConversion,
}

// CashLegOutcomeIndex marks a fill recorded at condition level rather than
// against a specific outcome. Cash legs carry only a USDC delta, so they
// have no outcome of their own.
const CashLegOutcomeIndex = -1

// Fill is one immutable row of the canonical fill ledger. Rows are keyed by
// FillID, a deterministic hash of the source and the source-native event id,
// so re-ingesting the same window replaces rather than duplicates.
type Fill struct {
	FillID       string
	EventTime    time.Time
	BlockNumber  int64
	Wallet       string
	ConditionID  string
	OutcomeIndex int // CashLegOutcomeIndex for condition-level rows
	TokensDelta  float64
	USDCDelta    float64
	Source       FillSource
	IsSelfFill   bool
	IsMaker      bool
	TxHash       string
}
