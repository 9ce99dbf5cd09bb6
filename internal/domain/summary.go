package domain

import "time"

// Confidence is a heuristic quality label on a wallet's computed PnL. It
// surfaces known data-quality risks; it is not a correctness proof.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// WalletSummary is the per-wallet settlement output. UnrealizedPnL is
// always zero: mark-to-market valuation of open positions is a known gap,
// carried as an explicit field rather than silently omitted.
type WalletSummary struct {
	Wallet            string
	RealizedPnL       float64
	UnrealizedPnL     float64
	TotalPositions    int64
	OpenPositions     int64
	ResolvedPositions int64
	Confidence        Confidence
	ConfidenceReason  string
	LastUpdated       time.Time
}
