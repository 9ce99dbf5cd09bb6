package domain

import "time"

// Position is the aggregate of every canonical fill for one
// (wallet, condition, outcome) key. Positions are fully derived from the
// fill ledger and replaced wholesale on every aggregation run; they are
// never mutated in place.
type Position struct {
	Wallet         string
	ConditionID    string
	OutcomeIndex   int
	NetTokens      float64
	CashFlow       float64
	TradeCount     int64
	HasConversions bool
	FirstTrade     time.Time
	LastTrade      time.Time
}

// Key returns the natural key of the position.
func (p Position) Key() PositionKey {
	return PositionKey{p.Wallet, p.ConditionID, p.OutcomeIndex}
}

// PositionKey identifies a position row.
type PositionKey struct {
	Wallet       string
	ConditionID  string
	OutcomeIndex int
}
