package domain

import "time"

// MarketStatus represents the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusActive   MarketStatus = "active"
	MarketStatusClosed   MarketStatus = "closed"
	MarketStatusResolved MarketStatus = "resolved"
)

// Market is the condition-level metadata for one prediction market.
type Market struct {
	ConditionID string
	Question    string
	Slug        string
	Outcomes    []string
	NegRisk     bool
	Status      MarketStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TokenMapping maps one opaque ERC-1155 outcome token id to its
// (condition, outcome index) pair. Token ids are deterministically derived
// from the condition id at market-creation time, so the mapping is
// append-only and never changes for an existing market.
type TokenMapping struct {
	TokenID      string
	ConditionID  string
	OutcomeIndex int
	Outcome      string
}
