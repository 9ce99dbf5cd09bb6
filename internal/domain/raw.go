package domain

// RawOrderFill is an on-chain OrderFilled event from the CTF exchange, as
// returned by the subgraph. Amounts are 6-decimal fixed-point integers
// (USDC micro-units / token micro-shares).
type RawOrderFill struct {
	EventID           string
	Timestamp         int64
	BlockNumber       int64
	Maker             string
	MakerAssetID      string
	MakerAmountFilled int64
	Taker             string
	TakerAssetID      string
	TakerAmountFilled int64
	Fee               int64
	TransactionHash   string
}

// RawSplitMerge is a PositionSplit or PositionsMerge event: collateral split
// into a full outcome set, or a full set merged back. Amount is signed:
// positive for a split (tokens minted on every outcome), negative for a
// merge (tokens burned on every outcome).
type RawSplitMerge struct {
	EventID         string
	Timestamp       int64
	BlockNumber     int64
	Wallet          string
	ConditionID     string
	Amount          int64
	TransactionHash string
}

// RawCashLeg is the USDC side of a split or merge, recorded at condition
// level. The underlying stream records both the contribution and the
// distribution leg of one economic transfer, so raw legs for a single
// (wallet, condition, transaction) must be summed and halved downstream.
type RawCashLeg struct {
	EventID         string
	Timestamp       int64
	BlockNumber     int64
	Wallet          string
	ConditionID     string
	CashDelta       int64
	TransactionHash string
}

// RawConversion is an internal bookkeeping transfer between a market's
// outcome tokens and a linked neg-risk pool. Amount is the signed share
// flow. Conversions represent internal accounting rather than external
// economic activity and taint downstream confidence.
type RawConversion struct {
	EventID         string
	Timestamp       int64
	BlockNumber     int64
	Wallet          string
	TokenID         string
	Amount          int64
	TransactionHash string
}

// RawCondition is a ConditionPreparation event: a new market's condition
// id and outcome slot count.
type RawCondition struct {
	ConditionID      string
	OutcomeSlotCount int
	Timestamp        int64
	BlockNumber      int64
}

// RawResolution is an oracle ConditionResolution event: the payout vector
// reported for a resolved condition.
type RawResolution struct {
	ConditionID       string
	PayoutNumerators  []int64
	PayoutDenominator int64
	Timestamp         int64
	BlockNumber       int64
	TransactionHash   string
}
