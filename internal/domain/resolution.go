package domain

import "time"

// Resolution is the oracle-reported payout vector for a resolved condition.
// Produced by the oracle tracker; read-only input to settlement.
type Resolution struct {
	ConditionID       string
	PayoutNumerators  []int64
	PayoutDenominator int64
	ResolvedAt        time.Time
}

// PayoutRatio returns the payout value of one full token of the given
// outcome, i.e. numerator/denominator. It returns 0 for an outcome index
// outside the payout vector or a zero denominator, so a malformed
// resolution can never credit value.
func (r Resolution) PayoutRatio(outcomeIndex int) float64 {
	if outcomeIndex < 0 || outcomeIndex >= len(r.PayoutNumerators) {
		return 0
	}
	if r.PayoutDenominator == 0 {
		return 0
	}
	return float64(r.PayoutNumerators[outcomeIndex]) / float64(r.PayoutDenominator)
}
