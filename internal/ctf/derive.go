// Package ctf resolves opaque ERC-1155 outcome token ids to their
// (condition, outcome index) pair. Token ids are deterministically derived
// from the condition id via the conditional-tokens hash chain, so the
// mapping is precomputed once at market sync time and never changes for an
// existing market.
package ctf

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/pnlcore/internal/domain"
)

// USDCCollateral is the collateral token on Polygon mainnet. Every outcome
// token position id is derived against it.
const USDCCollateral = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"

// CollectionID derives the outcome collection hash for one outcome of a
// condition:
//
//	keccak256(parentCollection || conditionId || indexSet)
//
// with indexSet encoded as a 32-byte big-endian integer. The root
// collection has a zero parent.
func CollectionID(parent common.Hash, conditionID common.Hash, indexSet *big.Int) common.Hash {
	return common.BytesToHash(ethcrypto.Keccak256(
		parent.Bytes(),
		conditionID.Bytes(),
		bigIntTo32Bytes(indexSet),
	))
}

// PositionID derives the ERC-1155 token id for a collection held against a
// collateral token:
//
//	keccak256(collateral || collectionId)
//
// interpreted as an unsigned 256-bit integer.
func PositionID(collateral common.Address, collection common.Hash) *big.Int {
	h := ethcrypto.Keccak256(
		common.LeftPadBytes(collateral.Bytes(), 32),
		collection.Bytes(),
	)
	return new(big.Int).SetBytes(h)
}

// OutcomeTokenID derives the decimal token id string for a single outcome
// of a condition. The index set for outcome i is the singleton bit 1<<i.
func OutcomeTokenID(conditionID string, outcomeIndex int) (string, error) {
	if outcomeIndex < 0 || outcomeIndex > 255 {
		return "", fmt.Errorf("ctf: outcome index %d out of range: %w", outcomeIndex, domain.ErrMalformedCondition)
	}
	cond, err := parseConditionID(conditionID)
	if err != nil {
		return "", err
	}

	indexSet := new(big.Int).Lsh(big.NewInt(1), uint(outcomeIndex))
	collection := CollectionID(common.Hash{}, cond, indexSet)
	tokenID := PositionID(common.HexToAddress(USDCCollateral), collection)

	return tokenID.String(), nil
}

// parseConditionID validates and decodes a 0x-prefixed 32-byte condition
// id. Malformed ids are rejected rather than zero-padded so a bad input can
// never derive into some other market's token ids.
func parseConditionID(conditionID string) (common.Hash, error) {
	hexPart, ok := strings.CutPrefix(conditionID, "0x")
	if !ok || len(hexPart) != 64 {
		return common.Hash{}, fmt.Errorf("ctf: condition id %q: %w", conditionID, domain.ErrMalformedCondition)
	}
	b, err := hex.DecodeString(hexPart)
	if err != nil {
		return common.Hash{}, fmt.Errorf("ctf: condition id %q: %w", conditionID, domain.ErrMalformedCondition)
	}
	return common.BytesToHash(b), nil
}

// bigIntTo32Bytes returns a 32-byte big-endian representation of n.
func bigIntTo32Bytes(n *big.Int) []byte {
	b := n.Bytes()
	if len(b) >= 32 {
		return b[:32]
	}
	padded := make([]byte, 32)
	copy(padded[32-len(b):], b)
	return padded
}
