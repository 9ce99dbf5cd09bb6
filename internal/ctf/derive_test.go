package ctf

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/pnlcore/internal/domain"
)

const testCondition = "0x1111111111111111111111111111111111111111111111111111111111111111"

func TestOutcomeTokenID_Deterministic(t *testing.T) {
	a, err := OutcomeTokenID(testCondition, 0)
	require.NoError(t, err)
	b, err := OutcomeTokenID(testCondition, 0)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestOutcomeTokenID_DistinctPerOutcome(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 4; i++ {
		id, err := OutcomeTokenID(testCondition, i)
		require.NoError(t, err)
		assert.False(t, seen[id], "outcome %d collided", i)
		seen[id] = true
	}
}

func TestOutcomeTokenID_DecimalString(t *testing.T) {
	id, err := OutcomeTokenID(testCondition, 1)
	require.NoError(t, err)

	n, ok := new(big.Int).SetString(id, 10)
	require.True(t, ok, "token id %q is not decimal", id)
	assert.Positive(t, n.Sign())
}

func TestOutcomeTokenID_RejectsMalformedCondition(t *testing.T) {
	cases := []string{
		"",
		"0x1234",
		"1111111111111111111111111111111111111111111111111111111111111111",
		"0xzzzz111111111111111111111111111111111111111111111111111111111111",
	}
	for _, c := range cases {
		_, err := OutcomeTokenID(c, 0)
		assert.ErrorIs(t, err, domain.ErrMalformedCondition, "condition %q accepted", c)
	}
}

func TestOutcomeTokenID_RejectsOutOfRangeIndex(t *testing.T) {
	_, err := OutcomeTokenID(testCondition, -1)
	assert.ErrorIs(t, err, domain.ErrMalformedCondition)
	_, err = OutcomeTokenID(testCondition, 256)
	assert.ErrorIs(t, err, domain.ErrMalformedCondition)
}

func TestCollectionID_ParentChanges(t *testing.T) {
	cond := common.HexToHash(testCondition)
	idx := big.NewInt(1)

	root := CollectionID(common.Hash{}, cond, idx)
	nested := CollectionID(root, cond, idx)
	assert.NotEqual(t, root, nested)
}

func TestPositionID_CollateralChanges(t *testing.T) {
	cond := common.HexToHash(testCondition)
	collection := CollectionID(common.Hash{}, cond, big.NewInt(1))

	a := PositionID(common.HexToAddress(USDCCollateral), collection)
	b := PositionID(common.HexToAddress("0x0000000000000000000000000000000000000001"), collection)
	assert.NotEqual(t, a.String(), b.String())
}
