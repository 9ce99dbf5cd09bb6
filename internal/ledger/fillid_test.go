package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/pnlcore/internal/domain"
)

func TestFillID_Deterministic(t *testing.T) {
	a := FillID(domain.SourceOrderFill, "evt-1:maker")
	b := FillID(domain.SourceOrderFill, "evt-1:maker")
	assert.Equal(t, a, b)
}

func TestFillID_Format(t *testing.T) {
	id := FillID(domain.SourceMintBurn, "evt-2:0")
	require.Len(t, id, 66)
	assert.Equal(t, "0x", id[:2])
}

func TestFillID_DistinctAcrossSourcesAndIDs(t *testing.T) {
	ids := map[string]bool{
		FillID(domain.SourceOrderFill, "evt-1"):  true,
		FillID(domain.SourceMintBurn, "evt-1"):   true,
		FillID(domain.SourceCashLeg, "evt-1"):    true,
		FillID(domain.SourceConversion, "evt-1"): true,
		FillID(domain.SourceOrderFill, "evt-2"):  true,
	}
	assert.Len(t, ids, 5)
}
