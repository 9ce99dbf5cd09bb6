package pipeline

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/pnlcore/internal/domain"
)

func TestFillsToCSV(t *testing.T) {
	fills := []domain.Fill{{
		FillID:       "0xabc",
		EventTime:    time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC),
		BlockNumber:  1234,
		Wallet:       "0xwallet",
		ConditionID:  "0xcond",
		OutcomeIndex: 1,
		TokensDelta:  20,
		USDCDelta:    -7.1,
		Source:       domain.SourceOrderFill,
		IsSelfFill:   false,
		IsMaker:      true,
		TxHash:       "0xtx",
	}}

	out, err := fillsToCSV(fills)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "fill_id", records[0][0])
	assert.Equal(t, []string{
		"0xabc", "2026-08-29T10:00:00Z", "1234", "0xwallet",
		"0xcond", "1", "20", "-7.1",
		"order_fill", "false", "true", "0xtx",
	}, records[1])
}

func TestFillsToCSV_EmptyHasHeaderOnly(t *testing.T) {
	out, err := fillsToCSV(nil)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSummariesToCSV(t *testing.T) {
	summaries := []domain.WalletSummary{{
		Wallet:            "0xwallet",
		RealizedPnL:       16,
		UnrealizedPnL:     0,
		TotalPositions:    3,
		OpenPositions:     1,
		ResolvedPositions: 2,
		Confidence:        domain.ConfidenceMedium,
		ConfidenceReason:  "1 open position(s) without settlement",
		LastUpdated:       time.Date(2026, 8, 29, 4, 0, 0, 0, time.UTC),
	}}

	out, err := summariesToCSV(summaries)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "wallet", records[0][0])
	assert.Equal(t, []string{
		"0xwallet", "16", "0",
		"3", "1", "2",
		"medium", "1 open position(s) without settlement", "2026-08-29T04:00:00Z",
	}, records[1])
}
