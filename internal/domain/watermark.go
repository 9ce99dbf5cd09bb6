package domain

import "time"

// Watermark rows exist for the four ledger sources plus two auxiliary
// streams: oracle resolutions and market-creation events.
const (
	WatermarkSourceResolution = "resolution"
	WatermarkSourceMarket     = "market"
)

// Watermark records the last successfully ingested position for one event
// source. It is advanced only after the corresponding ledger write has
// committed, so a failed run reprocesses the same window instead of
// skipping past un-ingested data.
type Watermark struct {
	Source          string
	LastBlockNumber int64
	LastEventTime   time.Time
	UpdatedAt       time.Time
}
