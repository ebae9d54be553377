package recorder

import (
	"time"
)

// WriterConfig contains configuration for batch writers.
type WriterConfig struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     500,
		FlushInterval: 1 * time.Second,
	}
}

// positionRow represents a row for the position_updates table.
type positionRow struct {
	Symbol        string
	Account       string
	Quantity      int64
	AvgPrice      int64 // Hundred-thousandths
	MarkPrice     int64 // Hundred-thousandths
	UnrealizedPnL int64 // Hundred-thousandths, signed
	UpdatedTS     int64 // Microseconds
	ReceivedAt    int64 // Microseconds
}

// fillRow represents a row for the trade_fills table.
type fillRow struct {
	ID         string // UUID
	Symbol     string
	Account    string
	Side       string // "buy" or "sell"
	Price      int64  // Hundred-thousandths
	Quantity   int64
	Venue      string
	ExecutedTS int64 // Microseconds
	ReceivedAt int64 // Microseconds
}

// alertRow represents a row for the alerts table.
type alertRow struct {
	ID         string // UUID
	Severity   string
	Code       string
	Message    string
	Symbol     string
	RaisedTS   int64 // Microseconds
	Acked      bool
	ReceivedAt int64 // Microseconds
}

// WriterMetrics holds metrics for a writer.
type WriterMetrics struct {
	Inserts      int64
	Conflicts    int64
	Errors       int64
	Flushes      int64
	StreamErrors int64
}
