package writer

import (
	"time"

	"github.com/google/uuid"
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
		BatchSize:     1000,
		FlushInterval: 5 * time.Second,
	}
}

// poolStateRow represents a row for the pool_states table.
type poolStateRow struct {
	ExchangeTs  int64 // Microseconds
	ReceivedAt  int64 // Microseconds
	Address     string
	Status      string
	TVL         int64 // Micro-USDC
	SeniorTVL   int64
	JuniorTVL   int64
	SeniorAPY   int // Basis points
	JuniorAPY   int
	Utilization int
}

// apyRow represents a row for the apy_points table.
type apyRow struct {
	ExchangeTs  int64
	ReceivedAt  int64
	PoolAddress string
	Tranche     string
	OldAPY      int // Basis points
	NewAPY      int
}

// transactionRow represents a row for the transactions table.
type transactionRow struct {
	ID          uuid.UUID
	ExchangeTs  int64
	ReceivedAt  int64
	PoolAddress string
	Kind        string
	Tranche     string
	Wallet      string
	TxHash      string
	Amount      int64 // Micro-USDC
}

// priceRow represents a row for the price_feeds table.
type priceRow struct {
	ExchangeTs int64
	ReceivedAt int64
	Symbol     string
	Source     string
	Price      int64 // Micro-USD
}

// snapshotRow represents a row for the pool_snapshots table.
type snapshotRow struct {
	FetchedAt   int64 // Microseconds
	Address     string
	Source      string // "rest" or "ws"
	Status      string
	TVL         int64
	SeniorTVL   int64
	JuniorTVL   int64
	SeniorAPY   int
	JuniorAPY   int
	Utilization int
}

// WriterMetrics holds metrics for a writer.
type WriterMetrics struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
}
