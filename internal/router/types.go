package router

import (
	"time"

	"github.com/google/uuid"
)

// RouterConfig holds configuration for the message router.
type RouterConfig struct {
	// Output buffer sizes
	PoolStateBufferSize   int // Default: 5000
	APYBufferSize         int // Default: 1000
	TransactionBufferSize int // Default: 1000
	PriceBufferSize       int // Default: 1000

	// Notification channel capacity
	NotificationBufferSize int // Default: 100
}

// DefaultRouterConfig returns default configuration.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		PoolStateBufferSize:    5000,
		APYBufferSize:          1000,
		TransactionBufferSize:  1000,
		PriceBufferSize:        1000,
		NotificationBufferSize: 100,
	}
}

// PoolStateMsg is a parsed pool_update with internal units applied.
type PoolStateMsg struct {
	Address string
	Status  string

	// Micro-USDC
	TVL       int64
	SeniorTVL int64
	JuniorTVL int64

	// Basis points
	SeniorAPY   int
	JuniorAPY   int
	Utilization int

	ExchangeTs int64 // Microseconds
	ReceivedAt time.Time
}

// APYMsg is a parsed apy_change.
type APYMsg struct {
	PoolAddress string
	Tranche     string // "senior" or "junior"
	OldAPY      int    // Basis points
	NewAPY      int    // Basis points
	ExchangeTs  int64  // Microseconds
	ReceivedAt  time.Time
}

// TransactionMsg is a parsed transaction.
type TransactionMsg struct {
	ID          uuid.UUID
	PoolAddress string
	Kind        string
	Tranche     string
	Wallet      string
	TxHash      string
	Amount      int64 // Micro-USDC
	ExchangeTs  int64 // Microseconds
	ReceivedAt  time.Time
}

// PriceMsg is a parsed price_feed observation.
type PriceMsg struct {
	Symbol     string
	Price      int64 // Micro-USD
	Source     string
	ExchangeTs int64 // Microseconds
	ReceivedAt time.Time
}
