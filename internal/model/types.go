package model

import "github.com/google/uuid"

// Pool statuses as reported by the platform API.
const (
	PoolStatusPending    = "pending"
	PoolStatusActive     = "active"
	PoolStatusPaused     = "paused"
	PoolStatusClosed     = "closed"
	PoolStatusLiquidated = "liquidated"
)

// Tranche identifiers. Senior takes lower yield for lower risk,
// junior absorbs first losses for higher yield.
const (
	TrancheSenior = "senior"
	TrancheJunior = "junior"
)

// Transaction kinds.
const (
	TxDeposit  = "deposit"
	TxWithdraw = "withdraw"
	TxClaim    = "claim"
	TxBorrow   = "borrow"
	TxRepay    = "repay"
)

// Pool represents a tranched real-estate lending pool.
type Pool struct {
	Address    string // Primary key (on-chain pool address)
	Name       string // Display name (e.g., "Berlin Residential I")
	AssetClass string // "residential", "commercial", "mixed"
	Status     string // One of the PoolStatus* constants

	// Current yields (basis points)
	SeniorAPY int
	JuniorAPY int

	// Value locked (micro-USDC)
	TVL       int64
	SeniorTVL int64
	JuniorTVL int64

	// Utilization of deposited capital (basis points, 0-10000)
	Utilization int

	UpdatedAt int64 // Last update (µs since epoch)
}

// IsActive reports whether the pool accepts deposits and emits updates.
func (p Pool) IsActive() bool {
	return p.Status == PoolStatusActive
}

// Transaction represents a settled on-chain transaction against a pool.
type Transaction struct {
	ID          uuid.UUID // Primary key (assigned by the platform)
	PoolAddress string    // Foreign key to Pool
	Kind        string    // One of the Tx* constants
	Tranche     string    // "senior" or "junior" ("" for pool-level kinds)
	Wallet      string    // Initiating wallet address
	TxHash      string    // On-chain transaction hash
	Amount      int64     // Micro-USDC
	ChainTS     int64     // Block timestamp (µs since epoch)
}

// PricePoint is a single observation from an external price feed.
type PricePoint struct {
	Symbol    string // Feed symbol (e.g., "ETH/USD", "BRICK/USD")
	Price     int64  // Micro-USD
	Source    string // Feed source identifier
	Timestamp int64  // Feed timestamp (µs since epoch)
}

// APYPoint is a single yield observation for one tranche of a pool.
type APYPoint struct {
	PoolAddress string
	Tranche     string
	APY         int   // Basis points
	Timestamp   int64 // µs since epoch
}

// PoolSnapshot is a full pool state fetched via REST, used for gap backfill.
type PoolSnapshot struct {
	Pool      Pool
	Source    string // "rest" or "ws"
	FetchedAt int64  // µs since epoch
}
