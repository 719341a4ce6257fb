package api

// PlatformStatusResponse from GET /status
type PlatformStatusResponse struct {
	PlatformActive      bool   `json:"platform_active"`
	DepositsActive      bool   `json:"deposits_active"`
	EstimatedResumeTime string `json:"estimated_resume_time,omitempty"`
}

// PoolsResponse from GET /pools
type PoolsResponse struct {
	Pools  []APIPool `json:"pools"`
	Cursor string    `json:"cursor"`
}

// APIPool represents a lending pool from the BrickFi API.
type APIPool struct {
	Address    string `json:"address"`
	Name       string `json:"name"`
	AssetClass string `json:"asset_class"`
	Status     string `json:"status"`

	// Yields as decimal percent strings ("4.25" = 4.25%)
	SeniorAPY string `json:"senior_apy"`
	JuniorAPY string `json:"junior_apy"`

	// Value locked as decimal USDC strings ("1250000.50")
	TVL       string `json:"tvl"`
	SeniorTVL string `json:"senior_tvl"`
	JuniorTVL string `json:"junior_tvl"`

	// Utilization as a decimal percent string
	Utilization string `json:"utilization"`

	// Timestamps (ISO 8601)
	CreatedTime string `json:"created_time"`
	UpdatedTime string `json:"updated_time"`
}

// SinglePoolResponse from GET /pools/{address}
type SinglePoolResponse struct {
	Pool APIPool `json:"pool"`
}

// PoolSnapshotResponse from GET /pools/{address}/snapshot
type PoolSnapshotResponse struct {
	Pool       APIPool `json:"pool"`
	SnapshotTS string  `json:"snapshot_time"`
}

// GetPoolsOptions configures a GetPools request.
type GetPoolsOptions struct {
	Limit      int
	Cursor     string
	Status     string
	AssetClass string
}
