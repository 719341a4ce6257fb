package api

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/brickfi/pool-data/internal/model"
)

// PercentToBps converts a decimal percent string to basis points.
// "4.25" -> 425, "0.05" -> 5, "-4.495" -> -450 (rounded half away from zero)
// Returns 0 for empty or invalid input.
func PercentToBps(percent string) int {
	if percent == "" {
		return 0
	}

	percent = strings.TrimSpace(percent)

	f, err := strconv.ParseFloat(percent, 64)
	if err != nil {
		return 0
	}

	return int(math.Round(f * 100))
}

// USDCToMicro converts a decimal USDC string to micro-USDC.
// "1250000.50" -> 1250000500000
// Returns 0 for empty or invalid input.
func USDCToMicro(usdc string) int64 {
	if usdc == "" {
		return 0
	}

	usdc = strings.TrimSpace(usdc)

	f, err := strconv.ParseFloat(usdc, 64)
	if err != nil {
		return 0
	}

	return int64(math.Round(f * 1_000_000))
}

// ParseTimestamp parses an ISO 8601 timestamp to microseconds since epoch.
// Returns 0 for empty or invalid input.
func ParseTimestamp(iso string) int64 {
	if iso == "" {
		return 0
	}

	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		// Try without timezone
		t, err = time.Parse("2006-01-02T15:04:05", iso)
		if err != nil {
			return 0
		}
	}

	return t.UnixMicro()
}

// NowMicro returns the current time in microseconds since epoch.
func NowMicro() int64 {
	return time.Now().UnixMicro()
}

// ToModel converts an APIPool to model.Pool.
func (p *APIPool) ToModel() model.Pool {
	return model.Pool{
		Address:     p.Address,
		Name:        p.Name,
		AssetClass:  p.AssetClass,
		Status:      p.Status,
		SeniorAPY:   PercentToBps(p.SeniorAPY),
		JuniorAPY:   PercentToBps(p.JuniorAPY),
		TVL:         USDCToMicro(p.TVL),
		SeniorTVL:   USDCToMicro(p.SeniorTVL),
		JuniorTVL:   USDCToMicro(p.JuniorTVL),
		Utilization: PercentToBps(p.Utilization),
		UpdatedAt:   NowMicro(),
	}
}

// ToSnapshot converts a PoolSnapshotResponse to model.PoolSnapshot.
func (r *PoolSnapshotResponse) ToSnapshot(source string) model.PoolSnapshot {
	return model.PoolSnapshot{
		Pool:      r.Pool.ToModel(),
		Source:    source,
		FetchedAt: NowMicro(),
	}
}
