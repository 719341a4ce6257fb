package api

import (
	"testing"

	"github.com/brickfi/pool-data/internal/model"
)

func TestPercentToBps(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"4.25", 425},
		{"0.05", 5},
		{"12.346", 1235},
		{"0.00", 0},
		{"100", 10000},
		{"8.5", 850},
		{"-4.495", -450},
		{"-0.25", -25},
		{"", 0},
		{"invalid", 0},
		{"  4.25  ", 425},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := PercentToBps(tt.input)
			if got != tt.want {
				t.Errorf("PercentToBps(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestUSDCToMicro(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"1250000.50", 1250000500000},
		{"0.000001", 1},
		{"1", 1000000},
		{"0.00", 0},
		{"-1.5", -1500000},
		{"", 0},
		{"invalid", 0},
		{"  42.5  ", 42500000},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := USDCToMicro(tt.input)
			if got != tt.want {
				t.Errorf("USDCToMicro(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	// Test empty and invalid
	if got := ParseTimestamp(""); got != 0 {
		t.Errorf("ParseTimestamp(\"\") = %d, want 0", got)
	}
	if got := ParseTimestamp("invalid"); got != 0 {
		t.Errorf("ParseTimestamp(\"invalid\") = %d, want 0", got)
	}

	// Test valid RFC3339
	got := ParseTimestamp("2024-01-15T12:30:45Z")
	if got == 0 {
		t.Error("ParseTimestamp(\"2024-01-15T12:30:45Z\") = 0, want non-zero")
	}
	// Should be 1705321845000000 (2024-01-15 12:30:45 UTC in microseconds)
	if got != 1705321845000000 {
		t.Errorf("ParseTimestamp(\"2024-01-15T12:30:45Z\") = %d, want 1705321845000000", got)
	}
}

func TestAPIPoolToModel(t *testing.T) {
	p := APIPool{
		Address:     "0xPOOL1",
		Name:        "Berlin Residential I",
		AssetClass:  "residential",
		Status:      model.PoolStatusActive,
		SeniorAPY:   "4.25",
		JuniorAPY:   "9.80",
		TVL:         "1250000.50",
		SeniorTVL:   "1000000.00",
		JuniorTVL:   "250000.50",
		Utilization: "82.5",
	}

	got := p.ToModel()

	if got.Address != "0xPOOL1" {
		t.Errorf("Address = %q, want %q", got.Address, "0xPOOL1")
	}
	if got.SeniorAPY != 425 {
		t.Errorf("SeniorAPY = %d, want %d", got.SeniorAPY, 425)
	}
	if got.JuniorAPY != 980 {
		t.Errorf("JuniorAPY = %d, want %d", got.JuniorAPY, 980)
	}
	if got.TVL != 1250000500000 {
		t.Errorf("TVL = %d, want %d", got.TVL, 1250000500000)
	}
	if got.Utilization != 8250 {
		t.Errorf("Utilization = %d, want %d", got.Utilization, 8250)
	}
	if !got.IsActive() {
		t.Error("IsActive() = false, want true")
	}
	if got.UpdatedAt == 0 {
		t.Error("UpdatedAt = 0, want non-zero")
	}
}

func TestSnapshotResponseToSnapshot(t *testing.T) {
	r := PoolSnapshotResponse{
		Pool: APIPool{Address: "0xPOOL2", Status: model.PoolStatusPaused},
	}

	snap := r.ToSnapshot("rest")

	if snap.Pool.Address != "0xPOOL2" {
		t.Errorf("Pool.Address = %q, want %q", snap.Pool.Address, "0xPOOL2")
	}
	if snap.Source != "rest" {
		t.Errorf("Source = %q, want %q", snap.Source, "rest")
	}
	if snap.FetchedAt == 0 {
		t.Error("FetchedAt = 0, want non-zero")
	}
}
