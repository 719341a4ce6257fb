// Package model defines shared data types used across the BrickFi Pool Data
// Collector.
//
// Conventions:
//   - Rates: integer basis points (450 = 4.50% APY)
//   - Amounts: int64 micro-units (1,000,000 = 1.0 USDC)
//   - Timestamps: int64 microseconds since Unix epoch
//   - IDs: string for pool addresses and channels, uuid.UUID for transactions
package model
