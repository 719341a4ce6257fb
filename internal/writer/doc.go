// Package writer implements batch writers for all data types.
//
// Writers:
//   - Pool state writer (TimescaleDB)
//   - APY point writer (TimescaleDB)
//   - Transaction writer (TimescaleDB)
//   - Price feed writer (TimescaleDB)
//   - Snapshot writer (TimescaleDB)
//
// All writers use append-only semantics (never update, only insert).
// Amounts are stored as integer micro-USDC; yields as basis points.
package writer
