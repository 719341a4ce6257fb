// Package database provides connection pool management for TimescaleDB.
//
// Each collector maintains local time-series storage:
//   - pool_states, pool_snapshots (pool level data)
//   - apy_points, transactions, price_feeds (event streams)
package database
