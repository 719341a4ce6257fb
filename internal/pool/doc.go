// Package pool implements the Pool Registry component.
//
// The Pool Registry:
//   - Discovers pools via REST API on startup
//   - Receives live updates via notification WebSocket messages
//   - Maintains an in-memory registry of active pools
//   - Notifies downstream components of pool additions/removals
package pool
