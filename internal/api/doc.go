// Package api provides the BrickFi platform client for REST communication.
//
// REST endpoints:
//   - Production: https://api.brickfi.io/v1
//   - Sandbox: https://sandbox-api.brickfi.io/v1
//
// WebSocket endpoint:
//   - wss://stream.brickfi.io/ws
//
// Key channels: pool_updates, apy_changes, transactions, price_feeds
package api
