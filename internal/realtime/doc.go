// Package realtime implements the WebSocket client for the BrickFi
// streaming API.
//
// The client:
//   - Maintains a single connection with automatic reconnection
//     (exponential backoff, capped delay, bounded attempts)
//   - Replays channel subscriptions in insertion order after every
//     successful reconnect, before flushing queued outbound messages
//   - Sends an application-level ping every heartbeat interval
//   - Fans inbound messages out to registered handlers, both per-type
//     and generic
//
// One client instance is constructed at startup and shared by reference;
// the package holds no global state.
package realtime
