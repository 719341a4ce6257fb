package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// ErrRetriesExhausted is carried by the final state event after the
// client gives up reconnecting. The caller must call Connect again.
var ErrRetriesExhausted = errors.New("reconnect attempts exhausted")

// State is the connection state of a Client.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateError
)

// String returns the lowercase state name used in logs and the wire.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// StateEvent describes a single state transition.
type StateEvent struct {
	Old State
	New State
	Err error // Cause of the transition, nil for clean transitions
}

// MessageType tags a wire envelope.
type MessageType string

// Data-plane message types.
const (
	TypePoolUpdate   MessageType = "pool_update"
	TypeAPYChange    MessageType = "apy_change"
	TypeTransaction  MessageType = "transaction"
	TypePriceFeed    MessageType = "price_feed"
	TypeNotification MessageType = "notification"
	TypePing         MessageType = "ping"
	TypePong         MessageType = "pong"
)

// Control-plane message types. Channel membership uses its own tagged
// variants rather than overloading notification messages, so dispatch
// stays unambiguous.
const (
	TypeSubscribe   MessageType = "subscribe"
	TypeUnsubscribe MessageType = "unsubscribe"
)

// Envelope is the wire shape shared by all messages in both directions.
type Envelope struct {
	Type      MessageType     `json:"type"`
	Channel   string          `json:"channel,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"` // ms since epoch
}

// PoolUpdatePayload is the data field of a pool_update message.
// Amounts and rates arrive as decimal strings.
type PoolUpdatePayload struct {
	PoolAddress string `json:"pool_address"`
	Status      string `json:"status"`
	TVL         string `json:"tvl"`         // USDC, e.g. "2500000.50"
	SeniorTVL   string `json:"senior_tvl"`  // USDC
	JuniorTVL   string `json:"junior_tvl"`  // USDC
	SeniorAPY   string `json:"senior_apy"`  // percent, e.g. "4.50"
	JuniorAPY   string `json:"junior_apy"`  // percent
	Utilization string `json:"utilization"` // percent
	Ts          int64  `json:"ts"`          // seconds since epoch
}

// APYChangePayload is the data field of an apy_change message.
type APYChangePayload struct {
	PoolAddress string `json:"pool_address"`
	Tranche     string `json:"tranche"` // "senior" or "junior"
	OldAPY      string `json:"old_apy"` // percent
	NewAPY      string `json:"new_apy"` // percent
	Ts          int64  `json:"ts"`      // seconds since epoch
}

// TransactionPayload is the data field of a transaction message.
type TransactionPayload struct {
	ID          string `json:"id"` // UUID assigned by the platform
	PoolAddress string `json:"pool_address"`
	Kind        string `json:"kind"`
	Tranche     string `json:"tranche,omitempty"`
	Wallet      string `json:"wallet"`
	TxHash      string `json:"tx_hash"`
	Amount      string `json:"amount"` // USDC
	Ts          int64  `json:"ts"`     // seconds since epoch
}

// PriceFeedPayload is the data field of a price_feed message.
type PriceFeedPayload struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"` // USD
	Source string `json:"source"`
	Ts     int64  `json:"ts"` // seconds since epoch
}

// NotificationPayload is the data field of a notification message.
// Pool lifecycle events drive the registry.
type NotificationPayload struct {
	Event       string `json:"event"` // "pool_created", "pool_status_change", "pool_closed"
	PoolAddress string `json:"pool_address,omitempty"`
	OldStatus   string `json:"old_status,omitempty"`
	NewStatus   string `json:"new_status,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Config configures a Client.
type Config struct {
	URL                  string        // WebSocket URL (e.g., wss://stream.brickfi.io/ws)
	Header               http.Header   // Extra handshake headers (authentication)
	HandshakeTimeout     time.Duration // Dial timeout
	WriteTimeout         time.Duration // Write deadline for sends
	HeartbeatInterval    time.Duration // Application-level ping cadence
	ReconnectInterval    time.Duration // Base backoff delay
	MaxReconnectDelay    time.Duration // Backoff ceiling
	MaxReconnectAttempts int           // Attempts before giving up
	QueueSize            int           // Outbound queue capacity (drop-oldest)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout:     10 * time.Second,
		WriteTimeout:         5 * time.Second,
		HeartbeatInterval:    30 * time.Second,
		ReconnectInterval:    1 * time.Second,
		MaxReconnectDelay:    30 * time.Second,
		MaxReconnectAttempts: 5,
		QueueSize:            256,
	}
}
