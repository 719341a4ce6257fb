package pool

import (
	"context"

	"github.com/brickfi/pool-data/internal/model"
	"github.com/brickfi/pool-data/internal/realtime"
)

// ChangeBufferSize is the capacity of the PoolChange channel.
const ChangeBufferSize = 1000

// Registry manages pool discovery and lifecycle.
type Registry interface {
	// Start begins pool discovery, blocking for the initial REST sync
	// and then reconciling in the background.
	Start(ctx context.Context) error

	// Stop gracefully shuts down.
	Stop(ctx context.Context) error

	// GetActivePools returns all pools currently accepting deposits.
	GetActivePools() []model.Pool

	// GetPool returns a specific pool by address.
	GetPool(address string) (model.Pool, bool)

	// Count returns the number of known pools.
	Count() int

	// SubscribeChanges returns a channel of pool state changes.
	SubscribeChanges() <-chan PoolChange

	// SetNotificationSource sets the channel from which platform
	// notifications are received. The router calls this to forward
	// pool lifecycle messages.
	SetNotificationSource(ch <-chan realtime.NotificationPayload)
}

// PoolChange represents a pool state transition.
type PoolChange struct {
	Address   string      // Pool address
	EventType string      // "created", "status_change", "closed"
	OldStatus string      // Previous status (for status_change)
	NewStatus string      // New status
	Pool      *model.Pool // Full pool data (nil for "closed")
}
