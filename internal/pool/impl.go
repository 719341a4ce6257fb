package pool

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/brickfi/pool-data/internal/api"
	"github.com/brickfi/pool-data/internal/model"
	"github.com/brickfi/pool-data/internal/realtime"
)

// Config holds Pool Registry configuration.
type Config struct {
	ReconcileInterval time.Duration
	PageSize          int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReconcileInterval: 5 * time.Minute,
		PageSize:          500,
	}
}

// registryImpl implements the Registry interface.
type registryImpl struct {
	cfg    Config
	rest   *api.Client
	logger *slog.Logger

	state *registryState

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRegistry creates a new Pool Registry.
func NewRegistry(cfg Config, rest *api.Client, logger *slog.Logger) Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &registryImpl{
		cfg:    cfg,
		rest:   rest,
		logger: logger,
		state:  newState(),
	}
}

// Start begins pool discovery.
func (r *registryImpl) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	// Initial sync (blocking).
	if err := r.initialSync(r.ctx); err != nil {
		r.cancel()
		return err
	}

	// Start background reconciliation.
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.reconciliationLoop(r.ctx)
	}()

	// Start notification handler if source is set.
	if r.state.notifications != nil {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.notificationLoop(r.ctx)
		}()
	}

	r.logger.Info("pool registry started",
		"active_pools", len(r.state.activeSet),
		"total_pools", len(r.state.pools),
	)

	return nil
}

// Stop gracefully shuts down.
func (r *registryImpl) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("pool registry stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetActivePools returns all pools currently accepting deposits.
func (r *registryImpl) GetActivePools() []model.Pool {
	return r.state.getActivePools()
}

// GetPool returns a specific pool by address.
func (r *registryImpl) GetPool(address string) (model.Pool, bool) {
	return r.state.getPool(address)
}

// Count returns the number of known pools.
func (r *registryImpl) Count() int {
	return r.state.count()
}

// SubscribeChanges returns a channel of pool state changes.
func (r *registryImpl) SubscribeChanges() <-chan PoolChange {
	return r.state.changes
}

// SetNotificationSource sets the channel for notification messages.
func (r *registryImpl) SetNotificationSource(ch <-chan realtime.NotificationPayload) {
	r.state.notifications = ch
}
