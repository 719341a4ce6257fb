package pool

import (
	"context"
	"time"

	"github.com/brickfi/pool-data/internal/api"
	"github.com/brickfi/pool-data/internal/model"
	"github.com/brickfi/pool-data/internal/realtime"
)

// initialSync fetches pools from the REST API on startup.
// Liquidated pools are historical and excluded from the fetch.
func (r *registryImpl) initialSync(ctx context.Context) error {
	// Check platform status first.
	if err := r.checkPlatformStatus(ctx); err != nil {
		return err
	}

	r.logger.Info("starting initial pool sync")
	start := time.Now()

	apiPools, err := r.fetchCurrentPools(ctx)
	if err != nil {
		return err
	}

	r.state.mu.Lock()
	for _, ap := range apiPools {
		p := ap.ToModel()
		r.state.upsertPoolLocked(p)

		if p.IsActive() {
			r.state.notifyChange(PoolChange{
				Address:   p.Address,
				EventType: "created",
				NewStatus: p.Status,
				Pool:      &p,
			})
		}
	}
	r.state.lastSyncAt = time.Now()
	r.state.mu.Unlock()

	r.logger.Info("initial sync complete",
		"total_pools", len(apiPools),
		"active_pools", len(r.state.activeSet),
		"duration", time.Since(start),
	)

	return nil
}

// fetchCurrentPools fetches non-terminal pools, one status at a time.
func (r *registryImpl) fetchCurrentPools(ctx context.Context) ([]api.APIPool, error) {
	var all []api.APIPool

	for _, status := range []string{model.PoolStatusActive, model.PoolStatusPending, model.PoolStatusPaused} {
		pools, err := r.rest.GetAllPoolsWithOptions(ctx, api.GetPoolsOptions{
			Status: status,
			Limit:  r.cfg.PageSize,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, pools...)
	}

	return all, nil
}

// checkPlatformStatus verifies the platform is active.
func (r *registryImpl) checkPlatformStatus(ctx context.Context) error {
	status, err := r.rest.GetPlatformStatus(ctx)
	if err != nil {
		return err
	}

	r.state.mu.Lock()
	r.state.platformActive = status.PlatformActive
	r.state.depositsActive = status.DepositsActive
	r.state.mu.Unlock()

	if !status.PlatformActive {
		r.logger.Warn("platform is not active",
			"estimated_resume", status.EstimatedResumeTime,
		)
		// Continue anyway, reconciliation will retry.
	}

	return nil
}

// reconciliationLoop periodically syncs with the REST API.
func (r *registryImpl) reconciliationLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reconcile(ctx)
		}
	}
}

// reconcile fetches current pools and detects changes missed on the wire.
func (r *registryImpl) reconcile(ctx context.Context) {
	start := time.Now()

	apiPools, err := r.fetchCurrentPools(ctx)
	if err != nil {
		r.logger.Error("reconciliation failed fetching pools", "err", err)
		return
	}

	var created, changed int

	r.state.mu.Lock()
	for _, ap := range apiPools {
		p := ap.ToModel()
		existing, ok := r.state.pools[p.Address]

		if !ok {
			// New pool we missed.
			r.state.upsertPoolLocked(p)
			if p.IsActive() {
				r.state.notifyChange(PoolChange{
					Address:   p.Address,
					EventType: "created",
					NewStatus: p.Status,
					Pool:      &p,
				})
				created++
			}
			continue
		}

		// Check for status changes we missed.
		if existing.Status != p.Status {
			oldStatus := existing.Status
			r.state.upsertPoolLocked(p)

			r.state.notifyChange(PoolChange{
				Address:   p.Address,
				EventType: "status_change",
				OldStatus: oldStatus,
				NewStatus: p.Status,
				Pool:      &p,
			})
			changed++
		}
	}
	r.state.lastSyncAt = time.Now()
	r.state.mu.Unlock()

	if created > 0 || changed > 0 {
		r.logger.Info("reconciliation found changes",
			"created", created,
			"changed", changed,
			"duration", time.Since(start),
		)
	} else {
		r.logger.Debug("reconciliation complete",
			"total_pools", len(apiPools),
			"duration", time.Since(start),
		)
	}
}

// notificationLoop processes platform notification events.
func (r *registryImpl) notificationLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-r.state.notifications:
			if !ok {
				return
			}
			r.handleNotification(ctx, n)
		}
	}
}

// handleNotification applies a single pool lifecycle event.
func (r *registryImpl) handleNotification(ctx context.Context, n realtime.NotificationPayload) {
	switch n.Event {
	case "pool_created":
		r.handlePoolCreated(ctx, n.PoolAddress)

	case "pool_status_change":
		oldStatus, found := r.state.updateStatus(n.PoolAddress, n.NewStatus)
		if !found {
			// Unknown pool, treat as a creation.
			r.handlePoolCreated(ctx, n.PoolAddress)
			return
		}
		p, _ := r.state.getPool(n.PoolAddress)
		r.state.notifyChange(PoolChange{
			Address:   n.PoolAddress,
			EventType: "status_change",
			OldStatus: oldStatus,
			NewStatus: n.NewStatus,
			Pool:      &p,
		})

	case "pool_closed":
		oldStatus, found := r.state.updateStatus(n.PoolAddress, model.PoolStatusClosed)
		if !found {
			return
		}
		r.state.notifyChange(PoolChange{
			Address:   n.PoolAddress,
			EventType: "closed",
			OldStatus: oldStatus,
			NewStatus: model.PoolStatusClosed,
		})

	default:
		r.logger.Debug("ignoring notification", "event", n.Event)
	}
}

// handlePoolCreated fetches the full pool from REST and registers it.
func (r *registryImpl) handlePoolCreated(ctx context.Context, address string) {
	if address == "" {
		return
	}

	ap, err := r.rest.GetPool(ctx, address)
	if err != nil {
		r.logger.Error("fetch created pool failed", "address", address, "err", err)
		return
	}

	p := ap.ToModel()
	r.state.mu.Lock()
	r.state.upsertPoolLocked(p)
	r.state.mu.Unlock()

	r.state.notifyChange(PoolChange{
		Address:   p.Address,
		EventType: "created",
		NewStatus: p.Status,
		Pool:      &p,
	})
}
