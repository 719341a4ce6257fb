package pool

import (
	"sync"
	"time"

	"github.com/brickfi/pool-data/internal/model"
	"github.com/brickfi/pool-data/internal/realtime"
)

// registryState holds the thread-safe pool cache.
type registryState struct {
	mu sync.RWMutex

	// All known pools indexed by address.
	pools map[string]*model.Pool

	// Pools currently active (accepting deposits).
	activeSet map[string]struct{}

	// Platform status.
	platformActive bool
	depositsActive bool

	// Last successful REST sync timestamp.
	lastSyncAt time.Time

	// Output channel for downstream components.
	changes chan PoolChange

	// Input channel from the router (notification messages).
	notifications <-chan realtime.NotificationPayload
}

func newState() *registryState {
	return &registryState{
		pools:     make(map[string]*model.Pool),
		activeSet: make(map[string]struct{}),
		changes:   make(chan PoolChange, ChangeBufferSize),
	}
}

// getPool returns a pool by address (read-locked).
func (s *registryState) getPool(address string) (model.Pool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pools[address]
	if !ok {
		return model.Pool{}, false
	}
	return *p, true
}

// getActivePools returns a copy of all active pools (read-locked).
func (s *registryState) getActivePools() []model.Pool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Pool, 0, len(s.activeSet))
	for address := range s.activeSet {
		if p, ok := s.pools[address]; ok {
			result = append(result, *p)
		}
	}
	return result
}

// count returns the number of known pools (read-locked).
func (s *registryState) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pools)
}

// upsertPool adds or updates a pool (write-locked).
func (s *registryState) upsertPool(p model.Pool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsertPoolLocked(p)
}

// upsertPoolLocked adds or updates a pool (caller must hold write lock).
func (s *registryState) upsertPoolLocked(p model.Pool) {
	pCopy := p
	s.pools[p.Address] = &pCopy

	if p.IsActive() {
		s.activeSet[p.Address] = struct{}{}
	} else {
		delete(s.activeSet, p.Address)
	}
}

// updateStatus updates a pool's status (write-locked).
func (s *registryState) updateStatus(address, newStatus string) (oldStatus string, found bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pools[address]
	if !ok {
		return "", false
	}

	oldStatus = p.Status
	p.Status = newStatus

	if newStatus == model.PoolStatusActive {
		s.activeSet[address] = struct{}{}
	} else {
		delete(s.activeSet, address)
	}

	return oldStatus, true
}

// notifyChange sends a change to the changes channel (non-blocking).
func (s *registryState) notifyChange(change PoolChange) {
	select {
	case s.changes <- change:
	default:
		// Channel full, drop oldest by consuming one and retrying.
		select {
		case <-s.changes:
			s.changes <- change
		default:
		}
	}
}
