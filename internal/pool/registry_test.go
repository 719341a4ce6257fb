package pool

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/brickfi/pool-data/internal/api"
	"github.com/brickfi/pool-data/internal/model"
	"github.com/brickfi/pool-data/internal/realtime"
)

func TestState_UpsertAndGet(t *testing.T) {
	s := newState()

	p := model.Pool{
		Address:    "0xPOOL1",
		Name:       "Berlin Residential I",
		AssetClass: "residential",
		Status:     model.PoolStatusActive,
	}

	s.upsertPool(p)

	got, ok := s.getPool("0xPOOL1")
	if !ok {
		t.Fatal("pool not found")
	}
	if got.Name != "Berlin Residential I" {
		t.Errorf("Name = %q, want %q", got.Name, "Berlin Residential I")
	}
	if got.Status != model.PoolStatusActive {
		t.Errorf("Status = %q, want %q", got.Status, model.PoolStatusActive)
	}
}

func TestState_GetPool_NotFound(t *testing.T) {
	s := newState()

	_, ok := s.getPool("0xNONEXISTENT")
	if ok {
		t.Error("expected pool not found")
	}
}

func TestState_ActivePools(t *testing.T) {
	s := newState()

	pools := []model.Pool{
		{Address: "0xACTIVE1", Status: model.PoolStatusActive},
		{Address: "0xACTIVE2", Status: model.PoolStatusActive},
		{Address: "0xPAUSED", Status: model.PoolStatusPaused},
		{Address: "0xCLOSED", Status: model.PoolStatusClosed},
	}

	for _, p := range pools {
		s.upsertPool(p)
	}

	active := s.getActivePools()
	if len(active) != 2 {
		t.Errorf("len(active) = %d, want 2", len(active))
	}

	activeMap := make(map[string]bool)
	for _, p := range active {
		activeMap[p.Address] = true
	}

	if !activeMap["0xACTIVE1"] {
		t.Error("0xACTIVE1 should be active")
	}
	if !activeMap["0xACTIVE2"] {
		t.Error("0xACTIVE2 should be active")
	}
}

func TestState_UpdateStatus(t *testing.T) {
	s := newState()

	s.upsertPool(model.Pool{Address: "0xPOOL1", Status: model.PoolStatusActive})

	oldStatus, found := s.updateStatus("0xPOOL1", model.PoolStatusPaused)
	if !found {
		t.Fatal("pool not found")
	}
	if oldStatus != model.PoolStatusActive {
		t.Errorf("oldStatus = %q, want %q", oldStatus, model.PoolStatusActive)
	}

	if active := s.getActivePools(); len(active) != 0 {
		t.Errorf("len(active) = %d, want 0", len(active))
	}

	// Unpause restores membership in the active set.
	if _, found := s.updateStatus("0xPOOL1", model.PoolStatusActive); !found {
		t.Fatal("pool not found")
	}
	if active := s.getActivePools(); len(active) != 1 {
		t.Errorf("len(active) = %d, want 1", len(active))
	}
}

func TestState_UpdateStatus_NotFound(t *testing.T) {
	s := newState()

	_, found := s.updateStatus("0xNONEXISTENT", model.PoolStatusClosed)
	if found {
		t.Error("expected pool not found")
	}
}

func TestState_NotifyChange_DropsWhenFull(t *testing.T) {
	s := newState()

	// Fill the channel past capacity.
	for i := 0; i < ChangeBufferSize+10; i++ {
		s.notifyChange(PoolChange{Address: "0xPOOL", EventType: "created"})
	}

	// Channel should hold exactly its capacity.
	if len(s.changes) != ChangeBufferSize {
		t.Errorf("len(changes) = %d, want %d", len(s.changes), ChangeBufferSize)
	}
}

// mockPlatform runs an httptest server that mimics the REST endpoints the
// registry uses: /status, /pools and /pools/{address}.
type mockPlatform struct {
	mu     sync.Mutex
	pools  map[string]api.APIPool
	server *httptest.Server
}

func newMockPlatform(t *testing.T, pools ...api.APIPool) *mockPlatform {
	t.Helper()

	m := &mockPlatform{pools: make(map[string]api.APIPool)}
	for _, p := range pools {
		m.pools[p.Address] = p
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.PlatformStatusResponse{
			PlatformActive: true,
			DepositsActive: true,
		})
	})
	mux.HandleFunc("/pools", func(w http.ResponseWriter, r *http.Request) {
		status := r.URL.Query().Get("status")
		m.mu.Lock()
		var out []api.APIPool
		for _, p := range m.pools {
			if status == "" || p.Status == status {
				out = append(out, p)
			}
		}
		m.mu.Unlock()
		json.NewEncoder(w).Encode(api.PoolsResponse{Pools: out})
	})
	mux.HandleFunc("/pools/", func(w http.ResponseWriter, r *http.Request) {
		address := r.URL.Path[len("/pools/"):]
		m.mu.Lock()
		p, ok := m.pools[address]
		m.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(api.SinglePoolResponse{Pool: p})
	})

	m.server = httptest.NewServer(mux)
	t.Cleanup(m.server.Close)
	return m
}

func (m *mockPlatform) setPool(p api.APIPool) {
	m.mu.Lock()
	m.pools[p.Address] = p
	m.mu.Unlock()
}

func (m *mockPlatform) client() *api.Client {
	return api.NewClient(m.server.URL, nil)
}

func startRegistry(t *testing.T, cfg Config, platform *mockPlatform, notifications <-chan realtime.NotificationPayload) Registry {
	t.Helper()

	reg := NewRegistry(cfg, platform.client(), nil)
	if notifications != nil {
		reg.SetNotificationSource(notifications)
	}

	if err := reg.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		reg.Stop(ctx)
	})

	return reg
}

func TestRegistry_InitialSync(t *testing.T) {
	platform := newMockPlatform(t,
		api.APIPool{Address: "0xA", Name: "Pool A", Status: model.PoolStatusActive, SeniorAPY: "4.25"},
		api.APIPool{Address: "0xB", Name: "Pool B", Status: model.PoolStatusPaused},
		api.APIPool{Address: "0xC", Name: "Pool C", Status: model.PoolStatusLiquidated},
	)

	reg := startRegistry(t, DefaultConfig(), platform, nil)

	// Liquidated pools are not fetched.
	if got := reg.Count(); got != 2 {
		t.Errorf("Count() = %d, want 2", got)
	}

	active := reg.GetActivePools()
	if len(active) != 1 {
		t.Fatalf("len(active) = %d, want 1", len(active))
	}
	if active[0].Address != "0xA" {
		t.Errorf("active[0].Address = %q, want %q", active[0].Address, "0xA")
	}
	if active[0].SeniorAPY != 425 {
		t.Errorf("active[0].SeniorAPY = %d, want 425", active[0].SeniorAPY)
	}

	// Initial sync emits a created change per active pool.
	select {
	case change := <-reg.SubscribeChanges():
		if change.EventType != "created" {
			t.Errorf("EventType = %q, want %q", change.EventType, "created")
		}
		if change.Address != "0xA" {
			t.Errorf("Address = %q, want %q", change.Address, "0xA")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change event")
	}
}

func TestRegistry_Reconcile_DetectsNewPool(t *testing.T) {
	platform := newMockPlatform(t,
		api.APIPool{Address: "0xA", Status: model.PoolStatusActive},
	)

	cfg := DefaultConfig()
	cfg.ReconcileInterval = 20 * time.Millisecond
	reg := startRegistry(t, cfg, platform, nil)

	// Drain the initial created event.
	<-reg.SubscribeChanges()

	platform.setPool(api.APIPool{Address: "0xNEW", Status: model.PoolStatusActive})

	select {
	case change := <-reg.SubscribeChanges():
		if change.EventType != "created" {
			t.Errorf("EventType = %q, want %q", change.EventType, "created")
		}
		if change.Address != "0xNEW" {
			t.Errorf("Address = %q, want %q", change.Address, "0xNEW")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reconcile to find new pool")
	}
}

func TestRegistry_Reconcile_DetectsStatusChange(t *testing.T) {
	platform := newMockPlatform(t,
		api.APIPool{Address: "0xA", Status: model.PoolStatusActive},
	)

	cfg := DefaultConfig()
	cfg.ReconcileInterval = 20 * time.Millisecond
	reg := startRegistry(t, cfg, platform, nil)

	<-reg.SubscribeChanges()

	platform.setPool(api.APIPool{Address: "0xA", Status: model.PoolStatusPaused})

	select {
	case change := <-reg.SubscribeChanges():
		if change.EventType != "status_change" {
			t.Errorf("EventType = %q, want %q", change.EventType, "status_change")
		}
		if change.OldStatus != model.PoolStatusActive {
			t.Errorf("OldStatus = %q, want %q", change.OldStatus, model.PoolStatusActive)
		}
		if change.NewStatus != model.PoolStatusPaused {
			t.Errorf("NewStatus = %q, want %q", change.NewStatus, model.PoolStatusPaused)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for status change")
	}

	if len(reg.GetActivePools()) != 0 {
		t.Error("paused pool should not be active")
	}
}

func TestRegistry_Notification_StatusChange(t *testing.T) {
	platform := newMockPlatform(t,
		api.APIPool{Address: "0xA", Status: model.PoolStatusActive},
	)

	notifications := make(chan realtime.NotificationPayload, 1)
	reg := startRegistry(t, DefaultConfig(), platform, notifications)

	<-reg.SubscribeChanges()

	notifications <- realtime.NotificationPayload{
		Event:       "pool_status_change",
		PoolAddress: "0xA",
		OldStatus:   model.PoolStatusActive,
		NewStatus:   model.PoolStatusPaused,
	}

	select {
	case change := <-reg.SubscribeChanges():
		if change.EventType != "status_change" {
			t.Errorf("EventType = %q, want %q", change.EventType, "status_change")
		}
		if change.NewStatus != model.PoolStatusPaused {
			t.Errorf("NewStatus = %q, want %q", change.NewStatus, model.PoolStatusPaused)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification-driven change")
	}

	p, ok := reg.GetPool("0xA")
	if !ok {
		t.Fatal("pool not found")
	}
	if p.Status != model.PoolStatusPaused {
		t.Errorf("Status = %q, want %q", p.Status, model.PoolStatusPaused)
	}
}

func TestRegistry_Notification_PoolCreated(t *testing.T) {
	platform := newMockPlatform(t)

	notifications := make(chan realtime.NotificationPayload, 1)
	reg := startRegistry(t, DefaultConfig(), platform, notifications)

	// Register the pool server-side, then notify.
	platform.setPool(api.APIPool{Address: "0xFRESH", Name: "Fresh Pool", Status: model.PoolStatusActive})
	notifications <- realtime.NotificationPayload{
		Event:       "pool_created",
		PoolAddress: "0xFRESH",
	}

	select {
	case change := <-reg.SubscribeChanges():
		if change.EventType != "created" {
			t.Errorf("EventType = %q, want %q", change.EventType, "created")
		}
		if change.Pool == nil || change.Pool.Name != "Fresh Pool" {
			t.Errorf("Pool = %+v, want name %q", change.Pool, "Fresh Pool")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for created change")
	}
}

func TestRegistry_Notification_PoolClosed(t *testing.T) {
	platform := newMockPlatform(t,
		api.APIPool{Address: "0xA", Status: model.PoolStatusActive},
	)

	notifications := make(chan realtime.NotificationPayload, 1)
	reg := startRegistry(t, DefaultConfig(), platform, notifications)

	<-reg.SubscribeChanges()

	notifications <- realtime.NotificationPayload{
		Event:       "pool_closed",
		PoolAddress: "0xA",
	}

	select {
	case change := <-reg.SubscribeChanges():
		if change.EventType != "closed" {
			t.Errorf("EventType = %q, want %q", change.EventType, "closed")
		}
		if change.NewStatus != model.PoolStatusClosed {
			t.Errorf("NewStatus = %q, want %q", change.NewStatus, model.PoolStatusClosed)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for closed change")
	}

	if len(reg.GetActivePools()) != 0 {
		t.Error("closed pool should not be active")
	}
}

func TestRegistry_StopUnblocks(t *testing.T) {
	platform := newMockPlatform(t)

	reg := NewRegistry(DefaultConfig(), platform.client(), nil)
	if err := reg.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := reg.Stop(ctx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}
