package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/brickfi/pool-data/internal/api"
	"github.com/brickfi/pool-data/internal/auth"
	"github.com/brickfi/pool-data/internal/config"
	"github.com/brickfi/pool-data/internal/database"
	"github.com/brickfi/pool-data/internal/poller"
	"github.com/brickfi/pool-data/internal/pool"
	"github.com/brickfi/pool-data/internal/realtime"
	"github.com/brickfi/pool-data/internal/router"
	"github.com/brickfi/pool-data/internal/version"
	"github.com/brickfi/pool-data/internal/writer"
)

// Platform-wide channels subscribed on every connect. Per-pool channels
// are managed from registry change events.
var platformChannels = []string{"notifications", "prices"}

func main() {
	configPath := flag.String("config", "configs/collector.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting collector",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"api_url", cfg.API.RestURL,
		"ws_url", cfg.API.WSURL,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Connect to database
	logger.Info("connecting to database",
		"host", cfg.Database.Timescale.Host,
		"port", cfg.Database.Timescale.Port,
		"database", cfg.Database.Timescale.Name,
	)

	pools, err := database.NewPools(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pools.Close()

	logger.Info("database connected")

	// Request signing credentials
	creds, err := auth.NewCredentials(cfg.API.KeyID, cfg.API.Secret)
	if err != nil {
		logger.Error("failed to load credentials", "error", err)
		os.Exit(1)
	}

	// Create API client
	apiTimeout := cfg.API.Timeout
	if apiTimeout == 0 {
		apiTimeout = 30 * time.Second
	}
	apiClient := api.NewClient(
		cfg.API.RestURL,
		creds,
		api.WithLogger(logger),
		api.WithTimeout(apiTimeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
	)

	// Check platform status
	logger.Info("checking platform status")
	status, err := apiClient.GetPlatformStatus(ctx)
	if err != nil {
		logger.Error("failed to get platform status", "error", err)
		os.Exit(1)
	}
	logger.Info("platform status",
		"platform_active", status.PlatformActive,
		"deposits_active", status.DepositsActive,
	)

	// Realtime client, constructed once and passed by reference.
	rt := realtime.NewClient(realtime.Config{
		URL:                  cfg.API.WSURL,
		Header:               creds.Header("GET", auth.WebSocketPath),
		HeartbeatInterval:    cfg.Realtime.HeartbeatInterval,
		ReconnectInterval:    cfg.Realtime.ReconnectInterval,
		MaxReconnectDelay:    cfg.Realtime.MaxReconnectDelay,
		MaxReconnectAttempts: cfg.Realtime.MaxReconnectAttempts,
		QueueSize:            cfg.Realtime.QueueSize,
	}, logger)

	// Bridge every inbound envelope into the router's input channel.
	// The handler must never block the read loop; overflow is dropped
	// and counted.
	input := make(chan realtime.Envelope, cfg.Realtime.BufferSize)
	var inputDropped atomic.Int64
	rt.OnMessage(func(env realtime.Envelope) {
		select {
		case input <- env:
		default:
			if inputDropped.Add(1)%1000 == 1 {
				logger.Warn("router input full, dropping messages",
					"dropped_total", inputDropped.Load(),
				)
			}
		}
	})

	rt.OnStateChange(func(ev realtime.StateEvent) {
		if ev.Err == realtime.ErrRetriesExhausted {
			logger.Error("realtime reconnection gave up, shutting down")
			cancel()
		}
	})

	// Message router. Its output buffers are the writers' input buffers,
	// so their initial capacity comes from the writers section.
	routerCfg := router.DefaultRouterConfig()
	routerCfg.PoolStateBufferSize = cfg.Writers.BufferSize
	routerCfg.APYBufferSize = cfg.Writers.BufferSize
	routerCfg.TransactionBufferSize = cfg.Writers.BufferSize
	routerCfg.PriceBufferSize = cfg.Writers.BufferSize
	rtr := router.NewRouter(routerCfg, input, logger)
	if err := rtr.Start(ctx); err != nil {
		logger.Error("failed to start router", "error", err)
		os.Exit(1)
	}

	// Pool registry, fed by the router's notification stream.
	registry := pool.NewRegistry(pool.Config{
		ReconcileInterval: cfg.Registry.ReconcileInterval,
		PageSize:          cfg.Registry.PageSize,
	}, apiClient, logger)
	registry.SetNotificationSource(rtr.Notifications())

	// Batch writers
	writerCfg := writer.WriterConfig{
		BatchSize:     cfg.Writers.BatchSize,
		FlushInterval: cfg.Writers.FlushInterval,
	}
	buffers := rtr.Buffers()

	poolStateWriter := writer.NewPoolStateWriter(writerCfg, buffers.PoolState, pools.Timescale, logger)
	apyWriter := writer.NewAPYWriter(writerCfg, buffers.APY, pools.Timescale, logger)
	txWriter := writer.NewTransactionWriter(writerCfg, buffers.Transaction, pools.Timescale, logger)
	priceWriter := writer.NewPriceWriter(writerCfg, buffers.Price, pools.Timescale, logger)
	snapshotWriter := writer.NewSnapshotWriter(writerCfg, pools.Timescale, logger)

	type component struct {
		name string
		stop func(context.Context) error
	}
	var started []component

	for _, w := range []struct {
		name  string
		start func(context.Context) error
		stop  func(context.Context) error
	}{
		{"pool state writer", poolStateWriter.Start, poolStateWriter.Stop},
		{"apy writer", apyWriter.Start, apyWriter.Stop},
		{"transaction writer", txWriter.Start, txWriter.Stop},
		{"price writer", priceWriter.Start, priceWriter.Stop},
		{"snapshot writer", snapshotWriter.Start, snapshotWriter.Stop},
	} {
		if err := w.start(ctx); err != nil {
			logger.Error("failed to start writer", "writer", w.name, "error", err)
			os.Exit(1)
		}
		started = append(started, component{w.name, w.stop})
	}

	// Start health server early so we can monitor the initial sync.
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: createHealthHandler(pools, registry, rt, rtr, logger),
	}
	go func() {
		logger.Info("starting health server", "port", cfg.Health.Port)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	// Pool registry (blocking initial sync)
	logger.Info("starting pool registry (initial sync)...")
	if err := registry.Start(ctx); err != nil {
		logger.Error("failed to start pool registry", "error", err)
		os.Exit(1)
	}

	activePools := registry.GetActivePools()
	logger.Info("pool registry started", "active_pools", len(activePools))

	// Snapshot poller backfills gaps in the realtime stream.
	snapPoller := poller.New(poller.Config{
		Interval:    cfg.Poller.Interval,
		Concurrency: cfg.Poller.Concurrency,
		Timeout:     cfg.Poller.Timeout,
	}, apiClient, registry, snapshotWriter, logger)
	if err := snapPoller.Start(ctx); err != nil {
		logger.Error("failed to start snapshot poller", "error", err)
		os.Exit(1)
	}

	// Subscriptions: platform channels plus one channel per active
	// pool. The client replays the set after every reconnect, so each
	// channel is registered exactly once.
	for _, ch := range platformChannels {
		rt.Subscribe(ch)
	}
	for _, p := range activePools {
		rt.Subscribe("pool:" + p.Address)
	}

	// Track pool lifecycle and adjust subscriptions.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case change := <-registry.SubscribeChanges():
				switch change.EventType {
				case "created":
					logger.Info("subscribing to new pool", "address", change.Address)
					rt.Subscribe("pool:" + change.Address)
				case "closed":
					logger.Info("unsubscribing from closed pool", "address", change.Address)
					rt.Unsubscribe("pool:" + change.Address)
				case "status_change":
					if change.NewStatus == "active" {
						rt.Subscribe("pool:" + change.Address)
					}
				}
			}
		}
	}()

	// Connect last so the subscription set is complete before replay.
	if err := rt.Connect(ctx); err != nil {
		logger.Warn("initial connect failed, reconnecting in background", "error", err)
	}

	logger.Info("collector running",
		"instance_id", cfg.Instance.ID,
		"subscriptions", len(rt.Subscriptions()),
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Health.Port),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	// Stop producers before consumers so writers can drain their batches.
	rt.Disconnect()
	stopWithTimeout("snapshot poller", snapPoller.Stop, logger)
	stopWithTimeout("pool registry", registry.Stop, logger)
	stopWithTimeout("router", rtr.Stop, logger)

	for i := len(started) - 1; i >= 0; i-- {
		stopWithTimeout(started[i].name, started[i].stop, logger)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	healthServer.Shutdown(shutdownCtx)

	logger.Info("collector stopped")
}

// stopWithTimeout stops a component with a bounded shutdown window.
func stopWithTimeout(name string, stop func(context.Context) error, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := stop(ctx); err != nil {
		logger.Warn("component did not stop cleanly", "component", name, "error", err)
	}
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(
	pools *database.Pools,
	registry pool.Registry,
	rt realtime.Client,
	rtr router.Router,
	logger *slog.Logger,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]interface{}),
		}

		// Check database
		if err := pools.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["timescaledb"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["timescaledb"] = "connected"
		}

		// Check realtime connection
		stats := rt.Stats()
		health.Components["realtime"] = map[string]interface{}{
			"state":              stats.State.String(),
			"subscriptions":      stats.Subscriptions,
			"queued_messages":    stats.QueuedMessages,
			"dropped_messages":   stats.DroppedMessages,
			"reconnect_attempts": stats.ReconnectAttempts,
		}
		if !rt.IsConnected() {
			health.Status = "degraded"
		}

		// Check pool registry
		active := registry.GetActivePools()
		health.Components["pool_registry"] = map[string]interface{}{
			"known_pools":  registry.Count(),
			"active_pools": len(active),
		}
		if len(active) == 0 {
			health.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"realtime": rt.Stats(),
			"router":   rtr.Stats(),
		})
	})

	mux.HandleFunc("/debug/pools", func(w http.ResponseWriter, r *http.Request) {
		active := registry.GetActivePools()

		// Limit to first 100 for debugging
		limit := 100
		shown := active
		if len(shown) > limit {
			shown = shown[:limit]
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"count":   len(active),
			"showing": len(shown),
			"pools":   shown,
		})
	})

	return mux
}
