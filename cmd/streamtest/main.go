// streamtest connects to the BrickFi WebSocket and streams parsed messages
// to the console.
// Usage: go run ./cmd/streamtest --config configs/collector.local.yaml
//
// Required environment variables (referenced from the config file):
//
//	BRICKFI_KEY_ID     - API key ID from the BrickFi dashboard
//	BRICKFI_API_SECRET - HMAC signing secret
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/brickfi/pool-data/internal/auth"
	"github.com/brickfi/pool-data/internal/config"
	"github.com/brickfi/pool-data/internal/realtime"
	"github.com/brickfi/pool-data/internal/router"
)

func main() {
	configPath := flag.String("config", "configs/collector.example.yaml", "path to config file")
	channels := flag.String("channels", "notifications,prices", "comma-separated channels to subscribe")
	verbose := flag.Bool("verbose", false, "print full message JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// Load config
	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	// Load signing credentials
	creds, err := auth.NewCredentials(cfg.API.KeyID, cfg.API.Secret)
	if err != nil {
		logger.Error("API credentials required for WebSocket", "error", err)
		logger.Info("Set environment variables: BRICKFI_KEY_ID and BRICKFI_API_SECRET")
		os.Exit(1)
	}
	logger.Info("using API credentials", "key_id", creds.KeyID)

	// Create realtime client
	client := realtime.NewClient(realtime.Config{
		URL:                  cfg.API.WSURL,
		Header:               creds.Header("GET", auth.WebSocketPath),
		HeartbeatInterval:    cfg.Realtime.HeartbeatInterval,
		ReconnectInterval:    cfg.Realtime.ReconnectInterval,
		MaxReconnectDelay:    cfg.Realtime.MaxReconnectDelay,
		MaxReconnectAttempts: cfg.Realtime.MaxReconnectAttempts,
		QueueSize:            cfg.Realtime.QueueSize,
	}, logger)

	client.OnStateChange(func(ev realtime.StateEvent) {
		logger.Info("connection state", "from", ev.Old, "to", ev.New, "error", ev.Err)
		if ev.Err == realtime.ErrRetriesExhausted {
			cancel()
		}
	})

	// Feed every inbound envelope into the router
	input := make(chan realtime.Envelope, 10000)
	client.OnMessage(func(env realtime.Envelope) {
		select {
		case input <- env:
		default:
		}
	})

	// Create router
	rtr := router.NewRouter(router.DefaultRouterConfig(), input, logger)
	if err := rtr.Start(ctx); err != nil {
		logger.Error("failed to start router", "error", err)
		os.Exit(1)
	}

	// Subscribe before connecting so the set is replayed on open
	for _, ch := range strings.Split(*channels, ",") {
		ch = strings.TrimSpace(ch)
		if ch != "" {
			client.Subscribe(ch)
		}
	}

	logger.Info("connecting", "url", cfg.API.WSURL, "channels", client.Subscriptions())
	if err := client.Connect(ctx); err != nil {
		logger.Warn("initial connect failed, reconnecting in background", "error", err)
	}

	// Drain the notification feed so it cannot back up
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-rtr.Notifications():
				fmt.Printf("[NOTIFICATION] event=%s pool=%s %s\n", n.Event, n.PoolAddress, n.Message)
			}
		}
	}()

	// Get buffers
	buffers := rtr.Buffers()

	// Start console printers
	go printPoolStates(ctx, buffers.PoolState, *verbose)
	go printAPY(ctx, buffers.APY, *verbose)
	go printTransactions(ctx, buffers.Transaction, *verbose)
	go printPrices(ctx, buffers.Price, *verbose)

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				routerStats := rtr.Stats()
				clientStats := client.Stats()
				logger.Info("stats",
					"state", clientStats.State,
					"subscriptions", clientStats.Subscriptions,
					"queued", clientStats.QueuedMessages,
					"router_received", routerStats.MessagesReceived,
					"router_routed", routerStats.MessagesRouted,
					"parse_errors", routerStats.ParseErrors,
					"pool_state_buf", routerStats.PoolStateBuffer.Count,
					"apy_buf", routerStats.APYBuffer.Count,
					"transaction_buf", routerStats.TransactionBuffer.Count,
					"price_buf", routerStats.PriceBuffer.Count,
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	// Wait for shutdown
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down...")
	client.Disconnect()
	rtr.Stop(shutdownCtx)

	logger.Info("shutdown complete")
}

func printPoolStates(ctx context.Context, buf *router.GrowableBuffer[router.PoolStateMsg], verbose bool) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			msg, ok := buf.TryReceive()
			if !ok {
				time.Sleep(10 * time.Millisecond)
				continue
			}

			if verbose {
				data, _ := json.MarshalIndent(msg, "", "  ")
				fmt.Printf("[POOL] %s\n", data)
			} else {
				fmt.Printf("[POOL] address=%s status=%s tvl=%d senior_apy=%d junior_apy=%d util=%d\n",
					msg.Address, msg.Status, msg.TVL, msg.SeniorAPY, msg.JuniorAPY, msg.Utilization)
			}
		}
	}
}

func printAPY(ctx context.Context, buf *router.GrowableBuffer[router.APYMsg], verbose bool) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			msg, ok := buf.TryReceive()
			if !ok {
				time.Sleep(10 * time.Millisecond)
				continue
			}

			if verbose {
				data, _ := json.MarshalIndent(msg, "", "  ")
				fmt.Printf("[APY] %s\n", data)
			} else {
				fmt.Printf("[APY] pool=%s tranche=%s old=%d new=%d\n",
					msg.PoolAddress, msg.Tranche, msg.OldAPY, msg.NewAPY)
			}
		}
	}
}

func printTransactions(ctx context.Context, buf *router.GrowableBuffer[router.TransactionMsg], verbose bool) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			msg, ok := buf.TryReceive()
			if !ok {
				time.Sleep(10 * time.Millisecond)
				continue
			}

			if verbose {
				data, _ := json.MarshalIndent(msg, "", "  ")
				fmt.Printf("[TX] %s\n", data)
			} else {
				fmt.Printf("[TX] pool=%s kind=%s tranche=%s amount=%d id=%s\n",
					msg.PoolAddress, msg.Kind, msg.Tranche, msg.Amount, msg.ID)
			}
		}
	}
}

func printPrices(ctx context.Context, buf *router.GrowableBuffer[router.PriceMsg], verbose bool) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			msg, ok := buf.TryReceive()
			if !ok {
				time.Sleep(10 * time.Millisecond)
				continue
			}

			if verbose {
				data, _ := json.MarshalIndent(msg, "", "  ")
				fmt.Printf("[PRICE] %s\n", data)
			} else {
				fmt.Printf("[PRICE] symbol=%s price=%d source=%s\n",
					msg.Symbol, msg.Price, msg.Source)
			}
		}
	}
}
