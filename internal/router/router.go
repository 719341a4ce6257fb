package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brickfi/pool-data/internal/api"
	"github.com/brickfi/pool-data/internal/realtime"
)

// Router parses realtime envelopes and routes them to specialized writers.
type Router interface {
	// Start begins routing messages from the input channel to buffers.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the router.
	Stop(ctx context.Context) error

	// Buffers returns output buffers for writers to consume.
	Buffers() RouterBuffers

	// Notifications returns the pool lifecycle feed for the registry.
	Notifications() <-chan realtime.NotificationPayload

	// Stats returns current router statistics.
	Stats() RouterStats
}

// RouterBuffers provides access to output buffers for writers.
type RouterBuffers struct {
	PoolState   *GrowableBuffer[PoolStateMsg]
	APY         *GrowableBuffer[APYMsg]
	Transaction *GrowableBuffer[TransactionMsg]
	Price       *GrowableBuffer[PriceMsg]
}

// RouterStats contains runtime statistics.
type RouterStats struct {
	MessagesReceived     int64
	MessagesRouted       int64
	ParseErrors          int64
	UnknownMessages      int64
	NotificationsDropped int64
	PoolStateBuffer      BufferStats
	APYBuffer            BufferStats
	TransactionBuffer    BufferStats
	PriceBuffer          BufferStats
}

// router is the internal implementation.
type router struct {
	cfg    RouterConfig
	logger *slog.Logger

	// Input from the realtime client
	input <-chan realtime.Envelope

	// Output to writers (growable buffers)
	poolStateBuf *GrowableBuffer[PoolStateMsg]
	apyBuf       *GrowableBuffer[APYMsg]
	txBuf        *GrowableBuffer[TransactionMsg]
	priceBuf     *GrowableBuffer[PriceMsg]

	// Output to the pool registry
	notifications chan realtime.NotificationPayload

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Stats
	mu            sync.RWMutex
	received      int64
	routed        int64
	parseErrors   int64
	unknown       int64
	notifsDropped int64
}

// NewRouter creates a new message router.
func NewRouter(cfg RouterConfig, input <-chan realtime.Envelope, logger *slog.Logger) Router {
	if logger == nil {
		logger = slog.Default()
	}

	return &router{
		cfg:           cfg,
		logger:        logger,
		input:         input,
		poolStateBuf:  NewGrowableBuffer[PoolStateMsg](cfg.PoolStateBufferSize),
		apyBuf:        NewGrowableBuffer[APYMsg](cfg.APYBufferSize),
		txBuf:         NewGrowableBuffer[TransactionMsg](cfg.TransactionBufferSize),
		priceBuf:      NewGrowableBuffer[PriceMsg](cfg.PriceBufferSize),
		notifications: make(chan realtime.NotificationPayload, cfg.NotificationBufferSize),
	}
}

// Start begins routing messages.
func (r *router) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.routeLoop()

	r.logger.Info("message router started",
		"pool_state_buffer", r.cfg.PoolStateBufferSize,
		"apy_buffer", r.cfg.APYBufferSize,
		"transaction_buffer", r.cfg.TransactionBufferSize,
		"price_buffer", r.cfg.PriceBufferSize,
	)

	return nil
}

// Stop gracefully shuts down the router.
func (r *router) Stop(ctx context.Context) error {
	r.logger.Info("stopping message router")

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
		r.logger.Info("message router stopped")
	case <-ctx.Done():
		r.logger.Warn("message router stop timed out")
	}

	r.poolStateBuf.Close()
	r.apyBuf.Close()
	r.txBuf.Close()
	r.priceBuf.Close()

	return nil
}

// Buffers returns output buffers for writers.
func (r *router) Buffers() RouterBuffers {
	return RouterBuffers{
		PoolState:   r.poolStateBuf,
		APY:         r.apyBuf,
		Transaction: r.txBuf,
		Price:       r.priceBuf,
	}
}

// Notifications returns the pool lifecycle feed.
func (r *router) Notifications() <-chan realtime.NotificationPayload {
	return r.notifications
}

// Stats returns current statistics.
func (r *router) Stats() RouterStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return RouterStats{
		MessagesReceived:     r.received,
		MessagesRouted:       r.routed,
		ParseErrors:          r.parseErrors,
		UnknownMessages:      r.unknown,
		NotificationsDropped: r.notifsDropped,
		PoolStateBuffer:      r.poolStateBuf.Stats(),
		APYBuffer:            r.apyBuf.Stats(),
		TransactionBuffer:    r.txBuf.Stats(),
		PriceBuffer:          r.priceBuf.Stats(),
	}
}

// routeLoop is the main routing goroutine.
func (r *router) routeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case env, ok := <-r.input:
			if !ok {
				r.logger.Info("input channel closed")
				return
			}
			r.route(env)
		}
	}
}

// route parses and routes a single envelope.
func (r *router) route(env realtime.Envelope) {
	r.mu.Lock()
	r.received++
	r.mu.Unlock()

	receivedAt := time.Now()
	var sent bool

	switch env.Type {
	case realtime.TypePoolUpdate:
		msg, err := parsePoolUpdate(env, receivedAt)
		if err != nil {
			r.countParseError(env.Type, err)
			return
		}
		sent = r.poolStateBuf.Send(msg)

	case realtime.TypeAPYChange:
		msg, err := parseAPYChange(env, receivedAt)
		if err != nil {
			r.countParseError(env.Type, err)
			return
		}
		sent = r.apyBuf.Send(msg)

	case realtime.TypeTransaction:
		msg, err := parseTransaction(env, receivedAt)
		if err != nil {
			r.countParseError(env.Type, err)
			return
		}
		sent = r.txBuf.Send(msg)

	case realtime.TypePriceFeed:
		msg, err := parsePriceFeed(env, receivedAt)
		if err != nil {
			r.countParseError(env.Type, err)
			return
		}
		sent = r.priceBuf.Send(msg)

	case realtime.TypeNotification:
		var n realtime.NotificationPayload
		if err := json.Unmarshal(env.Data, &n); err != nil {
			r.countParseError(env.Type, err)
			return
		}
		select {
		case r.notifications <- n:
			sent = true
		default:
			r.mu.Lock()
			r.notifsDropped++
			r.mu.Unlock()
			r.logger.Warn("notification channel full, dropping", "event", n.Event)
			return
		}

	case realtime.TypePing, realtime.TypePong:
		// Heartbeat traffic, handled by the client.
		return

	default:
		r.mu.Lock()
		r.unknown++
		r.mu.Unlock()
		r.logger.Debug("skipping message type", "type", env.Type)
		return
	}

	if sent {
		r.mu.Lock()
		r.routed++
		r.mu.Unlock()
	}
}

func (r *router) countParseError(t realtime.MessageType, err error) {
	r.mu.Lock()
	r.parseErrors++
	r.mu.Unlock()
	r.logger.Warn("failed to parse message", "type", t, "error", err)
}

// parsePoolUpdate decodes a pool_update payload into internal units.
func parsePoolUpdate(env realtime.Envelope, receivedAt time.Time) (PoolStateMsg, error) {
	var p realtime.PoolUpdatePayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return PoolStateMsg{}, err
	}

	return PoolStateMsg{
		Address:     p.PoolAddress,
		Status:      p.Status,
		TVL:         api.USDCToMicro(p.TVL),
		SeniorTVL:   api.USDCToMicro(p.SeniorTVL),
		JuniorTVL:   api.USDCToMicro(p.JuniorTVL),
		SeniorAPY:   api.PercentToBps(p.SeniorAPY),
		JuniorAPY:   api.PercentToBps(p.JuniorAPY),
		Utilization: api.PercentToBps(p.Utilization),
		ExchangeTs:  p.Ts * 1_000_000, // seconds → microseconds
		ReceivedAt:  receivedAt,
	}, nil
}

// parseAPYChange decodes an apy_change payload.
func parseAPYChange(env realtime.Envelope, receivedAt time.Time) (APYMsg, error) {
	var p realtime.APYChangePayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return APYMsg{}, err
	}

	return APYMsg{
		PoolAddress: p.PoolAddress,
		Tranche:     p.Tranche,
		OldAPY:      api.PercentToBps(p.OldAPY),
		NewAPY:      api.PercentToBps(p.NewAPY),
		ExchangeTs:  p.Ts * 1_000_000,
		ReceivedAt:  receivedAt,
	}, nil
}

// parseTransaction decodes a transaction payload.
func parseTransaction(env realtime.Envelope, receivedAt time.Time) (TransactionMsg, error) {
	var p realtime.TransactionPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return TransactionMsg{}, err
	}

	id, err := uuid.Parse(p.ID)
	if err != nil {
		return TransactionMsg{}, err
	}

	return TransactionMsg{
		ID:          id,
		PoolAddress: p.PoolAddress,
		Kind:        p.Kind,
		Tranche:     p.Tranche,
		Wallet:      p.Wallet,
		TxHash:      p.TxHash,
		Amount:      api.USDCToMicro(p.Amount),
		ExchangeTs:  p.Ts * 1_000_000,
		ReceivedAt:  receivedAt,
	}, nil
}

// parsePriceFeed decodes a price_feed payload.
func parsePriceFeed(env realtime.Envelope, receivedAt time.Time) (PriceMsg, error) {
	var p realtime.PriceFeedPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return PriceMsg{}, err
	}

	return PriceMsg{
		Symbol:     p.Symbol,
		Price:      api.USDCToMicro(p.Price),
		Source:     p.Source,
		ExchangeTs: p.Ts * 1_000_000,
		ReceivedAt: receivedAt,
	}, nil
}
