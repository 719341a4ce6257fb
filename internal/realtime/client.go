package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client maintains a single connection to the BrickFi streaming API.
type Client interface {
	// Connect establishes the connection. No-op if already connecting or
	// connected. A caller-initiated connect always gets a fresh
	// reconnect budget.
	Connect(ctx context.Context) error

	// Disconnect closes the connection with a normal-closure code and
	// cancels any pending reconnect and heartbeat timers. Idempotent.
	Disconnect()

	// Send transmits an envelope immediately when connected; otherwise
	// the envelope is queued and flushed after the next successful
	// connect, after subscription replay. Failures are handled
	// internally and never returned.
	Send(env Envelope)

	// Subscribe adds a channel to the subscription set and, if
	// connected, sends a subscribe control message. The set is
	// authoritative: it is replayed in insertion order after every
	// reconnect.
	Subscribe(channel string)

	// Unsubscribe removes a channel from the subscription set and, if
	// connected, sends an unsubscribe control message.
	Unsubscribe(channel string)

	// Subscriptions returns the subscribed channels in insertion order.
	Subscriptions() []string

	// State returns the current connection state.
	State() State

	// IsConnected reports whether the connection is established.
	IsConnected() bool

	// Stats returns current client statistics.
	Stats() ClientStats

	// OnMessage registers a handler for every inbound message.
	OnMessage(fn Handler)

	// On registers a handler for one message type.
	On(t MessageType, fn Handler)

	// OnStateChange registers a handler for state transitions. The
	// transition carrying ErrRetriesExhausted signals that automatic
	// reconnection has given up.
	OnStateChange(fn StateHandler)

	// Typed convenience handlers. Payloads are decoded once per message.
	OnPoolUpdate(fn func(PoolUpdatePayload))
	OnAPYChange(fn func(APYChangePayload))
	OnTransaction(fn func(TransactionPayload))
	OnPriceFeed(fn func(PriceFeedPayload))
}

// ClientStats provides a point-in-time view of client health.
type ClientStats struct {
	State             State
	ReconnectAttempts int
	QueuedMessages    int
	DroppedMessages   int64
	Subscriptions     int
}

// client implements the Client interface.
type client struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	gen      int // bumped on Disconnect and each new connection; stale goroutines no-op
	subs     []string
	subIdx   map[string]struct{}
	queue    *sendQueue
	attempts int

	reconnectTimer *time.Timer
	hbStop         chan struct{}

	// Serializes writes to the connection.
	writeMu sync.Mutex

	handlers *handlerSet
}

// NewClient creates a new realtime client. The instance is intended to
// be constructed once at startup and shared by reference.
func NewClient(cfg Config, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}
	if cfg.ReconnectInterval == 0 {
		cfg.ReconnectInterval = def.ReconnectInterval
	}
	if cfg.MaxReconnectDelay == 0 {
		cfg.MaxReconnectDelay = def.MaxReconnectDelay
	}
	if cfg.MaxReconnectAttempts == 0 {
		cfg.MaxReconnectAttempts = def.MaxReconnectAttempts
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = def.QueueSize
	}

	return &client{
		cfg:      cfg,
		logger:   logger,
		state:    StateDisconnected,
		subIdx:   make(map[string]struct{}),
		queue:    newSendQueue(cfg.QueueSize),
		handlers: newHandlerSet(),
	}
}

// Connect establishes the connection.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	c.cancelReconnectLocked()
	c.attempts = 0
	gen := c.gen
	c.mu.Unlock()

	return c.dial(ctx, gen)
}

// Disconnect closes the connection and cancels all timers.
func (c *client) Disconnect() {
	c.mu.Lock()
	c.cancelReconnectLocked()
	c.stopHeartbeatLocked()
	c.gen++ // invalidate in-flight dials and read loops
	conn := c.conn
	c.conn = nil
	ev := c.transitionLocked(StateDisconnected, nil)
	c.mu.Unlock()

	if conn != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		conn.Close()
		c.logger.Info("disconnected")
	}
	c.emit(ev)
}

// Send transmits or queues an envelope.
func (c *client) Send(env Envelope) {
	if env.Timestamp == 0 {
		env.Timestamp = time.Now().UnixMilli()
	}

	c.mu.Lock()
	if c.state != StateConnected || c.conn == nil {
		if c.queue.push(env) {
			c.logger.Warn("send queue full, dropped oldest message",
				"capacity", c.cfg.QueueSize,
			)
		}
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.mu.Unlock()

	if err := c.writeEnvelope(conn, env); err != nil {
		// The read loop observes the dead connection and drives recovery.
		c.logger.Warn("write failed", "type", env.Type, "error", err)
	}
}

// Subscribe adds a channel to the subscription set.
func (c *client) Subscribe(channel string) {
	c.mu.Lock()
	if _, ok := c.subIdx[channel]; ok {
		c.mu.Unlock()
		return
	}
	c.subIdx[channel] = struct{}{}
	c.subs = append(c.subs, channel)
	connected := c.state == StateConnected
	conn := c.conn
	c.mu.Unlock()

	if connected && conn != nil {
		c.writeControlMessage(conn, TypeSubscribe, channel)
	}
}

// Unsubscribe removes a channel from the subscription set.
func (c *client) Unsubscribe(channel string) {
	c.mu.Lock()
	if _, ok := c.subIdx[channel]; !ok {
		c.mu.Unlock()
		return
	}
	delete(c.subIdx, channel)
	for i, s := range c.subs {
		if s == channel {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	connected := c.state == StateConnected
	conn := c.conn
	c.mu.Unlock()

	if connected && conn != nil {
		c.writeControlMessage(conn, TypeUnsubscribe, channel)
	}
}

// Subscriptions returns subscribed channels in insertion order.
func (c *client) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.subs))
	copy(out, c.subs)
	return out
}

// State returns the current connection state.
func (c *client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the connection is established.
func (c *client) IsConnected() bool {
	return c.State() == StateConnected
}

// Stats returns current statistics.
func (c *client) Stats() ClientStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ClientStats{
		State:             c.state,
		ReconnectAttempts: c.attempts,
		QueuedMessages:    c.queue.len(),
		DroppedMessages:   c.queue.droppedTotal(),
		Subscriptions:     len(c.subs),
	}
}

func (c *client) OnMessage(fn Handler)          { c.handlers.addGeneric(fn) }
func (c *client) On(t MessageType, fn Handler)  { c.handlers.addTyped(t, fn) }
func (c *client) OnStateChange(fn StateHandler) { c.handlers.addState(fn) }

func (c *client) OnPoolUpdate(fn func(PoolUpdatePayload)) {
	c.handlers.mu.Lock()
	defer c.handlers.mu.Unlock()
	c.handlers.poolUpdate = append(c.handlers.poolUpdate, fn)
}

func (c *client) OnAPYChange(fn func(APYChangePayload)) {
	c.handlers.mu.Lock()
	defer c.handlers.mu.Unlock()
	c.handlers.apyChange = append(c.handlers.apyChange, fn)
}

func (c *client) OnTransaction(fn func(TransactionPayload)) {
	c.handlers.mu.Lock()
	defer c.handlers.mu.Unlock()
	c.handlers.transaction = append(c.handlers.transaction, fn)
}

func (c *client) OnPriceFeed(fn func(PriceFeedPayload)) {
	c.handlers.mu.Lock()
	defer c.handlers.mu.Unlock()
	c.handlers.priceFeed = append(c.handlers.priceFeed, fn)
}

// dial opens the transport and, on success, replays subscriptions and
// flushes the outbound queue before marking the client connected.
func (c *client) dial(ctx context.Context, gen int) error {
	c.mu.Lock()
	if gen != c.gen || c.state == StateConnecting || c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	ev := c.transitionLocked(StateConnecting, nil)
	c.mu.Unlock()
	c.emit(ev)

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)

	c.mu.Lock()
	if gen != c.gen {
		// Disconnect arrived while dialing.
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return nil
	}
	if err != nil {
		ev1 := c.transitionLocked(StateError, err)
		ev2 := c.scheduleReconnectLocked()
		c.mu.Unlock()
		c.logger.Warn("connect failed", "url", c.cfg.URL, "error", err)
		c.emit(ev1)
		c.emit(ev2)
		return err
	}

	// Snapshot what must be written before the client is usable. The
	// subscription set is replayed first, then queued messages in FIFO
	// order; state stays "connecting" until both are on the wire so
	// concurrent sends keep queueing behind them.
	subs := make([]string, len(c.subs))
	copy(subs, c.subs)
	pending := c.queue.drain()
	c.mu.Unlock()

	for _, channel := range subs {
		if werr := c.writeControlMessage(conn, TypeSubscribe, channel); werr != nil {
			return c.failConnect(conn, gen, pending, werr)
		}
	}
	for i, env := range pending {
		if werr := c.writeEnvelope(conn, env); werr != nil {
			return c.failConnect(conn, gen, pending[i:], werr)
		}
	}

	c.mu.Lock()
	// Sends issued while the replay was on the wire were queued behind
	// it. Keep draining until the queue is empty under the lock so
	// nothing is left stranded once the state flips to connected.
	for c.queue.len() > 0 {
		if gen != c.gen {
			c.mu.Unlock()
			conn.Close()
			return nil
		}
		late := c.queue.drain()
		c.mu.Unlock()
		for i, env := range late {
			if werr := c.writeEnvelope(conn, env); werr != nil {
				return c.failConnect(conn, gen, late[i:], werr)
			}
		}
		c.mu.Lock()
	}
	if gen != c.gen {
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.gen++
	connGen := c.gen
	c.attempts = 0
	c.startHeartbeatLocked(conn)
	ev = c.transitionLocked(StateConnected, nil)
	c.mu.Unlock()

	go c.readLoop(conn, connGen)

	c.logger.Info("connected",
		"url", c.cfg.URL,
		"subscriptions", len(subs),
		"flushed", len(pending),
	)
	c.emit(ev)
	return nil
}

// failConnect handles a write failure during subscription replay or
// queue flush: unsent envelopes are requeued and a reconnect scheduled.
func (c *client) failConnect(conn *websocket.Conn, gen int, unsent []Envelope, err error) error {
	conn.Close()

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return nil
	}
	for _, env := range unsent {
		c.queue.push(env)
	}
	ev1 := c.transitionLocked(StateError, err)
	ev2 := c.scheduleReconnectLocked()
	c.mu.Unlock()

	c.logger.Warn("connection setup failed", "error", err)
	c.emit(ev1)
	c.emit(ev2)
	return err
}

// readLoop reads and dispatches messages until the connection dies.
func (c *client) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleReadError(gen, err)
			return
		}
		c.handleInbound(data)
	}
}

// handleReadError drives the disconnect/reconnect state transitions
// after the read loop fails.
func (c *client) handleReadError(gen int, err error) {
	c.mu.Lock()
	if gen != c.gen {
		// Superseded by an explicit Disconnect or a newer connection.
		c.mu.Unlock()
		return
	}
	c.stopHeartbeatLocked()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	ev1 := c.transitionLocked(StateDisconnected, err)
	var ev2 *StateEvent
	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		c.logger.Info("connection closed by server")
	} else {
		ev2 = c.scheduleReconnectLocked()
	}
	c.mu.Unlock()

	c.emit(ev1)
	c.emit(ev2)
}

// handleInbound parses and dispatches a single frame. Unparsable
// payloads are logged and dropped; the loop keeps running.
func (c *client) handleInbound(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Warn("dropping unparsable message", "error", err)
		return
	}
	if env.Type == "" {
		c.logger.Warn("dropping message without type")
		return
	}

	if env.Type == TypePing {
		c.Send(Envelope{Type: TypePong})
	}

	c.handlers.dispatch(env, c.logger)
}

// scheduleReconnectLocked arms the reconnect timer for the next attempt,
// or reports exhaustion. Caller holds c.mu.
func (c *client) scheduleReconnectLocked() *StateEvent {
	if c.attempts >= c.cfg.MaxReconnectAttempts {
		c.logger.Warn("reconnect attempts exhausted",
			"attempts", c.attempts,
		)
		return c.transitionLocked(StateDisconnected, ErrRetriesExhausted)
	}

	c.attempts++
	delay := c.reconnectDelay(c.attempts)
	c.logger.Info("scheduling reconnect",
		"attempt", c.attempts,
		"max_attempts", c.cfg.MaxReconnectAttempts,
		"delay", delay,
	)

	c.cancelReconnectLocked()
	gen := c.gen
	c.reconnectTimer = time.AfterFunc(delay, func() { c.reconnect(gen) })
	return nil
}

// reconnectDelay returns min(base * 2^(attempt-1), ceiling).
func (c *client) reconnectDelay(attempt int) time.Duration {
	d := c.cfg.ReconnectInterval
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.cfg.MaxReconnectDelay {
			return c.cfg.MaxReconnectDelay
		}
	}
	if d > c.cfg.MaxReconnectDelay {
		d = c.cfg.MaxReconnectDelay
	}
	return d
}

// reconnect is the timer callback for a scheduled reconnect attempt.
func (c *client) reconnect(gen int) {
	c.mu.Lock()
	if gen != c.gen || c.state == StateConnecting || c.state == StateConnected {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.HandshakeTimeout)
	defer cancel()

	if err := c.dial(ctx, gen); err != nil {
		c.logger.Warn("reconnect failed", "error", err)
	}
}

// cancelReconnectLocked stops a pending reconnect timer. Caller holds c.mu.
func (c *client) cancelReconnectLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

func (c *client) startHeartbeatLocked(conn *websocket.Conn) {
	c.stopHeartbeatLocked()
	stop := make(chan struct{})
	c.hbStop = stop
	go c.heartbeatLoop(conn, stop)
}

func (c *client) stopHeartbeatLocked() {
	if c.hbStop != nil {
		close(c.hbStop)
		c.hbStop = nil
	}
}

// heartbeatLoop sends an application-level ping on a fixed cadence to
// keep intermediaries from idling the connection out.
func (c *client) heartbeatLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			env := Envelope{Type: TypePing, Timestamp: time.Now().UnixMilli()}
			if err := c.writeEnvelope(conn, env); err != nil {
				c.logger.Debug("heartbeat write failed", "error", err)
				return
			}
		}
	}
}

// writeEnvelope serializes and writes one envelope. Writes are
// serialized across goroutines.
func (c *client) writeEnvelope(conn *websocket.Conn, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		c.logger.Warn("dropping unmarshalable outbound message", "error", err)
		return nil
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *client) writeControlMessage(conn *websocket.Conn, t MessageType, channel string) error {
	return c.writeEnvelope(conn, Envelope{
		Type:      t,
		Channel:   channel,
		Timestamp: time.Now().UnixMilli(),
	})
}

// transitionLocked records a state change. Returns nil when nothing
// observable happened. Caller holds c.mu.
func (c *client) transitionLocked(next State, err error) *StateEvent {
	if c.state == next && err == nil {
		return nil
	}
	ev := &StateEvent{Old: c.state, New: next, Err: err}
	c.state = next
	return ev
}

// emit delivers a state event to subscribers.
func (c *client) emit(ev *StateEvent) {
	if ev == nil {
		return
	}
	c.logger.Debug("state change",
		"from", ev.Old,
		"to", ev.New,
		"error", ev.Err,
	)
	c.handlers.emitState(*ev)
}
