package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Handler receives a single inbound envelope.
type Handler func(Envelope)

// StateHandler receives connection state transitions.
type StateHandler func(StateEvent)

// handlerSet is the registry of subscriber callbacks. Registration is
// safe from any goroutine; dispatch runs synchronously on the read loop
// so subscribers observe messages in transport order.
type handlerSet struct {
	mu      sync.RWMutex
	generic []Handler
	byType  map[MessageType][]Handler
	state   []StateHandler

	// Typed convenience handlers for the four high-volume data kinds.
	poolUpdate  []func(PoolUpdatePayload)
	apyChange   []func(APYChangePayload)
	transaction []func(TransactionPayload)
	priceFeed   []func(PriceFeedPayload)
}

func newHandlerSet() *handlerSet {
	return &handlerSet{byType: make(map[MessageType][]Handler)}
}

func (h *handlerSet) addGeneric(fn Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.generic = append(h.generic, fn)
}

func (h *handlerSet) addTyped(t MessageType, fn Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.byType[t] = append(h.byType[t], fn)
}

func (h *handlerSet) addState(fn StateHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = append(h.state, fn)
}

// dispatch fans one envelope out: type-specific handlers first, then
// generic handlers, then the typed convenience handlers. Payload decode
// failures are logged and dropped without affecting the other tiers.
func (h *handlerSet) dispatch(env Envelope, logger *slog.Logger) {
	h.mu.RLock()
	typed := h.byType[env.Type]
	generic := h.generic
	h.mu.RUnlock()

	for _, fn := range typed {
		fn(env)
	}
	for _, fn := range generic {
		fn(env)
	}

	switch env.Type {
	case TypePoolUpdate:
		h.mu.RLock()
		fns := h.poolUpdate
		h.mu.RUnlock()
		if len(fns) == 0 {
			return
		}
		var p PoolUpdatePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			logger.Warn("dropping pool_update with bad payload", "error", err)
			return
		}
		for _, fn := range fns {
			fn(p)
		}

	case TypeAPYChange:
		h.mu.RLock()
		fns := h.apyChange
		h.mu.RUnlock()
		if len(fns) == 0 {
			return
		}
		var p APYChangePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			logger.Warn("dropping apy_change with bad payload", "error", err)
			return
		}
		for _, fn := range fns {
			fn(p)
		}

	case TypeTransaction:
		h.mu.RLock()
		fns := h.transaction
		h.mu.RUnlock()
		if len(fns) == 0 {
			return
		}
		var p TransactionPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			logger.Warn("dropping transaction with bad payload", "error", err)
			return
		}
		for _, fn := range fns {
			fn(p)
		}

	case TypePriceFeed:
		h.mu.RLock()
		fns := h.priceFeed
		h.mu.RUnlock()
		if len(fns) == 0 {
			return
		}
		var p PriceFeedPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			logger.Warn("dropping price_feed with bad payload", "error", err)
			return
		}
		for _, fn := range fns {
			fn(p)
		}
	}
}

func (h *handlerSet) emitState(ev StateEvent) {
	h.mu.RLock()
	fns := h.state
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
