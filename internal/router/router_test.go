package router

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/brickfi/pool-data/internal/realtime"
)

func startRouter(t *testing.T) (Router, chan<- realtime.Envelope) {
	t.Helper()

	input := make(chan realtime.Envelope, 16)
	r := NewRouter(DefaultRouterConfig(), input, nil)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		r.Stop(ctx)
	})

	return r, input
}

func envelope(t *testing.T, msgType realtime.MessageType, payload any) realtime.Envelope {
	t.Helper()

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return realtime.Envelope{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}

// receive pulls one item from a growable buffer with a timeout.
func receive[T any](t *testing.T, buf *GrowableBuffer[T]) T {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if item, ok := buf.TryReceive(); ok {
			return item
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for buffered message")
	var zero T
	return zero
}

func waitForStats(t *testing.T, r Router, cond func(RouterStats) bool) RouterStats {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if stats := r.Stats(); cond(stats) {
			return stats
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for stats, last: %+v", r.Stats())
	return RouterStats{}
}

func TestRouter_PoolUpdate(t *testing.T) {
	r, input := startRouter(t)

	input <- envelope(t, realtime.TypePoolUpdate, realtime.PoolUpdatePayload{
		PoolAddress: "0xPOOL1",
		Status:      "active",
		TVL:         "2500000.50",
		SeniorTVL:   "2000000.00",
		JuniorTVL:   "500000.50",
		SeniorAPY:   "4.50",
		JuniorAPY:   "9.25",
		Utilization: "82.5",
		Ts:          1700000000,
	})

	msg := receive(t, r.Buffers().PoolState)

	if msg.Address != "0xPOOL1" {
		t.Errorf("Address = %q, want %q", msg.Address, "0xPOOL1")
	}
	if msg.TVL != 2500000500000 {
		t.Errorf("TVL = %d, want 2500000500000", msg.TVL)
	}
	if msg.SeniorAPY != 450 {
		t.Errorf("SeniorAPY = %d, want 450", msg.SeniorAPY)
	}
	if msg.JuniorAPY != 925 {
		t.Errorf("JuniorAPY = %d, want 925", msg.JuniorAPY)
	}
	if msg.Utilization != 8250 {
		t.Errorf("Utilization = %d, want 8250", msg.Utilization)
	}
	if msg.ExchangeTs != 1700000000_000000 {
		t.Errorf("ExchangeTs = %d, want 1700000000000000", msg.ExchangeTs)
	}
	if msg.ReceivedAt.IsZero() {
		t.Error("ReceivedAt is zero")
	}
}

func TestRouter_APYChange(t *testing.T) {
	r, input := startRouter(t)

	input <- envelope(t, realtime.TypeAPYChange, realtime.APYChangePayload{
		PoolAddress: "0xPOOL1",
		Tranche:     "junior",
		OldAPY:      "9.25",
		NewAPY:      "9.75",
		Ts:          1700000001,
	})

	msg := receive(t, r.Buffers().APY)

	if msg.Tranche != "junior" {
		t.Errorf("Tranche = %q, want %q", msg.Tranche, "junior")
	}
	if msg.OldAPY != 925 {
		t.Errorf("OldAPY = %d, want 925", msg.OldAPY)
	}
	if msg.NewAPY != 975 {
		t.Errorf("NewAPY = %d, want 975", msg.NewAPY)
	}
}

func TestRouter_Transaction(t *testing.T) {
	r, input := startRouter(t)

	id := uuid.New()
	input <- envelope(t, realtime.TypeTransaction, realtime.TransactionPayload{
		ID:          id.String(),
		PoolAddress: "0xPOOL1",
		Kind:        "deposit",
		Tranche:     "senior",
		Wallet:      "0xWALLET",
		TxHash:      "0xHASH",
		Amount:      "1000.25",
		Ts:          1700000002,
	})

	msg := receive(t, r.Buffers().Transaction)

	if msg.ID != id {
		t.Errorf("ID = %v, want %v", msg.ID, id)
	}
	if msg.Kind != "deposit" {
		t.Errorf("Kind = %q, want %q", msg.Kind, "deposit")
	}
	if msg.Amount != 1000250000 {
		t.Errorf("Amount = %d, want 1000250000", msg.Amount)
	}
}

func TestRouter_Transaction_BadID(t *testing.T) {
	r, input := startRouter(t)

	input <- envelope(t, realtime.TypeTransaction, realtime.TransactionPayload{
		ID:     "not-a-uuid",
		Amount: "1.00",
	})

	stats := waitForStats(t, r, func(s RouterStats) bool { return s.ParseErrors == 1 })
	if stats.MessagesRouted != 0 {
		t.Errorf("MessagesRouted = %d, want 0", stats.MessagesRouted)
	}
}

func TestRouter_PriceFeed(t *testing.T) {
	r, input := startRouter(t)

	input <- envelope(t, realtime.TypePriceFeed, realtime.PriceFeedPayload{
		Symbol: "ETH/USD",
		Price:  "3150.75",
		Source: "chainlink",
		Ts:     1700000003,
	})

	msg := receive(t, r.Buffers().Price)

	if msg.Symbol != "ETH/USD" {
		t.Errorf("Symbol = %q, want %q", msg.Symbol, "ETH/USD")
	}
	if msg.Price != 3150750000 {
		t.Errorf("Price = %d, want 3150750000", msg.Price)
	}
	if msg.Source != "chainlink" {
		t.Errorf("Source = %q, want %q", msg.Source, "chainlink")
	}
}

func TestRouter_NotificationForwarded(t *testing.T) {
	r, input := startRouter(t)

	input <- envelope(t, realtime.TypeNotification, realtime.NotificationPayload{
		Event:       "pool_status_change",
		PoolAddress: "0xPOOL1",
		OldStatus:   "active",
		NewStatus:   "paused",
	})

	select {
	case n := <-r.Notifications():
		if n.Event != "pool_status_change" {
			t.Errorf("Event = %q, want %q", n.Event, "pool_status_change")
		}
		if n.NewStatus != "paused" {
			t.Errorf("NewStatus = %q, want %q", n.NewStatus, "paused")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestRouter_UnparsableDataCounted(t *testing.T) {
	r, input := startRouter(t)

	input <- realtime.Envelope{
		Type: realtime.TypePoolUpdate,
		Data: json.RawMessage(`{not json`),
	}

	waitForStats(t, r, func(s RouterStats) bool { return s.ParseErrors == 1 })
}

func TestRouter_UnknownTypeCounted(t *testing.T) {
	r, input := startRouter(t)

	input <- realtime.Envelope{Type: "mystery"}

	stats := waitForStats(t, r, func(s RouterStats) bool { return s.UnknownMessages == 1 })
	if stats.MessagesRouted != 0 {
		t.Errorf("MessagesRouted = %d, want 0", stats.MessagesRouted)
	}
}

func TestRouter_HeartbeatSkipped(t *testing.T) {
	r, input := startRouter(t)

	input <- realtime.Envelope{Type: realtime.TypePing}
	input <- realtime.Envelope{Type: realtime.TypePong}

	stats := waitForStats(t, r, func(s RouterStats) bool { return s.MessagesReceived == 2 })
	if stats.MessagesRouted != 0 {
		t.Errorf("MessagesRouted = %d, want 0", stats.MessagesRouted)
	}
	if stats.UnknownMessages != 0 {
		t.Errorf("UnknownMessages = %d, want 0", stats.UnknownMessages)
	}
}

func TestRouter_StatsTotals(t *testing.T) {
	r, input := startRouter(t)

	for i := 0; i < 5; i++ {
		input <- envelope(t, realtime.TypePriceFeed, realtime.PriceFeedPayload{
			Symbol: "BRICK/USD",
			Price:  "1.05",
		})
	}

	stats := waitForStats(t, r, func(s RouterStats) bool { return s.MessagesRouted == 5 })
	if stats.MessagesReceived != 5 {
		t.Errorf("MessagesReceived = %d, want 5", stats.MessagesReceived)
	}
	if stats.PriceBuffer.TotalIn != 5 {
		t.Errorf("PriceBuffer.TotalIn = %d, want 5", stats.PriceBuffer.TotalIn)
	}
}

func TestRouter_StopClosesBuffers(t *testing.T) {
	input := make(chan realtime.Envelope)
	r := NewRouter(DefaultRouterConfig(), input, nil)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if r.Buffers().PoolState.Send(PoolStateMsg{}) {
		t.Error("Send after Stop returned true")
	}
}
