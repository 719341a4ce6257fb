package realtime

import (
	"encoding/json"
	"testing"
	"time"
)

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{StateError, "error"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestEnvelope_Roundtrip(t *testing.T) {
	env := Envelope{
		Type:      TypePoolUpdate,
		Channel:   "pool:0xa1b2",
		Data:      json.RawMessage(`{"pool_address":"0xa1b2","status":"active"}`),
		Timestamp: 1705321845123,
	}

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var parsed Envelope
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if parsed.Type != TypePoolUpdate {
		t.Errorf("Type = %q, want %q", parsed.Type, TypePoolUpdate)
	}
	if parsed.Channel != "pool:0xa1b2" {
		t.Errorf("Channel = %q, want %q", parsed.Channel, "pool:0xa1b2")
	}
	if parsed.Timestamp != 1705321845123 {
		t.Errorf("Timestamp = %d, want %d", parsed.Timestamp, 1705321845123)
	}
}

func TestEnvelope_ControlOmitsData(t *testing.T) {
	env := Envelope{Type: TypeSubscribe, Channel: "pool:0x1", Timestamp: 1}

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if _, ok := m["data"]; ok {
		t.Error("control message should omit empty data field")
	}
}

func TestPayload_Decoding(t *testing.T) {
	t.Run("pool_update", func(t *testing.T) {
		raw := `{"pool_address":"0xa1","status":"active","tvl":"2500000.50","senior_tvl":"1800000.00","junior_tvl":"700000.50","senior_apy":"4.50","junior_apy":"11.20","utilization":"82.00","ts":1705321845}`

		var p PoolUpdatePayload
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if p.PoolAddress != "0xa1" {
			t.Errorf("PoolAddress = %q, want %q", p.PoolAddress, "0xa1")
		}
		if p.SeniorAPY != "4.50" {
			t.Errorf("SeniorAPY = %q, want %q", p.SeniorAPY, "4.50")
		}
		if p.Ts != 1705321845 {
			t.Errorf("Ts = %d, want %d", p.Ts, 1705321845)
		}
	})

	t.Run("transaction", func(t *testing.T) {
		raw := `{"id":"6ba7b810-9dad-11d1-80b4-00c04fd430c8","pool_address":"0xa1","kind":"deposit","tranche":"senior","wallet":"0xfe","tx_hash":"0xde","amount":"50.000000","ts":1705321845}`

		var p TransactionPayload
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if p.Kind != "deposit" {
			t.Errorf("Kind = %q, want %q", p.Kind, "deposit")
		}
		if p.Amount != "50.000000" {
			t.Errorf("Amount = %q, want %q", p.Amount, "50.000000")
		}
	})

	t.Run("notification", func(t *testing.T) {
		raw := `{"event":"pool_status_change","pool_address":"0xa1","old_status":"pending","new_status":"active"}`

		var p NotificationPayload
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if p.Event != "pool_status_change" {
			t.Errorf("Event = %q, want %q", p.Event, "pool_status_change")
		}
		if p.NewStatus != "active" {
			t.Errorf("NewStatus = %q, want %q", p.NewStatus, "active")
		}
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.HeartbeatInterval != 30*time.Second {
		t.Errorf("HeartbeatInterval = %v, want 30s", cfg.HeartbeatInterval)
	}
	if cfg.ReconnectInterval != time.Second {
		t.Errorf("ReconnectInterval = %v, want 1s", cfg.ReconnectInterval)
	}
	if cfg.MaxReconnectDelay != 30*time.Second {
		t.Errorf("MaxReconnectDelay = %v, want 30s", cfg.MaxReconnectDelay)
	}
	if cfg.MaxReconnectAttempts != 5 {
		t.Errorf("MaxReconnectAttempts = %d, want 5", cfg.MaxReconnectAttempts)
	}
	if cfg.QueueSize != 256 {
		t.Errorf("QueueSize = %d, want 256", cfg.QueueSize)
	}
}
