package realtime

import "testing"

func TestSendQueue_FIFO(t *testing.T) {
	q := newSendQueue(8)

	for _, ch := range []string{"a", "b", "c"} {
		q.push(Envelope{Type: TypeNotification, Channel: ch})
	}

	if q.len() != 3 {
		t.Fatalf("len = %d, want 3", q.len())
	}

	out := q.drain()
	if len(out) != 3 {
		t.Fatalf("drained %d envelopes, want 3", len(out))
	}
	for i, want := range []string{"a", "b", "c"} {
		if out[i].Channel != want {
			t.Errorf("envelope %d: channel = %q, want %q", i, out[i].Channel, want)
		}
	}

	if q.len() != 0 {
		t.Errorf("len after drain = %d, want 0", q.len())
	}
	if q.drain() != nil {
		t.Error("second drain should return nil")
	}
}

func TestSendQueue_DropOldest(t *testing.T) {
	q := newSendQueue(3)

	evicted := 0
	for _, ch := range []string{"a", "b", "c", "d", "e"} {
		if q.push(Envelope{Channel: ch}) {
			evicted++
		}
	}

	if evicted != 2 {
		t.Errorf("evicted = %d, want 2", evicted)
	}
	if q.droppedTotal() != 2 {
		t.Errorf("droppedTotal = %d, want 2", q.droppedTotal())
	}

	out := q.drain()
	if len(out) != 3 {
		t.Fatalf("drained %d envelopes, want 3", len(out))
	}
	for i, want := range []string{"c", "d", "e"} {
		if out[i].Channel != want {
			t.Errorf("envelope %d: channel = %q, want %q", i, out[i].Channel, want)
		}
	}
}

func TestSendQueue_MinCapacity(t *testing.T) {
	q := newSendQueue(0)

	q.push(Envelope{Channel: "a"})
	if q.push(Envelope{Channel: "b"}) != true {
		t.Error("expected eviction at capacity 1")
	}

	out := q.drain()
	if len(out) != 1 || out[0].Channel != "b" {
		t.Errorf("drain = %v, want single envelope for channel b", out)
	}
}

func TestSendQueue_WrapAround(t *testing.T) {
	q := newSendQueue(4)

	// Fill, drain partially via full drain, then refill to force the
	// ring indices to wrap.
	for _, ch := range []string{"a", "b", "c", "d"} {
		q.push(Envelope{Channel: ch})
	}
	q.drain()

	for _, ch := range []string{"e", "f", "g", "h", "i"} {
		q.push(Envelope{Channel: ch})
	}

	out := q.drain()
	want := []string{"f", "g", "h", "i"}
	if len(out) != len(want) {
		t.Fatalf("drained %d envelopes, want %d", len(out), len(want))
	}
	for i := range want {
		if out[i].Channel != want[i] {
			t.Errorf("envelope %d: channel = %q, want %q", i, out[i].Channel, want[i])
		}
	}
}
