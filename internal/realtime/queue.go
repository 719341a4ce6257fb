package realtime

// sendQueue buffers outbound envelopes while the connection is down.
// It is a fixed-capacity ring: when full, the oldest entry is dropped to
// make room. Callers must hold the client mutex; the queue itself does
// no locking.
type sendQueue struct {
	buf     []Envelope
	head    int // read position
	tail    int // write position
	count   int
	dropped int64
}

func newSendQueue(capacity int) *sendQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &sendQueue{buf: make([]Envelope, capacity)}
}

// push appends an envelope, evicting the oldest entry if the queue is
// full. Returns true if an entry was evicted.
func (q *sendQueue) push(env Envelope) bool {
	evicted := false
	if q.count == len(q.buf) {
		q.head = (q.head + 1) % len(q.buf)
		q.count--
		q.dropped++
		evicted = true
	}

	q.buf[q.tail] = env
	q.tail = (q.tail + 1) % len(q.buf)
	q.count++
	return evicted
}

// drain removes and returns all queued envelopes in FIFO order.
func (q *sendQueue) drain() []Envelope {
	if q.count == 0 {
		return nil
	}

	out := make([]Envelope, 0, q.count)
	for q.count > 0 {
		out = append(out, q.buf[q.head])
		q.buf[q.head] = Envelope{}
		q.head = (q.head + 1) % len(q.buf)
		q.count--
	}
	return out
}

// len returns the number of queued envelopes.
func (q *sendQueue) len() int {
	return q.count
}

// droppedTotal returns the number of envelopes evicted since creation.
func (q *sendQueue) droppedTotal() int64 {
	return q.dropped
}
