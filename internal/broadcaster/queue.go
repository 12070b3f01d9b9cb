package broadcaster

// queueCapacity is §4.5/§5's bounded per-client FIFO depth. Overflow means
// "slow client; drop and disconnect" -- the producer (advancer) never
// blocks on a full client queue.
const queueCapacity = 50

// clientQueue is a single-producer (advancer)/single-consumer (response
// writer) bounded FIFO of MPEG-TS chunks. tryPut is the idiomatic Go
// rendering of the teacher's queue discipline (§5): a buffered channel plus
// a non-blocking select, rather than a hand-rolled ring buffer.
type clientQueue struct {
	ch     chan []byte
	closed chan struct{}
}

func newClientQueue() *clientQueue {
	return &clientQueue{
		ch:     make(chan []byte, queueCapacity),
		closed: make(chan struct{}),
	}
}

// tryPut enqueues chunk without blocking. It reports false when the queue
// is full (caller removes the client, assumed disconnected/slow) or the
// queue has already been closed.
func (q *clientQueue) tryPut(chunk []byte) bool {
	select {
	case <-q.closed:
		return false
	default:
	}
	select {
	case q.ch <- chunk:
		return true
	default:
		return false
	}
}

// close unblocks any pending get and marks the queue dead. Safe to call
// more than once.
func (q *clientQueue) close() {
	select {
	case <-q.closed:
	default:
		close(q.closed)
	}
}
