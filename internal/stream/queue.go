package stream

import (
	"sync"
)

// growQueue is an unbounded FIFO of events backed by a ring buffer that
// doubles when full. Fan-out uses one queue per subscriber so that a
// slow consumer never blocks the read loop and never drops events.
type growQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []Event
	head   int // read position
	tail   int // write position
	count  int
	closed bool
}

func newGrowQueue(initialCap int) *growQueue {
	if initialCap < 1 {
		initialCap = 1
	}
	q := &growQueue{
		buf: make([]Event, initialCap),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// send appends an event. Returns false if the queue is closed.
func (q *growQueue) send(ev Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	if q.count == len(q.buf) {
		q.grow()
	}

	q.buf[q.tail] = ev
	q.tail = (q.tail + 1) % len(q.buf)
	q.count++

	q.cond.Signal()
	return true
}

// receive removes and returns the oldest event. Blocks until an event
// is available or the queue is closed. After close, remaining events
// are still delivered; once drained, receive returns false.
func (q *growQueue) receive() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.cond.Wait()
	}

	if q.count == 0 {
		return Event{}, false
	}

	ev := q.buf[q.head]
	q.buf[q.head] = Event{} // Clear reference for GC
	q.head = (q.head + 1) % len(q.buf)
	q.count--

	return ev, true
}

// close marks the queue closed and wakes all waiting receivers.
// Safe to call more than once.
func (q *growQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

// len returns the number of queued events.
func (q *growQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// grow doubles the buffer capacity. Must be called with lock held.
func (q *growQueue) grow() {
	newBuf := make([]Event, len(q.buf)*2)

	if q.count > 0 {
		if q.head < q.tail {
			copy(newBuf, q.buf[q.head:q.tail])
		} else {
			n := copy(newBuf, q.buf[q.head:])
			copy(newBuf[n:], q.buf[:q.tail])
		}
	}

	q.buf = newBuf
	q.head = 0
	q.tail = q.count
}
