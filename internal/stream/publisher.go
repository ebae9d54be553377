package stream

import (
	"sync"
)

// publisher fans events out to subscribers. Each subscriber gets its
// own growQueue and pump goroutine, so every subscriber observes the
// published sequence in order regardless of how fast it reads.
type publisher struct {
	mu        sync.Mutex
	queueSize int
	subs      map[int]*subscriber
	nextID    int
	closed    bool
}

// subscriber is one fan-out leg: queue in, channel out.
type subscriber struct {
	q    *growQueue
	out  chan Event
	done chan struct{}
}

func newPublisher(queueSize int) *publisher {
	return &publisher{
		queueSize: queueSize,
		subs:      make(map[int]*subscriber),
	}
}

// subscribe registers a new subscriber and returns its event channel
// plus a remove func. The remove func detaches the subscriber and
// closes its channel; calling it more than once is a no-op.
func (p *publisher) subscribe() (<-chan Event, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}

	id := p.nextID
	p.nextID++

	sub := &subscriber{
		q:    newGrowQueue(p.queueSize),
		out:  make(chan Event),
		done: make(chan struct{}),
	}
	p.subs[id] = sub

	go sub.run()

	return sub.out, func() { p.remove(id) }
}

// publish appends the event to every subscriber queue. Never blocks.
func (p *publisher) publish(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, sub := range p.subs {
		sub.q.send(ev)
	}
}

// remove detaches one subscriber. Queued events are discarded and the
// subscriber's channel is closed.
func (p *publisher) remove(id int) {
	p.mu.Lock()
	sub, ok := p.subs[id]
	if ok {
		delete(p.subs, id)
	}
	p.mu.Unlock()

	if !ok {
		return
	}

	close(sub.done)
	sub.q.close()
}

// close closes every subscriber queue. Pumps drain what is already
// queued, then close their channels. Safe to call more than once.
func (p *publisher) close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	for _, sub := range p.subs {
		sub.q.close()
	}
}

// count returns the number of attached subscribers.
func (p *publisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// run moves events from the queue to the out channel until the queue
// is drained after close, or the subscriber is removed.
func (s *subscriber) run() {
	defer close(s.out)

	for {
		ev, ok := s.q.receive()
		if !ok {
			return
		}

		select {
		case s.out <- ev:
		case <-s.done:
			return
		}
	}
}
