package stream

import (
	"log/slog"
	"strings"
	"sync"
)

// Registry multiplexes subscriptions onto per-endpoint WebSocket
// connections.
type Registry interface {
	// Subscribe attaches a subscriber to the connection for path,
	// dialing it first if no subscriber exists yet. All subscribers of
	// one path share a single connection and observe the same events
	// in the same order. The decoder is bound when the connection is
	// first created; later subscribers reuse it.
	//
	// The returned CancelFunc releases the subscription. When the last
	// subscriber cancels, the connection is torn down and removed.
	Subscribe(path string, decode DecodeFunc) (<-chan Event, CancelFunc, error)

	// State reports the connection state for path. Paths with no
	// active connection report StateDisconnected.
	State(path string) State

	// States returns a snapshot of every active connection's state,
	// keyed by path.
	States() map[string]State

	// DisposeAll tears down every connection and closes the registry.
	// Safe to call more than once. Subscribe fails with
	// ErrRegistryClosed afterwards.
	DisposeAll()
}

// entry tracks one endpoint connection and its subscriber count.
type entry struct {
	conn *channelConn
	refs int
}

// registry implements the Registry interface.
type registry struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
}

// NewRegistry creates a stream registry for the given base URL.
func NewRegistry(cfg Config, logger *slog.Logger) Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &registry{
		cfg:     cfg.withDefaults(),
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// Subscribe attaches a subscriber to the connection for path.
func (r *registry) Subscribe(path string, decode DecodeFunc) (<-chan Event, CancelFunc, error) {
	r.mu.Lock()

	if r.closed {
		r.mu.Unlock()
		return nil, nil, ErrRegistryClosed
	}

	e, ok := r.entries[path]
	if !ok {
		conn := newChannelConn(joinURL(r.cfg.BaseURL, path), path, decode, r.cfg, r.logger)
		e = &entry{conn: conn}
		r.entries[path] = e

		r.logger.Debug("channel opened", "endpoint", path)
	}

	e.refs++
	ch, detach := e.conn.pub.subscribe()
	err := e.conn.connect()
	r.mu.Unlock()

	if err != nil {
		detach()
		return nil, nil, err
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.release(path, e)
			detach()
		})
	}

	return ch, cancel, nil
}

// release decrements the subscriber count for e and tears the
// connection down when the count reaches zero. Cancels arriving after
// the entry was already replaced or removed only detach themselves.
func (r *registry) release(path string, e *entry) {
	r.mu.Lock()

	cur, ok := r.entries[path]
	if !ok || cur != e {
		r.mu.Unlock()
		return
	}

	e.refs--
	last := e.refs == 0
	if last {
		delete(r.entries, path)
	}
	r.mu.Unlock()

	if last {
		e.conn.teardown()
		r.logger.Debug("channel closed", "endpoint", path)
	}
}

// State reports the connection state for path.
func (r *registry) State(path string) State {
	r.mu.Lock()
	e, ok := r.entries[path]
	r.mu.Unlock()

	if !ok {
		return StateDisconnected
	}
	return e.conn.currentState()
}

// States returns a snapshot of every active connection's state.
func (r *registry) States() map[string]State {
	r.mu.Lock()
	conns := make(map[string]*channelConn, len(r.entries))
	for path, e := range r.entries {
		conns[path] = e.conn
	}
	r.mu.Unlock()

	states := make(map[string]State, len(conns))
	for path, conn := range conns {
		states[path] = conn.currentState()
	}
	return states
}

// DisposeAll tears down every connection and closes the registry.
func (r *registry) DisposeAll() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true

	conns := make([]*channelConn, 0, len(r.entries))
	for _, e := range r.entries {
		conns = append(conns, e.conn)
	}
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for _, conn := range conns {
		conn.teardown()
	}

	r.logger.Debug("registry disposed", "connections", len(conns))
}

// joinURL concatenates the base URL and an endpoint path.
func joinURL(base, path string) string {
	base = strings.TrimRight(base, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}
