package stream

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// channelConn owns one WebSocket connection to a single endpoint path
// and fans every decoded message out to its subscribers.
//
// Lifecycle: connect starts the first dial. A dial or read failure
// publishes an error event, then schedules a redial with exponential
// backoff; redials continue until the connection is torn down. A
// successful dial resets the backoff. teardown is terminal: it cancels
// any pending redial, closes the socket, and closes the publisher.
type channelConn struct {
	url    string // full WebSocket URL for this endpoint
	path   string // endpoint path, used as the log key
	decode DecodeFunc
	cfg    Config
	logger *slog.Logger
	pub    *publisher

	mu       sync.Mutex
	state    State
	attempts int // consecutive dial/read failures since last success
	ws       *websocket.Conn
	done     chan struct{} // closed when the current socket's loops must stop
	retry    *time.Timer   // pending redial, nil when none
	stale    bool          // keepalive closed the socket
	lastPong time.Time
	torn     bool
}

func newChannelConn(url, path string, decode DecodeFunc, cfg Config, logger *slog.Logger) *channelConn {
	if logger == nil {
		logger = slog.Default()
	}

	return &channelConn{
		url:    url,
		path:   path,
		decode: decode,
		cfg:    cfg,
		logger: logger.With("endpoint", path),
		pub:    newPublisher(cfg.QueueSize),
	}
}

// connect starts dialing unless a dial is already in flight, the
// connection is up, or a redial is pending. Dialing is asynchronous;
// failures surface as error events, never as a return value.
func (c *channelConn) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.torn {
		return ErrTornDown
	}
	if c.state != StateDisconnected {
		return nil
	}

	c.state = StateConnecting
	go c.dial()

	return nil
}

// teardown permanently shuts the connection down. Any pending redial
// is cancelled before teardown returns, so no dial starts afterwards.
// Subscriber channels close once their queues drain.
func (c *channelConn) teardown() {
	c.mu.Lock()
	if c.torn {
		c.mu.Unlock()
		return
	}
	c.torn = true
	c.state = StateDisconnected

	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()

	if ws != nil {
		ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		ws.Close()
	}

	c.pub.close()

	c.logger.Debug("connection torn down")
}

// currentState returns the connection state.
func (c *channelConn) currentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// failures returns the consecutive failure count.
func (c *channelConn) failures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// dial attempts one WebSocket handshake. On success it installs the
// socket and starts the read and keepalive loops; on failure it
// publishes the error and schedules a redial.
func (c *channelConn) dial() {
	c.mu.Lock()
	if c.torn {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.DialTimeout,
	}

	ws, _, err := dialer.Dial(c.url, nil)

	c.mu.Lock()
	if c.torn {
		c.mu.Unlock()
		if err == nil {
			ws.Close()
		}
		return
	}

	if err != nil {
		c.fail(fmt.Errorf("dial: %w", err))
		c.mu.Unlock()
		return
	}

	c.ws = ws
	c.state = StateConnected
	c.attempts = 0
	c.stale = false
	c.lastPong = time.Now()
	c.done = make(chan struct{})
	done := c.done

	ws.SetPongHandler(func(string) error {
		c.mu.Lock()
		c.lastPong = time.Now()
		c.mu.Unlock()
		return nil
	})
	ws.SetPingHandler(func(data string) error {
		c.mu.Lock()
		c.lastPong = time.Now()
		c.mu.Unlock()

		return ws.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	c.mu.Unlock()

	go c.readLoop(ws)
	go c.keepalive(ws, done)

	c.logger.Debug("websocket connected", "url", c.url)
}

// fail records a failure, publishes the error event, and schedules the
// next dial. The event is published before the redial is scheduled.
// Must be called with mu held.
func (c *channelConn) fail(err error) {
	c.state = StateFailed
	wait := Delay(c.attempts)
	c.attempts++

	c.pub.publish(Event{Err: err, ReceivedAt: time.Now()})

	c.retry = time.AfterFunc(wait, c.redial)

	c.logger.Warn("connection failed, redial scheduled",
		"error", err,
		"wait", wait,
		"failures", c.attempts,
	)
}

// redial runs when the retry timer fires.
func (c *channelConn) redial() {
	c.mu.Lock()
	if c.torn {
		c.mu.Unlock()
		return
	}
	c.retry = nil
	c.state = StateConnecting
	c.mu.Unlock()

	c.dial()
}

// readLoop reads frames from the socket, decodes them, and publishes
// the results. Messages are processed one at a time, in arrival order.
// A decode failure publishes an error event and keeps reading; a read
// failure tears the socket down and schedules a redial.
func (c *channelConn) readLoop(ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		receivedAt := time.Now() // Capture timestamp immediately

		if err != nil {
			c.mu.Lock()
			if c.torn || c.ws != ws {
				c.mu.Unlock()
				return
			}
			if c.stale {
				c.stale = false
				err = ErrStaleConnection
			}
			c.ws = nil
			if c.done != nil {
				close(c.done)
				c.done = nil
			}
			c.fail(fmt.Errorf("read: %w", err))
			c.mu.Unlock()

			ws.Close()
			return
		}

		decoded, err := c.decode(data)
		if err != nil {
			c.pub.publish(Event{
				Err:        fmt.Errorf("decode: %w", err),
				ReceivedAt: receivedAt,
			})
			continue
		}

		c.pub.publish(Event{
			Data:       decoded,
			ReceivedAt: receivedAt,
		})
	}
}

// keepalive pings the server and closes the socket when pongs stop
// arriving. The read loop then surfaces the failure as usual.
func (c *channelConn) keepalive(ws *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := ws.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
			}

			c.mu.Lock()
			last := c.lastPong
			current := c.ws == ws
			c.mu.Unlock()

			if !current {
				return
			}

			if time.Since(last) > c.cfg.PongTimeout {
				c.logger.Warn("no pong received, connection stale",
					"last_pong", last,
					"timeout", c.cfg.PongTimeout,
				)
				c.mu.Lock()
				if c.ws == ws {
					c.stale = true
				}
				c.mu.Unlock()

				ws.Close()
				return
			}
		}
	}
}
