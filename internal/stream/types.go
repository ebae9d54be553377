package stream

import (
	"errors"
	"time"
)

// Errors
var (
	ErrRegistryClosed  = errors.New("registry closed")
	ErrTornDown        = errors.New("connection torn down")
	ErrStaleConnection = errors.New("connection stale (no ping)")
)

// State is the lifecycle state of a channel connection.
type State int

const (
	// StateDisconnected means no dial has been attempted yet.
	StateDisconnected State = iota
	// StateConnecting means a dial or scheduled redial is in flight.
	StateConnecting
	// StateConnected means the socket is up and the read loop is running.
	StateConnected
	// StateFailed means the last dial or read failed and a redial is pending.
	StateFailed
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is a single item delivered to subscribers. Exactly one of Data
// and Err is set: Data holds a decoded message, Err reports a decode or
// transport failure on the shared connection.
type Event struct {
	Data       any
	Err        error
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// DecodeFunc turns one raw WebSocket frame into a typed value. A decode
// error is delivered to subscribers as an error event; it does not
// affect the connection.
type DecodeFunc func(data []byte) (any, error)

// CancelFunc releases one subscription. Safe to call more than once;
// only the first call counts against the channel's subscriber count.
type CancelFunc func()

// Config configures a stream registry and its channel connections.
type Config struct {
	BaseURL      string        // WebSocket base URL (e.g., wss://console.stratvault.io)
	DialTimeout  time.Duration // Handshake timeout for each dial
	WriteTimeout time.Duration // Write deadline for control frames
	PingInterval time.Duration // How often to send keepalive pings
	PongTimeout  time.Duration // Max time without pong before considering connection stale
	QueueSize    int           // Initial per-subscriber queue capacity
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		DialTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Second,
		PingInterval: 30 * time.Second,
		PongTimeout:  90 * time.Second,
		QueueSize:    64,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.DialTimeout <= 0 {
		c.DialTimeout = def.DialTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = def.PingInterval
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = def.PongTimeout
	}
	if c.QueueSize < 1 {
		c.QueueSize = def.QueueSize
	}
	return c
}
