package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRestURL       = "https://console.stratvault.io"
	DefaultWSURL         = "wss://console.stratvault.io"
	DefaultAPITimeout    = 30 * time.Second
	DefaultMaxRetries    = 3
	DefaultRateLimit     = 10.0
	DefaultRateBurst     = 20
	DefaultDialTimeout   = 10 * time.Second
	DefaultWriteTimeout  = 5 * time.Second
	DefaultPingInterval  = 30 * time.Second
	DefaultPongTimeout   = 90 * time.Second
	DefaultQueueSize     = 64
	DefaultDBPort        = 5432
	DefaultDBSSLMode     = "prefer"
	DefaultMaxConns      = 10
	DefaultMinConns      = 2
	DefaultBatchSize     = 500
	DefaultFlushInterval = 1 * time.Second
	DefaultArchiveBytes  = 64 << 20 // 64 MiB per archive segment
	DefaultHealthPort    = 8080
)

// Default returns a configuration with all defaults applied and no file loaded.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	// Console defaults
	if c.Console.RestURL == "" {
		c.Console.RestURL = DefaultRestURL
	}
	if c.Console.WSURL == "" {
		c.Console.WSURL = DefaultWSURL
	}
	if c.Console.Timeout == 0 {
		c.Console.Timeout = DefaultAPITimeout
	}
	if c.Console.MaxRetries == 0 {
		c.Console.MaxRetries = DefaultMaxRetries
	}
	if c.Console.RateLimit == 0 {
		c.Console.RateLimit = DefaultRateLimit
	}
	if c.Console.RateBurst == 0 {
		c.Console.RateBurst = DefaultRateBurst
	}

	// Stream defaults
	if c.Stream.DialTimeout == 0 {
		c.Stream.DialTimeout = DefaultDialTimeout
	}
	if c.Stream.WriteTimeout == 0 {
		c.Stream.WriteTimeout = DefaultWriteTimeout
	}
	if c.Stream.PingInterval == 0 {
		c.Stream.PingInterval = DefaultPingInterval
	}
	if c.Stream.PongTimeout == 0 {
		c.Stream.PongTimeout = DefaultPongTimeout
	}
	if c.Stream.QueueSize == 0 {
		c.Stream.QueueSize = DefaultQueueSize
	}

	// Database defaults apply only when a database is configured.
	if c.HasDatabase() {
		applyDBDefaults(&c.Database)
	}

	// Recorder defaults
	if c.Recorder.BatchSize == 0 {
		c.Recorder.BatchSize = DefaultBatchSize
	}
	if c.Recorder.FlushInterval == 0 {
		c.Recorder.FlushInterval = DefaultFlushInterval
	}
	if c.Recorder.ArchiveMaxBytes == 0 {
		c.Recorder.ArchiveMaxBytes = DefaultArchiveBytes
	}

	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
