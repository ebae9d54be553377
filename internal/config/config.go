package config

import "time"

// Config is the root configuration for the deskfeed tools.
type Config struct {
	Instance InstanceConfig `yaml:"instance"`
	Console  ConsoleConfig  `yaml:"console"`
	Stream   StreamConfig   `yaml:"stream"`
	Database DBConfig       `yaml:"database"`
	Recorder RecorderConfig `yaml:"recorder"`
	Health   HealthConfig   `yaml:"health"`
}

// InstanceConfig identifies this deskfeed instance in logs and recorder rows.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ConsoleConfig holds StratVault console endpoints and credentials.
type ConsoleConfig struct {
	RestURL    string        `yaml:"rest_url"`
	WSURL      string        `yaml:"ws_url"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	RateLimit  float64       `yaml:"rate_limit"` // REST requests per second
	RateBurst  int           `yaml:"rate_burst"`
}

// StreamConfig holds WebSocket stream settings. Reconnect backoff is fixed
// (1s doubling to a 30s cap) and deliberately not configurable.
type StreamConfig struct {
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PingInterval time.Duration `yaml:"ping_interval"`
	PongTimeout  time.Duration `yaml:"pong_timeout"`
	QueueSize    int           `yaml:"queue_size"`
}

// DBConfig holds the Postgres connection used by the recorder.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RecorderConfig holds batch writer and archive settings.
type RecorderConfig struct {
	BatchSize       int           `yaml:"batch_size"`
	FlushInterval   time.Duration `yaml:"flush_interval"`
	ArchiveDir      string        `yaml:"archive_dir"`
	ArchiveMaxBytes int64         `yaml:"archive_max_bytes"`
}

// HealthConfig holds the record daemon's health HTTP endpoint settings.
type HealthConfig struct {
	Port int `yaml:"port"`
}

// HasDatabase reports whether a database connection is configured.
// The record daemon connects only when one is; tail never does.
func (c *Config) HasDatabase() bool {
	return c.Database.Host != ""
}
