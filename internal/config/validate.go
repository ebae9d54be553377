package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
// The database section is validated only when one is configured.
func (c *Config) Validate() error {
	if c.Console.WSURL == "" {
		return errors.New("console.ws_url is required")
	}
	if c.Console.RestURL == "" {
		return errors.New("console.rest_url is required")
	}
	if c.Console.RateLimit <= 0 {
		return errors.New("console.rate_limit must be > 0")
	}

	if c.Stream.QueueSize < 1 {
		return errors.New("stream.queue_size must be >= 1")
	}
	if c.Stream.PongTimeout <= c.Stream.PingInterval {
		return fmt.Errorf("stream.pong_timeout (%v) must exceed ping_interval (%v)",
			c.Stream.PongTimeout, c.Stream.PingInterval)
	}

	if c.HasDatabase() {
		if err := c.Database.validate("database"); err != nil {
			return err
		}
	}

	if c.Recorder.BatchSize < 1 {
		return errors.New("recorder.batch_size must be >= 1")
	}
	if c.Recorder.ArchiveMaxBytes < 1 {
		return errors.New("recorder.archive_max_bytes must be >= 1")
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Port < 1 || db.Port > 65535 {
		return fmt.Errorf("%s.port must be between 1 and 65535, got %d", prefix, db.Port)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
