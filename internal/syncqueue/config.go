package syncqueue

import "time"

// Config controls the donor sync queue.
type Config struct {
	Capacity   int
	JobTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Capacity:   1024,
		JobTimeout: 30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Capacity <= 0 {
		c.Capacity = defaults.Capacity
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
