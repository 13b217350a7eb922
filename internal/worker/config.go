// Package worker drives periodic sensor updates for ecosensor.
package worker

import (
	"time"
)

// PollConfig holds configuration for the sensor poll job.
type PollConfig struct {
	// Interval is the scan interval between poll runs.
	// Default: 30 seconds
	Interval time.Duration

	// Concurrency is the number of sensors updated at once.
	// Default: 4
	Concurrency int

	// Timeout bounds a single sensor update.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultPollConfig returns the default poll configuration.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Interval:    30 * time.Second,
		Concurrency: 4,
		Timeout:     30 * time.Second,
	}
}

func (c PollConfig) withDefaults() PollConfig {
	def := DefaultPollConfig()
	if c.Interval <= 0 {
		c.Interval = def.Interval
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}
