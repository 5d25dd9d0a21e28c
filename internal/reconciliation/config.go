package reconciliation

import "time"

// Config controls reconciliation parallelism and per-step timeouts.
type Config struct {
	// MaxWorkers bounds concurrent donor pipelines. 1 means sequential.
	MaxWorkers int
	// GenerateTimeout caps document rendering per donor.
	GenerateTimeout time.Duration
	// DeliverTimeout caps email delivery per donor.
	DeliverTimeout time.Duration
	// RunTimeout caps a whole year run.
	RunTimeout time.Duration
	// CheckInterval is how often the scheduled trigger wakes up to see
	// whether the annual run for the previous year is due.
	CheckInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxWorkers:      4,
		GenerateTimeout: 30 * time.Second,
		DeliverTimeout:  30 * time.Second,
		RunTimeout:      30 * time.Minute,
		CheckInterval:   time.Hour,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = defaults.MaxWorkers
	}
	if c.GenerateTimeout <= 0 {
		c.GenerateTimeout = defaults.GenerateTimeout
	}
	if c.DeliverTimeout <= 0 {
		c.DeliverTimeout = defaults.DeliverTimeout
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = defaults.RunTimeout
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = defaults.CheckInterval
	}
	return c
}
