package config

import (
	"fmt"
	"time"
)

// StatsConfig contains configuration for the stats worker that recomputes
// derived customer fields (lifetime spend, visits, last order date).
type StatsConfig struct {
	Enabled bool `envconfig:"ENABLED" default:"true"`

	// PopTimeout bounds each blocking pop on the recompute queue.
	PopTimeout time.Duration `envconfig:"POP_TIMEOUT" default:"5s" validate:"gt=0"`

	// ReconcileInterval is the period of the full recompute pass. Zero disables it.
	ReconcileInterval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"1h" validate:"min=0"`

	// Concurrency bounds parallel recomputes of distinct customers.
	Concurrency int `envconfig:"CONCURRENCY" default:"8" validate:"min=1,max=256"`

	// LockTTL is how long a per-customer recompute lock is held before Redis expires it.
	LockTTL time.Duration `envconfig:"LOCK_TTL" default:"30s"`

	MaxRetries     int           `envconfig:"MAX_RETRIES" default:"3" validate:"min=0"`
	BaseRetryDelay time.Duration `envconfig:"BASE_RETRY_DELAY" default:"200ms"`
}

// Validate checks cross-field constraints.
func (c *StatsConfig) Validate() error {
	if c.LockTTL < time.Second {
		return fmt.Errorf("stats lock TTL must be at least 1s, got %s", c.LockTTL)
	}
	if c.ReconcileInterval > 0 && c.ReconcileInterval < time.Minute {
		return fmt.Errorf("stats reconcile interval must be 0 or at least 1m, got %s", c.ReconcileInterval)
	}
	return nil
}
