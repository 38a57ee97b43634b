package queue

import "time"

// Config holds queue settings loaded from the environment.
type Config struct {
	PullInterval time.Duration `env:"QUEUE_PULL_INTERVAL" envDefault:"1s"`
	Lease        time.Duration `env:"QUEUE_LEASE" envDefault:"5m"`
	Concurrency  int           `env:"QUEUE_CONCURRENCY" envDefault:"5"`
	MaxAttempts  int8          `env:"QUEUE_MAX_ATTEMPTS" envDefault:"3"`
}
