package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	PlanPath string

	LogFormat     string
	LogLevel      string
	WorkerCount   int
	MemoryLimit   int64
	FeedCapacity  int
	TraceEndpoint string
}

// NewConfig validates a Config and applies defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.PlanPath == "" {
		return nil, errors.New("PlanPath is a required configuration field and cannot be empty")
	}
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	if cfg.FeedCapacity < 0 {
		cfg.FeedCapacity = 0
	}
	return &cfg, nil
}
