package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	GridPath string // hcl file or directory

	LogFormat       string
	LogLevel        string
	HealthcheckPort int

	// Rank selects the single rank this process runs over the socketio
	// transport. Negative means every rank runs in this process.
	Rank int
	// Hub overrides the hub URL of the run file.
	Hub string
	// ServeHub, when set, serves a socketio hub on this address for the
	// whole cluster.
	ServeHub string
	// OutputPath overrides the output path of the run file.
	OutputPath string
}

// NewConfig validates cfg and returns a copy.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.GridPath == "" {
		return nil, errors.New("GridPath is a required configuration field and cannot be empty")
	}
	if cfg.HealthcheckPort < 0 {
		return nil, errors.New("HealthcheckPort must not be negative")
	}
	return &cfg, nil
}
