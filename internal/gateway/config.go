package gateway

import (
	"fmt"
	"time"
)

type Config struct {
	RateLimitMax    int           `mapstructure:"rate_limit_max"`
	RateLimitWindow time.Duration `mapstructure:"rate_limit_window"`
}

func DefaultConfig() *Config {
	return &Config{
		RateLimitMax:    5,
		RateLimitWindow: 60 * time.Second,
	}
}

func (c *Config) Validate() error {
	if c.RateLimitMax <= 0 {
		return fmt.Errorf("rate_limit_max must be positive")
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("rate_limit_window must be positive")
	}
	return nil
}
