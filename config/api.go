package config

import "fmt"

type apiConfig struct {
	Port          int     `toml:"port" mapstructure:"port" json:"port"`
	Workers       int     `toml:"workers" mapstructure:"workers" json:"workers"`
	MaxWorkers    int     `toml:"max_workers" mapstructure:"max_workers" json:"max_workers"` // largest numThreads a job may ask for, raised to workers if lower
	RateLimit     float64 `toml:"rate_limit" mapstructure:"rate_limit" json:"rate_limit"` // requests per second, 0 disables
	Burst         int     `toml:"burst" mapstructure:"burst" json:"burst"`
	MaxUploadSize int64   `toml:"max_upload_size" mapstructure:"max_upload_size" json:"max_upload_size"`
}

func (c apiConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("api.port out of range: %d", c.Port)
	}
	if c.Workers < 1 {
		return fmt.Errorf("api.workers must be greater than 0, got %d", c.Workers)
	}
	if c.MaxWorkers < 1 {
		return fmt.Errorf("api.max_workers must be greater than 0, got %d", c.MaxWorkers)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("api.rate_limit must not be negative, got %v", c.RateLimit)
	}
	return nil
}
