package config

import (
	"fmt"
	"net/url"
	"time"
)

// Overlap policies for progress polls that outlive their tick.
const (
	OverlapSkip  = "skip"
	OverlapAllow = "allow"
)

type clientConfig struct {
	Server         string        `toml:"server" mapstructure:"server" json:"server"`
	Interval       time.Duration `toml:"interval" mapstructure:"interval" json:"interval"`
	Timeout        time.Duration `toml:"timeout" mapstructure:"timeout" json:"timeout"`
	RequestTimeout time.Duration `toml:"request_timeout" mapstructure:"request_timeout" json:"request_timeout"`
	Overlap        string        `toml:"overlap" mapstructure:"overlap" json:"overlap"`
	Threads        int           `toml:"threads" mapstructure:"threads" json:"threads"`
	Wait           time.Duration `toml:"wait" mapstructure:"wait" json:"wait"`
	NoProgress     bool          `toml:"no_progress" mapstructure:"no_progress" json:"no_progress"`
	Proxy          string        `toml:"proxy" mapstructure:"proxy" json:"proxy"` // http(s):// or socks5://
}

func (c clientConfig) validate() error {
	u, err := url.Parse(c.Server)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("client.server must be an absolute URL, got %q", c.Server)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("client.interval must be greater than 0, got %s", c.Interval)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("client.timeout must not be negative, got %s", c.Timeout)
	}
	switch c.Overlap {
	case OverlapSkip, OverlapAllow:
	default:
		return fmt.Errorf("client.overlap must be %q or %q, got %q", OverlapSkip, OverlapAllow, c.Overlap)
	}
	return nil
}
