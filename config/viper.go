package config

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

type Config struct {
	Lang string `toml:"lang" mapstructure:"lang" json:"lang"`

	Log    logConfig    `toml:"log" mapstructure:"log" json:"log"`
	Client clientConfig `toml:"client" mapstructure:"client" json:"client"`
	API    apiConfig    `toml:"api" mapstructure:"api" json:"api"`
	Cache  cacheConfig  `toml:"cache" mapstructure:"cache" json:"cache"`
}

type logConfig struct {
	Level string `toml:"level" mapstructure:"level" json:"level"`
}

var (
	cfg   *Config
	cfgMu sync.RWMutex
)

// C returns the loaded configuration. Before Init it returns the defaults.
func C() *Config {
	cfgMu.RLock()
	c := cfg
	cfgMu.RUnlock()
	if c != nil {
		return c
	}
	d := Defaults()
	return &d
}

// Defaults returns the configuration used when no file, env or flag sets a key.
func Defaults() Config {
	return Config{
		Lang: "en",
		Log:  logConfig{Level: "info"},
		Client: clientConfig{
			Server:         "http://localhost:8080",
			Interval:       time.Second,
			Timeout:        30 * time.Minute,
			RequestTimeout: 5 * time.Second,
			Overlap:        OverlapSkip,
		},
		API: apiConfig{
			Port:          8080,
			Workers:       runtime.NumCPU(),
			MaxWorkers:    max(256, runtime.NumCPU()),
			RateLimit:     50,
			Burst:         100,
			MaxUploadSize: 512 << 20,
		},
		Cache: cacheConfig{
			TTL:         3600,
			NumCounters: 1e5,
			MaxCost:     1 << 20,
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("lang", d.Lang)
	v.SetDefault("log.level", d.Log.Level)

	v.SetDefault("client.server", d.Client.Server)
	v.SetDefault("client.interval", d.Client.Interval)
	v.SetDefault("client.timeout", d.Client.Timeout)
	v.SetDefault("client.request_timeout", d.Client.RequestTimeout)
	v.SetDefault("client.overlap", d.Client.Overlap)
	v.SetDefault("client.threads", d.Client.Threads)
	v.SetDefault("client.wait", d.Client.Wait)
	v.SetDefault("client.no_progress", d.Client.NoProgress)
	v.SetDefault("client.proxy", d.Client.Proxy)

	v.SetDefault("api.port", d.API.Port)
	v.SetDefault("api.workers", d.API.Workers)
	v.SetDefault("api.max_workers", d.API.MaxWorkers)
	v.SetDefault("api.rate_limit", d.API.RateLimit)
	v.SetDefault("api.burst", d.API.Burst)
	v.SetDefault("api.max_upload_size", d.API.MaxUploadSize)

	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.num_counters", d.Cache.NumCounters)
	v.SetDefault("cache.max_cost", d.Cache.MaxCost)
}

// Init loads the configuration from configFile (or ./config.toml when it is
// empty and exists), UPWATCH_* environment variables and bound flags.
func Init(ctx context.Context, configFile string) error {
	return InitWith(ctx, viper.GetViper(), configFile)
}

func InitWith(ctx context.Context, v *viper.Viper, configFile string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/upwatch/")
	}
	v.SetConfigType("toml")
	v.SetEnvPrefix("UPWATCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configFile != "" {
			return fmt.Errorf("error reading config file: %w", err)
		}
		log.FromContext(ctx).Debug("No config file found, using defaults and environment")
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return fmt.Errorf("error unmarshalling config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return err
	}

	cfgMu.Lock()
	cfg = c
	cfgMu.Unlock()
	return nil
}

func (c *Config) Validate() error {
	if err := c.Client.validate(); err != nil {
		return err
	}
	if err := c.API.validate(); err != nil {
		return err
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	return nil
}
