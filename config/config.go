// Package config loads contractsync settings with precedence:
// defaults → YAML file → environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned when the merged configuration cannot be used.
var ErrInvalid = errors.New("invalid configuration")

// Provider kinds.
const (
	KindMemory  = "memory"
	KindBadger  = "badger"
	KindRedis   = "redis"
	KindEsplora = "esplora"
)

// Install policies.
const (
	PolicyVersioned      = "versioned"
	PolicyLastWriterWins = "last-writer-wins"
)

// Config is the full application configuration.
type Config struct {
	Service     string   `yaml:"service"`
	LogLevel    string   `yaml:"logLevel"`
	PrettyLogs  bool     `yaml:"prettyLogs"`
	Network     string   `yaml:"network"`
	MetricsAddr string   `yaml:"metricsAddr"`
	Provider    Provider `yaml:"provider"`
	Sync        Sync     `yaml:"sync"`
	PubSub      PubSub   `yaml:"pubsub"`
}

// Provider selects and tunes the UTXO data source.
type Provider struct {
	Kind        string        `yaml:"kind"`
	BadgerPath  string        `yaml:"badgerPath"`
	RedisAddr   string        `yaml:"redisAddr"`
	EsploraURL  string        `yaml:"esploraURL"`
	HTTPTimeout time.Duration `yaml:"httpTimeout"`
	MaxTries    uint          `yaml:"maxTries"`
	CacheTTL    time.Duration `yaml:"cacheTTL"`
}

// Sync tunes the synchronizer.
type Sync struct {
	Policy         string `yaml:"policy"`
	MaxConcurrency int    `yaml:"maxConcurrency"`
}

// PubSub names the Google Cloud Pub/Sub resources used by cmd/subscriber.
type PubSub struct {
	ProjectID        string `yaml:"projectID"`
	Subscription     string `yaml:"subscription"`
	RegistryTopic    string `yaml:"registryTopic"`
	PublishSnapshots bool   `yaml:"publishSnapshots"`
}

// Default returns the built-in configuration: simulated provider, versioned installs.
func Default() Config {
	return Config{
		Service:     "contractsync",
		LogLevel:    "info",
		PrettyLogs:  true,
		Network:     "bchtest",
		MetricsAddr: "",
		Provider: Provider{
			Kind:        KindMemory,
			BadgerPath:  "./data/chain",
			RedisAddr:   "localhost:6379",
			EsploraURL:  "https://chipnet.imaginary.cash/api",
			HTTPTimeout: 10 * time.Second,
			MaxTries:    3,
		},
		Sync: Sync{
			Policy: PolicyVersioned,
		},
		PubSub: PubSub{
			ProjectID:     "contractsync",
			Subscription:  "contractsync-sub",
			RegistryTopic: "registry.updated",
		},
	}
}

// Load merges defaults, the YAML file at path (optional when empty or
// missing) and environment overrides, then validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadYAML(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load yaml config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str("CONTRACTSYNC_LOG_LEVEL", &c.LogLevel)
	str("CONTRACTSYNC_NETWORK", &c.Network)
	str("CONTRACTSYNC_METRICS_ADDR", &c.MetricsAddr)
	str("CONTRACTSYNC_PROVIDER", &c.Provider.Kind)
	str("CONTRACTSYNC_BADGER_PATH", &c.Provider.BadgerPath)
	str("CONTRACTSYNC_REDIS_ADDR", &c.Provider.RedisAddr)
	str("CONTRACTSYNC_ESPLORA_URL", &c.Provider.EsploraURL)
	str("CONTRACTSYNC_SYNC_POLICY", &c.Sync.Policy)
	str("CONTRACTSYNC_PUBSUB_PROJECT", &c.PubSub.ProjectID)

	if v, ok := lookup("CONTRACTSYNC_CACHE_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: CONTRACTSYNC_CACHE_TTL: %v", ErrInvalid, err)
		}
		c.Provider.CacheTTL = d
	}
	if v, ok := lookup("CONTRACTSYNC_PRETTY_LOGS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: CONTRACTSYNC_PRETTY_LOGS: %v", ErrInvalid, err)
		}
		c.PrettyLogs = b
	}
	return nil
}

// Validate checks the fields each provider kind depends on.
func (c Config) Validate() error {
	switch c.Provider.Kind {
	case KindMemory:
	case KindBadger:
		// empty path = in-memory badger
	case KindRedis:
		if c.Provider.RedisAddr == "" {
			return fmt.Errorf("%w: provider.redisAddr required for redis", ErrInvalid)
		}
	case KindEsplora:
		if c.Provider.EsploraURL == "" {
			return fmt.Errorf("%w: provider.esploraURL required for esplora", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown provider kind %q", ErrInvalid, c.Provider.Kind)
	}

	switch c.Sync.Policy {
	case PolicyVersioned, PolicyLastWriterWins:
	default:
		return fmt.Errorf("%w: unknown sync policy %q", ErrInvalid, c.Sync.Policy)
	}

	if c.Sync.MaxConcurrency < 0 {
		return fmt.Errorf("%w: sync.maxConcurrency must be >= 0", ErrInvalid)
	}
	if c.Provider.CacheTTL < 0 {
		return fmt.Errorf("%w: provider.cacheTTL must be >= 0", ErrInvalid)
	}
	return nil
}
