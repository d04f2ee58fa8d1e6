package app

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/zanwyyy/contractsync/config"
	"github.com/zanwyyy/contractsync/helper"
	"github.com/zanwyyy/contractsync/provider"
	"github.com/zanwyyy/contractsync/registry"
	"github.com/zanwyyy/contractsync/syncer"
)

// Runtime is an App assembled from configuration together with the
// resources it owns.
type Runtime struct {
	App   *App
	Store *registry.Store

	// Simulated is the in-process chain. It is the active provider when the
	// configured kind is memory, otherwise a standby for switching back.
	Simulated   *provider.Memory
	SimProvider provider.Provider

	closer io.Closer
}

// Bootstrap opens the configured provider and wires store, synchronizer
// and app. Listeners see every installed snapshot.
func Bootstrap(cfg config.Config, log zerolog.Logger, listeners ...registry.Listener) (*Runtime, error) {
	policy, ok := syncer.ParsePolicy(cfg.Sync.Policy)
	if !ok {
		return nil, fmt.Errorf("%w: sync policy %q", config.ErrInvalid, cfg.Sync.Policy)
	}

	opts := make([]registry.Option, 0, len(listeners))
	for _, l := range listeners {
		opts = append(opts, registry.WithListener(l))
	}
	store := registry.NewStore(opts...)

	sync := syncer.New(store,
		syncer.WithLogger(log),
		syncer.WithPolicy(policy),
		syncer.WithMaxConcurrency(cfg.Sync.MaxConcurrency),
	)

	p, closer, err := provider.Open(cfg.Provider)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{Store: store, closer: closer}
	if mem, ok := provider.Base(p).(*provider.Memory); ok {
		rt.Simulated, rt.SimProvider = mem, p
	} else {
		rt.Simulated = provider.NewMemory()
		rt.SimProvider = provider.Instrument(rt.Simulated)
	}
	rt.App = New(store, sync, p, cfg.Network, log)

	log.Info().
		Str("provider", p.Name()).
		Str("kind", cfg.Provider.Kind).
		Str("endpoint", endpoint(cfg.Provider)).
		Str("policy", cfg.Sync.Policy).
		Str("network", cfg.Network).
		Msg("runtime ready")
	return rt, nil
}

// Close releases the provider opened by Bootstrap.
func (rt *Runtime) Close() error {
	if rt.closer == nil {
		return nil
	}
	err := rt.closer.Close()
	rt.closer = nil
	if err != nil {
		return fmt.Errorf("close provider: %w", err)
	}
	return nil
}

// endpoint names where the provider lives, with credentials stripped.
func endpoint(cfg config.Provider) string {
	switch cfg.Kind {
	case config.KindBadger:
		if cfg.BadgerPath == "" {
			return "in-memory"
		}
		return cfg.BadgerPath
	case config.KindRedis:
		return helper.RedactURL(cfg.RedisAddr)
	case config.KindEsplora:
		return helper.RedactURL(cfg.EsploraURL)
	}
	return "simulated"
}
