// Package app is the application state around the synchronizer: the contract
// registry, the active provider, and the events that trigger refreshes.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/zanwyyy/contractsync/model"
	"github.com/zanwyyy/contractsync/provider"
	"github.com/zanwyyy/contractsync/registry"
	"github.com/zanwyyy/contractsync/syncer"
)

var ErrNoProvider = errors.New("no active provider")

// ErrDuplicateName is returned by AddContract when the name is taken.
var ErrDuplicateName = registry.ErrDuplicateName

// ErrSuperseded is returned when every attempt of a refresh lost to a newer
// snapshot. The registry may still hold data older than the active provider.
var ErrSuperseded = errors.New("refresh superseded by newer snapshots")

// maxAttempts bounds reruns of a refresh whose result was discarded.
const maxAttempts = 3

type activeProvider struct {
	p provider.Provider
}

type App struct {
	store   *registry.Store
	sync    *syncer.Synchronizer
	active  atomic.Pointer[activeProvider]
	network string
	log     zerolog.Logger
}

// New wires an application around store and sync. initial is the provider
// active at start; the simulated network is the usual choice.
func New(store *registry.Store, sync *syncer.Synchronizer, initial provider.Provider, network string, log zerolog.Logger) *App {
	a := &App{
		store:   store,
		sync:    sync,
		network: network,
		log:     log.With().Str("component", "app").Logger(),
	}
	if initial != nil {
		a.active.Store(&activeProvider{p: initial})
	}
	return a
}

// Provider returns the active provider, or nil before one is set.
func (a *App) Provider() provider.Provider {
	if ap := a.active.Load(); ap != nil {
		return ap.p
	}
	return nil
}

// Contracts returns the current registry snapshot.
func (a *App) Contracts() model.Registry {
	return a.store.Get()
}

// Start performs the initial bulk refresh against the starting provider.
func (a *App) Start(ctx context.Context) error {
	return a.refreshAll(ctx, "start")
}

// SwitchProvider makes p the active provider and refreshes every contract
// from it exactly once, so no snapshot mixes data from two providers.
func (a *App) SwitchProvider(ctx context.Context, p provider.Provider) error {
	if p == nil {
		return ErrNoProvider
	}
	prev := a.active.Swap(&activeProvider{p: p})
	if prev != nil {
		a.log.Info().Str("from", prev.p.Name()).Str("to", p.Name()).Msg("provider switched")
	}
	return a.refreshAll(ctx, "provider switched")
}

// AddContract tracks a new contract compiled to bytecode and syncs it.
// The address is derived once here and never changes.
func (a *App) AddContract(ctx context.Context, name, artifact string, bytecode []byte) (model.Contract, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Contract{}, errors.New("contract name required")
	}
	c := model.NewContract(name, model.ContractAddress(bytecode, a.network), artifact)
	if _, err := a.store.AppendUnique(c); err != nil {
		return model.Contract{}, err
	}
	a.log.Info().Str("contract", name).Str("address", c.Address).Msg("contract added")

	if err := a.refreshOne(ctx, name, "contract added"); err != nil {
		return c, err
	}
	if synced, ok := a.store.Get().Find(name); ok {
		return synced, nil
	}
	return c, nil
}

// NotifyContractChanged is called after something (typically a submitted
// transaction) touched the named contract's outputs.
func (a *App) NotifyContractChanged(ctx context.Context, name string) error {
	if c, ok := a.Provider().(interface{ Invalidate(string) }); ok {
		if rec, found := a.store.Get().Find(name); found {
			c.Invalidate(rec.Address)
		}
	}
	return a.refreshOne(ctx, name, "contract changed")
}

// refreshOne reruns a refresh whose result lost to a newer snapshot, against
// that snapshot and whichever provider is active by then. So does refreshAll.
func (a *App) refreshOne(ctx context.Context, name, reason string) error {
	for attempt := 1; ; attempt++ {
		p := a.Provider()
		if p == nil {
			return ErrNoProvider
		}
		outcome, err := a.sync.RefreshContract(ctx, p, name)
		if err != nil {
			a.log.Error().Err(err).Str("contract", name).Str("reason", reason).Msg("refresh failed")
			return err
		}
		if outcome != syncer.OutcomeSuperseded {
			a.log.Debug().Str("contract", name).Str("reason", reason).Stringer("outcome", outcome).Msg("refresh done")
			return nil
		}
		if attempt == maxAttempts {
			err := fmt.Errorf("%w: contract %q after %d attempts", ErrSuperseded, name, attempt)
			a.log.Warn().Err(err).Str("reason", reason).Msg("refresh gave up")
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		a.log.Debug().Str("contract", name).Int("attempt", attempt).Msg("refresh superseded, rerunning")
	}
}

func (a *App) refreshAll(ctx context.Context, reason string) error {
	for attempt := 1; ; attempt++ {
		p := a.Provider()
		if p == nil {
			return ErrNoProvider
		}
		outcome, err := a.sync.RefreshAll(ctx, p)
		if err != nil {
			a.log.Error().Err(err).Str("provider", p.Name()).Str("reason", reason).Msg("bulk refresh failed")
			return err
		}
		if outcome != syncer.OutcomeSuperseded {
			a.log.Info().
				Str("provider", p.Name()).
				Str("reason", reason).
				Stringer("outcome", outcome).
				Int("contracts", a.store.Get().Len()).
				Msg("bulk refresh done")
			return nil
		}
		if attempt == maxAttempts {
			err := fmt.Errorf("%w: bulk refresh after %d attempts", ErrSuperseded, attempt)
			a.log.Warn().Err(err).Str("provider", p.Name()).Str("reason", reason).Msg("bulk refresh gave up")
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		a.log.Debug().Str("provider", p.Name()).Int("attempt", attempt).Msg("bulk refresh superseded, rerunning")
	}
}
